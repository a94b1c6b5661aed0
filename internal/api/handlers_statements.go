package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/jobs"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

const maxImageBytes = 10 << 20

var imageMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func (s *Server) handleCreateStatement(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	// Read file data.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	// Pre-rendered page images are optional; without them the worker
	// rasterizes the PDF itself.
	images, err := readUploadImages(r.MultipartForm.File["images"], s.cfg.MaxPages)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := jobs.New(uuid.NewString(), filename)
	job.SetFileData(data)
	if len(images) > 0 {
		job.SetImages(images)
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	// Report the submit-time status: a worker may already be advancing
	// the job, and its fields are only readable under the job lock.
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   jobs.StatusQueued,
		"poll_url": fmt.Sprintf("/api/statements/%s", job.ID),
	})
}

func readUploadImages(headers []*multipart.FileHeader, maxPages int) ([]statement.PageImage, error) {
	if len(headers) > maxPages {
		return nil, fmt.Errorf("too many page images: %d (max %d)", len(headers), maxPages)
	}
	var images []statement.PageImage
	for i, fh := range headers {
		mediaType, ok := imageMediaTypes[strings.ToLower(filepath.Ext(fh.Filename))]
		if !ok {
			return nil, fmt.Errorf("unsupported image type: %s", filepath.Ext(fh.Filename))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open image %s", sanitizeFilename(fh.Filename))
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		f.Close()
		if err != nil || len(data) > maxImageBytes {
			return nil, fmt.Errorf("image %s too large or unreadable", sanitizeFilename(fh.Filename))
		}
		images = append(images, statement.PageImage{
			Page:      i + 1,
			MediaType: mediaType,
			Data:      data,
		})
	}
	return images, nil
}

func (s *Server) handleStatementStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleStatementResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	res, errMsg := job.Result()
	w.Header().Set("Content-Type", "application/json")
	if errMsg != "" {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   errMsg,
		})
		return
	}
	if res == nil {
		jsonError(w, "job not finished", http.StatusConflict)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"result":  res,
		"pivot":   statement.BuildPivot(*res),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
