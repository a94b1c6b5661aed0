package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/export"
)

// handleStatementExport streams the finished result as an XLSX workbook
// (default) or CSV, chosen by the format query parameter.
func (s *Server) handleStatementExport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	res, errMsg := job.Result()
	if errMsg != "" {
		jsonError(w, "job failed: "+errMsg, http.StatusConflict)
		return
	}
	if res == nil {
		jsonError(w, "job not finished", http.StatusConflict)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	var (
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case "xlsx":
		data, err = export.XLSX(*res)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "csv":
		data, err = export.CSV(*res)
		contentType = "text/csv"
	default:
		jsonError(w, fmt.Sprintf("unsupported format: %s", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("export failed", "job_id", jobID, "format", format, "error", err)
		jsonError(w, "export failed", http.StatusInternalServerError)
		return
	}

	base := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"."+format))
	w.Write(data)
}
