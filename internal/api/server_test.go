package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/config"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/jobs"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/oracle"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

func testConfig() config.Config {
	return config.Config{
		MaxPages:       5,
		WorkerCount:    1,
		MaxQueueSize:   4,
		MaxUploadBytes: 1 << 20,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		JobTTL:         time.Hour,
	}
}

// newTestServer wires a server around an orchestrator that is never
// started, so submitted jobs stay exactly as the test left them.
func newTestServer(t *testing.T, cfg config.Config) (*Server, *jobs.Orchestrator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := jobs.NewOrchestrator(cfg, nil, log)
	client := oracle.NewClient(oracle.Config{APIKey: "test-key", Model: "test-model"}, log)
	return NewServer(orch, client, log, cfg), orch
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

type filePart struct {
	field string
	name  string
	data  []byte
}

func multipartBody(t *testing.T, parts ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(p.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func uploadPDF(t *testing.T, s *Server, filename string, content []byte, extra ...filePart) *httptest.ResponseRecorder {
	t.Helper()
	parts := append([]filePart{{"file", filename, content}}, extra...)
	body, ctype := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)
	return do(s, req)
}

// completedJob registers a job that already carries a result, the way a
// worker would have left it.
func completedJob(t *testing.T, orch *jobs.Orchestrator, id, filename string) *jobs.Job {
	t.Helper()
	job := jobs.New(id, filename)
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit job: %v", err)
	}
	job.SetResult(&statement.ExtractionResult{
		Records: []statement.CleanRecord{
			{
				Category:      statement.CategoryRevenue,
				LineItem:      "Revenue from Operations",
				Year:          "2024",
				Value:         1000,
				Unit:          statement.DefaultUnit,
				Confidence:    statement.ConfidenceHigh,
				SourceSnippet: "Revenue from Operations: 1,000",
			},
			{
				Category:      statement.CategoryRevenue,
				LineItem:      "Revenue from Operations",
				Year:          "2023",
				Value:         900,
				Unit:          statement.DefaultUnit,
				Confidence:    statement.ConfidenceHigh,
				SourceSnippet: "Revenue from Operations: 900",
			},
		},
		YearsDetected: []string{"2023", "2024"},
	})
	job.SetStatus(jobs.StatusCompleted, "done")
	return job
}

func TestHealth_StaysPublic(t *testing.T) {
	cfg := testConfig()
	cfg.APIAuthKey = "secret"
	s, _ := newTestServer(t, cfg)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestAuth_GuardsAPIWhenKeyConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.APIAuthKey = "secret"
	s, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/statements/none", nil)
	if rec := do(s, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/statements/none", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := do(s, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}

	// With the right key the request reaches the handler, which 404s on
	// the unknown job.
	req = httptest.NewRequest(http.MethodGet, "/api/statements/none", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := do(s, req); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 past auth, got %d", rec.Code)
	}
}

func TestRateLimiter_Throttles(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	s, _ := newTestServer(t, cfg)

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/none", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected first request through the limiter, got %d", rec.Code)
	}
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/none", nil)); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", rec.Code)
	}
}

func TestCreateStatement_AcceptsUpload(t *testing.T) {
	s, orch := newTestServer(t, testConfig())

	rec := uploadPDF(t, s, "fy24-results.pdf", []byte("%PDF-1.4 test"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		PollURL string `json:"poll_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(jobs.StatusQueued) {
		t.Errorf("expected queued status, got %q", resp.Status)
	}
	if resp.PollURL != "/api/statements/"+resp.JobID {
		t.Errorf("unexpected poll_url: %q", resp.PollURL)
	}

	job := orch.GetJob(resp.JobID)
	if job == nil {
		t.Fatal("expected job to be registered")
	}
	if job.Filename != "fy24-results.pdf" {
		t.Errorf("expected filename kept, got %q", job.Filename)
	}
	if string(job.FileData()) != "%PDF-1.4 test" {
		t.Errorf("expected upload bytes on the job, got %q", job.FileData())
	}
}

func TestCreateStatement_SanitizesFilename(t *testing.T) {
	s, orch := newTestServer(t, testConfig())

	rec := uploadPDF(t, s, "../../etc/evil.pdf", []byte("%PDF-1.4"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := orch.GetJob(resp.JobID).Filename; got != "evil.pdf" {
		t.Errorf("expected path components stripped, got %q", got)
	}
}

func TestCreateStatement_RejectsNonPDF(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := uploadPDF(t, s, "notes.txt", []byte("hello"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestCreateStatement_RequiresFile(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	body, ctype := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/statements", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "file is required") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestCreateStatement_RejectsOversizedFile(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 16
	s, _ := newTestServer(t, cfg)

	rec := uploadPDF(t, s, "big.pdf", bytes.Repeat([]byte("x"), 64))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestCreateStatement_RejectsTooManyImages(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 2
	s, _ := newTestServer(t, cfg)

	rec := uploadPDF(t, s, "a.pdf", []byte("%PDF-1.4"),
		filePart{"images", "p1.jpg", []byte{0xff, 0xd8}},
		filePart{"images", "p2.jpg", []byte{0xff, 0xd8}},
		filePart{"images", "p3.jpg", []byte{0xff, 0xd8}},
	)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too many page images") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestCreateStatement_AttachedImagesLandOnJob(t *testing.T) {
	s, orch := newTestServer(t, testConfig())

	rec := uploadPDF(t, s, "scan.pdf", []byte("%PDF-1.4"),
		filePart{"images", "page-1.jpg", []byte{0xff, 0xd8, 0x01}},
		filePart{"images", "page-2.png", []byte{0x89, 0x50, 0x02}},
	)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	images := orch.GetJob(resp.JobID).Images()
	if len(images) != 2 {
		t.Fatalf("expected 2 images on the job, got %d", len(images))
	}
	if images[0].Page != 1 || images[1].Page != 2 {
		t.Errorf("expected pages numbered in upload order, got %d and %d", images[0].Page, images[1].Page)
	}
	if images[0].MediaType != "image/jpeg" || images[1].MediaType != "image/png" {
		t.Errorf("unexpected media types: %q, %q", images[0].MediaType, images[1].MediaType)
	}
}

func TestCreateStatement_QueueFullReturns503(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	s, _ := newTestServer(t, cfg)

	if rec := uploadPDF(t, s, "a.pdf", []byte("%PDF-1.4")); rec.Code != http.StatusAccepted {
		t.Fatalf("expected first upload accepted, got %d", rec.Code)
	}
	rec := uploadPDF(t, s, "b.pdf", []byte("%PDF-1.4"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a full queue, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "queue is full") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestStatementStatus_NotFound(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatementStatus_ReturnsSnapshot(t *testing.T) {
	s, orch := newTestServer(t, testConfig())

	job := jobs.New("status-1", "q3.pdf")
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit job: %v", err)
	}
	job.SetPages(2)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/status-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap jobs.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ID != "status-1" || snap.Filename != "q3.pdf" {
		t.Errorf("unexpected snapshot identity: %+v", snap)
	}
	if snap.Status != jobs.StatusQueued {
		t.Errorf("expected queued status, got %q", snap.Status)
	}
	if snap.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", snap.Pages)
	}
}

func TestStatementResult_UnfinishedConflicts(t *testing.T) {
	s, orch := newTestServer(t, testConfig())

	if err := orch.Submit(jobs.New("pending-1", "q3.pdf")); err != nil {
		t.Fatalf("submit job: %v", err)
	}
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/pending-1/result", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unfinished job, got %d", rec.Code)
	}
}

func TestStatementResult_FailedJobEnvelope(t *testing.T) {
	s, orch := newTestServer(t, testConfig())

	job := jobs.New("failed-1", "q3.pdf")
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit job: %v", err)
	}
	job.Fail("extracting", "stage classification: boom")

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/failed-1/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with error envelope, got %d", rec.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false for a failed job")
	}
	if resp.Error != "stage classification: boom" {
		t.Errorf("expected the run error passed through, got %q", resp.Error)
	}
}

func TestStatementResult_CompletedCarriesPivot(t *testing.T) {
	s, orch := newTestServer(t, testConfig())
	completedJob(t, orch, "done-1", "fy24.pdf")

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/done-1/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Success bool                       `json:"success"`
		Result  statement.ExtractionResult `json:"result"`
		Pivot   statement.PivotTable       `json:"pivot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success=true")
	}
	if len(resp.Result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(resp.Result.Records))
	}
	if len(resp.Pivot.Rows) != 1 {
		t.Fatalf("expected the two years folded into 1 pivot row, got %d", len(resp.Pivot.Rows))
	}
	if len(resp.Pivot.Years) != 2 || resp.Pivot.Years[0] != "2023" {
		t.Errorf("unexpected pivot years: %v", resp.Pivot.Years)
	}
}

func TestStatementExport_CSVDownload(t *testing.T) {
	s, orch := newTestServer(t, testConfig())
	completedJob(t, orch, "export-1", "fy24.pdf")

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/export-1/export?format=csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("expected text/csv, got %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="fy24.csv"`) {
		t.Errorf("unexpected disposition: %q", got)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse exported csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "category" {
		t.Errorf("unexpected csv header: %v", rows[0])
	}
}

func TestStatementExport_DefaultsToXLSX(t *testing.T) {
	s, orch := newTestServer(t, testConfig())
	completedJob(t, orch, "export-2", "fy24.pdf")

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/export-2/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("expected xlsx content type, got %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("expected a zip container for the workbook")
	}
}

func TestStatementExport_UnknownFormatRejected(t *testing.T) {
	s, orch := newTestServer(t, testConfig())
	completedJob(t, orch, "export-3", "fy24.pdf")

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/export-3/export?format=pdf", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", rec.Code)
	}
}

func TestStatementExport_UnfinishedConflicts(t *testing.T) {
	s, orch := newTestServer(t, testConfig())
	if err := orch.Submit(jobs.New("pending-2", "q3.pdf")); err != nil {
		t.Fatalf("submit job: %v", err)
	}

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/pending-2/export", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unfinished job, got %d", rec.Code)
	}
}

func TestOracleStats_ReportsModelAndQueueDepth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats/oracle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Model      string               `json:"model"`
		QueueDepth int                  `json:"queue_depth"`
		Stats      oracle.StatsSnapshot `json:"stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Model != "test-model" {
		t.Errorf("expected configured model, got %q", resp.Model)
	}
	if resp.QueueDepth != 0 {
		t.Errorf("expected empty queue, got %d", resp.QueueDepth)
	}
	if resp.Stats.Count != 0 {
		t.Errorf("expected no latency samples, got %d", resp.Stats.Count)
	}
}
