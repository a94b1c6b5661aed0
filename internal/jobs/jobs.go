// Package jobs tracks asynchronous statement extractions: an in-memory
// registry with TTL eviction, a bounded work queue, and the worker that
// drives a document through the pipeline.
package jobs

import (
	"sync"
	"time"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

// Status represents the state of an extraction job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusPreparing  Status = "preparing"
	StatusExtracting Status = "extracting"
	StatusCompleted  Status = "completed"
	StatusNoTable    Status = "no_table"
	StatusFailed     Status = "failed"
)

// Job tracks the state of a single statement extraction.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status Status `json:"status"`
	Phase  string `json:"phase"`

	Pages       int `json:"pages"`
	RecordCount int `json:"record_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	images   []statement.PageImage
	result   *statement.ExtractionResult
	runErr   string
}

func New(id, filename string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status Status, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with a terminal error message.
func (j *Job) Fail(phase, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Phase = phase
	j.runErr = msg
	j.UpdatedAt = time.Now()
}

// SetPages records how many pages the run will consider.
func (j *Job) SetPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Pages = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the pipeline output.
func (j *Job) SetResult(res *statement.ExtractionResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	if res != nil {
		j.RecordCount = len(res.Records)
	}
	j.UpdatedAt = time.Now()
}

// Result returns the extraction result and the terminal error message.
// Both zero values mean the job has not finished.
func (j *Job) Result() (*statement.ExtractionResult, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.runErr
}

// SetFileData sets the raw upload bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw upload bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetImages sets caller-provided page images, overriding rasterization.
func (j *Job) SetImages(images []statement.PageImage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.images = images
}

// Images returns caller-provided page images, if any.
func (j *Job) Images() []statement.PageImage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.images
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Status      Status    `json:"status"`
	Phase       string    `json:"phase"`
	Pages       int       `json:"pages"`
	RecordCount int       `json:"record_count"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Status:      j.Status,
		Phase:       j.Phase,
		Pages:       j.Pages,
		RecordCount: j.RecordCount,
		Error:       j.runErr,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// LastUpdate reports when the job state last changed, read under the
// job's lock. TTL eviction keys off this, so a job being advanced by a
// worker always counts as fresh.
func (j *Job) LastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// Store is a thread-safe in-memory job registry with TTL eviction.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *Store) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs whose last update is older than the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.LastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
