package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/dgallion1/swmlgen/internal/swml"
	"github.com/google/uuid"
)

// JobStatus represents the state of a render job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusBuilding   JobStatus = "building"
	StatusRendering  JobStatus = "rendering"
	StatusValidating JobStatus = "validating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	// StatusInvalid marks a job whose output rendered but failed validation.
	StatusInvalid JobStatus = "invalid"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusInvalid
}

// Job tracks the state of a single document build.
type Job struct {
	mu sync.Mutex

	ID   string `json:"job_id"`
	Name string `json:"name"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Format  render.Format `json:"format"`
	Dialect swml.Dialect  `json:"dialect"`
	Indent  bool          `json:"indent"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	manifest   []byte
	baseDir    string
	output     []byte
	validation *schema.Result
	errors     []string
}

// NewJob returns a queued job for manifest.
func NewJob(name string, manifest []byte, format render.Format, dialect swml.Dialect) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    StatusQueued,
		Phase:     "queued",
		Format:    format,
		Dialect:   dialect,
		CreatedAt: now,
		UpdatedAt: now,
		manifest:  manifest,
	}
}

// Request returns the render request the job describes.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Request{
		Manifest: j.manifest,
		BaseDir:  j.baseDir,
		Format:   j.Format,
		Dialect:  j.Dialect,
		Indent:   j.Indent,
	}
}

// SetBaseDir sets the directory relative content files resolve against.
func (j *Job) SetBaseDir(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.baseDir = dir
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// SetOutput stores the rendered document and its hash.
func (j *Job) SetOutput(out []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = out
	j.ContentHash = ContentHashHex(out)
	j.UpdatedAt = time.Now()
}

// Output returns the rendered document, nil until rendering finished.
func (j *Job) Output() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output
}

// SetValidation records the validation outcome.
func (j *Job) SetValidation(res schema.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.validation = &res
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string         `json:"job_id"`
	Name        string         `json:"name"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase"`
	Format      render.Format  `json:"format"`
	Dialect     swml.Dialect   `json:"dialect"`
	ContentHash string         `json:"content_hash,omitempty"`
	Validation  *schema.Result `json:"validation,omitempty"`
	Errors      []string       `json:"errors"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.errors...)
	var validation *schema.Result
	if j.validation != nil {
		v := *j.validation
		validation = &v
	}
	return JobSnapshot{
		ID:          j.ID,
		Name:        j.Name,
		Status:      j.Status,
		Phase:       j.Phase,
		Format:      j.Format,
		Dialect:     j.Dialect,
		ContentHash: j.ContentHash,
		Validation:  validation,
		Errors:      errs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
