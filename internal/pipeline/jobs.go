package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/geraldbahati/unbowed/internal/chunker"
	"github.com/geraldbahati/unbowed/internal/document"
)

// JobStatus represents the state of a chunking job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// JobMode selects how a job's documents are chunked.
type JobMode string

const (
	// ModeDocuments chunks each document separately.
	ModeDocuments JobMode = "documents"
	// ModeBatch concatenates every document and chunks the result once.
	ModeBatch JobMode = "batch"
)

// Job tracks the state of one chunking request.
type Job struct {
	mu sync.Mutex

	ID   string  `json:"job_id"`
	Mode JobMode `json:"mode"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	chunkCfg chunker.Config
	uploads  []Upload
	chunks   []document.Chunk
	docs     []DocStatus
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Documents       int      `json:"documents"`
	DocumentsFailed int      `json:"documents_failed"`
	TotalChunks     int      `json:"total_chunks"`
	ChunksIndexed   int      `json:"chunks_indexed"`
	Errors          []string `json:"errors"`
}

// DocStatus is the per-document outcome reported to clients.
type DocStatus struct {
	DocID    string `json:"doc_id"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type,omitempty"`
	Chunks   int    `json:"chunks"`
	Error    string `json:"error,omitempty"`
}

// NewJob creates a queued job over uploads. The content hash covers every
// upload's bytes in order.
func NewJob(id string, mode JobMode, uploads []Upload, cfg chunker.Config) *Job {
	now := time.Now()
	h := sha256.New()
	for _, u := range uploads {
		h.Write(u.Data)
	}
	return &Job{
		ID:          id,
		Mode:        mode,
		Status:      StatusQueued,
		Phase:       "queued",
		Progress:    Progress{Documents: len(uploads)},
		ContentHash: fmt.Sprintf("%x", h.Sum(nil)),
		CreatedAt:   now,
		UpdatedAt:   now,
		chunkCfg:    cfg,
		uploads:     uploads,
	}
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

// FindByHash returns a live job with the same mode and content hash that
// has not failed, or nil.
func (s *JobStore) FindByHash(mode JobMode, hash string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		job.mu.Lock()
		match := job.Mode == mode && job.ContentHash == hash && job.Status != StatusFailed
		job.mu.Unlock()
		if match {
			return job
		}
	}
	return nil
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
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
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrChunksIndexed atomically increments the pushed chunk count.
func (j *Job) IncrChunksIndexed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksIndexed++
	j.UpdatedAt = time.Now()
}

// SetResults stores the chunks and per-document outcomes of a run.
func (j *Job) SetResults(chunks []document.Chunk, docs []DocStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = chunks
	j.docs = docs
	j.Progress.TotalChunks = len(chunks)
	failed := 0
	for _, d := range docs {
		if d.Error != "" {
			failed++
		}
	}
	j.Progress.DocumentsFailed = failed
	j.UpdatedAt = time.Now()
}

// Chunks returns the chunks produced so far.
func (j *Job) Chunks() []document.Chunk {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.chunks
}

// Uploads returns the documents submitted with the job.
func (j *Job) Uploads() []Upload {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.uploads
}

// releaseUploads drops the raw bytes once they are no longer needed.
func (j *Job) releaseUploads() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.uploads {
		j.uploads[i].Data = nil
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string      `json:"job_id"`
	Mode      JobMode     `json:"mode"`
	Status    JobStatus   `json:"status"`
	Phase     string      `json:"phase"`
	Progress  Progress    `json:"progress"`
	Documents []DocStatus `json:"documents"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	docs := append([]DocStatus{}, j.docs...)
	if len(docs) == 0 {
		for _, u := range j.uploads {
			docs = append(docs, DocStatus{DocID: u.Doc.ID, Name: u.Doc.Name, MIMEType: u.Doc.MIMEType})
		}
	}
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		Mode:      j.Mode,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		Documents: docs,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// ChunkView is the wire form of a chunk.
type ChunkView struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	DocID   string `json:"doc_id"`
	DocName string `json:"doc_name"`
}

// Views converts chunks to their wire form.
func Views(chunks []document.Chunk) []ChunkView {
	views := make([]ChunkView, 0, len(chunks))
	for _, c := range chunks {
		v := ChunkView{Name: c.Name, Text: c.Text, DocName: c.DocName()}
		if c.Doc != nil {
			v.DocID = c.Doc.ID
		}
		views = append(views, v)
	}
	return views
}
