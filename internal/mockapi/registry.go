// Package mockapi is an in-memory stand-in for the image compression service.
// It speaks the same HTTP surface as the real publisher, so the dashboard can
// be developed and demoed without a database or message broker.
package mockapi

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

var (
	// ErrNotFound is returned for unknown job ids and artifact names.
	ErrNotFound = errors.New("job not found")
	// ErrNotRetryable is returned when retrying a job that has not failed.
	ErrNotRetryable = errors.New("only failed jobs can be retried")
)

// Registry is the mutex-guarded job table. Jobs get increasing int ids and
// are listed newest first.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[int64]*model.Job
	originals map[int64][]byte
	artifacts map[string][]byte
	nextID    int64
	now       func() time.Time
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:      make(map[int64]*model.Job),
		originals: make(map[int64][]byte),
		artifacts: make(map[string][]byte),
		nextID:    1,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a pending job for an uploaded file.
func (r *Registry) Create(filename string, data []byte) model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	size := int64(len(data))
	job := &model.Job{
		ID:           r.nextID,
		Filename:     filename,
		OriginalSize: &size,
		Status:       model.StatusPending,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}
	r.nextID++
	r.jobs[job.ID] = job
	r.originals[job.ID] = data
	return cloneJob(job)
}

// Insert stores a fully formed job, used for seeding. A zero ID is assigned
// the next free id.
func (r *Registry) Insert(job model.Job) model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == 0 {
		job.ID = r.nextID
	}
	if job.ID >= r.nextID {
		r.nextID = job.ID + 1
	}
	stored := cloneJob(&job)
	r.jobs[job.ID] = &stored
	return cloneJob(&stored)
}

// Get returns a copy of the job.
func (r *Registry) Get(id int64) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	return cloneJob(job), nil
}

// List returns every job, newest first.
func (r *Registry) List() []model.Job {
	return r.filter(func(model.Job) bool { return true })
}

// ListByStatus returns jobs in the given status, newest first.
func (r *Registry) ListByStatus(status model.JobStatus) []model.Job {
	return r.filter(func(j model.Job) bool { return j.Status == status })
}

func (r *Registry) filter(keep func(model.Job) bool) []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if keep(*job) {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Update applies fn to the stored job and bumps UpdatedAt.
func (r *Registry) Update(id int64, fn func(*model.Job)) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	fn(job)
	now := r.now()
	job.UpdatedAt = &now
	return cloneJob(job), nil
}

// Retry moves a failed job back to pending and clears its error.
func (r *Registry) Retry(id int64) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, ErrNotFound
	}
	if job.Status != model.StatusFailed {
		return model.Job{}, ErrNotRetryable
	}
	now := r.now()
	job.Status = model.StatusPending
	job.ErrorMessage = nil
	job.UpdatedAt = &now
	return cloneJob(job), nil
}

// Original returns the uploaded bytes of a job.
func (r *Registry) Original(id int64) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.originals[id]
	return data, ok
}

// PutArtifact stores compressed bytes under name.
func (r *Registry) PutArtifact(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[name] = data
}

// Artifact returns compressed bytes by name.
func (r *Registry) Artifact(name string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.artifacts[name]
	return data, ok
}

// cloneJob deep-copies the optional fields so callers never share pointers
// with the table.
func cloneJob(j *model.Job) model.Job {
	out := *j
	out.OriginalSize = clonePtr(j.OriginalSize)
	out.CompressedSize = clonePtr(j.CompressedSize)
	out.CompressedFileName = clonePtr(j.CompressedFileName)
	out.ErrorMessage = clonePtr(j.ErrorMessage)
	out.CreatedAt = clonePtr(j.CreatedAt)
	out.UpdatedAt = clonePtr(j.UpdatedAt)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
