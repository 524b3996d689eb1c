package store

import (
	"context"
	"slices"
	"sync"
)

// Memory keeps jobs in process memory. Nothing survives a restart.
type Memory struct {
	mu   sync.RWMutex
	jobs []Job
}

// NewMemory makes an in-memory store, optionally seeded with existing records
func NewMemory(seed ...Job) *Memory {
	return &Memory{jobs: slices.Clone(seed)}
}

// Create validates input and appends a new active job
func (m *Memory) Create(_ context.Context, in JobInput) (Job, error) {
	norm, err := in.Normalize()
	if err != nil {
		return Job{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job := newJob(nextID(m.jobs), norm, stamp())
	m.jobs = append(m.jobs, job)
	return job, nil
}

// ListActive returns active jobs, newest first
func (m *Memory) ListActive(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return activeNewestFirst(m.jobs), nil
}

// Get returns an active job by id
func (m *Memory) Get(_ context.Context, id int64) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		if j.ID == id && j.IsActive() {
			return j, nil
		}
	}
	return Job{}, ErrNotFound
}

// SoftDelete marks an active job as deleted
func (m *Memory) SoftDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, j := range m.jobs {
		if j.ID == id && j.IsActive() {
			m.jobs[i] = markDeleted(j)
			return nil
		}
	}
	return ErrNotFound
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

// String returns store kind
func (m *Memory) String() string { return "memory" }
