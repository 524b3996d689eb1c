package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobboard/app/store/enums"
)

// File keeps all jobs as a JSON array in a single file. The file is loaded once on start,
// every mutation rewrites it through a temp file and rename, and the in-memory copy is
// replaced only after the rename succeeded.
type File struct {
	path string
	mu   sync.RWMutex
	jobs []Job
}

// NewFile opens the store at path, creating the directory and an empty "[]" file if absent
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory for %s: %w", path, err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		log.Printf("[INFO] created empty jobs file %s", path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	jobs, err := decodeFileJobs(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	log.Printf("[DEBUG] loaded %d jobs from %s", len(jobs), path)
	return &File{path: path, jobs: jobs}, nil
}

// fileRecord reads the job type as plain text, older files carry free-form or empty types
type fileRecord struct {
	Job
	Type string `json:"type"`
}

// decodeFileJobs parses the stored array, unknown or empty job types become Full-time
func decodeFileJobs(data []byte) ([]Job, error) {
	var recs []fileRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(recs))
	for _, r := range recs {
		jt, err := enums.ParseJobType(r.Type)
		if err != nil {
			log.Printf("[WARN] job %d has unknown type %q, using %s", r.ID, r.Type, enums.JobTypeFullTime)
			jt = enums.JobTypeFullTime
		}
		r.Job.Type = jt
		jobs = append(jobs, r.Job)
	}
	return jobs, nil
}

// Create validates input, appends a new active job and commits the file
func (f *File) Create(_ context.Context, in JobInput) (Job, error) {
	norm, err := in.Normalize()
	if err != nil {
		return Job{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	job := newJob(nextID(f.jobs), norm, stamp())
	updated := append(slices.Clone(f.jobs), job)
	if err := f.commit(updated); err != nil {
		return Job{}, err
	}
	f.jobs = updated
	return job, nil
}

// ListActive returns active jobs, newest first
func (f *File) ListActive(_ context.Context) ([]Job, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return activeNewestFirst(f.jobs), nil
}

// Get returns an active job by id
func (f *File) Get(_ context.Context, id int64) (Job, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, j := range f.jobs {
		if j.ID == id && j.IsActive() {
			return j, nil
		}
	}
	return Job{}, ErrNotFound
}

// SoftDelete marks an active job as deleted and commits the file
func (f *File) SoftDelete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := slices.IndexFunc(f.jobs, func(j Job) bool { return j.ID == id && j.IsActive() })
	if idx < 0 {
		return ErrNotFound
	}
	updated := slices.Clone(f.jobs)
	updated[idx] = markDeleted(updated[idx])
	if err := f.commit(updated); err != nil {
		return err
	}
	f.jobs = updated
	return nil
}

// Close is a no-op, the file is not held open
func (f *File) Close() error { return nil }

// String returns store kind and location
func (f *File) String() string { return "file:" + f.path }

// commit writes jobs to a temp file in the same directory and renames it over the store file
func (f *File) commit(jobs []Job) error {
	if jobs == nil {
		jobs = []Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".jobs-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Printf("[WARN] failed to remove temp file %s: %v", tmpName, rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}
