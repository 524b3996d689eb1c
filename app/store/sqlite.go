package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/jobboard/app/store/enums"
)

// SQLite implements job persistence with SQLite in WAL mode
type SQLite struct {
	db   *sqlx.DB
	path string
	mu   sync.Mutex // serializes writers, id assignment reads max(id) inside the tx
}

// jobRow is the jobs table layout
type jobRow struct {
	ID               int64           `db:"id"`
	Title            string          `db:"title"`
	Company          string          `db:"company"`
	Location         string          `db:"location"`
	Type             enums.JobType   `db:"type"`
	Experience       string          `db:"experience"`
	Salary           string          `db:"salary"`
	ApplyLink        string          `db:"apply_link"`
	ShortDescription string          `db:"short_description"`
	FullDescription  string          `db:"full_description"`
	PostedAt         int64           `db:"posted_at"` // unix milliseconds
	Status           enums.JobStatus `db:"status"`
}

const jobColumns = `id, title, company, location, type, experience, salary, apply_link,
	short_description, full_description, posted_at, status`

func (r jobRow) job() Job {
	return Job{
		ID:               r.ID,
		Title:            r.Title,
		Company:          r.Company,
		Location:         r.Location,
		Type:             r.Type,
		Experience:       r.Experience,
		Salary:           r.Salary,
		ApplyLink:        r.ApplyLink,
		ShortDescription: r.ShortDescription,
		FullDescription:  r.FullDescription,
		PostedDate:       time.UnixMilli(r.PostedAt).UTC(),
		Status:           r.Status,
	}
}

// NewSQLiteStore opens (or creates) the database at dbPath and makes sure the schema exists
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLite{db: db, path: dbPath}
	if err := s.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the database schema
func (s *SQLite) initialize(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			location TEXT NOT NULL,
			type TEXT NOT NULL,
			experience TEXT NOT NULL DEFAULT '',
			salary TEXT NOT NULL DEFAULT '',
			apply_link TEXT NOT NULL DEFAULT '',
			short_description TEXT NOT NULL,
			full_description TEXT NOT NULL,
			posted_at INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, id)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Create validates input and inserts a new active job with id = max(id)+1
func (s *SQLite) Create(ctx context.Context, in JobInput) (Job, error) {
	norm, err := in.Normalize()
	if err != nil {
		return Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Job{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var id int64
	if err := tx.GetContext(ctx, &id, "SELECT COALESCE(MAX(id), 0) + 1 FROM jobs"); err != nil {
		return Job{}, fmt.Errorf("failed to get next job id: %w", err)
	}

	job := newJob(id, norm, stamp())
	row := jobRow{
		ID: job.ID, Title: job.Title, Company: job.Company, Location: job.Location, Type: job.Type,
		Experience: job.Experience, Salary: job.Salary, ApplyLink: job.ApplyLink,
		ShortDescription: job.ShortDescription, FullDescription: job.FullDescription,
		PostedAt: job.PostedDate.UnixMilli(), Status: job.Status,
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO jobs (`+jobColumns+`)
		VALUES (:id, :title, :company, :location, :type, :experience, :salary, :apply_link,
			:short_description, :full_description, :posted_at, :status)`, row)
	if err != nil {
		return Job{}, fmt.Errorf("failed to insert job %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return Job{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return job, nil
}

// ListActive returns active jobs, newest first
func (s *SQLite) ListActive(ctx context.Context) ([]Job, error) {
	rows := []jobRow{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id DESC`,
		enums.JobStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	res := make([]Job, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.job())
	}
	return res, nil
}

// Get returns an active job by id
func (s *SQLite) Get(ctx context.Context, id int64) (Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = ? AND status = ?`,
		id, enums.JobStatusActive)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return row.job(), nil
}

// SoftDelete marks an active job as deleted in a single conditional update
func (s *SQLite) SoftDelete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE jobs SET status = ? WHERE id = ? AND status = ?",
		enums.JobStatusDeleted, id, enums.JobStatusActive)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted job %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// String returns store kind and location
func (s *SQLite) String() string { return "sqlite:" + s.path }
