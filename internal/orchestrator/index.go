package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteJobStore persists job records to SQLite with write-through
// semantics: the embedded in-memory store stays authoritative for reads,
// every mutation is mirrored to disk, and startup reloads prior state so a
// restarted server can still answer status and report queries for old jobs.
type SQLiteJobStore struct {
	inner *MemoryJobStore
	db    *sqlx.DB
	mu    sync.Mutex
}

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	step        TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	report_path TEXT NOT NULL DEFAULT '',
	pdf_path    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

func NewSQLiteJobStore(dbPath string) (*SQLiteJobStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(jobsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteJobStore{inner: NewMemoryJobStore(), db: db}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	return s, nil
}

func (s *SQLiteJobStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteJobStore) loadAll() error {
	rows, err := s.db.Query("SELECT job_id, status, step, message, report_path, pdf_path, error, created_at, updated_at FROM jobs")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rec JobRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&rec.JobID, &rec.Status, &rec.Step, &rec.Message, &rec.ReportPath, &rec.PDFPath, &rec.Error, &createdAt, &updatedAt); err != nil {
			return err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		// A job mid-flight when the process died can never finish now.
		if rec.Status == StatusPending || rec.Status == StatusRunning {
			rec.Status = StatusFailed
			rec.Message = fmt.Sprintf("failed during %s", rec.Step)
			rec.Error = "interrupted by server restart"
		}
		s.inner.jobs[rec.JobID] = rec
	}
	return rows.Err()
}

func (s *SQLiteJobStore) save(jobID string) error {
	rec, ok := s.inner.Get(jobID)
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	_, err := s.db.Exec(`INSERT INTO jobs (job_id, status, step, message, report_path, pdf_path, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			step = excluded.step,
			message = excluded.message,
			report_path = excluded.report_path,
			pdf_path = excluded.pdf_path,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		rec.JobID, rec.Status, rec.Step, rec.Message, rec.ReportPath, rec.PDFPath, rec.Error,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteJobStore) Create(rec JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.Create(rec); err != nil {
		return err
	}
	return s.save(rec.JobID)
}

func (s *SQLiteJobStore) SetRunning(jobID string, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.SetRunning(jobID, step); err != nil {
		return err
	}
	return s.save(jobID)
}

func (s *SQLiteJobStore) Complete(jobID, reportPath, pdfPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.Complete(jobID, reportPath, pdfPath); err != nil {
		return err
	}
	return s.save(jobID)
}

func (s *SQLiteJobStore) Fail(jobID string, step Step, cause error, reportPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inner.Fail(jobID, step, cause, reportPath); err != nil {
		return err
	}
	return s.save(jobID)
}

func (s *SQLiteJobStore) Get(jobID string) (JobRecord, bool) {
	return s.inner.Get(jobID)
}

func (s *SQLiteJobStore) List() []JobRecord {
	return s.inner.List()
}
