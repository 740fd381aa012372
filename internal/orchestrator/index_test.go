package orchestrator

import (
	"path/filepath"
	"testing"
)

func TestSQLiteJobStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	s, err := NewSQLiteJobStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteJobStore: %v", err)
	}
	if err := s.Create(JobRecord{JobID: "j1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetRunning("j1", StepMatching); err != nil {
		t.Fatalf("SetRunning: %v", err)
	}
	if err := s.Complete("j1", "/reports/j1.md", "/reports/j1.pdf"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteJobStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, ok := reopened.Get("j1")
	if !ok {
		t.Fatal("job lost across restart")
	}
	if rec.Status != StatusCompleted || rec.ReportPath != "/reports/j1.md" || rec.PDFPath != "/reports/j1.pdf" {
		t.Fatalf("reloaded record: %+v", rec)
	}
}

func TestSQLiteJobStoreMarksInterruptedJobsFailed(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	s, err := NewSQLiteJobStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteJobStore: %v", err)
	}
	s.Create(JobRecord{JobID: "j1"})
	s.SetRunning("j1", StepSummarization)
	s.Close()

	reopened, err := NewSQLiteJobStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, _ := reopened.Get("j1")
	if rec.Status != StatusFailed || rec.Error == "" {
		t.Fatalf("interrupted job not failed: %+v", rec)
	}
}
