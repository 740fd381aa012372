package orchestrator

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Step string

const (
	StepAcquisition      Step = "acquisition"
	StepSummarization    Step = "summarization"
	StepMatching         Step = "matching"
	StepReliability      Step = "reliability"
	StepReportGeneration Step = "report_generation"
)

// JobRecord is the externally visible state of one analysis job. Step is
// only meaningful while running; on failure it records the step that failed.
// Message is replaced wholesale on every transition, never appended.
type JobRecord struct {
	JobID      string    `json:"job_id" db:"job_id"`
	Status     Status    `json:"status" db:"status"`
	Step       Step      `json:"step,omitempty" db:"step"`
	Message    string    `json:"message,omitempty" db:"message"`
	ReportPath string    `json:"report_path,omitempty" db:"report_path"`
	PDFPath    string    `json:"pdf_path,omitempty" db:"pdf_path"`
	Error      string    `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func (r JobRecord) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// JobStatusStore tracks job lifecycle. Transitions are monotonic: a terminal
// record never changes again, and reads return snapshots.
type JobStatusStore interface {
	Create(rec JobRecord) error
	SetRunning(jobID string, step Step) error
	Complete(jobID, reportPath, pdfPath string) error
	Fail(jobID string, step Step, cause error, reportPath string) error
	Get(jobID string) (JobRecord, bool)
	List() []JobRecord
}

type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]JobRecord
	now  func() time.Time
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[string]JobRecord{}, now: time.Now}
}

func (s *MemoryJobStore) Create(rec JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[rec.JobID]; exists {
		return fmt.Errorf("job %s already exists", rec.JobID)
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.Message == "" {
		rec.Message = "job accepted, waiting to start"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.UpdatedAt = rec.CreatedAt
	s.jobs[rec.JobID] = rec
	return nil
}

func (s *MemoryJobStore) SetRunning(jobID string, step Step) error {
	return s.update(jobID, func(rec *JobRecord) error {
		rec.Status = StatusRunning
		rec.Step = step
		rec.Message = stepMessage(step)
		return nil
	})
}

func (s *MemoryJobStore) Complete(jobID, reportPath, pdfPath string) error {
	return s.update(jobID, func(rec *JobRecord) error {
		rec.Status = StatusCompleted
		rec.Step = ""
		rec.Message = "analysis complete, report ready"
		rec.ReportPath = reportPath
		rec.PDFPath = pdfPath
		return nil
	})
}

func (s *MemoryJobStore) Fail(jobID string, step Step, cause error, reportPath string) error {
	return s.update(jobID, func(rec *JobRecord) error {
		rec.Status = StatusFailed
		rec.Step = step
		rec.Message = fmt.Sprintf("failed during %s", step)
		if cause != nil {
			rec.Error = cause.Error()
		}
		rec.ReportPath = reportPath
		return nil
	})
}

func stepMessage(step Step) string {
	switch step {
	case StepAcquisition:
		return "extracting patent and gathering evidence"
	case StepSummarization:
		return "summarizing patent claims"
	case StepMatching:
		return "comparing evidence against claims"
	case StepReliability:
		return "assessing result reliability"
	case StepReportGeneration:
		return "generating report"
	}
	return string(step)
}

func (s *MemoryJobStore) update(jobID string, fn func(*JobRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	if rec.Terminal() {
		log.Printf("job-store rejected transition job=%s status=%s", jobID, rec.Status)
		return fmt.Errorf("job %s already %s", jobID, rec.Status)
	}
	if err := fn(&rec); err != nil {
		return err
	}
	rec.UpdatedAt = s.now()
	s.jobs[jobID] = rec
	return nil
}

func (s *MemoryJobStore) Get(jobID string) (JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	return rec, ok
}

func (s *MemoryJobStore) List() []JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobRecord, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].JobID < out[j].JobID
	})
	return out
}
