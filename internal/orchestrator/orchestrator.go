package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/joelkehle/infringement-watch/internal/clues"
	"github.com/joelkehle/infringement-watch/internal/extract"
	"github.com/joelkehle/infringement-watch/internal/infringement"
	"github.com/joelkehle/infringement-watch/internal/telemetry"
)

// ErrTooManyJobs is returned by Submit when the concurrent job limit is
// reached. Callers surface it as backpressure, not as a job failure.
var ErrTooManyJobs = errors.New("too many jobs in flight")

type PatentSummarizer interface {
	Summarize(ctx context.Context, patentText string) (infringement.PatentSummary, error)
}

type EvidenceMatcher interface {
	Match(ctx context.Context, sum infringement.PatentSummary, clueID, clueText string) infringement.MatchResult
}

type ReliabilityAssessor interface {
	Assess(ctx context.Context, m infringement.MatchResult) infringement.ReliabilityAssessment
}

type ClueAcquirer interface {
	Acquire(ctx context.Context, req clues.Request) ([]clues.Clue, error)
}

type PDFRenderer interface {
	Available() bool
	Render(ctx context.Context, reportMarkdown string) ([]byte, error)
}

// ReferenceFetcher downloads a patent given by URL into a job-local file so
// the extractor can treat it like any uploaded document.
type ReferenceFetcher interface {
	FetchToFile(ctx context.Context, url, dir string) (string, error)
}

type Config struct {
	ReportDir         string
	MaxConcurrentJobs int
	MatchParallelism  int
	JobTimeout        time.Duration
	ModelName         string
}

type Orchestrator struct {
	cfg        Config
	store      JobStatusStore
	extractor  *extract.Extractor
	acquirer   ClueAcquirer
	summarizer PatentSummarizer
	matcher    EvidenceMatcher
	assessor   ReliabilityAssessor
	renderer   PDFRenderer
	fetcher    ReferenceFetcher

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// WithReferenceFetcher enables URL patent references.
func (o *Orchestrator) WithReferenceFetcher(f ReferenceFetcher) *Orchestrator {
	o.fetcher = f
	return o
}

func New(cfg Config, store JobStatusStore, extractor *extract.Extractor, acquirer ClueAcquirer,
	summarizer PatentSummarizer, matcher EvidenceMatcher, assessor ReliabilityAssessor, renderer PDFRenderer) *Orchestrator {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 4
	}
	if cfg.MatchParallelism <= 0 {
		cfg.MatchParallelism = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		extractor:  extractor,
		acquirer:   acquirer,
		summarizer: summarizer,
		matcher:    matcher,
		assessor:   assessor,
		renderer:   renderer,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
	}
}

// SubmitRequest carries everything one analysis job needs. Exactly one of
// PatentPath and PatentURL must be set; a URL is downloaded into the job dir
// before extraction. CleanupDir, when set, is removed once the job reaches a
// terminal state; the HTTP layer uses it for uploaded files.
type SubmitRequest struct {
	PatentPath string
	PatentURL  string
	Clues      clues.Request
	CleanupDir string
}

// Submit registers the job and starts it in the background. It returns as
// soon as the job is accepted; progress is observable through the store.
func (o *Orchestrator) Submit(req SubmitRequest) (string, error) {
	if req.PatentPath == "" && req.PatentURL == "" {
		return "", errors.New("patent path or url required")
	}
	if req.PatentURL != "" {
		if o.fetcher == nil {
			return "", errors.New("url references not supported: no fetcher configured")
		}
		if req.CleanupDir == "" {
			dir, err := os.MkdirTemp("", "job-*")
			if err != nil {
				return "", fmt.Errorf("job dir: %w", err)
			}
			req.CleanupDir = dir
		}
	}
	if !o.sem.TryAcquire(1) {
		return "", ErrTooManyJobs
	}

	jobID := uuid.NewString()
	rec := JobRecord{JobID: jobID, Status: StatusPending, CreatedAt: time.Now()}
	if err := o.store.Create(rec); err != nil {
		o.sem.Release(1)
		return "", err
	}
	log.Printf("orchestrator job_submitted job=%s patent=%s mode=%s", jobID, req.PatentPath, req.Clues.Mode)

	o.wg.Add(1)
	go o.run(jobID, rec.CreatedAt, req)
	return jobID, nil
}

// Wait blocks until every in-flight job has finished. Used on shutdown.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) run(jobID string, createdAt time.Time, req SubmitRequest) {
	defer o.wg.Done()
	defer o.sem.Release(1)
	defer o.cleanup(jobID, req.CleanupDir)

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JobTimeout)
	defer cancel()
	ctx, span := telemetry.Tracer().Start(ctx, "analysis_job")
	span.SetAttributes(attribute.String("job.id", jobID))
	defer span.End()

	// one child span per pipeline step; endStep closes the current one
	endStep := func() {}
	defer func() { endStep() }()
	stepSpan := func(step Step) {
		endStep()
		_, s := telemetry.Tracer().Start(ctx, string(step))
		endStep = func() { s.End() }
	}

	fail := func(step Step, cause error) {
		span.SetStatus(codes.Error, string(step))
		span.RecordError(cause)
		log.Printf("orchestrator job_failed job=%s step=%s err=%q", jobID, step, cause.Error())
		reportPath := o.writeFailureReport(jobID, createdAt, step, cause)
		if err := o.store.Fail(jobID, step, cause, reportPath); err != nil {
			log.Printf("orchestrator store_fail_error job=%s err=%v", jobID, err)
		}
	}

	// acquisition: patent text plus one clue per evidence source
	stepSpan(StepAcquisition)
	if err := o.store.SetRunning(jobID, StepAcquisition); err != nil {
		log.Printf("orchestrator store_error job=%s err=%v", jobID, err)
		return
	}
	patentPath := req.PatentPath
	if patentPath == "" {
		fetched, err := o.fetcher.FetchToFile(ctx, req.PatentURL, req.CleanupDir)
		if err != nil {
			fail(StepAcquisition, fmt.Errorf("patent fetch: %w", err))
			return
		}
		patentPath = fetched
	}
	patentRes, err := o.extractor.Extract(ctx, patentPath)
	if err != nil {
		fail(StepAcquisition, fmt.Errorf("patent extraction: %w", err))
		return
	}
	if patentRes.Truncated {
		log.Printf("orchestrator patent_text_truncated job=%s", jobID)
	}
	clueList, err := o.acquirer.Acquire(ctx, req.Clues)
	if err != nil {
		fail(StepAcquisition, fmt.Errorf("clue acquisition: %w", err))
		return
	}
	log.Printf("orchestrator acquisition_done job=%s clues=%d", jobID, len(clueList))

	// summarization: fatal, nothing downstream works without it
	stepSpan(StepSummarization)
	if err := o.store.SetRunning(jobID, StepSummarization); err != nil {
		log.Printf("orchestrator store_error job=%s err=%v", jobID, err)
		return
	}
	summary, err := o.summarizer.Summarize(ctx, patentRes.Text)
	if err != nil {
		fail(StepSummarization, fmt.Errorf("patent summarization: %w", err))
		return
	}

	// matching: per-clue, isolated failures, bounded parallelism. Results
	// land at the clue's own index so the report keeps acquisition order.
	stepSpan(StepMatching)
	if err := o.store.SetRunning(jobID, StepMatching); err != nil {
		log.Printf("orchestrator store_error job=%s err=%v", jobID, err)
		return
	}
	results := make([]*infringement.MatchResult, len(clueList))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MatchParallelism)
	for i, clue := range clueList {
		if !clue.Matchable() {
			continue
		}
		i, clue := i, clue
		g.Go(func() error {
			res := o.matcher.Match(gctx, summary, clue.SourceID, clue.Text)
			results[i] = &res
			return nil
		})
	}
	// match errors are carried in the results, never through the group
	_ = g.Wait()

	// reliability: per analyzed clue, also isolated
	stepSpan(StepReliability)
	if err := o.store.SetRunning(jobID, StepReliability); err != nil {
		log.Printf("orchestrator store_error job=%s err=%v", jobID, err)
		return
	}
	for _, res := range results {
		if res == nil || res.Err != nil {
			continue
		}
		ra := o.assessor.Assess(ctx, *res)
		res.Reliability = &ra
	}

	// report generation: durable write before the job flips to completed
	stepSpan(StepReportGeneration)
	if err := o.store.SetRunning(jobID, StepReportGeneration); err != nil {
		log.Printf("orchestrator store_error job=%s err=%v", jobID, err)
		return
	}
	rows := buildRows(clueList, results)
	md := infringement.BuildReportMarkdown(infringement.ReportInput{
		JobID:       jobID,
		GeneratedAt: time.Now(),
		ModelName:   o.cfg.ModelName,
		Patent:      summary,
		Rows:        rows,
	})
	reportPath := o.reportPath(jobID, createdAt, ".md")
	if err := writeFileAtomic(reportPath, []byte(md)); err != nil {
		fail(StepReportGeneration, fmt.Errorf("write report: %w", err))
		return
	}

	pdfPath := ""
	if o.renderer != nil && o.renderer.Available() {
		if pdf, err := o.renderer.Render(ctx, md); err != nil {
			log.Printf("orchestrator pdf_render_failed job=%s err=%v", jobID, err)
		} else {
			pdfPath = o.reportPath(jobID, createdAt, ".pdf")
			if err := writeFileAtomic(pdfPath, pdf); err != nil {
				log.Printf("orchestrator pdf_write_failed job=%s err=%v", jobID, err)
				pdfPath = ""
			}
		}
	}

	if err := o.store.Complete(jobID, reportPath, pdfPath); err != nil {
		log.Printf("orchestrator store_complete_error job=%s err=%v", jobID, err)
		return
	}
	log.Printf("orchestrator job_completed job=%s report=%s", jobID, reportPath)
}

func buildRows(clueList []clues.Clue, results []*infringement.MatchResult) []infringement.EvidenceRow {
	rows := make([]infringement.EvidenceRow, 0, len(clueList))
	for i, clue := range clueList {
		row := infringement.EvidenceRow{SourceID: clue.SourceID, Origin: string(clue.Kind)}
		if clue.Err != nil {
			row.Skipped = true
			row.SkipReason = clue.Err.Error()
		} else if results[i] != nil {
			row.Match = results[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func (o *Orchestrator) writeFailureReport(jobID string, createdAt time.Time, step Step, cause error) string {
	md := infringement.BuildFailureReportMarkdown(jobID, time.Now(), string(step), cause)
	path := o.reportPath(jobID, createdAt, ".md")
	if err := writeFileAtomic(path, []byte(md)); err != nil {
		log.Printf("orchestrator failure_report_write_failed job=%s err=%v", jobID, err)
		return ""
	}
	return path
}

func (o *Orchestrator) reportPath(jobID string, createdAt time.Time, ext string) string {
	name := fmt.Sprintf("%s-%s%s", createdAt.UTC().Format("20060102-150405"), jobID, ext)
	return filepath.Join(o.cfg.ReportDir, name)
}

func (o *Orchestrator) cleanup(jobID, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("orchestrator cleanup_failed job=%s dir=%s err=%v", jobID, dir, err)
	}
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it into place, so readers never observe a partial report.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-report-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
