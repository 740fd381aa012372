package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joelkehle/infringement-watch/internal/clues"
	"github.com/joelkehle/infringement-watch/internal/orchestrator"
)

type fakeJobService struct {
	jobID string
	err   error
	seen  orchestrator.SubmitRequest
}

func (f *fakeJobService) Submit(req orchestrator.SubmitRequest) (string, error) {
	f.seen = req
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

func newServerForTest(t *testing.T, svc *fakeJobService, store orchestrator.JobStatusStore) http.Handler {
	t.Helper()
	if store == nil {
		store = orchestrator.NewMemoryJobStore()
	}
	return NewServer(Config{UploadDir: t.TempDir()}, svc, store)
}

func multipartBody(t *testing.T, files map[string]map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, uploads := range files {
		for name, content := range uploads {
			fw, err := mw.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("CreateFormFile: %v", err)
			}
			fw.Write([]byte(content))
		}
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func postMultipart(t *testing.T, h http.Handler, files map[string]map[string]string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSubmitLocalEvidence(t *testing.T) {
	svc := &fakeJobService{jobID: "job-1"}
	h := newServerForTest(t, svc, nil)

	rr := postMultipart(t, h, map[string]map[string]string{
		"patent":   {"us123.txt": "patent text"},
		"evidence": {"manual.txt": "evidence text"},
	}, nil)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.JobID != "job-1" {
		t.Fatalf("job_id = %q", resp.JobID)
	}
	if svc.seen.Clues.Mode != clues.ModeLocal || len(svc.seen.Clues.Files) != 1 {
		t.Fatalf("clue request: %+v", svc.seen.Clues)
	}
	data, err := os.ReadFile(svc.seen.PatentPath)
	if err != nil || string(data) != "patent text" {
		t.Fatalf("patent upload not saved: %v %q", err, data)
	}
	if filepath.Ext(svc.seen.PatentPath) != ".txt" {
		t.Fatalf("upload lost its extension: %s", svc.seen.PatentPath)
	}
	if svc.seen.CleanupDir == "" {
		t.Fatal("cleanup dir not passed through")
	}
}

func TestSubmitSearchMode(t *testing.T) {
	svc := &fakeJobService{jobID: "job-2"}
	h := newServerForTest(t, svc, nil)

	rr := postMultipart(t, h, map[string]map[string]string{
		"patent": {"us123.txt": "patent text"},
	}, map[string]string{
		"search_terms":   "gear assembly",
		"target_filter":  "acme.com",
		"exclude_filter": "forum, reviews",
	})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	q := svc.seen.Clues
	if q.Mode != clues.ModeSearch || q.Search.Terms != "gear assembly" || q.Search.TargetFilter != "acme.com" {
		t.Fatalf("search request: %+v", q)
	}
	if len(q.Search.ExcludeFilter) != 2 || q.Search.ExcludeFilter[0] != "forum" {
		t.Fatalf("exclude filter: %+v", q.Search.ExcludeFilter)
	}
}

func TestSubmitWithoutPatentRejected(t *testing.T) {
	h := newServerForTest(t, &fakeJobService{}, nil)
	rr := postMultipart(t, h, map[string]map[string]string{
		"evidence": {"manual.txt": "evidence"},
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSubmitWithoutEvidenceOrSearchRejected(t *testing.T) {
	h := newServerForTest(t, &fakeJobService{}, nil)
	rr := postMultipart(t, h, map[string]map[string]string{
		"patent": {"us123.txt": "patent"},
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSubmitBackpressureMapsTo429(t *testing.T) {
	h := newServerForTest(t, &fakeJobService{err: orchestrator.ErrTooManyJobs}, nil)
	rr := postMultipart(t, h, map[string]map[string]string{
		"patent":   {"p.txt": "patent"},
		"evidence": {"e.txt": "evidence"},
	}, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestJobStatus(t *testing.T) {
	store := orchestrator.NewMemoryJobStore()
	store.Create(orchestrator.JobRecord{JobID: "j1"})
	h := newServerForTest(t, &fakeJobService{}, store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs/j1", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"pending"`) {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d", rr.Code)
	}
}

func TestReportNotReadyWhileRunning(t *testing.T) {
	store := orchestrator.NewMemoryJobStore()
	store.Create(orchestrator.JobRecord{JobID: "j1"})
	store.SetRunning("j1", orchestrator.StepMatching)
	h := newServerForTest(t, &fakeJobService{}, store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs/j1/report", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReportServedWhenCompleted(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "r.md")
	os.WriteFile(reportPath, []byte("# Report body"), 0o644)

	store := orchestrator.NewMemoryJobStore()
	store.Create(orchestrator.JobRecord{JobID: "j1"})
	store.SetRunning("j1", orchestrator.StepReportGeneration)
	store.Complete("j1", reportPath, "")
	h := newServerForTest(t, &fakeJobService{}, store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs/j1/report", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# Report body") {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs/j1/report.pdf", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("pdf without file status = %d", rr.Code)
	}
}

func TestListJobs(t *testing.T) {
	store := orchestrator.NewMemoryJobStore()
	store.Create(orchestrator.JobRecord{JobID: "j1"})
	h := newServerForTest(t, &fakeJobService{}, store)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "j1") {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newServerForTest(t, &fakeJobService{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSubmitPatentByURL(t *testing.T) {
	svc := &fakeJobService{jobID: "job-url"}
	h := newServerForTest(t, svc, nil)

	rr := postMultipart(t, h, map[string]map[string]string{
		"evidence": {"manual.txt": "evidence text"},
	}, map[string]string{
		"patent_url": "https://patents.example.com/us123.pdf",
	})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if svc.seen.PatentURL != "https://patents.example.com/us123.pdf" {
		t.Fatalf("patent url not forwarded: %+v", svc.seen)
	}
	if svc.seen.PatentPath != "" {
		t.Fatalf("unexpected patent path %q", svc.seen.PatentPath)
	}
}
