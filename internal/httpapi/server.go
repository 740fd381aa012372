package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joelkehle/infringement-watch/internal/clues"
	"github.com/joelkehle/infringement-watch/internal/orchestrator"
)

const maxUploadBytes = 64 << 20

type JobService interface {
	Submit(req orchestrator.SubmitRequest) (string, error)
}

type Config struct {
	UploadDir string
}

type Server struct {
	cfg   Config
	jobs  JobService
	store orchestrator.JobStatusStore
}

func NewServer(cfg Config, jobs JobService, store orchestrator.JobStatusStore) http.Handler {
	s := &Server{cfg: cfg, jobs: jobs, store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/jobs", s.handleJobs)
	mux.HandleFunc("/v1/jobs/", s.handleJob)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": map[string]any{"message": message},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleJobs serves POST /v1/jobs (submit) and GET /v1/jobs (list).
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "jobs": s.store.List()})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSubmit accepts a multipart form: a "patent" file or "patent_url"
// value, plus either uploaded "evidence" files (local mode) or "search_terms"
// (search mode). Uploads land in a per-job temp dir that the orchestrator
// removes when the job finishes.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	jobDir, err := os.MkdirTemp(s.cfg.UploadDir, "job-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create upload dir: "+err.Error())
		return
	}
	cleanup := func() { os.RemoveAll(jobDir) }

	var patentPath string
	patentURL := strings.TrimSpace(r.FormValue("patent_url"))
	patentFile, patentHeader, err := r.FormFile("patent")
	switch {
	case err == nil:
		patentPath, err = saveUpload(jobDir, "patent", patentHeader.Filename, patentFile)
		patentFile.Close()
		if err != nil {
			cleanup()
			writeError(w, http.StatusInternalServerError, "save patent: "+err.Error())
			return
		}
	case patentURL != "":
		// the orchestrator downloads it into the job dir
	default:
		cleanup()
		writeError(w, http.StatusBadRequest, "patent file or patent_url required")
		return
	}

	clueReq, err := s.buildClueRequest(r, jobDir)
	if err != nil {
		cleanup()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.jobs.Submit(orchestrator.SubmitRequest{
		PatentPath: patentPath,
		PatentURL:  patentURL,
		Clues:      clueReq,
		CleanupDir: jobDir,
	})
	if err != nil {
		cleanup()
		if errors.Is(err, orchestrator.ErrTooManyJobs) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("httpapi job_accepted job=%s mode=%s", jobID, clueReq.Mode)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "job_id": jobID})
}

func (s *Server) buildClueRequest(r *http.Request, jobDir string) (clues.Request, error) {
	if terms := strings.TrimSpace(r.FormValue("search_terms")); terms != "" {
		var exclude []string
		for _, e := range strings.Split(r.FormValue("exclude_filter"), ",") {
			if e = strings.TrimSpace(e); e != "" {
				exclude = append(exclude, e)
			}
		}
		return clues.Request{
			Mode: clues.ModeSearch,
			Search: clues.SearchParams{
				Terms:         terms,
				TargetFilter:  strings.TrimSpace(r.FormValue("target_filter")),
				ExcludeFilter: exclude,
			},
		}, nil
	}

	var files []string
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["evidence"] {
			f, err := fh.Open()
			if err != nil {
				return clues.Request{}, fmt.Errorf("open evidence upload %s: %v", fh.Filename, err)
			}
			path, err := saveUpload(filepath.Join(jobDir, "evidence"), "", fh.Filename, f)
			f.Close()
			if err != nil {
				return clues.Request{}, fmt.Errorf("save evidence %s: %v", fh.Filename, err)
			}
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		return clues.Request{}, errors.New("either evidence files or search_terms required")
	}
	return clues.Request{Mode: clues.ModeLocal, Files: files}, nil
}

// saveUpload writes one multipart file under dir, keeping the original
// extension so the extractor can dispatch on it. The base name is sanitized;
// uploads never choose their own directory.
func saveUpload(dir, prefix, filename string, src multipart.File) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, "..", "")
	if base == "" || base == "." {
		base = "upload"
	}
	if prefix != "" {
		base = prefix + filepath.Ext(base)
	}
	path := filepath.Join(dir, base)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// handleJob serves GET /v1/jobs/{id}, /v1/jobs/{id}/report and
// /v1/jobs/{id}/report.pdf.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	parts := strings.SplitN(rest, "/", 2)
	jobID := parts[0]
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id required")
		return
	}
	rec, ok := s.store.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": rec})
		return
	}
	switch parts[1] {
	case "report":
		s.serveReport(w, r, rec, rec.ReportPath, "text/markdown; charset=utf-8")
	case "report.pdf":
		s.serveReport(w, r, rec, rec.PDFPath, "application/pdf")
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, rec orchestrator.JobRecord, path, contentType string) {
	if !rec.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s; report not ready", rec.Status))
		return
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "report not available for this job")
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}
