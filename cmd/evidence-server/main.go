package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joelkehle/infringement-watch/internal/clues"
	"github.com/joelkehle/infringement-watch/internal/extract"
	"github.com/joelkehle/infringement-watch/internal/httpapi"
	"github.com/joelkehle/infringement-watch/internal/infringement"
	"github.com/joelkehle/infringement-watch/internal/orchestrator"
	"github.com/joelkehle/infringement-watch/internal/render"
	"github.com/joelkehle/infringement-watch/internal/telemetry"
)

func main() {
	dbFlag := flag.String("db", "", "path to SQLite job index (overrides DB_PATH env var)")
	reportDir := flag.String("reports", "./data/reports", "directory for generated reports")
	uploadDir := flag.String("uploads", "", "directory for uploaded files (default: system temp)")
	flag.Parse()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Headers:        os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		ServiceName:    "evidence-server",
		ServiceVersion: "1.0.0",
	})
	if err != nil {
		log.Fatalf("telemetry setup: %v", err)
	}

	caller, err := infringement.NewAnthropicCallerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	exec := infringement.NewStepExecutor(caller)

	extractor := extract.NewExtractor()
	var search clues.SearchClient
	if endpoint := strings.TrimSpace(os.Getenv("EVIDENCE_SEARCH_ENDPOINT")); endpoint != "" {
		sc, err := clues.NewHTTPSearchClient(clues.SearchConfig{
			Endpoint:           endpoint,
			APIKey:             os.Getenv("EVIDENCE_SEARCH_API_KEY"),
			MaxResults:         envInt("EVIDENCE_SEARCH_MAX_RESULTS", 10),
			RateLimitPerMinute: envInt("EVIDENCE_SEARCH_RATE_LIMIT", 30),
		})
		if err != nil {
			log.Fatal(err)
		}
		search = sc
	}
	fetcher := clues.NewPageFetcher(nil)
	acquirer := clues.NewAcquirer(clues.Config{}, extractor, search).
		WithPageFetcher(fetcher)

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = os.Getenv("DB_PATH")
	}
	var store orchestrator.JobStatusStore
	var closeStore func() error
	if dbPath != "" {
		ss, err := orchestrator.NewSQLiteJobStore(dbPath)
		if err != nil {
			log.Fatalf("failed to initialize sqlite job store (%s): %v", dbPath, err)
		}
		store = ss
		closeStore = ss.Close
		log.Printf("using sqlite job store at %s", dbPath)
	} else {
		store = orchestrator.NewMemoryJobStore()
	}

	var renderer orchestrator.PDFRenderer
	if r := render.NewChromiumPDFRenderer(); r.Available() {
		renderer = r
		log.Printf("pdf rendering enabled")
	} else {
		log.Printf("no chromium found, pdf rendering disabled")
	}

	orch := orchestrator.New(orchestrator.Config{
		ReportDir:         *reportDir,
		MaxConcurrentJobs: envInt("MAX_CONCURRENT_JOBS", 4),
		MatchParallelism:  envInt("MATCH_PARALLELISM", 3),
		ModelName:         caller.ModelName(),
	}, store, extractor, acquirer,
		infringement.NewSummarizer(exec),
		infringement.NewMatcher(exec),
		infringement.NewAssessor(reliabilityFromEnv(), exec),
		renderer).
		WithReferenceFetcher(fetcher)

	h := httpapi.NewServer(httpapi.Config{UploadDir: *uploadDir}, orch, store)
	srv := &http.Server{Addr: addr, Handler: h}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	log.Printf("evidence-server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	orch.Wait()
	if closeStore != nil {
		if err := closeStore(); err != nil {
			log.Printf("job store close: %v", err)
		}
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}

func reliabilityFromEnv() infringement.ReliabilityConfig {
	method := infringement.ReliabilityMethod(strings.ToLower(strings.TrimSpace(os.Getenv("RELIABILITY_METHOD"))))
	switch method {
	case infringement.ReliabilityModel, infringement.ReliabilityRules, infringement.ReliabilityBlended:
		return infringement.ReliabilityConfig{Enabled: true, Method: method}
	case infringement.ReliabilityDisabled:
		return infringement.ReliabilityConfig{Enabled: false}
	default:
		return infringement.ReliabilityConfig{Enabled: true, Method: infringement.ReliabilityRules}
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}
