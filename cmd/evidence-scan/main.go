package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joelkehle/infringement-watch/internal/clues"
	"github.com/joelkehle/infringement-watch/internal/extract"
	"github.com/joelkehle/infringement-watch/internal/infringement"
	"github.com/joelkehle/infringement-watch/internal/orchestrator"
)

// evidence-scan runs one analysis job from the command line and blocks until
// the report is written. The same pipeline the server runs, minus the HTTP
// surface.
func main() {
	patent := flag.String("patent", "", "path to the patent document")
	patentURL := flag.String("patent-url", "", "URL of the patent document (alternative to --patent)")
	evidenceDir := flag.String("evidence-dir", "", "directory of evidence files to scan")
	evidenceList := flag.String("evidence", "", "comma-separated evidence file paths")
	searchTerms := flag.String("search-terms", "", "run in search mode with these terms")
	targetFilter := flag.String("target", "", "search target filter")
	excludeFilter := flag.String("exclude", "", "comma-separated search exclusions")
	reportDir := flag.String("reports", ".", "directory for the generated report")
	reliability := flag.String("reliability", "rules", "reliability method: model, rules, blended or disabled")
	flag.Parse()

	if strings.TrimSpace(*patent) == "" && strings.TrimSpace(*patentURL) == "" {
		log.Fatal("--patent or --patent-url is required")
	}

	req := orchestrator.SubmitRequest{PatentPath: *patent, PatentURL: *patentURL}
	switch {
	case strings.TrimSpace(*searchTerms) != "":
		req.Clues = clues.Request{
			Mode: clues.ModeSearch,
			Search: clues.SearchParams{
				Terms:         *searchTerms,
				TargetFilter:  *targetFilter,
				ExcludeFilter: splitList(*excludeFilter),
			},
		}
	case *evidenceDir != "" || *evidenceList != "":
		req.Clues = clues.Request{
			Mode:  clues.ModeLocal,
			Dir:   *evidenceDir,
			Files: splitList(*evidenceList),
		}
	default:
		log.Fatal("one of --evidence-dir, --evidence or --search-terms is required")
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
			Endpoint: endpoint,
			APIKey:   os.Getenv("EVIDENCE_SEARCH_API_KEY"),
		})
		if err != nil {
			log.Fatal(err)
		}
		search = sc
	}
	fetcher := clues.NewPageFetcher(nil)
	acquirer := clues.NewAcquirer(clues.Config{}, extractor, search).
		WithPageFetcher(fetcher)

	store := orchestrator.NewMemoryJobStore()
	orch := orchestrator.New(orchestrator.Config{
		ReportDir:         *reportDir,
		MaxConcurrentJobs: 1,
		ModelName:         caller.ModelName(),
	}, store, extractor, acquirer,
		infringement.NewSummarizer(exec),
		infringement.NewMatcher(exec),
		infringement.NewAssessor(reliabilityConfig(*reliability), exec),
		nil).
		WithReferenceFetcher(fetcher)

	jobID, err := orch.Submit(req)
	if err != nil {
		log.Fatal(err)
	}
	orch.Wait()

	rec, ok := store.Get(jobID)
	if !ok {
		log.Fatalf("job %s vanished", jobID)
	}
	switch rec.Status {
	case orchestrator.StatusCompleted:
		fmt.Println(rec.ReportPath)
	case orchestrator.StatusFailed:
		if rec.ReportPath != "" {
			fmt.Fprintln(os.Stderr, rec.ReportPath)
		}
		log.Fatalf("analysis failed at %s: %s", rec.Step, rec.Error)
	default:
		log.Fatalf("job ended in unexpected state %s", rec.Status)
	}
}

func reliabilityConfig(method string) infringement.ReliabilityConfig {
	m := infringement.ReliabilityMethod(strings.ToLower(strings.TrimSpace(method)))
	switch m {
	case infringement.ReliabilityModel, infringement.ReliabilityRules, infringement.ReliabilityBlended:
		return infringement.ReliabilityConfig{Enabled: true, Method: m}
	default:
		return infringement.ReliabilityConfig{Enabled: false}
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
