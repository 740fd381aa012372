package clues

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joelkehle/infringement-watch/internal/extract"
)

type SourceKind string

const (
	KindLocalFile    SourceKind = "local_file"
	KindSearchResult SourceKind = "search_result"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeSearch Mode = "search"
)

type ErrorKind string

const (
	ErrExtraction    ErrorKind = "extraction_failed"
	ErrSkipped       ErrorKind = "skipped_unsupported"
	ErrConfiguration ErrorKind = "configuration"
	ErrSearch        ErrorKind = "search_failed"
)

type ClueError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ClueError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

// Clue is one candidate piece of evidence. Text and Err are distinct
// conditions: an empty Text with a nil Err is a valid (if useless)
// extraction, while a non-nil Err means no text could be obtained and the
// clue is excluded from matching but still disclosed in the report.
type Clue struct {
	SourceID string
	Kind     SourceKind
	Text     string
	Err      *ClueError
}

func (c Clue) Matchable() bool { return c.Err == nil }

type SearchParams struct {
	Terms         string
	TargetFilter  string
	ExcludeFilter []string
}

type Request struct {
	Mode Mode
	// local mode: either Dir (recursively scanned) or Files.
	Dir   string
	Files []string
	// search mode
	Search SearchParams
}

type Config struct {
	AllowedExtensions []string
}

type Acquirer struct {
	extractor *extract.Extractor
	search    SearchClient
	fetcher   *PageFetcher
	allowed   map[string]struct{}
}

func NewAcquirer(cfg Config, extractor *extract.Extractor, search SearchClient) *Acquirer {
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = extract.SupportedExtensions()
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = struct{}{}
	}
	return &Acquirer{extractor: extractor, search: search, allowed: allowed}
}

// WithPageFetcher enables full-text retrieval for search hits that carry a
// URL but no body.
func (a *Acquirer) WithPageFetcher(f *PageFetcher) *Acquirer {
	a.fetcher = f
	return a
}

// Acquire produces one Clue per input source. It never returns an error for
// per-source failures; those are carried on the clue itself so downstream
// stages see a 1:1 accounting of inputs.
func (a *Acquirer) Acquire(ctx context.Context, req Request) ([]Clue, error) {
	switch req.Mode {
	case ModeLocal:
		return a.acquireLocal(ctx, req)
	case ModeSearch:
		return a.acquireSearch(ctx, req.Search)
	default:
		return []Clue{{
			SourceID: "configuration",
			Err:      &ClueError{Kind: ErrConfiguration, Detail: fmt.Sprintf("unknown acquisition mode %q", req.Mode)},
		}}, nil
	}
}

func (a *Acquirer) acquireLocal(ctx context.Context, req Request) ([]Clue, error) {
	files := req.Files
	if req.Dir != "" {
		found, err := a.scanDir(req.Dir)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		log.Printf("clue-acquirer no local sources matched dir=%q files=%d", req.Dir, len(req.Files))
		return []Clue{}, nil
	}

	out := make([]Clue, 0, len(files))
	for _, path := range files {
		clue := Clue{SourceID: path, Kind: KindLocalFile}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := a.allowed[ext]; !ok {
			clue.Err = &ClueError{Kind: ErrSkipped, Detail: fmt.Sprintf("unsupported extension %q", ext)}
			log.Printf("clue-acquirer skipped source=%s ext=%s", path, ext)
			out = append(out, clue)
			continue
		}
		res, err := a.extractor.Extract(ctx, path)
		if err != nil {
			clue.Err = &ClueError{Kind: ErrExtraction, Detail: err.Error()}
			log.Printf("clue-acquirer extraction failed source=%s err=%v", path, err)
			out = append(out, clue)
			continue
		}
		clue.Text = res.Text
		out = append(out, clue)
	}
	return out, nil
}

func (a *Acquirer) scanDir(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := a.allowed[ext]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan clue directory %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func (a *Acquirer) acquireSearch(ctx context.Context, params SearchParams) ([]Clue, error) {
	if a.search == nil {
		return []Clue{{
			SourceID: "search",
			Kind:     KindSearchResult,
			Err:      &ClueError{Kind: ErrConfiguration, Detail: "search mode selected but no search client configured"},
		}}, nil
	}
	if strings.TrimSpace(params.Terms) == "" {
		return []Clue{{
			SourceID: "search",
			Kind:     KindSearchResult,
			Err:      &ClueError{Kind: ErrConfiguration, Detail: "search mode requires non-empty terms"},
		}}, nil
	}

	hits, err := a.search.Search(ctx, Query{
		Terms:   params.Terms,
		Target:  params.TargetFilter,
		Exclude: params.ExcludeFilter,
	})
	if err != nil {
		return []Clue{{
			SourceID: "search",
			Kind:     KindSearchResult,
			Err:      &ClueError{Kind: ErrSearch, Detail: err.Error()},
		}}, nil
	}

	out := make([]Clue, 0, len(hits))
	for i, hit := range hits {
		if strings.TrimSpace(hit.FullText) == "" && strings.TrimSpace(hit.URL) != "" && a.fetcher != nil {
			text, err := a.fetcher.Fetch(ctx, hit.URL)
			if err != nil {
				log.Printf("clue-acquirer page fetch failed url=%s err=%v", hit.URL, err)
			} else {
				hit.FullText = text
			}
		}
		out = append(out, normalizeHit(hit, i))
	}
	log.Printf("clue-acquirer search produced clues=%d terms=%q", len(out), params.Terms)
	return out, nil
}

// normalizeHit maps one search hit into the uniform clue shape. Full text is
// preferred when the endpoint supplies it; otherwise the title and snippet
// are concatenated so the matcher still has something to compare.
func normalizeHit(hit Hit, idx int) Clue {
	id := strings.TrimSpace(hit.URL)
	if id == "" {
		id = fmt.Sprintf("search-hit-%d", idx+1)
	}
	clue := Clue{SourceID: id, Kind: KindSearchResult}
	if strings.TrimSpace(hit.FullText) != "" {
		clue.Text = hit.FullText
		return clue
	}
	clue.Text = fmt.Sprintf("Title: %s\nSnippet: %s", strings.TrimSpace(hit.Title), strings.TrimSpace(hit.Snippet))
	return clue
}
