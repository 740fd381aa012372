package clues

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/joelkehle/infringement-watch/internal/extract"
)

const (
	fetchCacheTTL     = 15 * time.Minute
	fetchCacheSweep   = 5 * time.Minute
	maxFetchBodyBytes = 4 << 20
)

// PageFetcher retrieves the visible text of a hit URL when the search
// endpoint did not return full text. Responses are memoized so repeated
// submissions against the same sources do not re-download pages.
type PageFetcher struct {
	client *http.Client
	cache  *gocache.Cache
}

func NewPageFetcher(client *http.Client) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageFetcher{
		client: client,
		cache:  gocache.New(fetchCacheTTL, fetchCacheSweep),
	}
}

func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if cached, ok := f.cache.Get(url); ok {
		return cached.(string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBodyBytes)
	ct := resp.Header.Get("Content-Type")
	var text string
	if strings.Contains(ct, "text/html") || ct == "" {
		text, err = extract.TextFromHTML(body)
		if err != nil {
			return "", fmt.Errorf("fetch %s: parse html: %w", url, err)
		}
	} else {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("fetch %s: read body: %w", url, err)
		}
		text = strings.TrimSpace(string(raw))
	}

	f.cache.Set(url, text, gocache.DefaultExpiration)
	return text, nil
}

// FetchToFile downloads url as-is into dir and returns the written path. The
// extension is taken from the URL path when recognized, otherwise from the
// Content-Type, so the extractor can pick the right backend. Bodies are
// memoized separately from page text.
func (f *PageFetcher) FetchToFile(ctx context.Context, url, dir string) (string, error) {
	cacheKey := "raw\x00" + url
	var body fetchedBody
	if cached, ok := f.cache.Get(cacheKey); ok {
		body = cached.(fetchedBody)
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", url, err)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		body.raw, err = io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes))
		if err != nil {
			return "", fmt.Errorf("fetch %s: read body: %w", url, err)
		}
		body.ext = extensionFromURL(url)
		if body.ext == "" {
			body.ext = extensionFromContentType(resp.Header.Get("Content-Type"))
		}
		if body.ext == "" {
			body.ext = ".txt"
		}
		f.cache.Set(cacheKey, body, gocache.DefaultExpiration)
	}

	path := filepath.Join(dir, "reference"+body.ext)
	if err := os.WriteFile(path, body.raw, 0o600); err != nil {
		return "", fmt.Errorf("fetch %s: write %s: %w", url, path, err)
	}
	return path, nil
}

type fetchedBody struct {
	raw []byte
	ext string
}

func extensionFromURL(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return ""
	}
	switch ext := strings.ToLower(filepath.Ext(u.Path)); ext {
	case ".txt", ".md", ".html", ".htm", ".pdf", ".docx":
		return ext
	}
	return ""
}

func extensionFromContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	switch {
	case strings.Contains(ct, "application/pdf"):
		return ".pdf"
	case strings.Contains(ct, "text/html"):
		return ".html"
	case strings.Contains(ct, "text/markdown"):
		return ".md"
	case strings.Contains(ct, "wordprocessingml"):
		return ".docx"
	}
	return ""
}
