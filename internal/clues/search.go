package clues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Query struct {
	Terms   string
	Target  string
	Exclude []string
}

type Hit struct {
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	URL      string `json:"url"`
	FullText string `json:"full_text,omitempty"`
}

type SearchClient interface {
	Search(ctx context.Context, q Query) ([]Hit, error)
}

type SearchConfig struct {
	Endpoint           string
	APIKey             string
	MaxResults         int
	RateLimitPerMinute int
	HTTPClient         *http.Client
}

// HTTPSearchClient queries a JSON search endpoint and is the only component
// that knows its wire shape. Rate limiting is enforced client-side so a
// burst of jobs cannot exhaust the endpoint's quota.
type HTTPSearchClient struct {
	cfg     SearchConfig
	limiter *rate.Limiter
}

func NewHTTPSearchClient(cfg SearchConfig) (*HTTPSearchClient, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, errors.New("search endpoint not configured")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	perSecond := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	return &HTTPSearchClient{cfg: cfg, limiter: rate.NewLimiter(perSecond, 1)}, nil
}

type searchAPIResponse struct {
	Items []Hit `json:"items"`
}

func (c *HTTPSearchClient) Search(ctx context.Context, q Query) ([]Hit, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q.Terms)
	params.Set("limit", strconv.Itoa(c.cfg.MaxResults))
	if strings.TrimSpace(q.Target) != "" {
		params.Set("target", q.Target)
	}
	if len(q.Exclude) > 0 {
		params.Set("exclude", strings.Join(q.Exclude, ","))
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		hits, retryAfter, retryable, err := c.executeOnce(ctx, params)
		if err == nil {
			return hits, nil
		}
		lastErr = err
		if !retryable || attempt == 3 {
			break
		}
		sleep := retryAfter
		if sleep <= 0 {
			sleep = time.Duration(attempt) * time.Second
		}
		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *HTTPSearchClient) executeOnce(ctx context.Context, params url.Values) ([]Hit, time.Duration, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, false, err
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, true, err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))

	retryAfter := parseRetryAfter(res.Header.Get("Retry-After"))
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfter, true, fmt.Errorf("search status code: %d", res.StatusCode)
	case res.StatusCode >= 500:
		return nil, retryAfter, true, fmt.Errorf("search status code: %d", res.StatusCode)
	case res.StatusCode >= 400:
		return nil, 0, false, fmt.Errorf("search status code: %d body=%s", res.StatusCode, string(body))
	}

	var parsed searchAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Some endpoints return a bare array instead of an items wrapper.
		var items []Hit
		if err2 := json.Unmarshal(body, &items); err2 == nil {
			return items, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Items, 0, false, nil
}

func parseRetryAfter(v string) time.Duration {
	if strings.TrimSpace(v) == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
