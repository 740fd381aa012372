package clues

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSearchClientParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "sprocket" {
			t.Errorf("unexpected query %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"title":"t1","snippet":"s1","url":"u1"}]}`))
	}))
	defer srv.Close()

	c, err := NewHTTPSearchClient(SearchConfig{Endpoint: srv.URL, APIKey: "k", RateLimitPerMinute: 600})
	if err != nil {
		t.Fatal(err)
	}
	hits, err := c.Search(context.Background(), Query{Terms: "sprocket"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "t1" {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestHTTPSearchClientParsesBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"t1","snippet":"s1","url":"u1"}]`))
	}))
	defer srv.Close()

	c, err := NewHTTPSearchClient(SearchConfig{Endpoint: srv.URL, RateLimitPerMinute: 600})
	if err != nil {
		t.Fatal(err)
	}
	hits, err := c.Search(context.Background(), Query{Terms: "x"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("unexpected hits %+v", hits)
	}
}

func TestHTTPSearchClientRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c, err := NewHTTPSearchClient(SearchConfig{Endpoint: srv.URL, RateLimitPerMinute: 6000})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Search(context.Background(), Query{Terms: "x"}); err != nil {
		t.Fatalf("Search should recover after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestHTTPSearchClientDoesNotRetryClientError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewHTTPSearchClient(SearchConfig{Endpoint: srv.URL, RateLimitPerMinute: 6000})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Search(context.Background(), Query{Terms: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("client errors must not be retried, got %d calls", calls)
	}
}

func TestNewHTTPSearchClientRequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPSearchClient(SearchConfig{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
