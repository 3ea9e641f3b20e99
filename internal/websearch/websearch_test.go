package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"title":"Go","url":"https://go.dev","snippet":"The Go language"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	results, err := c.Search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Go" || results[0].URL != "https://go.dev" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestSearchReturnsEmptyOnFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	results, err := c.Search(context.Background(), "golang", 5)
	if err == nil {
		t.Fatal("expected an error for non-2xx response")
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
}

func TestSearchDefaultsMaxResults(t *testing.T) {
	var sawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawQuery = r.URL.RawQuery
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.Search(context.Background(), "golang", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawQuery == "" {
		t.Fatal("expected a request to be made")
	}
}
