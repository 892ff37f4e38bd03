package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"post-ingest-pipeline/config"
)

func TestFetchDatasetItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/datasets/ds-1/items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "p1"}, {"id": "p2"}]`))
	}))
	defer server.Close()

	client := NewClient(&config.Config{
		ScraperAPIURL:   server.URL,
		ScraperAPIToken: "test-token",
	})

	items, err := client.FetchDatasetItems(context.Background(), "ds-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0]["id"] != "p1" {
		t.Errorf("unexpected first item: %v", items[0])
	}
}

func TestFetchDatasetItemsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "dataset not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(&config.Config{
		ScraperAPIURL:   server.URL,
		ScraperAPIToken: "test-token",
	})

	if _, err := client.FetchDatasetItems(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFetchDatasetItemsRequiresToken(t *testing.T) {
	client := NewClient(&config.Config{ScraperAPIURL: "http://localhost"})
	if _, err := client.FetchDatasetItems(context.Background(), "ds-1"); err == nil {
		t.Fatal("expected error when token is not configured")
	}
}
