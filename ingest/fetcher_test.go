package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"propsift/config"
	"propsift/httputil"
)

func newTestFetcher(renderURL, renderKey string, client *http.Client) *Fetcher {
	cfg := &config.Config{
		RenderAPI: config.RenderAPIConfig{URL: renderURL, Key: renderKey},
		Ingest:    config.IngestConfig{DelayMS: 1},
	}
	return NewFetcher(cfg, &httputil.Clients{Scraping: client, API: client})
}

func TestFetchRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got == "" || got == "Go-http-client/1.1" {
			t.Errorf("expected browser user agent, got %q", got)
		}
		w.Write([]byte("<html><body>page</body></html>"))
	}))
	defer server.Close()

	f := newTestFetcher("", "", server.Client())
	result := f.Fetch(context.Background(), server.URL+"/listing/1")

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if result.CrawlMethod != "http" {
		t.Errorf("CrawlMethod = %q, want %q", result.CrawlMethod, "http")
	}
	if result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if result.HTML == "" {
		t.Error("expected HTML body")
	}
}

func TestFetchRawRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher("", "", server.Client())
	result := f.Fetch(context.Background(), server.URL+"/listing/1")

	if result.Error == nil {
		t.Fatal("expected error for 403, got nil")
	}
	if result.StatusCode != 403 {
		t.Errorf("StatusCode = %d, want 403", result.StatusCode)
	}
}

func TestFetchRendered(t *testing.T) {
	const pageURL = "https://www.zillow.com/homedetails/1-A-St-Austin-TX-78701/1_zpid/"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.URL != pageURL {
			t.Errorf("request URL = %q, want %q", req.URL, pageURL)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"html":     "<html><body>rendered</body></html>",
				"markdown": "# rendered",
			},
		})
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, "test-key", server.Client())
	result := f.Fetch(context.Background(), pageURL)

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if result.CrawlMethod != "render" {
		t.Errorf("CrawlMethod = %q, want %q", result.CrawlMethod, "render")
	}
	if result.HTML == "" || result.Markdown == "" {
		t.Errorf("expected both renderings, got html=%q markdown=%q", result.HTML, result.Markdown)
	}
}

func TestFetchRenderFallsBackToRaw(t *testing.T) {
	renderServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer renderServer.Close()

	pageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>raw page</body></html>"))
	}))
	defer pageServer.Close()

	f := newTestFetcher(renderServer.URL, "test-key", pageServer.Client())
	result := f.Fetch(context.Background(), pageServer.URL+"/listing/1")

	if result.Error != nil {
		t.Fatalf("Fetch returned error: %v", result.Error)
	}
	if result.CrawlMethod != "http" {
		t.Errorf("CrawlMethod = %q, want %q", result.CrawlMethod, "http")
	}
	if result.HTML == "" {
		t.Error("expected raw HTML after fallback")
	}
}
