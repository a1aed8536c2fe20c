package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"propsift/config"
	"propsift/httputil"
)

// FetchResult is one page fetch. A non-nil Error alongside a StatusCode
// means the server answered but refused; such URLs stay eligible for the
// next run.
type FetchResult struct {
	URL         string
	HTML        string
	Markdown    string
	StatusCode  int
	CrawlMethod string
	Error       error
}

// Fetcher retrieves listing pages, preferring the render service when one
// is configured and falling back to a plain HTTP fetch.
type Fetcher struct {
	render  config.RenderAPIConfig
	ingest  config.IngestConfig
	clients *httputil.Clients
}

func NewFetcher(cfg *config.Config, clients *httputil.Clients) *Fetcher {
	if clients == nil {
		clients = httputil.NewClients(&cfg.Proxy)
	}
	return &Fetcher{
		render:  cfg.RenderAPI,
		ingest:  cfg.Ingest,
		clients: clients,
	}
}

// Fetch retrieves one page. Render service failures degrade to a raw
// fetch so an outage there never stalls a run.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) FetchResult {
	if f.render.URL != "" {
		result := f.fetchRendered(ctx, pageURL)
		if result.Error == nil {
			return result
		}
		log.Printf("Fetcher: render service failed for %s: %v, trying raw fetch", pageURL, result.Error)
	}
	return f.fetchRaw(ctx, pageURL)
}

type renderRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type renderResponse struct {
	Success bool `json:"success"`
	Data    struct {
		HTML     string `json:"html"`
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

func (f *Fetcher) fetchRendered(ctx context.Context, pageURL string) FetchResult {
	result := FetchResult{URL: pageURL, CrawlMethod: "render"}

	body, err := json.Marshal(renderRequest{URL: pageURL, Formats: []string{"html", "markdown"}})
	if err != nil {
		result.Error = err
		return result
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.render.URL, bytes.NewReader(body))
	if err != nil {
		result.Error = err
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if f.render.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.render.Key)
	}

	resp, err := f.clients.API.Do(req)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		result.Error = fmt.Errorf("render service error %d: %s", resp.StatusCode, string(respBody))
		return result
	}

	var decoded renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		result.Error = fmt.Errorf("decode render response: %w", err)
		return result
	}
	if !decoded.Success {
		result.Error = fmt.Errorf("render service: %s", decoded.Error)
		return result
	}
	if decoded.Data.HTML == "" && decoded.Data.Markdown == "" {
		result.Error = fmt.Errorf("render service returned empty document")
		return result
	}

	result.HTML = decoded.Data.HTML
	result.Markdown = decoded.Data.Markdown
	return result
}

func (f *Fetcher) fetchRaw(ctx context.Context, pageURL string) FetchResult {
	result := FetchResult{URL: pageURL, CrawlMethod: "http"}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		result.Error = err
		return result
	}
	httputil.BrowserHeaders(req)

	resp, err := f.clients.Scraping.Do(req)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("status %d", resp.StatusCode)
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}

	result.HTML = string(body)
	return result
}

// Pause sleeps the inter-request delay plus jitter. A positive override
// replaces the configured base delay; per-source rate limits pass one.
func (f *Fetcher) Pause(overrideMS int) {
	baseMS := f.ingest.DelayMS
	if overrideMS > 0 {
		baseMS = overrideMS
	}
	delay := time.Duration(baseMS) * time.Millisecond
	if f.ingest.JitterMS > 0 {
		delay += time.Duration(rand.Intn(f.ingest.JitterMS)) * time.Millisecond
	}
	time.Sleep(delay)
}
