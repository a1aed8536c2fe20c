package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"propsift/models"
	"propsift/services"
	"propsift/storage"
)

// RefreshWorker re-visits stale active listings. Pages that have gone
// away get their listing marked delisted; pages that still resolve are
// run back through the extraction pipeline so price and status changes
// land in the row tables.
type RefreshWorker struct {
	store      *storage.PostgresStore
	processor  *services.Processor
	httpClient *http.Client
	triggerCh  chan struct{}
	logFunc    LogFunc
}

// NewRefreshWorker creates a refresh worker. A nil client gets a default
// that does not follow redirects, so delist redirects stay visible.
func NewRefreshWorker(store *storage.PostgresStore, processor *services.Processor, client *http.Client) *RefreshWorker {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &RefreshWorker{
		store:      store,
		processor:  processor,
		httpClient: client,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *RefreshWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a batch immediately.
func (w *RefreshWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// RefreshResult contains the outcome of re-fetching a listing page.
type RefreshResult struct {
	Live       bool
	StatusCode int
	HTML       string
	Error      error
}

// Fetch re-downloads a listing page and decides whether it is still live.
func (w *RefreshWorker) Fetch(ctx context.Context, listingURL string) RefreshResult {
	req, err := http.NewRequestWithContext(ctx, "GET", listingURL, nil)
	if err != nil {
		return RefreshResult{Error: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return RefreshResult{Error: err}
	}
	defer resp.Body.Close()

	result := RefreshResult{StatusCode: resp.StatusCode}

	switch resp.StatusCode {
	case 200:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
		if err != nil {
			result.Error = fmt.Errorf("read body: %w", err)
			return result
		}
		html := string(body)
		if isDelistedPage(html) {
			result.Live = false
			return result
		}
		result.Live = true
		result.HTML = html
	case 404, 410:
		result.Live = false
	case 301, 302:
		result.Live = !isDelistRedirect(resp.Header.Get("Location"))
	default:
		// Rate limits and server errors say nothing about the listing.
		result.Live = true
	}

	return result
}

// isDelistedPage checks page content for signs the listing was removed.
func isDelistedPage(html string) bool {
	indicators := []string{
		"this listing is no longer available",
		"listing has been removed",
		"property is no longer listed",
		"this home is not currently listed",
	}
	htmlLower := strings.ToLower(html)
	for _, indicator := range indicators {
		if strings.Contains(htmlLower, indicator) {
			return true
		}
	}
	return false
}

// isDelistRedirect checks if a redirect target indicates delisting.
func isDelistRedirect(location string) bool {
	patterns := []string{
		"/homes/",
		"/search",
		"notfound",
		"error",
	}
	locationLower := strings.ToLower(location)
	for _, pattern := range patterns {
		if strings.Contains(locationLower, pattern) {
			return true
		}
	}
	return false
}

// Run starts the refresh worker loop.
func (w *RefreshWorker) Run(ctx context.Context, staleDuration time.Duration, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Refresh worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, staleDuration, batchSize)
		case <-w.triggerCh:
			log.Println("Refresh worker triggered manually")
			w.processBatch(ctx, staleDuration, batchSize)
		}
	}
}

func (w *RefreshWorker) processBatch(ctx context.Context, staleDuration time.Duration, batchSize int) {
	listings, err := w.store.GetStaleListings(ctx, staleDuration, batchSize)
	if err != nil {
		log.Printf("Refresh: query error: %v", err)
		return
	}

	if len(listings) == 0 {
		return
	}

	log.Printf("Refresh: checking %d stale listings", len(listings))
	batchID := storage.NewBatchID(time.Now())

	var checked, delisted, refreshed, blocked int
	for _, listing := range listings {
		result := w.Fetch(ctx, listing.SourceURL)
		checked++

		if result.Error != nil {
			log.Printf("Refresh: error fetching %s: %v", listing.SourceURL, result.Error)
			w.touchListing(ctx, listing.ListingID)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if !result.Live {
			log.Printf("Refresh: listing delisted (status %d): %s", result.StatusCode, listing.SourceURL)
			if err := w.store.UpdateListingStatus(ctx, listing.ListingID, models.StatusDelisted); err != nil {
				log.Printf("Refresh: failed to mark delisted: %v", err)
			} else {
				delisted++
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if result.HTML == "" {
			w.touchListing(ctx, listing.ListingID)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		processed, err := w.processor.Process(listing.SourceURL, result.HTML, "", batchID, "refresh", time.Now())
		if err != nil {
			log.Printf("Refresh: failed to process %s: %v", listing.SourceURL, err)
			w.touchListing(ctx, listing.ListingID)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		// A challenge page says nothing about the listing; keep the
		// stored rows and try again next cycle.
		if processed.Blocked {
			blocked++
			w.touchListing(ctx, listing.ListingID)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if _, err := w.store.SaveRowSet(ctx, processed.Rows); err != nil {
			log.Printf("Refresh: failed to save rows for %s: %v", listing.SourceURL, err)
		} else {
			refreshed++
		}

		// Rate limit between requests
		time.Sleep(500 * time.Millisecond)
	}

	log.Printf("Refresh: checked %d, refreshed %d, delisted %d, blocked %d", checked, refreshed, delisted, blocked)
	if checked > 0 {
		msg := fmt.Sprintf("Checked %d listings", checked)
		if refreshed > 0 {
			msg += fmt.Sprintf(", %d refreshed", refreshed)
		}
		if delisted > 0 {
			msg += fmt.Sprintf(", %d delisted", delisted)
		}
		if blocked > 0 {
			msg += fmt.Sprintf(", %d blocked", blocked)
		}
		w.logFunc(models.LogLevelInfo, "refresh", msg)
	}
}

// touchListing bumps scraped_timestamp so one dead URL cannot pin the
// head of the stale queue.
func (w *RefreshWorker) touchListing(ctx context.Context, listingID string) {
	query := `UPDATE listings SET scraped_timestamp = NOW() WHERE listing_id = $1`
	if _, err := w.store.Pool().Exec(ctx, query, listingID); err != nil {
		log.Printf("Refresh: failed to touch listing %s: %v", listingID, err)
	}
}
