package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"propsift/config"
	"propsift/httputil"
	"propsift/models"
	"propsift/storage"
)

const detailFiller = `This sun filled brownstone blends original detail with a renovated
interior. The parlor level opens onto a landscaped garden, and the upper
floors hold a primary suite with a windowed dressing room. Original
millwork, restored plaster moldings, and wide plank flooring run
throughout. The cellar holds laundry, storage, and mechanicals, all
recently replaced. Around the corner sit cafes, a greenmarket, and an
express subway stop, making this one of the most convenient and sought
after blocks in the neighborhood. Showings are strictly by appointment
through the listing brokerage and require advance notice for all guests.`

func detailPage(street, city, state, zip string, zpid, price int, beds float64, baths float64, sqft int) string {
	payload := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"home": map[string]any{
					"zpid":          zpid,
					"streetAddress": street,
					"city":          city,
					"state":         state,
					"zipcode":       zip,
					"price":         price,
					"bedrooms":      beds,
					"bathrooms":     baths,
					"livingArea":    sqft,
					"homeStatus":    "FOR_SALE",
					"datePosted":    "2024-03-05",
				},
			},
		},
	}
	blob, _ := json.Marshal(payload)
	return `<html><head><script id="__NEXT_DATA__" type="application/json">` + string(blob) + `</script></head>` +
		`<body><h1>` + street + `, ` + city + `, ` + state + ` ` + zip + `</h1><p>` + detailFiller + `</p></body></html>`
}

func newIngestTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailPage("113 E 19th St", "New York", "NY", "10003", 31506434, 1250000, 3, 2.5, 1480)))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailPage("44 Oak Ave", "Austin", "TX", "78701", 99887766, 560000, 4, 3, 2100)))
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Press &amp; Hold to confirm you are a human</body></html>`))
	})
	return httptest.NewServer(mux)
}

func newTestOrchestrator(t *testing.T, server *httptest.Server, seeds []string) (*Orchestrator, *storage.SQLiteStore, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		BatchDir: t.TempDir(),
		Ingest:   config.IngestConfig{DelayMS: 1, PerZipCap: 10},
		Sources: map[string]*config.SourceConfig{
			"zillow": {ID: "zillow", Name: "Zillow", SeedURLs: seeds},
		},
	}

	ops, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("open ops store: %v", err)
	}
	t.Cleanup(func() { ops.Close() })

	clients := &httputil.Clients{Scraping: server.Client(), API: server.Client()}
	return NewOrchestrator(cfg, ops, nil, clients), ops, cfg
}

func TestRunSourceWithSeeds(t *testing.T) {
	server := newIngestTestServer()
	defer server.Close()

	seeds := []string{server.URL + "/a", server.URL + "/b", server.URL + "/blocked"}
	orch, ops, cfg := newTestOrchestrator(t, server, seeds)

	if err := orch.RunSource(context.Background(), "zillow"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}

	runs, err := ops.GetRecentRuns(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("GetRecentRuns: %v (%d runs)", err, len(runs))
	}
	run := runs[0]

	if run.Status != models.RunStatusCompleted {
		t.Errorf("run status = %q, want %q", run.Status, models.RunStatusCompleted)
	}
	if run.URLsFound != 3 {
		t.Errorf("URLsFound = %d, want 3", run.URLsFound)
	}
	if run.DocsFetched != 3 {
		t.Errorf("DocsFetched = %d, want 3", run.DocsFetched)
	}
	if run.DocsParsed != 2 {
		t.Errorf("DocsParsed = %d, want 2", run.DocsParsed)
	}
	if run.DocsBlocked != 1 {
		t.Errorf("DocsBlocked = %d, want 1", run.DocsBlocked)
	}
	if run.ErrorsCount != 0 {
		t.Errorf("ErrorsCount = %d, want 0", run.ErrorsCount)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	// The batch directory holds raw documents, all table files, and the
	// summary.
	entries, err := os.ReadDir(cfg.BatchDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("batch dir: %v (%d entries)", err, len(entries))
	}
	batchDir := filepath.Join(cfg.BatchDir, entries[0].Name())

	rawFiles, err := os.ReadDir(filepath.Join(batchDir, "raw"))
	if err != nil {
		t.Fatalf("read raw dir: %v", err)
	}
	if len(rawFiles) != 3 {
		t.Errorf("raw files = %d, want 3", len(rawFiles))
	}

	listingsData, err := os.ReadFile(filepath.Join(batchDir, "structured", "listings.json"))
	if err != nil {
		t.Fatalf("read listings.json: %v", err)
	}
	var listings []map[string]any
	if err := json.Unmarshal(listingsData, &listings); err != nil {
		t.Fatalf("parse listings.json: %v", err)
	}
	if len(listings) != 2 {
		t.Errorf("listings rows = %d, want 2 (blocked doc must not contribute)", len(listings))
	}

	summaryData, err := os.ReadFile(filepath.Join(batchDir, "summary.json"))
	if err != nil {
		t.Fatalf("read summary.json: %v", err)
	}
	var summary storage.BatchSummary
	if err := json.Unmarshal(summaryData, &summary); err != nil {
		t.Fatalf("parse summary.json: %v", err)
	}
	if summary.SourceID != "zillow" || summary.URLsFound != 3 || summary.DocsParsed != 2 || summary.DocsBlocked != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.TableCounts["listings"] != 2 || summary.TableCounts["properties"] != 2 {
		t.Errorf("table counts = %v", summary.TableCounts)
	}

	// Seed-only runs never touch the zip cursor.
	if idx, err := ops.GetResumeZip("zillow"); err != nil || idx != 0 {
		t.Errorf("resume cursor = %d (%v), want 0", idx, err)
	}

	// Source stats roll up after the run.
	stats, err := ops.GetSourceStats()
	if err != nil || len(stats) != 1 {
		t.Fatalf("GetSourceStats: %v (%d rows)", err, len(stats))
	}
	if stats[0].SourceID != "zillow" || stats[0].LastRunStatus != string(models.RunStatusCompleted) {
		t.Errorf("source stats = %+v", stats[0])
	}
}

func TestRunSourceUnknown(t *testing.T) {
	server := newIngestTestServer()
	defer server.Close()

	orch, _, _ := newTestOrchestrator(t, server, nil)
	if err := orch.RunSource(context.Background(), "nosuch"); err == nil {
		t.Fatal("expected error for unknown source, got nil")
	}
}

func TestHandleCommandPauseResume(t *testing.T) {
	server := newIngestTestServer()
	defer server.Close()

	orch, _, _ := newTestOrchestrator(t, server, nil)

	if err := orch.HandleCommand(&models.Command{Command: models.CmdPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !orch.IsPaused() {
		t.Error("expected paused after pause command")
	}

	// RunAll is a no-op while paused.
	if err := orch.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll while paused: %v", err)
	}

	if err := orch.HandleCommand(&models.Command{Command: models.CmdResume}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if orch.IsPaused() {
		t.Error("expected unpaused after resume command")
	}
}
