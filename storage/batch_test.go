package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"propsift/models"
)

func TestNewBatchIDFormat(t *testing.T) {
	now := time.Date(2024, 3, 20, 15, 4, 5, 0, time.UTC)
	id := NewBatchID(now)

	if !strings.HasPrefix(id, "20240320_") {
		t.Errorf("batch id %q missing date prefix", id)
	}
	if len(id) != len("20240320_")+8 {
		t.Errorf("batch id %q has wrong length", id)
	}
}

func TestBatchWriterLayout(t *testing.T) {
	base := t.TempDir()
	w, err := NewBatchWriter(base, "20240320_ab12cd34")
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}

	if err := w.WriteRaw("https://www.zillow.com/homedetails/113-E-19th-St/31506434_zpid/", []byte("<html></html>")); err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}

	rs := models.NewRowSet()
	rs.Listings = append(rs.Listings, models.ListingRow{
		ListingID:        strings.Repeat("ab", 20),
		PropertyID:       strings.Repeat("cd", 20),
		BatchID:          w.ID(),
		SourceID:         "zillow",
		SourceURL:        "https://www.zillow.com/homedetails/1",
		CrawlMethod:      "render_api",
		ScrapedTimestamp: "2024-03-20T15:04:05Z",
		ListingType:      "sell",
		Status:           "active",
	})
	if err := w.WriteTables(rs); err != nil {
		t.Fatalf("WriteTables: %v", err)
	}

	summary := &BatchSummary{
		BatchID:     w.ID(),
		SourceID:    "zillow",
		URLsFound:   12,
		DocsFetched: 10,
		DocsParsed:  9,
		DocsBlocked: 1,
		Rejects:     map[string]int{"missing_price": 2},
		TableCounts: rs.Counts(),
	}
	if err := w.WriteSummary(summary); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	rawEntries, err := os.ReadDir(filepath.Join(w.Dir(), "raw"))
	if err != nil {
		t.Fatalf("read raw dir: %v", err)
	}
	if len(rawEntries) != 1 {
		t.Errorf("raw dir has %d files, want 1", len(rawEntries))
	}

	for _, table := range models.TableNames {
		path := filepath.Join(w.Dir(), "structured", table+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing table file %s: %v", table, err)
		}
		var rows []any
		if err := json.Unmarshal(data, &rows); err != nil {
			t.Errorf("table file %s is not a JSON array: %v", table, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(w.Dir(), "summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var got BatchSummary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if got.BatchID != summary.BatchID || got.DocsParsed != 9 {
		t.Errorf("summary round-trip = %+v", got)
	}
	if got.Rejects["missing_price"] != 2 {
		t.Errorf("rejects round-trip = %v", got.Rejects)
	}
	if got.TableCounts["listings"] != 1 {
		t.Errorf("table counts round-trip = %v", got.TableCounts)
	}
}

func TestWriteTablesNilRowSetWritesEmptyArrays(t *testing.T) {
	w, err := NewBatchWriter(t.TempDir(), "20240320_00000000")
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	if err := w.WriteTables(nil); err != nil {
		t.Fatalf("WriteTables(nil): %v", err)
	}

	for _, table := range models.TableNames {
		data, err := os.ReadFile(filepath.Join(w.Dir(), "structured", table+".json"))
		if err != nil {
			t.Fatalf("missing table file %s: %v", table, err)
		}
		if strings.TrimSpace(string(data)) != "[]" {
			t.Errorf("table %s = %q, want empty array", table, data)
		}
	}
}

func TestRawFileNamesDoNotCollide(t *testing.T) {
	a := rawFileName("https://example.com/a?x=1")
	b := rawFileName("https://example.com/a?x=2")
	if a == b {
		t.Errorf("distinct URLs mapped to the same file name %q", a)
	}
	if !strings.HasSuffix(a, ".html") {
		t.Errorf("raw file name %q missing extension", a)
	}
}
