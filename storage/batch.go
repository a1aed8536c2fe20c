package storage

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"propsift/models"
	"propsift/schema"
)

// BatchWriter lays out one ingest run's artifacts on disk:
//
//	<baseDir>/<batch_id>/
//	  raw/           fetched documents, one file per URL
//	  structured/    one JSON array per output table
//	  summary.json   counts and reject tallies for the run
//
// All ten table files are written even when empty, so downstream loaders
// never have to probe for missing tables.
type BatchWriter struct {
	id  string
	dir string
}

// BatchSummary is the summary.json document for a completed batch.
type BatchSummary struct {
	BatchID     string         `json:"batch_id"`
	SourceID    string         `json:"source_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	URLsFound   int            `json:"urls_found"`
	DocsFetched int            `json:"docs_fetched"`
	DocsParsed  int            `json:"docs_parsed"`
	DocsBlocked int            `json:"docs_blocked"`
	Rejects     map[string]int `json:"rejects"`
	TableCounts map[string]int `json:"table_counts"`
	Errors      int            `json:"errors"`
}

// NewBatchID returns a fresh batch identifier, date-prefixed so batch
// directories sort chronologically.
func NewBatchID(now time.Time) string {
	return now.Format("20060102") + "_" + uuid.New().String()[:8]
}

func NewBatchWriter(baseDir, batchID string) (*BatchWriter, error) {
	dir := filepath.Join(baseDir, batchID)
	for _, sub := range []string{"raw", "structured"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("batch: create %s dir: %w", sub, err)
		}
	}
	return &BatchWriter{id: batchID, dir: dir}, nil
}

func (w *BatchWriter) ID() string {
	return w.id
}

func (w *BatchWriter) Dir() string {
	return w.dir
}

// WriteRaw stores one fetched document under raw/. The filename comes from
// the source URL, so re-fetching the same URL within a batch overwrites
// rather than accumulating.
func (w *BatchWriter) WriteRaw(sourceURL string, body []byte) error {
	name := rawFileName(sourceURL)
	path := filepath.Join(w.dir, "raw", name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("batch: write raw %s: %w", name, err)
	}
	return nil
}

// WriteTables validates the row set against the table contracts and writes
// one JSON array per table under structured/. A contract violation points
// at a projector defect, so it is logged and the write still proceeds.
func (w *BatchWriter) WriteTables(rs *models.RowSet) error {
	if rs == nil {
		rs = models.NewRowSet()
	}

	for _, violation := range schema.ValidateRowSet(rs) {
		log.Printf("Warning: row contract violation in batch %s: %v", w.id, violation)
	}

	tables := rs.Tables()
	for _, table := range models.TableNames {
		data, err := json.MarshalIndent(tables[table], "", "  ")
		if err != nil {
			return fmt.Errorf("batch: marshal %s: %w", table, err)
		}
		path := filepath.Join(w.dir, "structured", table+".json")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("batch: write %s: %w", table, err)
		}
	}
	return nil
}

func (w *BatchWriter) WriteSummary(s *BatchSummary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: marshal summary: %w", err)
	}
	path := filepath.Join(w.dir, "summary.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("batch: write summary: %w", err)
	}
	return nil
}

// rawFileName turns a URL into a filesystem-safe name. A short hash suffix
// keeps URLs that sanitize to the same slug from colliding.
func rawFileName(sourceURL string) string {
	slug := strings.TrimPrefix(sourceURL, "https://")
	slug = strings.TrimPrefix(slug, "http://")
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	if len(slug) > 80 {
		slug = slug[:80]
	}
	sum := md5.Sum([]byte(sourceURL))
	return slug + "_" + hex.EncodeToString(sum[:])[:8] + ".html"
}
