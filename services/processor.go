package services

import (
	"encoding/json"
	"fmt"
	"time"

	"propsift/extract"
	"propsift/media"
	"propsift/models"
	"propsift/normalize"
	"propsift/project"
	"propsift/sites"
)

// Reject reasons tallied per batch. A rejected document still emits its
// row set; the tally exists so thin sources are visible in run summaries.
const (
	RejectMissingLocation = "missing_location"
	RejectMissingPrice    = "missing_price"
	RejectMissingSpecs    = "missing_specs"
)

// Processor runs the extraction cascade over one fetched document,
// resolves its gallery, and projects the canonical record onto the row
// tables. It holds no per-document state and is safe to share.
type Processor struct {
	registry *sites.Registry
}

func NewProcessor(registry *sites.Registry) *Processor {
	if registry == nil {
		registry = sites.DefaultRegistry()
	}
	return &Processor{registry: registry}
}

// ProcessResult is the outcome of processing one document.
type ProcessResult struct {
	Record  *models.CanonicalRecord
	Meta    project.Meta
	Rows    *models.RowSet
	Blocked bool
	Rejects []string
}

// Process extracts and projects one document. It fails only on a missing
// source URL; every other input, including a block wall or an empty page,
// produces a result with the defect recorded on it.
func (p *Processor) Process(sourceURL, html, markdown, batchID, crawlMethod string, scrapedAt time.Time) (*ProcessResult, error) {
	if sourceURL == "" {
		return nil, fmt.Errorf("process: empty source URL")
	}

	g := p.registry.Detect(sourceURL)
	doc := extract.NewDocument(sourceURL, html, markdown)
	rec := extract.Merge(doc, g)

	rec.Images = media.Resolve(rec.Images, g)
	if rec.DaysOnMarket == nil && rec.ListDate != "" {
		rec.DaysOnMarket = normalize.DaysOnMarket(rec.ListDate, scrapedAt)
	}

	meta := project.MetaFor(rec, batchID, crawlMethod, scrapedAt)
	result := &ProcessResult{
		Record:  rec,
		Meta:    meta,
		Rows:    project.Project(rec, meta),
		Blocked: rec.Blocked(),
	}
	if !result.Blocked {
		result.Rejects = rejectReasons(rec)
	}
	return result, nil
}

// rejectReasons lists what a record is missing. Location means neither
// city nor postal code; specs means none of beds, baths, or area.
func rejectReasons(rec *models.CanonicalRecord) []string {
	var reasons []string
	if !rec.Address.Complete() {
		reasons = append(reasons, RejectMissingLocation)
	}
	if rec.ListPrice == nil {
		reasons = append(reasons, RejectMissingPrice)
	}
	if rec.Beds == nil && rec.Baths == nil && rec.InteriorArea == nil {
		reasons = append(reasons, RejectMissingSpecs)
	}
	return reasons
}

// ProcessStats aggregates document outcomes across one run.
type ProcessStats struct {
	DocsProcessed int
	DocsBlocked   int
	DocsRejected  int
	RowsEmitted   int
	Rejects       map[string]int
	Errors        int
}

func NewProcessStats() *ProcessStats {
	return &ProcessStats{Rejects: map[string]int{}}
}

// Aggregate adds one result to the stats. Blocked documents contribute no
// rows and no reject tallies.
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.DocsProcessed++
	if r.Blocked {
		s.DocsBlocked++
		return
	}
	if len(r.Rejects) > 0 {
		s.DocsRejected++
		for _, reason := range r.Rejects {
			s.Rejects[reason]++
		}
	}
	for _, n := range r.Rows.Counts() {
		s.RowsEmitted += n
	}
}

// ToJSON returns the stats as run metadata.
func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"docs_processed": s.DocsProcessed,
		"docs_blocked":   s.DocsBlocked,
		"docs_rejected":  s.DocsRejected,
		"rows_emitted":   s.RowsEmitted,
		"rejects":        s.Rejects,
		"errors":         s.Errors,
	})
	return data
}
