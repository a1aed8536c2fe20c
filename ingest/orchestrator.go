package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"propsift/config"
	"propsift/httputil"
	"propsift/models"
	"propsift/services"
	"propsift/sites"
	"propsift/storage"
)

// Orchestrator drives ingest runs: collect detail URLs per source, fetch
// and process each document, persist the rows, and record the run in the
// operational store.
type Orchestrator struct {
	cfg       *config.Config
	ops       *storage.SQLiteStore
	warehouse *storage.PostgresStore
	registry  *sites.Registry
	fetcher   *Fetcher
	collector *Collector
	processor *services.Processor
	paused    bool

	match     *services.MatchService
	media     *services.MediaService
	publisher *services.Publisher
	supabase  *storage.SupabaseStore
}

func NewOrchestrator(cfg *config.Config, ops *storage.SQLiteStore, warehouse *storage.PostgresStore, clients *httputil.Clients) *Orchestrator {
	opts := make(map[string]sites.Options, len(cfg.Sources))
	for id, src := range cfg.Sources {
		opts[id] = sites.Options{
			SearchTemplate:  src.SearchURL,
			ExtraStateKeys:  src.StateKeys,
			ExtraImageHosts: src.ImageHosts,
		}
	}
	registry := sites.NewRegistry(opts)
	fetcher := NewFetcher(cfg, clients)

	return &Orchestrator{
		cfg:       cfg,
		ops:       ops,
		warehouse: warehouse,
		registry:  registry,
		fetcher:   fetcher,
		collector: NewCollector(fetcher),
		processor: services.NewProcessor(registry),
	}
}

// SetServices injects the post-save consumers. Publisher and Supabase may
// be nil; their methods no-op on nil receivers.
func (o *Orchestrator) SetServices(match *services.MatchService, media *services.MediaService, publisher *services.Publisher, supabase *storage.SupabaseStore) {
	o.match = match
	o.media = media
	o.publisher = publisher
	o.supabase = supabase
}

// Registry exposes the grammar registry built from the source configs.
func (o *Orchestrator) Registry() *sites.Registry {
	return o.registry
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Ingest is paused, skipping run")
		return nil
	}

	for sourceID := range o.cfg.Sources {
		if err := o.RunSource(ctx, sourceID); err != nil {
			log.Printf("Error running source %s: %v", sourceID, err)
		}
	}

	return nil
}

func (o *Orchestrator) RunSource(ctx context.Context, sourceID string) error {
	src, ok := o.cfg.Sources[sourceID]
	if !ok {
		return fmt.Errorf("unknown source: %s", sourceID)
	}
	g := o.registry.Get(sourceID)
	if g == nil {
		return fmt.Errorf("no grammar for source: %s", sourceID)
	}

	batchID := storage.NewBatchID(time.Now())
	run := &models.IngestRun{
		SourceID:  sourceID,
		BatchID:   batchID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := o.ops.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	stats := services.NewProcessStats()
	merged := models.NewRowSet()
	rowsWritten := 0

	writer, writerErr := storage.NewBatchWriter(o.cfg.BatchDir, batchID)

	defer func() {
		if writer != nil {
			if err := writer.WriteTables(merged); err != nil {
				log.Printf("Warning: failed to write batch tables: %v", err)
			}
			summary := &storage.BatchSummary{
				BatchID:     batchID,
				SourceID:    sourceID,
				StartedAt:   run.StartedAt,
				FinishedAt:  time.Now(),
				URLsFound:   run.URLsFound,
				DocsFetched: run.DocsFetched,
				DocsParsed:  stats.DocsProcessed - stats.DocsBlocked,
				DocsBlocked: stats.DocsBlocked,
				Rejects:     stats.Rejects,
				TableCounts: merged.Counts(),
				Errors:      run.ErrorsCount,
			}
			if err := writer.WriteSummary(summary); err != nil {
				log.Printf("Warning: failed to write batch summary: %v", err)
			}
		}

		now := time.Now()
		run.FinishedAt = &now
		run.DocsParsed = stats.DocsProcessed - stats.DocsBlocked
		run.DocsBlocked = stats.DocsBlocked
		run.DocsRejected = stats.DocsRejected
		run.RowsWritten = rowsWritten
		if err := o.ops.UpdateRun(run); err != nil {
			log.Printf("Warning: failed to update run: %v", err)
		}
		if err := o.ops.UpdateSourceStats(sourceID); err != nil {
			log.Printf("Warning: failed to update source stats: %v", err)
		}
	}()

	if writerErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		return writerErr
	}

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting ingest for %s (batch %s)", sourceID, batchID), sourceID)

	// Collect phase: seed URLs verbatim, then the zip walk.
	urls := append([]string{}, src.SeedURLs...)

	if src.SearchURL != "" && len(src.Zips) > 0 {
		startIndex, err := o.ops.GetResumeZip(sourceID)
		if err != nil {
			log.Printf("Warning: failed to read resume cursor: %v", err)
			startIndex = 0
		}
		if startIndex >= len(src.Zips) {
			startIndex = 0
		}
		if startIndex > 0 {
			o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Resuming at zip %d of %d", startIndex+1, len(src.Zips)), sourceID)
		}

		for i := startIndex; i < len(src.Zips); i++ {
			if ctx.Err() != nil {
				run.Status = models.RunStatusPartial
				o.setResume(sourceID, i)
				return ctx.Err()
			}

			zip := src.Zips[i]
			found, err := o.collector.CollectZip(ctx, g, zip, o.cfg.Ingest.PerZipCap)
			if err != nil {
				o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Zip %s: %v", zip, err), sourceID)
				run.ErrorsCount++
				stats.Errors++
			} else {
				urls = append(urls, found...)
				o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Zip %s: %d detail URLs", zip, len(found)), sourceID)
			}

			o.setResume(sourceID, i+1)
			o.fetcher.Pause(src.RateLimitMS)
		}
	}

	urls = dedupeOrdered(urls)
	run.URLsFound = len(urls)
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Collected %d detail URLs", len(urls)), sourceID)

	// Fetch and process phase.
	for _, detailURL := range urls {
		if ctx.Err() != nil {
			run.Status = models.RunStatusPartial
			return ctx.Err()
		}

		res := o.fetcher.Fetch(ctx, detailURL)
		if res.Error != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Fetch failed (%d) %s: %v", res.StatusCode, detailURL, res.Error), sourceID)
			run.ErrorsCount++
			stats.Errors++
			o.fetcher.Pause(src.RateLimitMS)
			continue
		}
		run.DocsFetched++

		if err := writer.WriteRaw(detailURL, []byte(res.HTML)); err != nil {
			log.Printf("Warning: failed to write raw document: %v", err)
		}

		processed, err := o.processor.Process(detailURL, res.HTML, res.Markdown, batchID, res.CrawlMethod, time.Now())
		if err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("Process error for %s: %v", detailURL, err), sourceID)
			run.ErrorsCount++
			stats.Errors++
			o.fetcher.Pause(src.RateLimitMS)
			continue
		}
		stats.Aggregate(processed)

		// Blocked pages yield no trustworthy rows; the URL stays
		// eligible for the next run.
		if processed.Blocked {
			o.log(run.ID, models.LogLevelWarn, "Blocked page: "+detailURL, sourceID)
			o.fetcher.Pause(src.RateLimitMS)
			continue
		}

		merged.Append(processed.Rows)

		if o.warehouse != nil {
			written, err := o.warehouse.SaveRowSet(ctx, processed.Rows)
			if err != nil {
				o.log(run.ID, models.LogLevelError, fmt.Sprintf("Save error for %s: %v", detailURL, err), sourceID)
				run.ErrorsCount++
				stats.Errors++
			} else {
				rowsWritten += written
				o.afterSave(ctx, processed, sourceID)
			}
		}

		o.fetcher.Pause(src.RateLimitMS)
	}

	o.clearResume(sourceID)
	run.Status = models.RunStatusCompleted
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d URLs, %d fetched, %d parsed, %d blocked, %d rejected, %d rows written",
			run.URLsFound, run.DocsFetched, stats.DocsProcessed-stats.DocsBlocked,
			stats.DocsBlocked, stats.DocsRejected, rowsWritten), sourceID)

	return nil
}

// afterSave runs the post-persist consumers for one document's rows.
// Failures here never fail the document; the warehouse write is the
// source of truth.
func (o *Orchestrator) afterSave(ctx context.Context, processed *services.ProcessResult, sourceID string) {
	if o.match != nil && len(processed.Rows.Properties) > 0 {
		if _, err := o.match.InsertPotentialMatches(ctx, &processed.Rows.Properties[0], sourceID); err != nil {
			log.Printf("Warning: failed to insert property matches: %v", err)
		}
	}

	if o.media != nil && o.cfg.Ingest.MediaEnabled {
		if _, err := o.media.EnqueueRowSet(ctx, processed.Rows); err != nil {
			log.Printf("Warning: failed to enqueue media: %v", err)
		}
	}

	if err := o.publisher.PublishIngested(ctx, processed.Rows); err != nil {
		log.Printf("Warning: failed to publish listing events: %v", err)
	}

	if err := o.supabase.SyncRowSet(processed.Rows); err != nil {
		log.Printf("Warning: failed to sync rows to Supabase: %v", err)
	}
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.ops.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdRunNow:
		return o.RunAll(ctx)
	case models.CmdRunSource:
		if params.Source != "" {
			return o.RunSource(ctx, params.Source)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Ingest paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Ingest resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) SourceIDs() []string {
	var ids []string
	for id := range o.cfg.Sources {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) MarshalStatus() ([]byte, error) {
	status := map[string]interface{}{
		"paused":  o.paused,
		"sources": o.SourceIDs(),
	}
	return json.Marshal(status)
}

func (o *Orchestrator) setResume(sourceID string, index int) {
	if err := o.ops.SetResumeZip(sourceID, index); err != nil {
		log.Printf("Warning: failed to set resume cursor: %v", err)
	}
}

func (o *Orchestrator) clearResume(sourceID string) {
	if err := o.ops.ClearResumeZip(sourceID); err != nil {
		log.Printf("Warning: failed to clear resume cursor: %v", err)
	}
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, sourceID string) {
	log.Printf("[%s] %s: %s", level, sourceID, message)
	if err := o.ops.Log(&runID, level, message, sourceID); err != nil {
		log.Printf("Warning: failed to write ingest log: %v", err)
	}
}
