package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propsift/api"
	"propsift/config"
	"propsift/httputil"
	"propsift/ingest"
	"propsift/logging"
	"propsift/models"
	"propsift/scheduler"
	"propsift/services"
	"propsift/storage"
	"propsift/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run ingestion once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting propsift...")

	log.Printf("Loaded %d source configs", len(cfg.Sources))
	for id, src := range cfg.Sources {
		log.Printf("  - %s (%s)", src.Name, id)
	}

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", cfg.Proxy.URL)
	}

	ctx := context.Background()

	// Operational store (runs, logs, commands) is always on.
	ops, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer ops.Close()
	log.Printf("Operational database: %s", cfg.OpsDBPath)

	// The warehouse is optional; without it rows land in batch files only.
	var warehouse *storage.PostgresStore
	if cfg.Postgres.DSN != "" {
		warehouse, err = storage.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer warehouse.Close()
		if err := warehouse.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate warehouse schema: %v", err)
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DSN))
	} else {
		log.Println("POSTGRES_DSN not set, rows will be written to batch files only")
	}

	// Initialize services
	var matchService *services.MatchService
	var mediaService *services.MediaService
	if warehouse != nil {
		matchService = services.NewMatchService(warehouse)
		mediaService = services.NewMediaService(warehouse)
	}

	publisher, err := services.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("Failed to connect to AMQP: %v", err)
	}
	defer publisher.Close()
	if publisher != nil {
		log.Println("Event publisher connected")
	}

	supabase := storage.NewSupabaseStore(&cfg.Supabase)
	if supabase != nil {
		log.Println("Supabase sync enabled")
	}

	// Create orchestrator
	orchestrator := ingest.NewOrchestrator(cfg, ops, warehouse, clients)
	orchestrator.SetServices(matchService, mediaService, publisher, supabase)

	// Handle one-shot commands
	if *scrapeNow {
		log.Println("Running ingestion...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		log.Println("Ingestion complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, ops)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opsLog := func(level models.LogLevel, source, message string) {
		if err := ops.Log(nil, level, message, source); err != nil {
			log.Printf("Warning: failed to write log entry: %v", err)
		}
	}

	// Background workers need the warehouse; without one the daemon only
	// runs scheduled ingestion.
	if warehouse != nil {
		var uploader workers.S3Uploader = workers.NoOpUploader{}
		if cfg.S3.Bucket != "" {
			s3up, err := storage.NewS3Uploader(ctx, cfg.S3)
			if err != nil {
				log.Fatalf("Failed to build S3 uploader: %v", err)
			}
			uploader = s3up
			log.Printf("S3 uploads enabled: bucket %s", cfg.S3.Bucket)
		} else {
			log.Println("S3_BUCKET not set, media will be verified but not stored")
		}

		mediaWorker := workers.NewMediaWorker(mediaService, uploader, nil)
		mediaWorker.SetLogger(opsLog)
		go mediaWorker.Run(ctx, 20, 2*time.Minute) // batch of 20 every 2 min
		log.Println("Media worker started")

		refreshWorker := workers.NewRefreshWorker(warehouse, services.NewProcessor(orchestrator.Registry()), nil)
		refreshWorker.SetLogger(opsLog)
		go refreshWorker.Run(ctx, cfg.Ingest.RefreshAge, 20, 30*time.Minute) // batch of 20 every 30 min
		log.Println("Refresh worker started")

		sched.SetWorkers(mediaWorker, refreshWorker)
	}

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	var apiServer *api.Server
	if cfg.APIAddr != "" {
		apiServer = api.NewServer(cfg.APIAddr, ops, warehouse, mediaService, orchestrator)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("Warning: %v", err)
			}
		}()
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Printf("Warning: API shutdown: %v", err)
		}
		shutdownCancel()
	}
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
