package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"propsift/config"
	"propsift/ingest"
	"propsift/models"
	"propsift/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler owns the timing surface: scheduled ingest runs, the operator
// command poll, and resume of interrupted zip walks.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *ingest.Orchestrator
	ops          *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	mediaWorker   Triggerable
	refreshWorker Triggerable
}

func New(cfg *config.Config, orchestrator *ingest.Orchestrator, ops *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		ops:          ops,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(media, refresh Triggerable) {
	s.mediaWorker = media
	s.refreshWorker = refresh
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Always start background runners
	go s.pollCommands(ctx)
	go s.pollResumes(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ops.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(&cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.ops.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunMedia:
		if s.mediaWorker != nil {
			s.mediaWorker.Trigger()
			log.Println("Media worker triggered via command")
		}
		return nil
	case models.CmdRunRefresh:
		if s.refreshWorker != nil {
			s.refreshWorker.Trigger()
			log.Println("Refresh worker triggered via command")
		}
		return nil
	default:
		return s.orchestrator.HandleCommand(cmd)
	}
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}

// resumeDelay is how long an interrupted run must sit idle before its zip
// walk resumes.
const resumeDelay = 15 * time.Minute

func (s *Scheduler) pollResumes(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sources, err := s.ops.GetSourcesWithResume()
			if err != nil {
				log.Printf("Error checking resume cursors: %v", err)
				continue
			}

			for _, sourceID := range sources {
				lastRun, err := s.ops.GetLastRunTime(sourceID)
				if err != nil {
					log.Printf("Error getting last run time for %s: %v", sourceID, err)
					continue
				}

				if time.Since(lastRun) >= resumeDelay {
					log.Printf("Resuming ingest for %s", sourceID)
					if err := s.orchestrator.RunSource(ctx, sourceID); err != nil {
						log.Printf("Resume error for %s: %v", sourceID, err)
					}
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
