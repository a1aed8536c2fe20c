// Package api exposes the operator HTTP surface: health, run history,
// warehouse counts, and remote run triggering. The server binds only when
// an address is configured.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"propsift/ingest"
	"propsift/models"
	"propsift/services"
	"propsift/storage"
)

type Server struct {
	httpServer   *http.Server
	ops          *storage.SQLiteStore
	warehouse    *storage.PostgresStore
	media        *services.MediaService
	orchestrator *ingest.Orchestrator
}

func NewServer(addr string, ops *storage.SQLiteStore, warehouse *storage.PostgresStore, media *services.MediaService, orchestrator *ingest.Orchestrator) *Server {
	s := &Server{
		ops:          ops,
		warehouse:    warehouse,
		media:        media,
		orchestrator: orchestrator,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/runs", s.handleRuns)
		r.Get("/status", s.handleStatus)
		r.Post("/run", s.handleRun)
	})

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Start() error {
	log.Printf("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats reports warehouse table counts, the media queue, and the
// per-source rollups.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any)

	if s.warehouse != nil {
		counts, err := s.warehouse.GetTableCounts(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("table counts: %v", err))
			return
		}
		out["tables"] = counts
	}

	if s.media != nil {
		depth, err := s.media.GetQueueDepth(r.Context())
		if err != nil {
			log.Printf("Warning: failed to read media queue depth: %v", err)
		} else {
			out["media_queue"] = depth
		}
	}

	sources, err := s.ops.GetSourceStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("source stats: %v", err))
		return
	}
	out["sources"] = sources

	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.ops.GetRecentRuns(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("runs: %v", err))
		return
	}
	if runs == nil {
		runs = []models.IngestRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.orchestrator.MarshalStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("status: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(status)
}

// handleRun enqueues a run command; the scheduler's command poll picks it
// up. An empty source means run everything.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")

	if source != "" && !s.knownSource(source) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown source: %s", source))
		return
	}

	var (
		id  int64
		err error
	)
	if source == "" {
		id, err = s.ops.EnqueueCommand(models.CmdRunNow, nil)
	} else {
		id, err = s.ops.EnqueueCommand(models.CmdRunSource, &models.CommandParams{Source: source})
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue: %v", err))
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"command_id": id})
}

func (s *Server) knownSource(source string) bool {
	for _, id := range s.orchestrator.SourceIDs() {
		if id == source {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}
