// Package frontend exposes the engine over HTTP: component status,
// model run history, manual cycle triggering and the metrics endpoint.
package frontend

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/engine"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/metrics"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
)

// Engine is the orchestration surface the frontend depends on.
type Engine interface {
	Trigger(ctx context.Context) error
	Statuses(ctx context.Context) ([]core.ComponentStatus, error)
	Busy() bool
}

// Config holds the HTTP server settings.
type Config struct {
	Host string
	Port int

	// AuthToken protects the API when set; requests must carry it as a
	// bearer token.
	AuthToken string
}

// Server serves the REST API and the metrics endpoint.
type Server struct {
	cfg     Config
	engine  Engine
	meta    persistence.MetadataStore
	metrics *metrics.Metrics

	srv *http.Server
}

// New creates a server. The metrics handle may be nil.
func New(cfg Config, eng Engine, meta persistence.MetadataStore, m *metrics.Metrics) *Server {
	return &Server{cfg: cfg, engine: eng, meta: meta, metrics: m}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.AuthToken != "" {
			r.Use(tokenAuth(s.cfg.AuthToken))
		}
		r.Get("/components", s.handleListComponents)
		r.Get("/components/{id}", s.handleGetComponent)
		r.Get("/models/{id}/runs", s.handleListRuns)
		r.Get("/models/{id}/runs/best", s.handleBestRun)
		r.Post("/cycles", s.handleTriggerCycle)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Frontend listening", "addr", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("frontend server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func tokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			want := "Bearer " + token
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.engine.Statuses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"components": statuses})
}

func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	statuses, err := s.engine.Statuses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, status := range statuses {
		if status.ID == id {
			writeJSON(w, http.StatusOK, status)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("component %q not found", id))
}

func (s *Server) modelSpec(r *http.Request) (core.ComponentSpec, bool, error) {
	id := chi.URLParam(r, "id")
	specs, err := s.meta.Snapshot(r.Context())
	if err != nil {
		return core.ComponentSpec{}, false, err
	}
	for _, spec := range specs {
		if spec.ID == id {
			return spec, true, nil
		}
	}
	return core.ComponentSpec{}, false, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	spec, ok, err := s.modelSpec(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	runs := spec.Runs
	if runs == nil {
		runs = []core.ModelRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleBestRun(w http.ResponseWriter, r *http.Request) {
	spec, ok, err := s.modelSpec(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}

	bestOf := 0
	if raw := r.URL.Query().Get("bestOf"); raw != "" {
		bestOf, err = strconv.Atoi(raw)
		if err != nil || bestOf < 0 {
			writeError(w, http.StatusBadRequest, "bestOf must be a non-negative integer")
			return
		}
	}

	best := core.BestRun(spec.Runs, bestOf)
	if best == nil {
		writeError(w, http.StatusNotFound, "model has no runs")
		return
	}
	writeJSON(w, http.StatusOK, best)
}

func (s *Server) handleTriggerCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Trigger(r.Context()); err != nil {
		if errors.Is(err, engine.ErrCycleRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cycle started"})
}
