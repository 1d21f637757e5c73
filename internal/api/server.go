// Package api hosts the diagnostics HTTP server. Routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/progress for the current run snapshot.
//   - GET /api/platforms/health for reachability and breaker state.
//   - GET /api/ratelimit for live limiter occupancy.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/health"
	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/progress/sinks"
	"github.com/riftwatch/rift-harvester/internal/ratelimit"
)

const healthCheckTimeout = 10 * time.Second

// Server wires the diagnostics handlers to the engine's shared state.
type Server struct {
	router    chi.Router
	platforms []model.Platform
	checker   *health.Manager
	breaker   *health.Breaker
	limiter   *ratelimit.Limiter
	snapshot  *sinks.SnapshotSink
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. Any nil
// dependency disables its routes with a 503.
func NewServer(
	platforms []model.Platform,
	checker *health.Manager,
	breaker *health.Breaker,
	limiter *ratelimit.Limiter,
	snapshot *sinks.SnapshotSink,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		platforms: platforms,
		checker:   checker,
		breaker:   breaker,
		limiter:   limiter,
		snapshot:  snapshot,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", s.getProgress)
		r.Get("/platforms/health", s.getPlatformHealth)
		r.Get("/ratelimit", s.getRateLimit)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "progress snapshot unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot.Snapshot())
}

type platformHealth struct {
	Platform     string    `json:"platform"`
	Reachable    bool      `json:"reachable"`
	LatencyMS    int64     `json:"latency_ms"`
	LastError    string    `json:"last_error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
	BreakerState string    `json:"breaker_state"`
	Failures     int       `json:"failures"`
}

func (s *Server) getPlatformHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeError(w, http.StatusServiceUnavailable, "health checker unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	reports := s.checker.CheckAll(ctx, s.platforms)
	out := make([]platformHealth, 0, len(reports))
	for _, rep := range reports {
		ph := platformHealth{
			Platform:     rep.Platform,
			Reachable:    rep.Reachable,
			LatencyMS:    rep.Latency.Milliseconds(),
			LastError:    rep.LastError,
			CheckedAt:    rep.CheckedAt,
			BreakerState: "closed",
		}
		if s.breaker != nil {
			ph.BreakerState = s.breaker.State(rep.Platform).String()
			ph.Failures = s.breaker.Failures(rep.Platform)
		}
		out = append(out, ph)
	}
	writeJSON(w, http.StatusOK, map[string]any{"platforms": out})
}

type rateLimitStatus struct {
	Key     string                   `json:"key"`
	Windows []ratelimit.WindowStatus `json:"windows"`
}

func (s *Server) getRateLimit(w http.ResponseWriter, _ *http.Request) {
	if s.limiter == nil {
		writeError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
		return
	}
	classes := []string{"match", "summoner", "league"}
	out := make([]rateLimitStatus, 0, len(s.platforms)*len(classes))
	for _, p := range s.platforms {
		for _, class := range classes {
			key := ratelimit.Key(p.Code, class)
			out = append(out, rateLimitStatus{Key: key, Windows: s.limiter.Status(key)})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": out})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already out if encoding fails; nothing useful left to do.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
