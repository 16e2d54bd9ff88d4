package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/homebox-bot/internal/health"
	"github.com/Proton-105/homebox-bot/internal/middleware"
	"github.com/Proton-105/homebox-bot/pkg/logger"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) map[string]string
}

// Probes answers liveness from a flag flipped at shutdown and readiness from the dependency checks.
type Probes struct {
	checker  *health.Checker
	stopping atomic.Bool
	log      *slog.Logger
}

// NewProbes creates a new Probes instance.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// MarkStopping makes readiness fail so traffic drains before shutdown.
func (p *Probes) MarkStopping() {
	p.stopping.Store(true)
}

// Liveness reports success while the process runs.
func (p *Probes) Liveness(ctx context.Context) error {
	return nil
}

// Readiness runs every dependency check.
func (p *Probes) Readiness(ctx context.Context) map[string]string {
	results := map[string]string{}
	if p.checker != nil {
		results = p.checker.Check(ctx)
	}
	if p.stopping.Load() {
		results["lifecycle"] = "shutting down"
	}
	return results
}

// NewOpsRouter serves /healthz, /readyz and /metrics.
func NewOpsRouter(probes HealthChecker, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(middleware.HTTPLogging(log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := probes.Liveness(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		results := probes.Readiness(req.Context())
		status := http.StatusOK
		if !health.Healthy(results) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, results)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
