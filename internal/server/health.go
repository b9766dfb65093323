package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/giantswarm/kubewire/internal/instrumentation"
)

// DefaultReadinessTimeout bounds the API server check behind /readyz.
const DefaultReadinessTimeout = 5 * time.Second

// ReadinessCheck reports whether the API server can currently be reached.
// k8s.Ping bound to a client is the usual implementation.
type ReadinessCheck func(ctx context.Context) error

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the process has finished starting up
	ready atomic.Bool
	// stopping is set once shutdown has begun
	stopping atomic.Bool

	version   string
	check     ReadinessCheck
	timeout   time.Duration
	provider  *instrumentation.Provider
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker. check and provider may be nil.
func NewHealthChecker(version string, check ReadinessCheck, provider *instrumentation.Provider) *HealthChecker {
	h := &HealthChecker{
		version:   version,
		check:     check,
		timeout:   DefaultReadinessTimeout,
		provider:  provider,
		startTime: time.Now(),
	}
	// Ready by default; the API server check gates readiness on its own
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the process is marked ready.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// MarkStopping makes /readyz fail while the process winds down.
func (h *HealthChecker) MarkStopping() {
	h.stopping.Store(true)
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime,omitempty"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// If we can respond, we're alive.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: h.version,
			Uptime:  time.Since(h.startTime).Truncate(time.Second).String(),
		})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
// It fails while the process is not ready, is stopping, or cannot reach
// the API server.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allOk := true

		if h.ready.Load() {
			checks["ready"] = "ok"
		} else {
			checks["ready"] = "not ready"
			allOk = false
		}

		if h.stopping.Load() {
			checks["shutdown"] = "shutting down"
			allOk = false
		} else {
			checks["shutdown"] = "ok"
		}

		if h.check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
			err := h.check(ctx)
			cancel()
			if err != nil {
				checks["apiserver"] = err.Error()
				allOk = false
			} else {
				checks["apiserver"] = "ok"
			}
		}

		if h.provider != nil {
			if h.provider.Enabled() {
				checks["instrumentation"] = "ok"
			} else {
				checks["instrumentation"] = "disabled"
			}
		}

		response := HealthResponse{Checks: checks, Version: h.version}
		status := http.StatusOK
		if allOk {
			response.Status = "ok"
		} else {
			response.Status = "not ready"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
