// Package health provides health check endpoints for the auth service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/welldanyogia/auth-system/internal/metrics"
)

// ServiceStatus represents the status of a single dependency
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the structured health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Store     string                   `json:"store"`
	Services  map[string]ServiceStatus `json:"services"`
	Version   string                   `json:"version,omitempty"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Ready     bool   `json:"ready"`
	Timestamp string `json:"timestamp"`
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Alive     bool   `json:"alive"`
	Timestamp string `json:"timestamp"`
}

// Handler handles health check requests
type Handler struct {
	checks  map[string]metrics.Pinger
	store   string
	version string
	timeout time.Duration
	ready   bool
	mu      sync.RWMutex
}

// Config holds health handler configuration
type Config struct {
	// Checks are pinged on /health and /health/ready, keyed by service name.
	// The in-memory store needs none.
	Checks  map[string]metrics.Pinger
	Store   string
	Version string
	Timeout time.Duration // Default: 5 seconds
}

// NewHandler creates a new health check handler
func NewHandler(cfg Config) *Handler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Handler{
		checks:  cfg.Checks,
		store:   cfg.Store,
		version: cfg.Version,
		timeout: timeout,
		ready:   true,
	}
}

// SetReady sets the readiness state of the service. Cleared during shutdown.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the current readiness state
func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Health reports the status of every configured dependency
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services, healthy := h.runChecks(ctx)
	overallStatus := "healthy"
	if !healthy {
		overallStatus = "degraded"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Store:     h.store,
		Services:  services,
		Version:   h.version,
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// Readiness handles the readiness probe endpoint
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ready := h.IsReady()
	if ready {
		_, ready = h.runChecks(ctx)
	}

	response := ReadinessResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// Liveness handles the liveness probe endpoint
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Alive:     true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) runChecks(ctx context.Context) (map[string]ServiceStatus, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]ServiceStatus, len(names))
	healthy := true
	for _, name := range names {
		status := check(ctx, h.checks[name])
		services[name] = status
		if status.Status != "up" {
			healthy = false
		}
	}
	return services, healthy
}

func check(ctx context.Context, p metrics.Pinger) ServiceStatus {
	start := time.Now()
	err := metrics.PingDatabase(ctx, p)
	latency := time.Since(start)

	if err != nil {
		return ServiceStatus{
			Status:  "down",
			Latency: latency.String(),
			Error:   err.Error(),
		}
	}

	return ServiceStatus{
		Status:  "up",
		Latency: latency.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
