package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
)

// healthCheckTimeout bounds the dependency checks of /healthz.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// BrowserCounter reports how many remote browsers are held open.
type BrowserCounter interface {
	Size() int
}

// HealthChecker verifies component health.
type HealthChecker struct {
	registry  *session.Registry
	artifacts outbound.ArtifactStore
	browsers  BrowserCounter
	version   string
}

// NewHealthChecker creates a HealthChecker with optional components.
// Pass nil for components that aren't available.
func NewHealthChecker(registry *session.Registry, artifacts outbound.ArtifactStore, browsers BrowserCounter, version string) *HealthChecker {
	return &HealthChecker{
		registry:  registry,
		artifacts: artifacts,
		browsers:  browsers,
		version:   version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.registry != nil {
		checks["sessions"] = fmt.Sprintf("ok: %d active", h.registry.Count())
	} else {
		checks["sessions"] = "not configured"
	}

	if h.artifacts != nil {
		pctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := h.artifacts.Ping(pctx)
		cancel()
		if err != nil {
			checks["artifacts"] = "unreachable: " + err.Error()
			healthy = false
		} else {
			checks["artifacts"] = "ok"
		}
	} else {
		checks["artifacts"] = "not configured"
	}

	if h.browsers != nil {
		checks["browsers"] = fmt.Sprintf("ok: %d open", h.browsers.Size())
	} else {
		checks["browsers"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the detailed health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the dependency-free liveness check.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
