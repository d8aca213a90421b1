// Package httpserver provides HTTP server infrastructure components.
package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Health status constants shared by all health endpoints.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// DefaultProbeTimeout bounds a single probe call.
const DefaultProbeTimeout = 2 * time.Second

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the response for health endpoints.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// HealthChecker reports readiness and per-component health.
type HealthChecker interface {
	IsReady(ctx context.Context) bool
	GetHealthStatus(ctx context.Context) []ComponentStatus
}

// Probe pings one dependency. A nil error means healthy.
type Probe struct {
	Name string
	// Optional probes degrade the service instead of making it unready.
	Optional bool
	Check    func(ctx context.Context) error
}

// ProbeChecker is a HealthChecker backed by a fixed list of probes.
type ProbeChecker struct {
	probes  []Probe
	timeout time.Duration
}

// NewProbeChecker creates a checker running the given probes concurrently.
func NewProbeChecker(timeout time.Duration, probes ...Probe) *ProbeChecker {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &ProbeChecker{probes: probes, timeout: timeout}
}

// IsReady returns true when every required probe passes.
func (p *ProbeChecker) IsReady(ctx context.Context) bool {
	for i, status := range p.GetHealthStatus(ctx) {
		if status.Status != StatusHealthy && !p.probes[i].Optional {
			return false
		}
	}
	return true
}

// GetHealthStatus runs all probes and returns their results in registration order.
func (p *ProbeChecker) GetHealthStatus(ctx context.Context) []ComponentStatus {
	results := make([]ComponentStatus, len(p.probes))

	var wg sync.WaitGroup
	for i, probe := range p.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			results[i] = ComponentStatus{Name: probe.Name, Status: StatusHealthy}
			if err := probe.Check(probeCtx); err != nil {
				results[i].Message = err.Error()
				results[i].Status = StatusUnhealthy
				if probe.Optional {
					results[i].Status = StatusDegraded
				}
			}
		}()
	}
	wg.Wait()

	return results
}

// HealthEndpoints manages health check endpoint registration.
type HealthEndpoints struct {
	checker HealthChecker
}

// NewHealthEndpoints creates a new HealthEndpoints instance.
func NewHealthEndpoints(checker HealthChecker) *HealthEndpoints {
	return &HealthEndpoints{
		checker: checker,
	}
}

// Register registers all health endpoints on the Echo instance.
//   - GET /health - liveness, always 200 while the process runs
//   - GET /ready - readiness, 503 when a required dependency is down
//   - GET /health/details - status of every component
func (h *HealthEndpoints) Register(e *echo.Echo) {
	e.GET("/health", h.handleHealth)
	e.GET("/ready", h.handleReady)
	e.GET("/health/details", h.handleHealthDetails)
}

func (h *HealthEndpoints) handleHealth(c echo.Context) error {
	return RespondJSON(c, http.StatusOK, HealthResponse{
		Status: StatusHealthy,
	})
}

func (h *HealthEndpoints) handleReady(c echo.Context) error {
	ctx := c.Request().Context()

	if h.checker == nil || h.checker.IsReady(ctx) {
		return RespondJSON(c, http.StatusOK, HealthResponse{Status: StatusReady})
	}

	return RespondJSON(c, http.StatusServiceUnavailable, HealthResponse{
		Status:     StatusNotReady,
		Components: h.components(ctx),
	})
}

func (h *HealthEndpoints) handleHealthDetails(c echo.Context) error {
	ctx := c.Request().Context()

	components := h.components(ctx)

	overallStatus := StatusHealthy
	statusCode := http.StatusOK

	for _, comp := range components {
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			statusCode = http.StatusServiceUnavailable
			break
		}
		if comp.Status == StatusDegraded {
			// keep scanning, unhealthy wins
			overallStatus = StatusDegraded
		}
	}

	return RespondJSON(c, statusCode, HealthResponse{
		Status:     overallStatus,
		Components: components,
	})
}

func (h *HealthEndpoints) components(ctx context.Context) []ComponentStatus {
	if h.checker == nil {
		return nil
	}
	return h.checker.GetHealthStatus(ctx)
}

// RegisterHealthEndpoints registers the health endpoints backed by checker.
func (r *Router) RegisterHealthEndpoints(checker HealthChecker) {
	NewHealthEndpoints(checker).Register(r.echo)
}
