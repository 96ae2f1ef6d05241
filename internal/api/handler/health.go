package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HealthHandler handles GET /health: liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Dependency is one backing service probed by the readiness check.
// Optional dependencies are reported but do not fail readiness.
type Dependency struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// ReadinessHandler handles GET /health/ready: readiness probe.
// Probe failures are logged; the response only says which dependency is down.
type ReadinessHandler struct {
	deps []Dependency
	log  zerolog.Logger
}

func NewReadinessHandler(log zerolog.Logger, deps ...Dependency) *ReadinessHandler {
	return &ReadinessHandler{deps: deps, log: log}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.deps))
	healthy := true

	for _, d := range h.deps {
		if err := d.Check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", d.Name).Msg("readiness probe failed")
			deps[d.Name] = dependencyStatus{Status: "unhealthy", Error: "unreachable"}
			if !d.Optional {
				healthy = false
			}
			continue
		}
		deps[d.Name] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
