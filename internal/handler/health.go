package handler

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// HealthChecker reports whether one backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler aggregates dependency checks into probe endpoints.
type HealthHandler struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checkers: make(map[string]HealthChecker)}
}

// AddChecker registers a named dependency check
func (h *HealthHandler) AddChecker(name string, checker HealthChecker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()
}

// ComponentStatus is the per-dependency result inside a health report
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthStatus is the aggregated health report
type HealthStatus struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// runChecks probes every dependency concurrently
func (h *HealthHandler) runChecks(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	h.mu.RLock()
	defer h.mu.RUnlock()

	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make(map[string]error, len(h.checkers))

	for name, checker := range h.checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			err := checker.Health(ctx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return results
}

// Health reports the aggregated health of the service
// @Summary Health check
// @Description Check the health of the service and its dependencies
// @Tags health
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentStatus),
	}

	for name, err := range h.runChecks(r.Context()) {
		if err != nil {
			report.Status = "unhealthy"
			report.Components[name] = ComponentStatus{Status: "unhealthy", Message: err.Error()}
			continue
		}
		report.Components[name] = ComponentStatus{Status: "healthy"}
	}

	code := http.StatusOK
	if report.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, report)
}

// Liveness answers as long as the process is serving
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness fails on the first unreachable dependency
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health/ready [get]
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	for name, err := range h.runChecks(r.Context()) {
		if err != nil {
			JSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":    "not ready",
				"component": name,
				"error":     err.Error(),
			})
			return
		}
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
