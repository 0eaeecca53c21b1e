package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bjjsocial/bjjsocial/internal/api/models"
	"github.com/bjjsocial/bjjsocial/internal/api/response"
	"github.com/bjjsocial/bjjsocial/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check tests one dependency.
type Check struct {
	Name string
	Kind string
	Run  func(ctx context.Context) error
}

// OpsHandlerConfig configures an OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// Checks run on readiness and status requests.
	Checks []Check

	// Upstreams reports circuit breaker state. Optional.
	Upstreams *resilience.Registry

	Clock func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []Check
	upstreams *resilience.Registry
	clock     func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		checks:    cfg.Checks,
		upstreams: cfg.Upstreams,
		clock:     cfg.Clock,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing check makes the
// service unready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock()),
	}
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			health.Status = models.HealthStatusFail
			if health.Details == nil {
				health.Details = map[string]interface{}{}
			}
			health.Details[s.Name] = *s.Detail
		}
	}

	status := http.StatusOK
	if health.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.clock()),
		Subsystems: h.runChecks(r.Context()),
		Upstreams:  []models.UpstreamStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.upstreams != nil {
		for _, u := range h.upstreams.Snapshot() {
			upstream := models.UpstreamStatus{
				Name:                u.Name,
				Status:              upstreamStatus(u.Status()),
				CircuitState:        u.CircuitState.String(),
				ConsecutiveFailures: int(u.Counts.ConsecutiveFailures),
			}
			if u.LastSuccessAt != nil {
				upstream.LastSuccessAt = models.TimestampPtr(*u.LastSuccessAt)
			}
			if u.LastFailureAt != nil {
				upstream.LastFailureAt = models.TimestampPtr(*u.LastFailureAt)
			}
			if u.LastError != "" {
				lastErr := u.LastError
				upstream.LastError = &lastErr
			}
			if upstream.Status != models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
			status.Upstreams = append(status.Upstreams, upstream)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

// runChecks runs every dependency concurrently, keeping check order.
func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	results := make([]models.SubsystemStatus, len(h.checks))

	var wg sync.WaitGroup
	for i, c := range h.checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
			defer cancel()

			results[i] = models.SubsystemStatus{Name: c.Name, Kind: c.Kind, Status: models.HealthStatusOK}
			if err := c.Run(ctx); err != nil {
				detail := err.Error()
				results[i].Status = models.HealthStatusFail
				results[i].Detail = &detail
			}
		}(i, c)
	}
	wg.Wait()

	return results
}

func upstreamStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusHealthy:
		return models.HealthStatusOK
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}
