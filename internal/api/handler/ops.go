// Package handler provides HTTP handlers for the gpstunnel API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/api/response"
	"github.com/gpstunnel/gpstunnel/internal/featureflags"
	"github.com/gpstunnel/gpstunnel/internal/provider/resilience"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// readyTimeout bounds each dependency check.
const readyTimeout = 2 * time.Second

// OpsConfig holds the dependencies reported by the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Checks are pinged by the readiness and status endpoints, keyed by
	// subsystem name.
	Checks map[string]tour.Pinger

	// Registry reports provider circuit state (optional).
	Registry *resilience.Registry

	// Flags reports which degradation flags are switched on (optional).
	Flags *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It fails with 503 when any
// subsystem check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkSubsystems(r.Context())

	status := models.HealthStatusOK
	details := make(map[string]any, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	out := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.checkSubsystems(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range out.Subsystems {
		if s.Status != models.HealthStatusOK {
			out.Status = models.HealthStatusFail
		}
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK && out.Status == models.HealthStatusOK {
				out.Status = models.HealthStatusDegraded
			}
			out.Providers = append(out.Providers, ps)
		}
	}

	if h.cfg.Flags != nil {
		for key, flag := range h.cfg.Flags.GetAllFlags(r.Context()) {
			if flag.BoolValue(false) {
				out.ActiveDegradationFlags = append(out.ActiveDegradationFlags, key)
			}
		}
		sort.Strings(out.ActiveDegradationFlags)
		if len(out.ActiveDegradationFlags) > 0 && out.Status == models.HealthStatusOK {
			out.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, out)
}

func (h *OpsHandler) checkSubsystems(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := h.cfg.Checks[name].Ping(pingCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: int(ph.Counts.ConsecutiveFailures),
	}
	switch ph.Status() {
	case resilience.StatusUnhealthy:
		ps.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	default:
		ps.Status = models.HealthStatusOK
	}
	if ph.LastSuccessAt != nil {
		ps.LastSuccessAt = models.TimestampPtr(*ph.LastSuccessAt)
	}
	if ph.LastFailureAt != nil {
		ps.LastFailureAt = models.TimestampPtr(*ph.LastFailureAt)
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
