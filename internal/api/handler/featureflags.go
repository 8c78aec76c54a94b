package handler

import (
	"net/http"
	"sort"

	"github.com/gpstunnel/gpstunnel/internal/api/middleware"
	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/api/response"
	"github.com/gpstunnel/gpstunnel/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

func toFeatureFlagList(flags map[string]*featureflags.Flag) models.FeatureFlagList {
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := models.FeatureFlagList{Flags: make([]models.FeatureFlag, 0, len(keys))}
	for _, k := range keys {
		f := flags[k]
		list.Flags = append(list.Flags, models.FeatureFlag{
			Key:       f.Key,
			Value:     f.Value,
			UpdatedAt: models.TimestampPtr(f.UpdatedAt),
		})
	}
	return list
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, toFeatureFlagList(h.service.GetAllFlags(r.Context())))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags. The batch is
// applied only if every update is valid.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req models.FeatureFlagsUpdateRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	updates := make([]featureflags.Update, 0, len(req.Flags))
	for _, f := range req.Flags {
		updates = append(updates, featureflags.Update{Key: f.Key, Value: f.Value})
	}

	reason := req.Reason
	if subject := middleware.GetSubject(r.Context()); subject != "" {
		reason = subject + ": " + reason
	}

	if _, err := h.service.SetFlags(r.Context(), updates, reason); err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toFeatureFlagList(h.service.GetAllFlags(r.Context())))
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
