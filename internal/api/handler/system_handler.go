package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/service"
)

// SystemHandler serves the liveness/readiness probes and the tenant summary
// view.
type SystemHandler struct {
	admin  *service.AdminService
	logger *zap.Logger
}

func NewSystemHandler(admin *service.AdminService, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{admin: admin, logger: logger}
}

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready
//
// @Summary  Readiness probe: verifies the queue store is reachable
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Failure  503  {object}  map[string]any
// @Router   /ready [get]
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Readiness(r.Context()); err != nil {
		h.logger.Error("readiness check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":   false,
			"message": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ready": true, "message": "queue store reachable"})
}

// Summary handles GET /api/v1/tenants/{id}/summary
//
// @Summary  Point-in-time CRM counters for a tenant
// @Tags     system
// @Produce  json
// @Param    id  path  string  true  "Tenant ID"
// @Success  200  {object}  domain.TenantSummary
// @Router   /api/v1/tenants/{id}/summary [get]
func (h *SystemHandler) Summary(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	summary, err := h.admin.Summary(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("tenant summary failed", zap.String("tenant_id", tenantID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load tenant summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
