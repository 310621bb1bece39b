package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/estatehub/crm-ingest/internal/api/middleware"
	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/ratelimiter"
	"github.com/estatehub/crm-ingest/internal/service"
)

// EventHandler handles the producer-facing enqueue endpoint.
type EventHandler struct {
	svc     *service.IngestService
	limiter *ratelimiter.TenantLimiters
	logger  *zap.Logger
}

func NewEventHandler(svc *service.IngestService, limiter *ratelimiter.TenantLimiters, logger *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, limiter: limiter, logger: logger}
}

// Enqueue handles POST /api/v1/events
//
// @Summary     Submit an event envelope for ingestion
// @Tags        events
// @Accept      json
// @Produce     json
// @Param       body  body      domain.Envelope  true  "Event envelope"
// @Success     202   {object}  domain.EnqueueResult  "Accepted"
// @Success     200   {object}  domain.EnqueueResult  "Duplicate: references the original job"
// @Failure     422   {object}  map[string]string
// @Failure     429   {object}  map[string]string
// @Router      /api/v1/events [post]
func (h *EventHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var env domain.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if env.Tenant.ID != "" && !h.limiter.Allow(env.Tenant.ID) {
		mapError(w, domain.ErrRateLimited)
		return
	}

	result, err := h.svc.Enqueue(r.Context(), &env)
	if err != nil {
		h.logger.Warn("enqueue failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}
