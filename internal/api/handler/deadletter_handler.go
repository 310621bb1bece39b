package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/service"
)

// DeadLetterHandler exposes the operator remediation surface over
// terminally-failed jobs.
type DeadLetterHandler struct {
	svc    *service.AdminService
	logger *zap.Logger
}

func NewDeadLetterHandler(svc *service.AdminService, logger *zap.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/dead-letters
//
// @Summary  List dead-lettered jobs, newest first
// @Tags     dead-letters
// @Produce  json
// @Param    tenant_id  query  string  false  "Filter by tenant"
// @Param    limit      query  int     false  "Items per page (default 20, max 100)"
// @Param    offset     query  int     false  "Offset (default 0)"
// @Success  200  {object}  map[string]any
// @Router   /api/v1/dead-letters [get]
func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseDeadLetterFilter(r)
	jobs, total, err := h.svc.ListDeadLetters(r.Context(), filter)
	if err != nil {
		h.logger.Error("list dead letters failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":   jobs,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// RequeueOne handles POST /api/v1/dead-letters/{id}/requeue
//
// @Summary  Return one dead-lettered job to the pending set
// @Tags     dead-letters
// @Produce  json
// @Param    id  path  string  true  "Job UUID"
// @Success  200  {object}  map[string]bool
// @Router   /api/v1/dead-letters/{id}/requeue [post]
func (h *DeadLetterHandler) RequeueOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	requeued, err := h.svc.RequeueOne(r.Context(), id)
	if err != nil {
		h.logger.Error("requeue failed", zap.String("job_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to requeue job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"requeued": requeued})
}

// RequeueMany handles POST /api/v1/dead-letters/requeue
//
// @Summary  Return a filtered page of dead-lettered jobs to the pending set
// @Tags     dead-letters
// @Produce  json
// @Param    tenant_id  query  string  false  "Filter by tenant"
// @Param    limit      query  int     false  "Items per page (default 20, max 100)"
// @Param    offset     query  int     false  "Offset (default 0)"
// @Success  200  {object}  domain.RequeueResult
// @Router   /api/v1/dead-letters/requeue [post]
func (h *DeadLetterHandler) RequeueMany(w http.ResponseWriter, r *http.Request) {
	filter := parseDeadLetterFilter(r)
	result, err := h.svc.RequeueMany(r.Context(), filter)
	if err != nil {
		h.logger.Error("bulk requeue failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to requeue jobs")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func parseDeadLetterFilter(r *http.Request) domain.DeadLetterFilter {
	q := r.URL.Query()
	filter := domain.DeadLetterFilter{Limit: 20}

	if t := q.Get("tenant_id"); t != "" {
		filter.TenantID = &t
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil && o > 0 {
		filter.Offset = o
	}
	return filter
}
