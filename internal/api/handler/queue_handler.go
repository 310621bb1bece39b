package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/dispatcher"
	"github.com/estatehub/crm-ingest/internal/service"
)

// QueueHandler exposes operator controls over the dispatcher: running a
// batch on demand and forcing a job's next attempt time to now.
type QueueHandler struct {
	dispatcher   *dispatcher.Dispatcher
	admin        *service.AdminService
	defaultLimit int
	logger       *zap.Logger
}

func NewQueueHandler(d *dispatcher.Dispatcher, admin *service.AdminService, defaultLimit int, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{dispatcher: d, admin: admin, defaultLimit: defaultLimit, logger: logger}
}

// ProcessBatch handles POST /api/v1/queue/process
//
// @Summary  Claim and execute one batch of due jobs
// @Tags     queue
// @Produce  json
// @Param    limit  query  int  false  "Maximum jobs to claim (default from config)"
// @Success  200  {object}  domain.BatchResult
// @Router   /api/v1/queue/process [post]
func (h *QueueHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	limit := h.defaultLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	result, err := h.dispatcher.ProcessBatch(r.Context(), limit)
	if err != nil {
		h.logger.Error("manual batch failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to process batch")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ScheduleNow handles POST /api/v1/jobs/{id}/schedule-now
//
// @Summary  Make a job claimable on the next batch pass
// @Tags     queue
// @Produce  json
// @Param    id  path  string  true  "Job UUID"
// @Success  200  {object}  map[string]bool
// @Router   /api/v1/jobs/{id}/schedule-now [post]
func (h *QueueHandler) ScheduleNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scheduled, err := h.admin.ScheduleNow(r.Context(), id)
	if err != nil {
		h.logger.Error("schedule-now failed", zap.String("job_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to schedule job")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"scheduled": scheduled})
}
