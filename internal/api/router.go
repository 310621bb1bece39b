package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/api/handler"
	apimw "github.com/estatehub/crm-ingest/internal/api/middleware"
	"github.com/estatehub/crm-ingest/internal/dispatcher"
	"github.com/estatehub/crm-ingest/internal/ratelimiter"
	"github.com/estatehub/crm-ingest/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	ingest *service.IngestService,
	admin *service.AdminService,
	disp *dispatcher.Dispatcher,
	limiter *ratelimiter.TenantLimiters,
	batchLimit int,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	eh := handler.NewEventHandler(ingest, limiter, logger)
	dh := handler.NewDeadLetterHandler(admin, logger)
	qh := handler.NewQueueHandler(disp, admin, batchLimit, logger)
	sh := handler.NewSystemHandler(admin, logger)

	// --- routes ---
	r.Get("/health", sh.Health)
	r.Get("/ready", sh.Ready)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", eh.Enqueue)

		// Dead letters — note: /requeue must be registered before /{id}
		// so chi does not treat the literal string "requeue" as an ID.
		r.Post("/dead-letters/requeue", dh.RequeueMany)
		r.Get("/dead-letters", dh.List)
		r.Post("/dead-letters/{id}/requeue", dh.RequeueOne)

		r.Post("/queue/process", qh.ProcessBatch)
		r.Post("/jobs/{id}/schedule-now", qh.ScheduleNow)

		r.Get("/tenants/{id}/summary", sh.Summary)
	})

	return r
}
