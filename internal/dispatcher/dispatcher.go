package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estatehub/crm-ingest/internal/backoff"
	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Nil hooks are replaced with no-ops so the dispatcher stays metrics-agnostic.
type MetricHooks struct {
	OnProcessed    func(eventType domain.EventType, latency time.Duration)
	OnRequeued     func(eventType domain.EventType)
	OnDeadLettered func(eventType domain.EventType)
}

func (h *MetricHooks) fill() {
	if h.OnProcessed == nil {
		h.OnProcessed = func(domain.EventType, time.Duration) {}
	}
	if h.OnRequeued == nil {
		h.OnRequeued = func(domain.EventType) {}
	}
	if h.OnDeadLettered == nil {
		h.OnDeadLettered = func(domain.EventType) {}
	}
}

// Dispatcher claims due jobs in batches and drives each through the
// pending -> processing -> {succeeded | pending | dead_letter} state machine.
// Multiple Dispatcher instances may run concurrently against the same store;
// claim atomicity lives in the repository.
type Dispatcher struct {
	repo           repository.JobRepository
	registry       *Registry
	policy         backoff.Policy
	maxAttempts    int
	handlerTimeout time.Duration
	logger         *zap.Logger
	hooks          MetricHooks
}

func New(
	repo repository.JobRepository,
	registry *Registry,
	policy backoff.Policy,
	maxAttempts int,
	handlerTimeout time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Dispatcher {
	hooks.fill()
	return &Dispatcher{
		repo:           repo,
		registry:       registry,
		policy:         policy,
		maxAttempts:    maxAttempts,
		handlerTimeout: handlerTimeout,
		logger:         logger,
		hooks:          hooks,
	}
}

// ProcessBatch claims up to limit due jobs and executes their handlers in
// parallel, bounded by limit. Picked == 0 means the active backlog is
// drained; drain loops stop on that signal.
//
// The returned counts always satisfy Picked = Processed + Requeued +
// DeadLettered unless the context was cancelled mid-batch, in which case
// unfinished jobs stay in processing for the recovery sweep to reclaim.
func (d *Dispatcher) ProcessBatch(ctx context.Context, limit int) (domain.BatchResult, error) {
	now := time.Now().UTC()
	jobs, err := d.repo.ClaimDue(ctx, limit, now)
	if err != nil {
		return domain.BatchResult{}, err
	}

	var processed, requeued, deadLettered atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			switch d.execute(gctx, job) {
			case outcomeSucceeded:
				processed.Add(1)
			case outcomeRequeued:
				requeued.Add(1)
			case outcomeDeadLettered:
				deadLettered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // per-job errors are converted into scheduling state

	result := domain.BatchResult{
		Picked:       len(jobs),
		Processed:    int(processed.Load()),
		Requeued:     int(requeued.Load()),
		DeadLettered: int(deadLettered.Load()),
	}
	result.Failed = result.Requeued + result.DeadLettered
	return result, nil
}

type outcome int

const (
	outcomeAbandoned outcome = iota // ctx cancelled, job left in processing
	outcomeSucceeded
	outcomeRequeued
	outcomeDeadLettered
)

func (d *Dispatcher) execute(ctx context.Context, job *domain.Job) outcome {
	start := time.Now()
	log := d.logger.With(
		zap.String("job_id", job.ID),
		zap.String("tenant_id", job.TenantID),
		zap.String("event_type", string(job.EventType)),
		zap.Int("attempt", job.AttemptCount),
	)

	err := d.invoke(ctx, job)

	if ctx.Err() != nil {
		// Batch aborted mid-flight: leave the job in processing; the
		// recovery sweep returns it to the claimable set.
		log.Warn("batch cancelled during attempt", zap.Error(ctx.Err()))
		return outcomeAbandoned
	}

	now := time.Now().UTC()
	if err == nil {
		if markErr := d.repo.MarkSucceeded(ctx, job.ID, now); markErr != nil {
			log.Error("failed to mark job succeeded", zap.Error(markErr))
			return outcomeAbandoned
		}
		d.hooks.OnProcessed(job.EventType, time.Since(start))
		log.Info("job processed", zap.Duration("latency", time.Since(start)))
		return outcomeSucceeded
	}

	if job.AttemptCount < d.maxAttempts {
		next := d.policy.NextAttemptAt(now, job.AttemptCount)
		if schedErr := d.repo.ScheduleRetry(ctx, job.ID, next, err.Error()); schedErr != nil {
			log.Error("failed to schedule retry", zap.Error(schedErr))
			return outcomeAbandoned
		}
		d.hooks.OnRequeued(job.EventType)
		log.Warn("attempt failed, backing off",
			zap.Error(err), zap.Time("next_attempt_at", next))
		return outcomeRequeued
	}

	if dlErr := d.repo.MarkDeadLettered(ctx, job.ID, now, err.Error()); dlErr != nil {
		log.Error("failed to dead-letter job", zap.Error(dlErr))
		return outcomeAbandoned
	}
	d.hooks.OnDeadLettered(job.EventType)
	log.Error("retries exhausted, job dead-lettered", zap.Error(err))
	return outcomeDeadLettered
}

// invoke runs the registered handler under the per-attempt timeout.
// A timeout counts as a handler failure.
func (d *Dispatcher) invoke(ctx context.Context, job *domain.Job) error {
	handler, ok := d.registry.Get(job.EventType)
	if !ok {
		return domain.ErrNoHandler
	}

	hctx, cancel := context.WithTimeout(ctx, d.handlerTimeout)
	defer cancel()
	return handler.Handle(hctx, job)
}
