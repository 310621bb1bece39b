package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/repository"
)

// RecoveryWorker sweeps for jobs stuck in processing past the grace period —
// a dispatcher crashed or a batch was aborted mid-flight — and returns them
// to the claimable set (or dead-letters them if their attempt budget is
// spent). Without this sweep such jobs would be permanently unclaimable.
type RecoveryWorker struct {
	repo        repository.JobRepository
	grace       time.Duration
	maxAttempts int
	interval    time.Duration
	logger      *zap.Logger
	onRecovered func(count int)
}

func NewRecoveryWorker(
	repo repository.JobRepository,
	grace time.Duration,
	maxAttempts int,
	interval time.Duration,
	logger *zap.Logger,
	onRecovered func(int),
) *RecoveryWorker {
	if onRecovered == nil {
		onRecovered = func(int) {}
	}
	return &RecoveryWorker{
		repo: repo, grace: grace, maxAttempts: maxAttempts,
		interval: interval, logger: logger, onRecovered: onRecovered,
	}
}

// Run ticks every interval and sweeps stuck jobs. Stops cleanly when ctx is
// cancelled.
func (w *RecoveryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("recovery worker started",
		zap.Duration("interval", w.interval), zap.Duration("grace", w.grace))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("recovery worker stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RecoveryWorker) sweep(ctx context.Context) {
	now := time.Now().UTC()
	recovered, err := w.repo.RecoverStuck(ctx, now.Add(-w.grace), w.maxAttempts, now)
	if err != nil {
		w.logger.Error("recovery sweep error", zap.Error(err))
		return
	}
	if recovered > 0 {
		w.onRecovered(recovered)
		w.logger.Warn("recovered stuck jobs", zap.Int("count", recovered))
	}
}
