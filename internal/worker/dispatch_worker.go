package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/dispatcher"
)

// DispatchWorker drives the batch dispatcher on an interval. Each tick it
// drains the due backlog: ProcessBatch is called in a loop until a batch
// picks nothing.
//
// Multiple server instances may run this worker against the same store; the
// repository's atomic claim keeps them from executing the same attempt twice.
type DispatchWorker struct {
	dispatcher *dispatcher.Dispatcher
	ready      func(ctx context.Context) error
	limit      int
	interval   time.Duration
	logger     *zap.Logger
}

func NewDispatchWorker(
	d *dispatcher.Dispatcher,
	ready func(ctx context.Context) error,
	limit int,
	interval time.Duration,
	logger *zap.Logger,
) *DispatchWorker {
	return &DispatchWorker{dispatcher: d, ready: ready, limit: limit, interval: interval, logger: logger}
}

// Run ticks every interval and drains due jobs. Stops cleanly when ctx is
// cancelled.
func (w *DispatchWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("dispatch worker started",
		zap.Duration("interval", w.interval), zap.Int("batch_limit", w.limit))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("dispatch worker stopping")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *DispatchWorker) drain(ctx context.Context) {
	// Refuse to dispatch against an unreachable store; the backlog is
	// durable and will be picked up once the store is back.
	if err := w.ready(ctx); err != nil {
		w.logger.Error("store not ready, skipping dispatch cycle", zap.Error(err))
		return
	}

	for {
		result, err := w.dispatcher.ProcessBatch(ctx, w.limit)
		if err != nil {
			w.logger.Error("batch dispatch error", zap.Error(err))
			return
		}
		if result.Picked == 0 {
			return
		}
		w.logger.Info("batch dispatched",
			zap.Int("picked", result.Picked),
			zap.Int("processed", result.Processed),
			zap.Int("requeued", result.Requeued),
			zap.Int("dead_lettered", result.DeadLettered),
		)
	}
}
