package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/crm"
	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/repository"
)

// AdminService is the operator surface over the queue: dead-letter
// inspection and remediation, scheduling overrides, readiness, and tenant
// summary counters.
type AdminService struct {
	repo   repository.JobRepository
	crm    crm.Store
	logger *zap.Logger
}

func NewAdminService(repo repository.JobRepository, crmStore crm.Store, logger *zap.Logger) *AdminService {
	return &AdminService{repo: repo, crm: crmStore, logger: logger}
}

// ListDeadLetters returns terminally-failed jobs, newest first, with the
// total matching count for pagination.
func (s *AdminService) ListDeadLetters(ctx context.Context, f domain.DeadLetterFilter) ([]*domain.Job, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListDeadLetters(ctx, f)
}

// RequeueOne returns a dead-lettered job to the pending set with a full
// retry budget. False means the job does not exist or is not currently
// dead-lettered; that is a no-op, not an error.
func (s *AdminService) RequeueOne(ctx context.Context, jobID string) (bool, error) {
	ok, err := s.repo.RequeueOne(ctx, jobID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("dead-lettered job requeued", zap.String("job_id", jobID))
	}
	return ok, nil
}

// RequeueMany applies the RequeueOne transition to a filtered, paginated set
// of dead-lettered jobs.
func (s *AdminService) RequeueMany(ctx context.Context, f domain.DeadLetterFilter) (domain.RequeueResult, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	result, err := s.repo.RequeueMany(ctx, f, time.Now().UTC())
	if err != nil {
		return result, err
	}
	if result.Requeued > 0 {
		s.logger.Info("dead-lettered jobs requeued",
			zap.Int("matched", result.Matched), zap.Int("requeued", result.Requeued))
	}
	return result, nil
}

// ScheduleNow makes an existing job claimable on the next batch pass without
// touching its status or attempt count. False means the job does not exist.
func (s *AdminService) ScheduleNow(ctx context.Context, jobID string) (bool, error) {
	return s.repo.ScheduleNow(ctx, jobID, time.Now().UTC())
}

// Readiness reports whether the queue store is reachable. Callers gate
// enqueue and dispatch on this rather than silently dropping events.
func (s *AdminService) Readiness(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Summary returns the tenant's point-in-time CRM counters.
func (s *AdminService) Summary(ctx context.Context, tenantID string) (domain.TenantSummary, error) {
	return s.crm.Summary(ctx, tenantID)
}
