package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/fingerprint"
	"github.com/estatehub/crm-ingest/internal/repository"
)

// IngestService is the enqueue gateway: it validates envelopes, computes
// their dedup fingerprint, and converts them into pending queue jobs.
// Ingestion is always asynchronous; no handler runs on this path.
type IngestService struct {
	repo   repository.JobRepository
	fp     *fingerprint.Fingerprinter
	logger *zap.Logger

	// Hooks for metrics — optional (nil = no-op).
	onAccepted  func(eventType domain.EventType)
	onDuplicate func(eventType domain.EventType)
}

func NewIngestService(
	repo repository.JobRepository,
	fp *fingerprint.Fingerprinter,
	logger *zap.Logger,
	onAccepted func(domain.EventType),
	onDuplicate func(domain.EventType),
) *IngestService {
	if onAccepted == nil {
		onAccepted = func(domain.EventType) {}
	}
	if onDuplicate == nil {
		onDuplicate = func(domain.EventType) {}
	}
	return &IngestService{
		repo: repo, fp: fp, logger: logger,
		onAccepted: onAccepted, onDuplicate: onDuplicate,
	}
}

// Enqueue accepts an envelope or reports the duplicate it resubmits.
//
// The job insert and the dedup ledger entry are one transaction inside the
// repository: a resubmission either sees the committed original (duplicate)
// or creates the only job for that fingerprint. Partial writes cannot occur.
func (s *IngestService) Enqueue(ctx context.Context, env *domain.Envelope) (domain.EnqueueResult, error) {
	if err := env.Validate(); err != nil {
		return domain.EnqueueResult{}, err
	}

	key, err := s.fp.Key(env)
	if err != nil {
		return domain.EnqueueResult{}, fmt.Errorf("fingerprint envelope: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:            uuid.New().String(),
		TenantID:      env.Tenant.ID,
		EventType:     env.EventType,
		EventVersion:  env.Version,
		Payload:       env.Payload,
		DedupKey:      key,
		Status:        domain.StatusPending,
		AttemptCount:  0,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.repo.Insert(ctx, job)
	if errors.Is(err, repository.ErrDuplicateKey) {
		existing, lookupErr := s.repo.GetByDedupKey(ctx, key)
		if lookupErr != nil {
			return domain.EnqueueResult{}, fmt.Errorf("lookup duplicate job: %w", lookupErr)
		}
		s.onDuplicate(env.EventType)
		s.logger.Info("duplicate submission",
			zap.String("tenant_id", env.Tenant.ID),
			zap.String("event_type", string(env.EventType)),
			zap.String("job_id", existing.ID),
		)
		return domain.EnqueueResult{Accepted: false, Duplicate: true, JobID: existing.ID}, nil
	}
	if err != nil {
		return domain.EnqueueResult{}, fmt.Errorf("persist job: %w", err)
	}

	s.onAccepted(env.EventType)
	s.logger.Info("event accepted",
		zap.String("tenant_id", env.Tenant.ID),
		zap.String("event_type", string(env.EventType)),
		zap.String("job_id", job.ID),
	)
	return domain.EnqueueResult{Accepted: true, Duplicate: false, JobID: job.ID}, nil
}
