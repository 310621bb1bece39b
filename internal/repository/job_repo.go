package repository

import (
	"context"
	"errors"
	"time"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// ErrDuplicateKey is returned by Insert when the dedup ledger already holds
// an entry for the job's dedup key. The caller looks up the original job and
// reports a duplicate submission.
var ErrDuplicateKey = errors.New("dedup key already exists")

// JobRepository defines all persistence operations for queue jobs and the
// dedup ledger. The pgx implementation is in pg_job_repo.go.
// Tests use a hand-written mock (mock_job_repo.go).
//
// All state transitions go through these methods; nothing outside this
// interface mutates job rows.
type JobRepository interface {
	// Insert persists a new job and its dedup ledger entry in one
	// transaction. Returns ErrDuplicateKey if the ledger already has an
	// entry for job.DedupKey; in that case nothing is written.
	Insert(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	GetByDedupKey(ctx context.Context, key string) (*domain.Job, error)

	// ClaimDue atomically claims up to limit pending jobs whose
	// next_attempt_at has passed, oldest first. Claimed jobs are flipped to
	// processing and their attempt_count incremented as part of the claim,
	// so a concurrent ClaimDue can never pick the same job for the same
	// attempt.
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.Job, error)

	MarkSucceeded(ctx context.Context, id string, now time.Time) error
	ScheduleRetry(ctx context.Context, id string, nextAttempt time.Time, errMsg string) error
	MarkDeadLettered(ctx context.Context, id string, now time.Time, errMsg string) error

	ListDeadLetters(ctx context.Context, f domain.DeadLetterFilter) ([]*domain.Job, int, error)
	RequeueOne(ctx context.Context, id string, now time.Time) (bool, error)
	RequeueMany(ctx context.Context, f domain.DeadLetterFilter, now time.Time) (domain.RequeueResult, error)
	ScheduleNow(ctx context.Context, id string, now time.Time) (bool, error)

	// RecoverStuck returns jobs stuck in processing since before cutoff to
	// the pending set, or dead-letters them if their attempt budget is
	// already spent. The abandoned attempt was counted when it was claimed,
	// so attempt_count is left as is.
	RecoverStuck(ctx context.Context, cutoff time.Time, maxAttempts int, now time.Time) (int, error)

	// Ping reports whether the underlying store is reachable.
	Ping(ctx context.Context) error
}
