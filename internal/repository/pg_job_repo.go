package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estatehub/crm-ingest/internal/domain"
)

type pgJobRepository struct {
	pool *pgxpool.Pool
}

// NewPgJobRepository returns a JobRepository backed by PostgreSQL.
func NewPgJobRepository(pool *pgxpool.Pool) JobRepository {
	return &pgJobRepository{pool: pool}
}

const jobColumns = `id, tenant_id, event_type, event_version, payload, dedup_key,
	       status, attempt_count, last_error, next_attempt_at, dead_lettered_at,
	       created_at, updated_at`

func (r *pgJobRepository) Insert(ctx context.Context, job *domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The ledger entry goes first: its primary key is the uniqueness
	// constraint that makes check-then-insert race-free.
	_, err = tx.Exec(ctx, `
		INSERT INTO dedup_entries (dedup_key, job_id) VALUES ($1, $2)`,
		job.DedupKey, job.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert dedup entry: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_jobs
			(id, tenant_id, event_type, event_version, payload, dedup_key,
			 status, attempt_count, next_attempt_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.ID, job.TenantID, job.EventType, job.EventVersion, job.Payload, job.DedupKey,
		job.Status, job.AttemptCount, job.NextAttemptAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

func (r *pgJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM queue_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *pgJobRepository) GetByDedupKey(ctx context.Context, key string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM queue_jobs WHERE dedup_key = $1`, key)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *pgJobRepository) ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.Job, error) {
	// SKIP LOCKED lets concurrent dispatchers claim disjoint sets without
	// blocking each other; the status flip and attempt increment happen in
	// the same statement as the selection, so a job is never claimable twice
	// for the same attempt.
	rows, err := r.pool.Query(ctx, `
		UPDATE queue_jobs
		SET status = 'processing', attempt_count = attempt_count + 1, updated_at = $2
		WHERE id IN (
			SELECT id FROM queue_jobs
			WHERE status = 'pending' AND next_attempt_at <= $2
			ORDER BY next_attempt_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, limit, now)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *pgJobRepository) MarkSucceeded(ctx context.Context, id string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_jobs
		SET status = 'succeeded', last_error = NULL, updated_at = $2
		WHERE id = $1`, id, now)
	return err
}

func (r *pgJobRepository) ScheduleRetry(ctx context.Context, id string, nextAttempt time.Time, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_jobs
		SET status = 'pending', last_error = $2, next_attempt_at = $3, updated_at = NOW()
		WHERE id = $1`, id, errMsg, nextAttempt)
	return err
}

func (r *pgJobRepository) MarkDeadLettered(ctx context.Context, id string, now time.Time, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE queue_jobs
		SET status = 'dead_letter', last_error = $2, dead_lettered_at = $3, updated_at = $3
		WHERE id = $1`, id, errMsg, now)
	return err
}

func (r *pgJobRepository) ListDeadLetters(ctx context.Context, f domain.DeadLetterFilter) ([]*domain.Job, int, error) {
	where := " WHERE status = 'dead_letter'"
	args := []any{}
	if f.TenantID != nil {
		args = append(args, *f.TenantID)
		where += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM queue_jobs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dead letters: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT `+jobColumns+`
		FROM queue_jobs%s
		ORDER BY dead_lettered_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	return jobs, total, err
}

func (r *pgJobRepository) RequeueOne(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_jobs
		SET status = 'pending', attempt_count = 0, last_error = NULL,
		    dead_lettered_at = NULL, next_attempt_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'dead_letter'`, id, now)
	if err != nil {
		return false, fmt.Errorf("requeue job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgJobRepository) RequeueMany(ctx context.Context, f domain.DeadLetterFilter, now time.Time) (domain.RequeueResult, error) {
	jobs, _, err := r.ListDeadLetters(ctx, f)
	if err != nil {
		return domain.RequeueResult{}, err
	}

	result := domain.RequeueResult{Matched: len(jobs)}
	for _, job := range jobs {
		ok, err := r.RequeueOne(ctx, job.ID, now)
		if err != nil {
			return result, err
		}
		if ok {
			result.Requeued++
		}
	}
	return result, nil
}

func (r *pgJobRepository) ScheduleNow(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_jobs SET next_attempt_at = $2, updated_at = $2
		WHERE id = $1`, id, now)
	if err != nil {
		return false, fmt.Errorf("schedule job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgJobRepository) RecoverStuck(ctx context.Context, cutoff time.Time, maxAttempts int, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE queue_jobs
		SET status = CASE WHEN attempt_count >= $3 THEN 'dead_letter' ELSE 'pending' END,
		    dead_lettered_at = CASE WHEN attempt_count >= $3 THEN $2 ELSE NULL END,
		    last_error = 'attempt abandoned: processing grace period exceeded',
		    next_attempt_at = $2, updated_at = $2
		WHERE status = 'processing' AND updated_at <= $1`, cutoff, now, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("recover stuck jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgJobRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// ---- helpers ----

// scanJob reads a single job row from any pgx row type.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.TenantID, &j.EventType, &j.EventVersion, &j.Payload, &j.DedupKey,
		&j.Status, &j.AttemptCount, &j.LastError, &j.NextAttemptAt, &j.DeadLetteredAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var result []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}
