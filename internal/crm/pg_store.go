package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estatehub/crm-ingest/internal/domain"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Store backed by PostgreSQL.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) UpsertContact(ctx context.Context, tenantID, email, name, phone string) (string, error) {
	// ON CONFLICT ... DO UPDATE (instead of DO NOTHING) so RETURNING always
	// yields the row id, including on the conflict path.
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (id, tenant_id, email, name, phone, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (tenant_id, email) DO UPDATE
		SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		uuid.New().String(), tenantID, email, name, phone, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert contact: %w", err)
	}
	return id, nil
}

func (s *pgStore) RecordLead(ctx context.Context, lead Lead) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leads (id, tenant_id, job_id, contact_id, source, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, job_id) DO NOTHING`,
		uuid.New().String(), lead.TenantID, lead.JobID, lead.ContactID,
		lead.Source, lead.Details, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record lead: %w", err)
	}
	return nil
}

func (s *pgStore) RecordActivity(ctx context.Context, activity Activity) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO activities (id, tenant_id, job_id, contact_id, kind, summary, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, job_id) DO NOTHING`,
		uuid.New().String(), activity.TenantID, activity.JobID, activity.ContactID,
		activity.Kind, activity.Summary, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

func (s *pgStore) Summary(ctx context.Context, tenantID string) (domain.TenantSummary, error) {
	var summary domain.TenantSummary
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM contacts   WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM leads      WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM activities WHERE tenant_id = $1)`,
		tenantID,
	).Scan(&summary.ContactCount, &summary.LeadCount, &summary.ActivityCount)
	if err != nil {
		return domain.TenantSummary{}, fmt.Errorf("tenant summary: %w", err)
	}
	return summary, nil
}
