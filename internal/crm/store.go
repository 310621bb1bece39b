package crm

import (
	"context"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// Lead is a sales opportunity created from an ingested event.
// JobID ties it to the queue job that produced it, which is what makes a
// retried handler attempt an upsert instead of a second insert.
type Lead struct {
	TenantID  string
	JobID     string
	ContactID string
	Source    string
	Details   string
}

// Activity is a timeline entry attached to a contact.
type Activity struct {
	TenantID  string
	JobID     string
	ContactID string
	Kind      string
	Summary   string
}

// Store is the CRM write layer the event handlers deliver into. The queue
// does not own this data; Summary is the read view operators and tests use
// to assert side-effect deltas.
//
// All writes are idempotent: contacts upsert on (tenant, email), leads and
// activities upsert on (tenant, job), so at-least-once handler invocation is
// safe.
type Store interface {
	UpsertContact(ctx context.Context, tenantID, email, name, phone string) (string, error)
	RecordLead(ctx context.Context, lead Lead) error
	RecordActivity(ctx context.Context, activity Activity) error
	Summary(ctx context.Context, tenantID string) (domain.TenantSummary, error)
}
