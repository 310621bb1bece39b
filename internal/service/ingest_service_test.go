package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/fingerprint"
	"github.com/estatehub/crm-ingest/internal/repository"
	"github.com/estatehub/crm-ingest/internal/service"
)

func newIngest() (*service.IngestService, *repository.MockJobRepository) {
	repo := repository.NewMockJobRepository()
	svc := service.NewIngestService(repo, fingerprint.New(false), zap.NewNop(), nil, nil)
	return svc, repo
}

func leadEnvelope(email string) *domain.Envelope {
	payload, _ := json.Marshal(map[string]string{
		"name":  "Jane Doe",
		"email": email,
		"phone": "+15550100",
	})
	return &domain.Envelope{
		EventType:  domain.EventLeadSubmitted,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Tenant:     domain.Tenant{ID: "tenant-1", Slug: "acme", Domain: "acme.example.com"},
		Payload:    payload,
	}
}

func TestIngestService_Enqueue(t *testing.T) {
	svc, repo := newIngest()
	ctx := context.Background()

	result, err := svc.Enqueue(ctx, leadEnvelope("jane@example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted || result.Duplicate {
		t.Fatalf("expected accepted=true duplicate=false, got %+v", result)
	}
	if result.JobID == "" {
		t.Fatal("expected a non-empty job id")
	}

	job, err := repo.GetByID(ctx, result.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if job.Status != domain.StatusPending {
		t.Fatalf("expected status=pending, got %s", job.Status)
	}
	if job.AttemptCount != 0 {
		t.Fatalf("expected attempt_count=0, got %d", job.AttemptCount)
	}
	if job.NextAttemptAt.After(time.Now().UTC()) {
		t.Fatal("new job must be immediately claimable")
	}
}

func TestIngestService_Enqueue_DuplicateSubmission(t *testing.T) {
	svc, repo := newIngest()
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, leadEnvelope("jane@example.com"))
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	// Resubmission of the same logical event, later timestamp.
	resubmit := leadEnvelope("jane@example.com")
	resubmit.OccurredAt = resubmit.OccurredAt.Add(time.Minute)

	second, err := svc.Enqueue(ctx, resubmit)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if second.Accepted || !second.Duplicate {
		t.Fatalf("expected accepted=false duplicate=true, got %+v", second)
	}
	if second.JobID != first.JobID {
		t.Fatal("duplicate must reference the original job")
	}

	// Exactly one job exists for the fingerprint.
	if _, err := repo.GetByID(ctx, first.JobID); err != nil {
		t.Fatalf("original job missing: %v", err)
	}
}

func TestIngestService_Enqueue_DistinctEventsAccepted(t *testing.T) {
	svc, _ := newIngest()
	ctx := context.Background()

	a, _ := svc.Enqueue(ctx, leadEnvelope("jane@example.com"))
	b, err := svc.Enqueue(ctx, leadEnvelope("john@example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Accepted || b.JobID == a.JobID {
		t.Fatalf("different payloads must create distinct jobs: %+v vs %+v", a, b)
	}
}

func TestIngestService_Enqueue_ValidationFailures(t *testing.T) {
	svc, _ := newIngest()
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(*domain.Envelope)
		expected error
	}{
		{"unknown event type", func(e *domain.Envelope) { e.EventType = "page-viewed" }, domain.ErrInvalidEventType},
		{"zero version", func(e *domain.Envelope) { e.Version = 0 }, domain.ErrInvalidVersion},
		{"missing tenant", func(e *domain.Envelope) { e.Tenant.ID = "" }, domain.ErrInvalidTenant},
		{"empty payload", func(e *domain.Envelope) { e.Payload = nil }, domain.ErrInvalidPayload},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := leadEnvelope("jane@example.com")
			tc.mutate(env)
			if _, err := svc.Enqueue(ctx, env); err != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestIngestService_Enqueue_StoreError(t *testing.T) {
	svc, repo := newIngest()
	repo.InsertErr = context.DeadlineExceeded

	if _, err := svc.Enqueue(context.Background(), leadEnvelope("jane@example.com")); err == nil {
		t.Fatal("expected store error to surface")
	}
}
