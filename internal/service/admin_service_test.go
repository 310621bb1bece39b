package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/backoff"
	"github.com/estatehub/crm-ingest/internal/crm"
	"github.com/estatehub/crm-ingest/internal/dispatcher"
	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/fingerprint"
	"github.com/estatehub/crm-ingest/internal/repository"
	"github.com/estatehub/crm-ingest/internal/service"
)

// seedDeadLetter enqueues an event and drives it to dead_letter through a
// dispatcher whose handler always fails.
func seedDeadLetter(t *testing.T, repo *repository.MockJobRepository, tenantID, email string) string {
	t.Helper()
	ctx := context.Background()

	ingest := service.NewIngestService(repo, fingerprint.New(false), zap.NewNop(), nil, nil)
	payload, _ := json.Marshal(map[string]string{"email": email})
	result, err := ingest.Enqueue(ctx, &domain.Envelope{
		EventType:  domain.EventLeadSubmitted,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Tenant:     domain.Tenant{ID: tenantID},
		Payload:    payload,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	registry := dispatcher.NewRegistry()
	registry.Register(domain.EventLeadSubmitted, dispatcher.HandlerFunc(func(context.Context, *domain.Job) error {
		return errors.New("permanent failure")
	}))
	policy := backoff.Policy{Base: time.Nanosecond, Multiplier: 1, Max: time.Nanosecond}
	d := dispatcher.New(repo, registry, policy, 1, time.Second, zap.NewNop(), dispatcher.MetricHooks{})

	if _, err := d.ProcessBatch(ctx, 10); err != nil {
		t.Fatalf("process batch: %v", err)
	}

	job, _ := repo.GetByID(ctx, result.JobID)
	if job.Status != domain.StatusDeadLetter {
		t.Fatalf("seed job expected dead_letter, got %s", job.Status)
	}
	return result.JobID
}

func TestAdminService_RequeueOne_ResetsLifecycle(t *testing.T) {
	repo := repository.NewMockJobRepository()
	admin := service.NewAdminService(repo, crm.NewMemStore(), zap.NewNop())
	ctx := context.Background()

	jobID := seedDeadLetter(t, repo, "tenant-1", "jane@example.com")

	ok, err := admin.RequeueOne(ctx, jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected requeue to succeed")
	}

	job, _ := repo.GetByID(ctx, jobID)
	if job.Status != domain.StatusPending {
		t.Fatalf("expected status=pending, got %s", job.Status)
	}
	if job.AttemptCount != 0 {
		t.Fatalf("expected attempt_count reset to 0, got %d", job.AttemptCount)
	}
	if job.LastError != nil || job.DeadLetteredAt != nil {
		t.Fatal("expected last_error and dead_lettered_at cleared")
	}

	// The requeued job is claimable on the next batch pass.
	registry := dispatcher.NewRegistry()
	registry.Register(domain.EventLeadSubmitted, dispatcher.HandlerFunc(func(context.Context, *domain.Job) error {
		return nil
	}))
	d := dispatcher.New(repo, registry, backoff.Default(), 3, time.Second, zap.NewNop(), dispatcher.MetricHooks{})
	result, err := d.ProcessBatch(ctx, 10)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected requeued job to process, got %+v", result)
	}
}

func TestAdminService_RequeueOne_NoOpCases(t *testing.T) {
	repo := repository.NewMockJobRepository()
	admin := service.NewAdminService(repo, crm.NewMemStore(), zap.NewNop())
	ctx := context.Background()

	t.Run("missing job", func(t *testing.T) {
		ok, err := admin.RequeueOne(ctx, "nonexistent-id")
		if err != nil || ok {
			t.Fatalf("expected ok=false err=nil, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("job not dead-lettered", func(t *testing.T) {
		ingest := service.NewIngestService(repo, fingerprint.New(false), zap.NewNop(), nil, nil)
		payload, _ := json.Marshal(map[string]string{"email": "pending@example.com"})
		result, _ := ingest.Enqueue(ctx, &domain.Envelope{
			EventType:  domain.EventLeadSubmitted,
			Version:    1,
			OccurredAt: time.Now().UTC(),
			Tenant:     domain.Tenant{ID: "tenant-1"},
			Payload:    payload,
		})

		ok, err := admin.RequeueOne(ctx, result.JobID)
		if err != nil || ok {
			t.Fatalf("expected ok=false err=nil for pending job, got ok=%v err=%v", ok, err)
		}
	})
}

func TestAdminService_RequeueMany_TenantFilter(t *testing.T) {
	repo := repository.NewMockJobRepository()
	admin := service.NewAdminService(repo, crm.NewMemStore(), zap.NewNop())
	ctx := context.Background()

	seedDeadLetter(t, repo, "tenant-1", "a@example.com")
	seedDeadLetter(t, repo, "tenant-1", "b@example.com")
	seedDeadLetter(t, repo, "tenant-2", "c@example.com")

	tenant := "tenant-1"
	result, err := admin.RequeueMany(ctx, domain.DeadLetterFilter{TenantID: &tenant})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched != 2 || result.Requeued != 2 {
		t.Fatalf("expected 2 matched and requeued for tenant-1, got %+v", result)
	}

	// tenant-2's job is untouched.
	other := "tenant-2"
	jobs, total, err := admin.ListDeadLetters(ctx, domain.DeadLetterFilter{TenantID: &other})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(jobs) != 1 {
		t.Fatalf("expected tenant-2's dead letter to remain, got total=%d", total)
	}
}

func TestAdminService_ListDeadLetters_NewestFirst(t *testing.T) {
	repo := repository.NewMockJobRepository()
	admin := service.NewAdminService(repo, crm.NewMemStore(), zap.NewNop())
	ctx := context.Background()

	first := seedDeadLetter(t, repo, "tenant-1", "a@example.com")
	time.Sleep(2 * time.Millisecond)
	second := seedDeadLetter(t, repo, "tenant-1", "b@example.com")

	jobs, total, err := admin.ListDeadLetters(ctx, domain.DeadLetterFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total=2, got %d", total)
	}
	if jobs[0].ID != second || jobs[1].ID != first {
		t.Fatal("expected newest dead letter first")
	}
}

func TestAdminService_ScheduleNow(t *testing.T) {
	repo := repository.NewMockJobRepository()
	admin := service.NewAdminService(repo, crm.NewMemStore(), zap.NewNop())
	ctx := context.Background()

	ingest := service.NewIngestService(repo, fingerprint.New(false), zap.NewNop(), nil, nil)
	payload, _ := json.Marshal(map[string]string{"email": "jane@example.com"})
	result, _ := ingest.Enqueue(ctx, &domain.Envelope{
		EventType:  domain.EventLeadSubmitted,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		Tenant:     domain.Tenant{ID: "tenant-1"},
		Payload:    payload,
	})

	// Push the job into the future, then force it back to now.
	_ = repo.ScheduleRetry(ctx, result.JobID, time.Now().UTC().Add(time.Hour), "transient")
	before, _ := repo.GetByID(ctx, result.JobID)

	ok, err := admin.ScheduleNow(ctx, result.JobID)
	if err != nil || !ok {
		t.Fatalf("expected ok=true err=nil, got ok=%v err=%v", ok, err)
	}

	after, _ := repo.GetByID(ctx, result.JobID)
	if !after.NextAttemptAt.Before(before.NextAttemptAt) {
		t.Fatal("expected next_attempt_at pulled back to now")
	}
	if after.Status != before.Status || after.AttemptCount != before.AttemptCount {
		t.Fatal("schedule-now must not touch status or attempt count")
	}

	t.Run("missing job", func(t *testing.T) {
		ok, err := admin.ScheduleNow(ctx, "nonexistent-id")
		if err != nil || ok {
			t.Fatalf("expected ok=false err=nil, got ok=%v err=%v", ok, err)
		}
	})
}

func TestAdminService_Readiness(t *testing.T) {
	repo := repository.NewMockJobRepository()
	admin := service.NewAdminService(repo, crm.NewMemStore(), zap.NewNop())

	if err := admin.Readiness(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}

	repo.PingErr = errors.New("connection refused")
	if err := admin.Readiness(context.Background()); err == nil {
		t.Fatal("expected readiness failure when the store is unreachable")
	}
}

// TestPipeline_SummaryDeltas drives the full path: enqueue a lead-submitted
// and a valuation-requested envelope for the same tenant and contact, run
// one batch, and assert the CRM counter deltas.
func TestPipeline_SummaryDeltas(t *testing.T) {
	repo := repository.NewMockJobRepository()
	store := crm.NewMemStore()
	admin := service.NewAdminService(repo, store, zap.NewNop())
	ingest := service.NewIngestService(repo, fingerprint.New(false), zap.NewNop(), nil, nil)
	ctx := context.Background()

	before, err := admin.Summary(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("summary before: %v", err)
	}

	leadPayload, _ := json.Marshal(map[string]string{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"message": "Interested in the listing on Elm St",
		"source":  "landing-page",
	})
	valuationPayload, _ := json.Marshal(map[string]string{
		"name":          "Jane Doe",
		"email":         "jane@example.com",
		"address":       "12 Elm St",
		"property_type": "house",
	})

	for _, env := range []*domain.Envelope{
		{EventType: domain.EventLeadSubmitted, Version: 1, OccurredAt: time.Now().UTC(),
			Tenant: domain.Tenant{ID: "tenant-1"}, Payload: leadPayload},
		{EventType: domain.EventValuationRequested, Version: 1, OccurredAt: time.Now().UTC(),
			Tenant: domain.Tenant{ID: "tenant-1"}, Payload: valuationPayload},
	} {
		result, err := ingest.Enqueue(ctx, env)
		if err != nil {
			t.Fatalf("enqueue %s: %v", env.EventType, err)
		}
		if !result.Accepted {
			t.Fatalf("expected %s accepted", env.EventType)
		}
	}

	registry := dispatcher.NewRegistry()
	registry.Register(domain.EventLeadSubmitted, crm.NewLeadSubmittedHandler(store))
	registry.Register(domain.EventValuationRequested, crm.NewValuationRequestedHandler(store))
	d := dispatcher.New(repo, registry, backoff.Default(), 5, time.Second, zap.NewNop(), dispatcher.MetricHooks{})

	result, err := d.ProcessBatch(ctx, 50)
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if result.Picked != 2 || result.Processed != 2 {
		t.Fatalf("expected both jobs processed, got %+v", result)
	}

	after, err := admin.Summary(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("summary after: %v", err)
	}
	if got := after.ContactCount - before.ContactCount; got != 1 {
		t.Errorf("contact delta = %d, want 1 (same email upserts one contact)", got)
	}
	if got := after.LeadCount - before.LeadCount; got != 2 {
		t.Errorf("lead delta = %d, want 2", got)
	}
	if got := after.ActivityCount - before.ActivityCount; got != 2 {
		t.Errorf("activity delta = %d, want 2", got)
	}
}
