package fingerprint_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/fingerprint"
)

func envelope(payload string) *domain.Envelope {
	return &domain.Envelope{
		EventType:  domain.EventLeadSubmitted,
		Version:    1,
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Tenant:     domain.Tenant{ID: "tenant-1"},
		Payload:    json.RawMessage(payload),
	}
}

func TestKey_Deterministic(t *testing.T) {
	fp := fingerprint.New(false)

	a, err := fp.Key(envelope(`{"email":"jane@example.com","name":"Jane"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := fp.Key(envelope(`{"email":"jane@example.com","name":"Jane"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("same envelope produced different keys: %s vs %s", a, b)
	}
}

func TestKey_IgnoresJSONFormatting(t *testing.T) {
	fp := fingerprint.New(false)

	a, _ := fp.Key(envelope(`{"email":"jane@example.com","name":"Jane"}`))
	b, _ := fp.Key(envelope(`{ "name": "Jane",  "email": "jane@example.com" }`))
	if a != b {
		t.Fatal("key order and whitespace must not change the fingerprint")
	}
}

func TestKey_SensitiveToContent(t *testing.T) {
	fp := fingerprint.New(false)
	base, _ := fp.Key(envelope(`{"email":"jane@example.com"}`))

	t.Run("different payload", func(t *testing.T) {
		k, _ := fp.Key(envelope(`{"email":"john@example.com"}`))
		if k == base {
			t.Fatal("different payloads must produce different keys")
		}
	})

	t.Run("different tenant", func(t *testing.T) {
		e := envelope(`{"email":"jane@example.com"}`)
		e.Tenant.ID = "tenant-2"
		k, _ := fp.Key(e)
		if k == base {
			t.Fatal("different tenants must produce different keys")
		}
	})

	t.Run("different event type", func(t *testing.T) {
		e := envelope(`{"email":"jane@example.com"}`)
		e.EventType = domain.EventValuationRequested
		k, _ := fp.Key(e)
		if k == base {
			t.Fatal("different event types must produce different keys")
		}
	})

	t.Run("different version", func(t *testing.T) {
		e := envelope(`{"email":"jane@example.com"}`)
		e.Version = 2
		k, _ := fp.Key(e)
		if k == base {
			t.Fatal("different versions must produce different keys")
		}
	})
}

func TestKey_OccurredAtExcludedByDefault(t *testing.T) {
	fp := fingerprint.New(false)

	a := envelope(`{"email":"jane@example.com"}`)
	b := envelope(`{"email":"jane@example.com"}`)
	b.OccurredAt = b.OccurredAt.Add(time.Hour)

	ka, _ := fp.Key(a)
	kb, _ := fp.Key(b)
	if ka != kb {
		t.Fatal("occurred_at must not affect the fingerprint by default")
	}
}

func TestKey_OccurredAtIncludedWhenConfigured(t *testing.T) {
	fp := fingerprint.New(true)

	a := envelope(`{"email":"jane@example.com"}`)
	b := envelope(`{"email":"jane@example.com"}`)
	b.OccurredAt = b.OccurredAt.Add(time.Hour)

	ka, _ := fp.Key(a)
	kb, _ := fp.Key(b)
	if ka == kb {
		t.Fatal("occurred_at must affect the fingerprint when configured in")
	}
}

func TestKey_InvalidPayload(t *testing.T) {
	fp := fingerprint.New(false)
	if _, err := fp.Key(envelope(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
