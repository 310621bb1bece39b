package backoff_test

import (
	"testing"
	"time"

	"github.com/estatehub/crm-ingest/internal/backoff"
)

func TestDelay_ExponentialGrowth(t *testing.T) {
	p := backoff.Policy{Base: time.Second, Multiplier: 2, Max: time.Hour}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelay_CappedAtMax(t *testing.T) {
	p := backoff.Policy{Base: time.Second, Multiplier: 2, Max: 10 * time.Second}

	for attempt := 5; attempt <= 30; attempt++ {
		if got := p.Delay(attempt); got != 10*time.Second {
			t.Errorf("Delay(%d) = %v, want cap %v", attempt, got, 10*time.Second)
		}
	}
}

func TestDelay_MonotonicUpToCap(t *testing.T) {
	p := backoff.Policy{Base: 500 * time.Millisecond, Multiplier: 2, Max: time.Minute}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := p.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased below %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestDelay_JitterStaysWithinBounds(t *testing.T) {
	p := backoff.Policy{Base: time.Second, Multiplier: 2, Max: time.Hour, JitterFrac: 0.2}

	for i := 0; i < 100; i++ {
		d := p.Delay(3) // deterministic part: 4s
		if d < 4*time.Second || d > 4800*time.Millisecond {
			t.Fatalf("Delay(3) = %v outside [4s, 4.8s]", d)
		}
	}
}

func TestDelay_AttemptBelowOneTreatedAsFirst(t *testing.T) {
	p := backoff.Policy{Base: time.Second, Multiplier: 2, Max: time.Hour}
	if got := p.Delay(0); got != time.Second {
		t.Fatalf("Delay(0) = %v, want %v", got, time.Second)
	}
}

func TestNextAttemptAt(t *testing.T) {
	p := backoff.Policy{Base: time.Second, Multiplier: 2, Max: time.Hour}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := p.NextAttemptAt(now, 2); !got.Equal(now.Add(2 * time.Second)) {
		t.Fatalf("NextAttemptAt = %v, want %v", got, now.Add(2*time.Second))
	}
}
