// Package backoff computes retry delays as a pure function of the attempt
// number, so scheduling decisions are testable without a running dispatcher.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy is an exponential backoff with a cap and optional proportional
// jitter. Safe for concurrent use (stateless apart from the shared rand).
//
// Delay for attempt n (1-indexed) = min(Max, Base * Multiplier^(n-1)),
// plus a random addition of up to JitterFrac of that value. Keeping the
// jitter additive means delays stay non-decreasing across consecutive
// attempts as long as Multiplier >= 1 + JitterFrac.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	JitterFrac float64
}

// Default mirrors the production configuration defaults: 30s base, doubling,
// capped at 1h, with up to 20% jitter.
func Default() Policy {
	return Policy{Base: 30 * time.Second, Multiplier: 2, Max: time.Hour, JitterFrac: 0.2}
}

// Delay returns how long to wait before retry attempt n (1-indexed).
// Attempts below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}

	if p.JitterFrac > 0 {
		d += rand.Float64() * p.JitterFrac * d //nolint:gosec // jitter intentionally uses non-crypto rand
	}

	return time.Duration(d)
}

// NextAttemptAt applies Delay to a reference time.
func (p Policy) NextAttemptAt(now time.Time, attempt int) time.Time {
	return now.Add(p.Delay(attempt))
}
