package domain

import (
	"encoding/json"
	"time"
)

// EventType tags an envelope with the kind of business event it carries.
type EventType string

const (
	EventLeadSubmitted      EventType = "lead-submitted"
	EventValuationRequested EventType = "valuation-requested"
)

func (e EventType) IsValid() bool {
	switch e {
	case EventLeadSubmitted, EventValuationRequested:
		return true
	}
	return false
}

// Tenant identifies the owning tenant of an event. Resolution of slug and
// domain to an id happens upstream; the queue treats all three as opaque.
type Tenant struct {
	ID     string `json:"id"`
	Slug   string `json:"slug,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// Envelope is the normalized event shape producers submit for ingestion.
// Immutable once accepted; the queue copies what it needs onto the Job.
type Envelope struct {
	EventType  EventType       `json:"event_type"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
	Tenant     Tenant          `json:"tenant"`
	Payload    json.RawMessage `json:"payload"`
}

func (e *Envelope) Validate() error {
	if !e.EventType.IsValid() {
		return ErrInvalidEventType
	}
	if e.Version < 1 {
		return ErrInvalidVersion
	}
	if e.Tenant.ID == "" {
		return ErrInvalidTenant
	}
	if len(e.Payload) == 0 || !json.Valid(e.Payload) {
		return ErrInvalidPayload
	}
	return nil
}

// EnqueueResult reports the outcome of an enqueue call. A duplicate
// submission is a successful outcome referencing the original job, not an
// error.
type EnqueueResult struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"job_id"`
}
