package domain

import (
	"encoding/json"
	"time"
)

// Status tracks the lifecycle of a queue job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusDeadLetter Status = "dead_letter"
)

// Job is a durable unit of work produced by accepting an envelope.
// Only pending jobs with next_attempt_at <= now are claimable.
type Job struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	EventType      EventType       `json:"event_type"`
	EventVersion   int             `json:"event_version"`
	Payload        json.RawMessage `json:"payload"`
	DedupKey       string          `json:"dedup_key"`
	Status         Status          `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	LastError      *string         `json:"last_error,omitempty"`
	NextAttemptAt  time.Time       `json:"next_attempt_at"`
	DeadLetteredAt *time.Time      `json:"dead_lettered_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DeadLetterFilter holds query parameters for dead-letter listing and bulk
// requeue. TenantID nil means all tenants.
type DeadLetterFilter struct {
	TenantID *string
	Limit    int
	Offset   int
}

// RequeueResult reports how many dead-lettered jobs matched a filter and how
// many were actually returned to the pending set.
type RequeueResult struct {
	Matched  int `json:"matched"`
	Requeued int `json:"requeued"`
}

// BatchResult is the accounting for one ProcessBatch call.
// Picked = Processed + Requeued + DeadLettered, and Failed = Requeued +
// DeadLettered. Picked == 0 signals a drained backlog.
type BatchResult struct {
	Picked       int `json:"picked"`
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	Requeued     int `json:"requeued"`
	DeadLettered int `json:"dead_lettered"`
}

// TenantSummary is a point-in-time view over the CRM write layer's tables,
// used by operators and tests to assert side-effect deltas.
type TenantSummary struct {
	ContactCount  int `json:"contact_count"`
	LeadCount     int `json:"lead_count"`
	ActivityCount int `json:"activity_count"`
}
