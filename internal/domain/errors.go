package domain

import "errors"

// Sentinel errors used throughout the application.
// HTTP handlers translate these to status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidVersion   = errors.New("event version must be >= 1")
	ErrInvalidTenant    = errors.New("tenant id must not be empty")
	ErrInvalidPayload   = errors.New("payload must be a non-empty JSON document")
	ErrNoHandler        = errors.New("no handler registered for event type")
	ErrRateLimited      = errors.New("tenant enqueue rate exceeded, try again later")
)
