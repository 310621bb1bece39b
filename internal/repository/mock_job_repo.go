package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// MockJobRepository is a hand-written, in-memory implementation of
// JobRepository used in unit tests. No mock-generation library needed.
//
// ClaimDue holds the repository lock for the whole select-and-flip, so
// concurrent claims see the same atomicity the SQL implementation gets from
// FOR UPDATE SKIP LOCKED.
type MockJobRepository struct {
	mu     sync.RWMutex
	jobs   map[string]*domain.Job
	ledger map[string]string // dedup_key -> job id

	// Optional error overrides — set in tests to simulate failure paths.
	InsertErr   error
	ClaimDueErr error
	PingErr     error
}

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs:   make(map[string]*domain.Job),
		ledger: make(map[string]string),
	}
}

func (m *MockJobRepository) Insert(_ context.Context, job *domain.Job) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ledger[job.DedupKey]; exists {
		return ErrDuplicateKey
	}
	m.ledger[job.DedupKey] = job.ID
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *MockJobRepository) GetByID(_ context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (m *MockJobRepository) GetByDedupKey(_ context.Context, key string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ledger[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *m.jobs[id]
	return &clone, nil
}

func (m *MockJobRepository) ClaimDue(_ context.Context, limit int, now time.Time) ([]*domain.Job, error) {
	if m.ClaimDueErr != nil {
		return nil, m.ClaimDueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.StatusPending && !job.NextAttemptAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.Job, 0, len(due))
	for _, job := range due {
		job.Status = domain.StatusProcessing
		job.AttemptCount++
		job.UpdatedAt = now
		clone := *job
		claimed = append(claimed, &clone)
	}
	return claimed, nil
}

func (m *MockJobRepository) MarkSucceeded(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusSucceeded
		job.LastError = nil
		job.UpdatedAt = now
	}
	return nil
}

func (m *MockJobRepository) ScheduleRetry(_ context.Context, id string, nextAttempt time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusPending
		job.LastError = &errMsg
		job.NextAttemptAt = nextAttempt
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockJobRepository) MarkDeadLettered(_ context.Context, id string, now time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusDeadLetter
		job.LastError = &errMsg
		job.DeadLetteredAt = &now
		job.UpdatedAt = now
	}
	return nil
}

func (m *MockJobRepository) ListDeadLetters(_ context.Context, f domain.DeadLetterFilter) ([]*domain.Job, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Job
	for _, job := range m.jobs {
		if job.Status != domain.StatusDeadLetter {
			continue
		}
		if f.TenantID != nil && job.TenantID != *f.TenantID {
			continue
		}
		clone := *job
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DeadLetteredAt.After(*matched[j].DeadLetteredAt)
	})

	total := len(matched)
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *MockJobRepository) RequeueOne(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != domain.StatusDeadLetter {
		return false, nil
	}
	job.Status = domain.StatusPending
	job.AttemptCount = 0
	job.LastError = nil
	job.DeadLetteredAt = nil
	job.NextAttemptAt = now
	job.UpdatedAt = now
	return true, nil
}

func (m *MockJobRepository) RequeueMany(ctx context.Context, f domain.DeadLetterFilter, now time.Time) (domain.RequeueResult, error) {
	jobs, _, err := m.ListDeadLetters(ctx, f)
	if err != nil {
		return domain.RequeueResult{}, err
	}
	result := domain.RequeueResult{Matched: len(jobs)}
	for _, job := range jobs {
		ok, err := m.RequeueOne(ctx, job.ID, now)
		if err != nil {
			return result, err
		}
		if ok {
			result.Requeued++
		}
	}
	return result, nil
}

func (m *MockJobRepository) ScheduleNow(_ context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return false, nil
	}
	job.NextAttemptAt = now
	job.UpdatedAt = now
	return true, nil
}

func (m *MockJobRepository) RecoverStuck(_ context.Context, cutoff time.Time, maxAttempts int, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	abandoned := "attempt abandoned: processing grace period exceeded"
	recovered := 0
	for _, job := range m.jobs {
		if job.Status != domain.StatusProcessing || job.UpdatedAt.After(cutoff) {
			continue
		}
		if job.AttemptCount >= maxAttempts {
			job.Status = domain.StatusDeadLetter
			job.DeadLetteredAt = &now
		} else {
			job.Status = domain.StatusPending
			job.DeadLetteredAt = nil
		}
		job.LastError = &abandoned
		job.NextAttemptAt = now
		job.UpdatedAt = now
		recovered++
	}
	return recovered, nil
}

func (m *MockJobRepository) Ping(_ context.Context) error {
	return m.PingErr
}
