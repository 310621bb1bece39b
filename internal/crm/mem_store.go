package crm

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// MemStore is an in-memory Store used in unit tests, with the same upsert
// semantics as the PostgreSQL implementation.
type MemStore struct {
	mu         sync.Mutex
	contacts   map[string]string // tenant+email -> contact id
	leads      map[string]Lead   // tenant+job
	activities map[string]Activity

	// Optional error override — set in tests to simulate delivery failures.
	FailWith error
}

func NewMemStore() *MemStore {
	return &MemStore{
		contacts:   make(map[string]string),
		leads:      make(map[string]Lead),
		activities: make(map[string]Activity),
	}
}

func (s *MemStore) UpsertContact(_ context.Context, tenantID, email, _, _ string) (string, error) {
	if s.FailWith != nil {
		return "", s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "\x00" + email
	if id, ok := s.contacts[key]; ok {
		return id, nil
	}
	id := uuid.New().String()
	s.contacts[key] = id
	return id, nil
}

func (s *MemStore) RecordLead(_ context.Context, lead Lead) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.TenantID+"\x00"+lead.JobID] = lead
	return nil
}

func (s *MemStore) RecordActivity(_ context.Context, activity Activity) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[activity.TenantID+"\x00"+activity.JobID] = activity
	return nil
}

func (s *MemStore) Summary(_ context.Context, tenantID string) (domain.TenantSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var summary domain.TenantSummary
	for key := range s.contacts {
		if strings.HasPrefix(key, tenantID+"\x00") {
			summary.ContactCount++
		}
	}
	for _, l := range s.leads {
		if l.TenantID == tenantID {
			summary.LeadCount++
		}
	}
	for _, a := range s.activities {
		if a.TenantID == tenantID {
			summary.ActivityCount++
		}
	}
	return summary, nil
}
