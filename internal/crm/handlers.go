package crm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// leadPayload is the payload shape of a lead-submitted event.
type leadPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// valuationPayload is the payload shape of a valuation-requested event.
type valuationPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	PropertyType string `json:"property_type"`
}

// LeadSubmittedHandler turns a lead-submitted job into a contact upsert plus
// a lead and an activity record.
type LeadSubmittedHandler struct {
	store Store
}

func NewLeadSubmittedHandler(store Store) *LeadSubmittedHandler {
	return &LeadSubmittedHandler{store: store}
}

func (h *LeadSubmittedHandler) Handle(ctx context.Context, job *domain.Job) error {
	var p leadPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode lead payload: %w", err)
	}

	contactID, err := h.store.UpsertContact(ctx, job.TenantID, p.Email, p.Name, p.Phone)
	if err != nil {
		return err
	}

	source := p.Source
	if source == "" {
		source = "website"
	}
	if err := h.store.RecordLead(ctx, Lead{
		TenantID:  job.TenantID,
		JobID:     job.ID,
		ContactID: contactID,
		Source:    source,
		Details:   p.Message,
	}); err != nil {
		return err
	}

	return h.store.RecordActivity(ctx, Activity{
		TenantID:  job.TenantID,
		JobID:     job.ID,
		ContactID: contactID,
		Kind:      "lead_submitted",
		Summary:   fmt.Sprintf("Lead submitted by %s via %s", p.Name, source),
	})
}

// ValuationRequestedHandler turns a valuation-requested job into a contact
// upsert plus a valuation lead and an activity record.
type ValuationRequestedHandler struct {
	store Store
}

func NewValuationRequestedHandler(store Store) *ValuationRequestedHandler {
	return &ValuationRequestedHandler{store: store}
}

func (h *ValuationRequestedHandler) Handle(ctx context.Context, job *domain.Job) error {
	var p valuationPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode valuation payload: %w", err)
	}

	contactID, err := h.store.UpsertContact(ctx, job.TenantID, p.Email, p.Name, p.Phone)
	if err != nil {
		return err
	}

	if err := h.store.RecordLead(ctx, Lead{
		TenantID:  job.TenantID,
		JobID:     job.ID,
		ContactID: contactID,
		Source:    "valuation",
		Details:   fmt.Sprintf("%s (%s)", p.Address, p.PropertyType),
	}); err != nil {
		return err
	}

	return h.store.RecordActivity(ctx, Activity{
		TenantID:  job.TenantID,
		JobID:     job.ID,
		ContactID: contactID,
		Kind:      "valuation_requested",
		Summary:   fmt.Sprintf("Valuation requested for %s", p.Address),
	})
}
