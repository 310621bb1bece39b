package fingerprint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// Fingerprinter derives the dedup key for an envelope. Two envelopes with the
// same key are the same logical event: resubmitting one never creates a
// second job.
//
// The key covers tenant id, event type, event version, and the payload
// content. The payload is re-marshalled through a map so that key order and
// insignificant whitespace in the producer's JSON do not change the
// fingerprint. occurred_at is excluded unless IncludeOccurredAt is set,
// making same-content resubmissions duplicates regardless of when the
// producer stamped them.
type Fingerprinter struct {
	IncludeOccurredAt bool
}

func New(includeOccurredAt bool) *Fingerprinter {
	return &Fingerprinter{IncludeOccurredAt: includeOccurredAt}
}

// Key returns the hex-encoded dedup key for the envelope.
func (f *Fingerprinter) Key(e *domain.Envelope) (string, error) {
	canonical, err := canonicalize(e.Payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	h := xxhash.New()
	h.WriteString(e.Tenant.ID) //nolint:errcheck // xxhash writes never fail
	h.WriteString("\x00")
	h.WriteString(string(e.EventType))
	h.WriteString("\x00")
	h.WriteString(strconv.Itoa(e.Version))
	h.WriteString("\x00")
	h.Write(canonical) //nolint:errcheck

	if f.IncludeOccurredAt {
		var ts [8]byte
		binary.BigEndian.PutUint64(ts[:], uint64(e.OccurredAt.UnixNano()))
		h.Write(ts[:]) //nolint:errcheck
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// canonicalize round-trips the raw JSON through encoding/json, which sorts
// object keys and strips whitespace, so semantically equal payloads hash
// identically.
func canonicalize(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
