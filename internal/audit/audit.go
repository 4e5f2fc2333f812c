package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType names the auditable actions.
type EventType string

const (
	EventRequestReceived      EventType = "request_received"
	EventChargeAttempt        EventType = "charge_attempt"
	EventPaymentApproved      EventType = "payment_approved"
	EventPaymentDeclined      EventType = "payment_declined"
	EventChargeFailed         EventType = "charge_failed"
	EventChargeUnreconciled   EventType = "charge_unreconciled"
	EventVerificationIssued   EventType = "verification_issued"
	EventVerificationConsumed EventType = "verification_consumed"
	EventACHProofUploaded     EventType = "ach_proof_uploaded"
	EventACHProofDecided      EventType = "ach_proof_decided"
)

// Event is one append-only audit record. Never updated or deleted.
type Event struct {
	Type        EventType
	CompanyCode string
	Reference   string // provider tx id, code id, proof id...
	Detail      map[string]any
	OccurredAt  time.Time
}

// Sink records audit events. Implementations must be append-only.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Resilient wraps a sink so recording failures never abort the caller:
// observability must not become a correctness dependency. On failure the
// event is logged locally and the error is swallowed.
type Resilient struct {
	sink Sink
}

func NewResilient(sink Sink) *Resilient {
	return &Resilient{sink: sink}
}

func (r *Resilient) Record(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	if r.sink != nil {
		if err := r.sink.Record(ctx, e); err == nil {
			return
		} else {
			detail, _ := json.Marshal(e.Detail)
			log.Error().
				Err(err).
				Str("event_type", string(e.Type)).
				Str("company", e.CompanyCode).
				Str("reference", e.Reference).
				RawJSON("detail", jsonOrNull(detail)).
				Msg("audit sink unavailable, event logged locally")
			return
		}
	}
	log.Info().
		Str("event_type", string(e.Type)).
		Str("company", e.CompanyCode).
		Str("reference", e.Reference).
		Msg("audit event")
}

func jsonOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
