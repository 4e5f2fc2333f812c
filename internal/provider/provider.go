package provider

import (
	"context"
	"encoding/json"
	"time"

	"pasarela/internal/domain/charge"
)

// Status is the normalized outcome of a charge submission. A declined charge
// is a successful round-trip with a negative answer, not an error.
type Status string

const (
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusError    Status = "error"
)

// Token is a processor bearer token. Owned by the client that fetched it,
// cached in memory only, and treated as expired slightly before its nominal
// expiry to absorb clock skew.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// ExpiredWithin reports whether the token is expired, or will be within skew.
func (t Token) ExpiredWithin(skew time.Duration) bool {
	return !time.Now().Add(skew).Before(t.ExpiresAt)
}

// Result is the normalized charge outcome. Raw retains the processor's
// payload verbatim for the audit trail.
type Result struct {
	ProviderTxID string
	Status       Status
	AuthCode     string
	ResponseCode string
	Raw          json.RawMessage
}

// Client is the per-processor adapter. Implementations translate the
// normalized request into the processor's wire format and classify wire
// errors into Error so the orchestrator never sees provider-specific codes.
type Client interface {
	Name() string

	// Authenticate obtains a token for the company, running whatever
	// token-acquisition sub-protocol the processor requires. Implementations
	// that can cache tokens do so internally.
	Authenticate(ctx context.Context, companyCode string) (Token, error)

	// Charge submits the charge. A declined payment returns a Result with
	// StatusDeclined and a nil error.
	Charge(ctx context.Context, token Token, req charge.Request) (Result, error)
}
