package verification

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// QueryType names the sensitive ERP query a code unlocks.
type QueryType string

const (
	QueryInvoices QueryType = "invoices"
	QueryReceipts QueryType = "receipts"
)

// Status tracks the supersession lifecycle. A newer code for the same
// (email, clientCode, queryType) tuple supersedes older unused ones; the old
// rows stay around, flipped to superseded, never deleted.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

var (
	ErrExpired     = errors.New("verification: code expired")
	ErrAlreadyUsed = errors.New("verification: code already used")
	ErrNotFound    = errors.New("verification: code not found")
)

// Code is a one-time verification code gating ERP invoice/receipt queries.
type Code struct {
	ID         int64
	Email      string
	Code       string
	ClientCode string
	QueryType  QueryType
	Status     Status
	Used       bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// New generates a code for the tuple with the given TTL.
func New(email, clientCode string, queryType QueryType, ttl time.Duration) (Code, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	clientCode = strings.TrimSpace(clientCode)
	if email == "" || clientCode == "" {
		return Code{}, fmt.Errorf("verification: email and client code are required")
	}
	if queryType != QueryInvoices && queryType != QueryReceipts {
		return Code{}, fmt.Errorf("verification: invalid query type %q", queryType)
	}

	digits, err := randomDigits(6)
	if err != nil {
		return Code{}, err
	}

	now := time.Now()
	return Code{
		Email:      email,
		Code:       digits,
		ClientCode: clientCode,
		QueryType:  queryType,
		Status:     StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// Consumable checks whether the code can still be consumed. Fails closed: any
// reason it cannot be used maps to a distinct error, never a partial pass.
func (c Code) Consumable(now time.Time) error {
	if c.Status == StatusSuperseded {
		return ErrNotFound
	}
	if c.Used {
		return ErrAlreadyUsed
	}
	if now.After(c.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d", d.Int64())
	}
	return b.String(), nil
}
