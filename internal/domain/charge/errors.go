package charge

import (
	"errors"
	"fmt"
)

// Class is the normalized failure taxonomy shared across the gateway.
// Validation and configuration failures happen before money moves; declined
// and auth failures are terminal for the request; network and timeout are
// transient and caller-retryable; erp_write means money moved but the system
// of record did not record it.
type Class string

const (
	ClassValidation    Class = "validation"
	ClassConfiguration Class = "configuration"
	ClassAuth          Class = "auth_failure"
	ClassDeclined      Class = "declined"
	ClassNetwork       Class = "network"
	ClassTimeout       Class = "timeout"
	ClassRejected      Class = "provider_rejected"
	ClassErpWrite      Class = "erp_write"
	ClassVerification  Class = "verification"
)

// Error is a classified gateway error.
type Error struct {
	Class   Class
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Class, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Class, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the caller may retry the request as-is.
func Transient(err error) bool {
	c := ClassOf(err)
	return c == ClassNetwork || c == ClassTimeout
}

// ClassOf extracts the failure class, or empty for unclassified errors.
func ClassOf(err error) Class {
	var ce *Error
	if !errors.As(err, &ce) {
		return ""
	}
	return ce.Class
}
