package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Class normalizes provider wire failures so the orchestrator need not know
// processor-specific error codes.
type Class string

const (
	ClassAuth     Class = "auth_failure"
	ClassDeclined Class = "declined"
	ClassNetwork  Class = "network"
	ClassTimeout  Class = "timeout"
	ClassRejected Class = "provider_rejected"
)

// Error is a classified provider failure.
type Error struct {
	Class   Class
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Class, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Class, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ClassOf extracts the provider failure class, or empty if unclassified.
func ClassOf(err error) Class {
	var pe *Error
	if !errors.As(err, &pe) {
		return ""
	}
	return pe.Class
}

// ClassifyTransport maps a transport-level error into timeout or network.
func ClassifyTransport(err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Class: ClassTimeout, Code: "deadline_exceeded", Message: "request timed out", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Class: ClassTimeout, Code: "net_timeout", Message: "request timed out", Err: err}
	default:
		return &Error{Class: ClassNetwork, Code: "transport", Message: "request failed", Err: err}
	}
}
