package charge

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Method identifies the payment processor a charge is routed through.
type Method string

const (
	MethodCobalt Method = "cobalt"
	MethodPayPal Method = "paypal"
	MethodYappy  Method = "yappy"
)

// Allocation maps part of a charge to a single ERP invoice. Duplicate invoice
// numbers are allowed: each entry becomes its own receipt line, they are never
// merged.
type Allocation struct {
	InvoiceNo string
	Amount    decimal.Decimal
}

// Customer carries the contact details used for the confirmation email and
// the ERP receipt.
type Customer struct {
	Name       string
	Email      string
	Phone      string
	ClientCode string
}

// Card holds raw card details for processors that charge cards directly.
// Never persisted; only crosses the wire to the processor.
type Card struct {
	Number     string
	Expiry     string // MMYY
	CVV        string
	HolderName string
}

// Request is the normalized charge request the orchestrator operates on.
type Request struct {
	CompanyCode string
	Amount      decimal.Decimal
	Currency    string
	Method      Method
	Allocations []Allocation
	Customer    Customer

	// Card is required for cobalt charges.
	Card *Card

	// OrderID is required for paypal captures: the order created during the
	// approval flow. Captures for the same OrderID are idempotent.
	OrderID string

	Tax decimal.Decimal
	Tip decimal.Decimal

	Description string
}

// Normalize applies the default-substitution rules once, at the boundary:
// tax/tip default to zero, currency is upper-cased, string fields trimmed.
func (r *Request) Normalize() {
	r.CompanyCode = strings.TrimSpace(r.CompanyCode)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = "USD"
	}
	r.Customer.Email = strings.TrimSpace(strings.ToLower(r.Customer.Email))
	r.Customer.ClientCode = strings.TrimSpace(r.Customer.ClientCode)
	for i := range r.Allocations {
		r.Allocations[i].InvoiceNo = strings.TrimSpace(r.Allocations[i].InvoiceNo)
	}
	// Absent tax/tip are zero, not "unset". decimal.Decimal zero value already
	// renders "0"; nothing else to do besides making the rule explicit here.
	r.Tax = r.Tax.Truncate(2)
	r.Tip = r.Tip.Truncate(2)
}

// Validate checks the request before any network call is attempted.
func (r *Request) Validate() error {
	if r.CompanyCode == "" {
		return &Error{Class: ClassValidation, Code: "missing_company", Message: "company code is required"}
	}
	switch r.Method {
	case MethodCobalt, MethodPayPal, MethodYappy:
	default:
		return &Error{Class: ClassValidation, Code: "unknown_method", Message: "unsupported payment method: " + string(r.Method)}
	}
	if r.Customer.Email == "" {
		return &Error{Class: ClassValidation, Code: "missing_email", Message: "customer email is required"}
	}
	if r.Method == MethodCobalt && r.Card == nil {
		return &Error{Class: ClassValidation, Code: "missing_card", Message: "card details are required for cobalt charges"}
	}
	if r.Method == MethodPayPal && r.OrderID == "" {
		return &Error{Class: ClassValidation, Code: "missing_order_id", Message: "order id is required for paypal captures"}
	}
	return ValidateAllocations(r.Amount, r.Allocations)
}

// ValidateAllocations enforces that the allocation amounts sum exactly to the
// total, using decimal arithmetic. Any discrepancy, including rounding drift,
// fails closed. An empty allocation list is rejected.
func ValidateAllocations(total decimal.Decimal, allocs []Allocation) error {
	if len(allocs) == 0 {
		return &Error{Class: ClassValidation, Code: "empty_allocation", Message: "at least one invoice allocation is required"}
	}
	if !total.IsPositive() {
		return &Error{Class: ClassValidation, Code: "invalid_amount", Message: "amount must be positive"}
	}
	sum := decimal.Zero
	for _, a := range allocs {
		if a.InvoiceNo == "" {
			return &Error{Class: ClassValidation, Code: "missing_invoice", Message: "allocation without invoice number"}
		}
		if !a.Amount.IsPositive() {
			return &Error{Class: ClassValidation, Code: "invalid_allocation_amount", Message: "allocation amount must be positive for invoice " + a.InvoiceNo}
		}
		sum = sum.Add(a.Amount)
	}
	if !sum.Equal(total) {
		return &Error{
			Class:   ClassValidation,
			Code:    "amount_mismatch",
			Message: "allocations sum to " + sum.String() + ", charge amount is " + total.String(),
		}
	}
	return nil
}
