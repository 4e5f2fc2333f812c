package credentials

import (
	"pasarela/internal/domain/charge"
)

// Cobalt holds the OAuth client-credentials pair for the Cobalt card processor.
type Cobalt struct {
	ClientID     string
	ClientSecret string
}

// PayPal holds the REST API client-credentials pair.
type PayPal struct {
	ClientID     string
	ClientSecret string
}

// Yappy holds the merchant identity used for domain validation and order
// signing.
type Yappy struct {
	MerchantID string
	SecretKey  string
	Domain     string
}

// Company groups the processor credentials provisioned for one company code.
// A nil entry means the company is not enabled for that processor; absence is
// a distinct miss, never zero-value credentials.
type Company struct {
	Cobalt *Cobalt
	PayPal *PayPal
	Yappy  *Yappy
}

// Resolver is a pure lookup from company code to processor credentials.
// No I/O, no logging: observability belongs to the callers.
type Resolver struct {
	companies map[string]Company
}

func NewResolver(companies map[string]Company) *Resolver {
	if companies == nil {
		companies = map[string]Company{}
	}
	return &Resolver{companies: companies}
}

// Company returns the full credential set for a company code.
func (r *Resolver) Company(code string) (Company, bool) {
	c, ok := r.companies[code]
	return c, ok
}

// Cobalt resolves the Cobalt credentials for a company.
func (r *Resolver) Cobalt(code string) (Cobalt, bool) {
	c, ok := r.companies[code]
	if !ok || c.Cobalt == nil {
		return Cobalt{}, false
	}
	return *c.Cobalt, true
}

// PayPal resolves the PayPal credentials for a company.
func (r *Resolver) PayPal(code string) (PayPal, bool) {
	c, ok := r.companies[code]
	if !ok || c.PayPal == nil {
		return PayPal{}, false
	}
	return *c.PayPal, true
}

// Yappy resolves the Yappy merchant credentials for a company.
func (r *Resolver) Yappy(code string) (Yappy, bool) {
	c, ok := r.companies[code]
	if !ok || c.Yappy == nil {
		return Yappy{}, false
	}
	return *c.Yappy, true
}

// Supports reports whether a company is provisioned for the given method.
func (r *Resolver) Supports(code string, m charge.Method) bool {
	c, ok := r.companies[code]
	if !ok {
		return false
	}
	switch m {
	case charge.MethodCobalt:
		return c.Cobalt != nil
	case charge.MethodPayPal:
		return c.PayPal != nil
	case charge.MethodYappy:
		return c.Yappy != nil
	}
	return false
}
