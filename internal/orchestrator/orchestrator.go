package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pasarela/internal/audit"
	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/erp"
	"pasarela/internal/notify"
	"pasarela/internal/provider"

	"github.com/rs/zerolog/log"
)

// State of a charge as it moves through the flow.
//
//	Received -> Validated -> Authenticated -> Charged -> Reconciled -> Completed
//
// Rejected is a pre-charge exit (no money moved). Failed is a post-validation
// exit; when it happens after the charge was submitted, the failure carries
// the provider transaction so it can be reconciled by hand.
type State string

const (
	StateReceived      State = "received"
	StateValidated     State = "validated"
	StateAuthenticated State = "authenticated"
	StateCharged       State = "charged"
	StateReconciled    State = "reconciled"
	StateCompleted     State = "completed"
	StateRejected      State = "rejected"
	StateFailed        State = "failed"
)

// Outcome is the terminal result of a charge flow. Result is set as soon as
// the provider answered, even when a later step failed, so the transaction id
// is never lost.
type Outcome struct {
	State     State
	Result    *provider.Result
	ReceiptNo string
}

// Failure is a classified terminal error.
type Failure struct {
	State State
	Class charge.Class
	Code  string
	Err   error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("charge %s (%s/%s): %v", f.State, f.Class, f.Code, f.Err)
	}
	return fmt.Sprintf("charge %s (%s/%s)", f.State, f.Class, f.Code)
}

func (f *Failure) Unwrap() error { return f.Err }

// Orchestrator drives the end-to-end charge flow across heterogeneous
// processors and ties the result back into the ERP.
type Orchestrator struct {
	registry   *provider.Registry
	resolver   *credentials.Resolver
	erp        erp.Hansa
	dispatcher *notify.Dispatcher
	audit      *audit.Resilient
	erpTimeout time.Duration
}

func New(registry *provider.Registry, resolver *credentials.Resolver, hansa erp.Hansa, dispatcher *notify.Dispatcher, sink *audit.Resilient, erpTimeout time.Duration) *Orchestrator {
	if erpTimeout == 0 {
		erpTimeout = 20 * time.Second
	}
	if sink == nil {
		sink = audit.NewResilient(nil)
	}
	return &Orchestrator{
		registry:   registry,
		resolver:   resolver,
		erp:        hansa,
		dispatcher: dispatcher,
		audit:      sink,
		erpTimeout: erpTimeout,
	}
}

// Process runs one charge to a terminal state.
//
// Cancellation: the caller's context is honored up to the moment the charge
// is submitted. From then on the flow runs detached to a terminal state so a
// disconnecting caller cannot leave a charged-but-unrecorded transaction.
//
// Retry contract: failures with class network/timeout may be retried by the
// caller; declined and auth failures are terminal for the request. PayPal
// retries reuse the request's OrderID (idempotent capture); cobalt/yappy
// submissions generate a fresh provider-side reference each attempt.
func (o *Orchestrator) Process(ctx context.Context, req charge.Request) (Outcome, error) {
	req.Normalize()

	// Received -> Validated | Rejected
	if err := req.Validate(); err != nil {
		return o.reject(ctx, req, err)
	}

	// Validated -> Authenticated-pending | Rejected
	if !o.resolver.Supports(req.CompanyCode, req.Method) {
		return o.reject(ctx, req, &charge.Error{
			Class:   charge.ClassConfiguration,
			Code:    "unknown_company_or_provider",
			Message: fmt.Sprintf("company %q has no %s credentials", req.CompanyCode, req.Method),
		})
	}
	client, err := o.registry.Client(req.Method)
	if err != nil {
		return o.reject(ctx, req, &charge.Error{
			Class: charge.ClassConfiguration, Code: "provider_not_registered",
			Message: "no client for method " + string(req.Method), Err: err,
		})
	}

	o.audit.Record(ctx, audit.Event{
		Type:        audit.EventChargeAttempt,
		CompanyCode: req.CompanyCode,
		Detail: map[string]any{
			"method":      string(req.Method),
			"amount":      req.Amount.String(),
			"currency":    req.Currency,
			"allocations": len(req.Allocations),
			"client_code": req.Customer.ClientCode,
		},
	})

	// Authenticated-pending -> Authenticated | Failed
	token, err := client.Authenticate(ctx, req.CompanyCode)
	if err != nil {
		return o.fail(ctx, req, StateAuthenticated, nil, classify(err))
	}

	// Upstream gone before the charge went out: abort, nothing charged.
	if ctx.Err() != nil {
		return o.reject(ctx, req, &charge.Error{
			Class: charge.ClassNetwork, Code: "canceled",
			Message: "caller disconnected before charge submission", Err: ctx.Err(),
		})
	}

	// Money may move from here on. The submission and everything after run
	// detached from the caller's lifetime, so a disconnect mid-round-trip
	// cannot abort an already-sent charge; the adapter's transport timeout
	// still bounds the call.
	dctx := context.WithoutCancel(ctx)

	// Authenticated -> Charged | Failed
	result, err := client.Charge(dctx, token, req)
	if err != nil {
		return o.fail(dctx, req, StateCharged, nil, classify(err))
	}

	switch result.Status {
	case provider.StatusDeclined:
		o.audit.Record(dctx, audit.Event{
			Type:        audit.EventPaymentDeclined,
			CompanyCode: req.CompanyCode,
			Reference:   result.ProviderTxID,
			Detail:      rawDetail(req, result),
		})
		return Outcome{State: StateFailed, Result: &result}, &Failure{
			State: StateFailed, Class: charge.ClassDeclined, Code: result.ResponseCode,
			Err: fmt.Errorf("payment declined by %s", client.Name()),
		}
	case provider.StatusApproved:
		// fall through to reconciliation
	default:
		return o.fail(dctx, req, StateCharged, &result, &charge.Error{
			Class: charge.ClassRejected, Code: result.ResponseCode,
			Message: "provider returned error status",
		})
	}

	o.audit.Record(dctx, audit.Event{
		Type:        audit.EventPaymentApproved,
		CompanyCode: req.CompanyCode,
		Reference:   result.ProviderTxID,
		Detail:      rawDetail(req, result),
	})

	// Charged -> Reconciled | Failed(charged-but-unreconciled)
	receiptNo, err := o.reconcile(dctx, req, result)
	if err != nil {
		o.audit.Record(dctx, audit.Event{
			Type:        audit.EventChargeUnreconciled,
			CompanyCode: req.CompanyCode,
			Reference:   result.ProviderTxID,
			Detail: map[string]any{
				"error":          err.Error(),
				"amount":         req.Amount.String(),
				"provider_tx_id": result.ProviderTxID,
			},
		})
		// Deliberately no provider refund here: a blind reversal can compound
		// the failure. The transaction id stays in the audit trail for manual
		// reconciliation.
		return Outcome{State: StateFailed, Result: &result}, &Failure{
			State: StateFailed, Class: charge.ClassErpWrite, Code: "charged_unreconciled",
			Err: fmt.Errorf("charge %s succeeded but ERP receipt write failed: %w", result.ProviderTxID, err),
		}
	}

	// Reconciled -> Completed; email is best-effort and never blocks.
	o.notifyCompletion(dctx, req, result, receiptNo)

	log.Info().
		Str("company", req.CompanyCode).
		Str("method", string(req.Method)).
		Str("provider_tx_id", result.ProviderTxID).
		Str("receipt_no", receiptNo).
		Msg("charge completed")

	return Outcome{State: StateCompleted, Result: &result, ReceiptNo: receiptNo}, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, req charge.Request, result provider.Result) (string, error) {
	lines := make([]erp.ReceiptLine, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		lines = append(lines, erp.ReceiptLine{InvoiceNo: a.InvoiceNo, Amount: a.Amount})
	}

	wctx, cancel := context.WithTimeout(ctx, o.erpTimeout)
	defer cancel()

	return o.erp.WriteReceipt(wctx, erp.ReceiptRecord{
		CompanyCode: req.CompanyCode,
		ClientCode:  req.Customer.ClientCode,
		Date:        time.Now(),
		PayMode:     string(req.Method),
		Reference:   result.ProviderTxID,
		Currency:    req.Currency,
		Total:       req.Amount,
		Lines:       lines,
	})
}

func (o *Orchestrator) notifyCompletion(ctx context.Context, req charge.Request, result provider.Result, receiptNo string) {
	if o.dispatcher == nil {
		return
	}
	body := fmt.Sprintf(
		"<p>Estimado cliente,</p><p>Su pago de %s %s fue procesado. Recibo: %s. Referencia: %s.</p>",
		req.Currency, req.Amount.StringFixed(2), receiptNo, result.ProviderTxID,
	)
	nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	o.dispatcher.Dispatch(nctx, notify.Message{
		To:       req.Customer.Email,
		Subject:  "Confirmación de pago " + receiptNo,
		HTMLBody: body,
	})
}

func (o *Orchestrator) reject(ctx context.Context, req charge.Request, err error) (Outcome, error) {
	o.audit.Record(ctx, audit.Event{
		Type:        audit.EventChargeAttempt,
		CompanyCode: req.CompanyCode,
		Detail: map[string]any{
			"rejected": true,
			"error":    err.Error(),
		},
	})
	class := charge.ClassOf(err)
	if class == "" {
		class = charge.ClassValidation
	}
	code := ""
	var ce *charge.Error
	if errors.As(err, &ce) {
		code = ce.Code
	}
	return Outcome{State: StateRejected}, &Failure{State: StateRejected, Class: class, Code: code, Err: err}
}

func (o *Orchestrator) fail(ctx context.Context, req charge.Request, at State, result *provider.Result, err *charge.Error) (Outcome, error) {
	log.Error().
		Err(err).
		Str("company", req.CompanyCode).
		Str("method", string(req.Method)).
		Str("at", string(at)).
		Msg("charge failed")
	ev := audit.Event{
		Type:        audit.EventChargeFailed,
		CompanyCode: req.CompanyCode,
		Detail: map[string]any{
			"at":     string(at),
			"method": string(req.Method),
			"amount": req.Amount.String(),
			"class":  string(err.Class),
			"code":   err.Code,
			"error":  err.Error(),
		},
	}
	if result != nil {
		ev.Reference = result.ProviderTxID
		ev.Detail["response_code"] = result.ResponseCode
	}
	o.audit.Record(ctx, ev)
	out := Outcome{State: StateFailed, Result: result}
	return out, &Failure{State: StateFailed, Class: err.Class, Code: err.Code, Err: err}
}

// classify maps provider-level failure classes onto the gateway taxonomy.
func classify(err error) *charge.Error {
	switch provider.ClassOf(err) {
	case provider.ClassAuth:
		return &charge.Error{Class: charge.ClassAuth, Code: "auth_failure", Message: "provider authentication failed", Err: err}
	case provider.ClassTimeout:
		return &charge.Error{Class: charge.ClassTimeout, Code: "timeout", Message: "provider call timed out", Err: err}
	case provider.ClassNetwork:
		return &charge.Error{Class: charge.ClassNetwork, Code: "network", Message: "provider call failed", Err: err}
	case provider.ClassDeclined:
		return &charge.Error{Class: charge.ClassDeclined, Code: "declined", Message: "payment declined", Err: err}
	default:
		return &charge.Error{Class: charge.ClassRejected, Code: "provider_rejected", Message: "provider rejected the request", Err: err}
	}
}

func rawDetail(req charge.Request, result provider.Result) map[string]any {
	return map[string]any{
		"method":        string(req.Method),
		"amount":        req.Amount.String(),
		"currency":      req.Currency,
		"response_code": result.ResponseCode,
		"auth_code":     result.AuthCode,
		"raw":           string(result.Raw),
	}
}
