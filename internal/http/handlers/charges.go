package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pasarela/internal/audit"
	"pasarela/internal/domain/charge"
	"pasarela/internal/orchestrator"

	"github.com/shopspring/decimal"
)

type chargePayload struct {
	CompanyCode string `json:"companyCode"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Allocations []struct {
		InvoiceNo string `json:"invoiceNo"`
		Amount    string `json:"amount"`
	} `json:"allocations"`
	Customer struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		ClientCode string `json:"clientCode"`
	} `json:"customer"`
	Card *struct {
		Number     string `json:"number"`
		Expiry     string `json:"expiry"`
		CVV        string `json:"cvv"`
		HolderName string `json:"holderName"`
	} `json:"card,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	Tax         string `json:"tax,omitempty"`
	Tip         string `json:"tip,omitempty"`
	Description string `json:"description,omitempty"`
}

func (p chargePayload) toRequest() (charge.Request, error) {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return charge.Request{}, &charge.Error{Class: charge.ClassValidation, Code: "invalid_amount", Message: "amount is not a decimal: " + p.Amount}
	}
	req := charge.Request{
		CompanyCode: p.CompanyCode,
		Amount:      amount,
		Currency:    p.Currency,
		Method:      charge.Method(p.Method),
		OrderID:     p.OrderID,
		Description: p.Description,
		Customer: charge.Customer{
			Name:       p.Customer.Name,
			Email:      p.Customer.Email,
			Phone:      p.Customer.Phone,
			ClientCode: p.Customer.ClientCode,
		},
	}
	for _, a := range p.Allocations {
		amt, err := decimal.NewFromString(a.Amount)
		if err != nil {
			return charge.Request{}, &charge.Error{Class: charge.ClassValidation, Code: "invalid_allocation_amount", Message: "allocation amount is not a decimal: " + a.Amount}
		}
		req.Allocations = append(req.Allocations, charge.Allocation{InvoiceNo: a.InvoiceNo, Amount: amt})
	}
	if p.Card != nil {
		req.Card = &charge.Card{Number: p.Card.Number, Expiry: p.Card.Expiry, CVV: p.Card.CVV, HolderName: p.Card.HolderName}
	}
	if p.Tax != "" {
		if req.Tax, err = decimal.NewFromString(p.Tax); err != nil {
			return charge.Request{}, &charge.Error{Class: charge.ClassValidation, Code: "invalid_tax", Message: "tax is not a decimal"}
		}
	}
	if p.Tip != "" {
		if req.Tip, err = decimal.NewFromString(p.Tip); err != nil {
			return charge.Request{}, &charge.Error{Class: charge.ClassValidation, Code: "invalid_tip", Message: "tip is not a decimal"}
		}
	}
	return req, nil
}

// CreateCharge runs a charge to a terminal state and reports it.
func CreateCharge(orch *orchestrator.Orchestrator, sink *audit.Resilient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload chargePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, string(charge.ClassValidation), "bad_json", "request body is not valid JSON")
			return
		}
		sink.Record(r.Context(), audit.Event{
			Type:        audit.EventRequestReceived,
			CompanyCode: payload.CompanyCode,
			Detail: map[string]any{
				"method": payload.Method,
				"amount": payload.Amount,
			},
		})
		req, err := payload.toRequest()
		if err != nil {
			var ce *charge.Error
			if errors.As(err, &ce) {
				writeError(w, http.StatusBadRequest, string(ce.Class), ce.Code, ce.Message)
				return
			}
			writeError(w, http.StatusBadRequest, string(charge.ClassValidation), "bad_request", err.Error())
			return
		}

		outcome, err := orch.Process(r.Context(), req)
		if err != nil {
			writeFailure(w, outcome, err)
			return
		}

		resp := map[string]any{
			"state":     string(outcome.State),
			"receiptNo": outcome.ReceiptNo,
		}
		if outcome.Result != nil {
			resp["providerTxId"] = outcome.Result.ProviderTxID
			resp["authCode"] = outcome.Result.AuthCode
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeFailure(w http.ResponseWriter, outcome orchestrator.Outcome, err error) {
	var f *orchestrator.Failure
	if !errors.As(err, &f) {
		writeError(w, http.StatusInternalServerError, "internal", "internal", "charge processing failed")
		return
	}

	body := map[string]any{
		"state": string(outcome.State),
		"error": map[string]string{
			"class":   string(f.Class),
			"code":    f.Code,
			"message": f.Error(),
		},
	}
	// A charged-but-unreconciled failure still carries the provider
	// transaction; the caller must see it.
	if outcome.Result != nil {
		body["providerTxId"] = outcome.Result.ProviderTxID
	}
	writeJSON(w, statusFor(f.Class), body)
}

func statusFor(class charge.Class) int {
	switch class {
	case charge.ClassValidation:
		return http.StatusBadRequest
	case charge.ClassConfiguration:
		return http.StatusUnprocessableEntity
	case charge.ClassDeclined:
		return http.StatusPaymentRequired
	case charge.ClassAuth, charge.ClassRejected:
		return http.StatusBadGateway
	case charge.ClassNetwork, charge.ClassTimeout:
		return http.StatusGatewayTimeout
	case charge.ClassErpWrite:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
