package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pasarela/internal/domain/charge"
	"pasarela/internal/provider/paypal"
)

// CreatePayPalOrder starts the two-phase PayPal flow. The returned order id
// and approve link go back to the caller; the capture happens later through
// the charge endpoint with method paypal.
func CreatePayPalOrder(pp *paypal.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload chargePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, string(charge.ClassValidation), "bad_json", "request body is not valid JSON")
			return
		}
		payload.Method = string(charge.MethodPayPal)
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
		req.Normalize()
		if err := charge.ValidateAllocations(req.Amount, req.Allocations); err != nil {
			var ce *charge.Error
			if errors.As(err, &ce) {
				writeError(w, http.StatusBadRequest, string(ce.Class), ce.Code, ce.Message)
			} else {
				writeError(w, http.StatusBadRequest, string(charge.ClassValidation), "bad_request", err.Error())
			}
			return
		}

		token, err := pp.Authenticate(r.Context(), req.CompanyCode)
		if err != nil {
			writeError(w, http.StatusBadGateway, string(charge.ClassAuth), "auth_failure", "paypal authentication failed")
			return
		}
		order, err := pp.CreateOrder(r.Context(), token, req)
		if err != nil {
			writeError(w, http.StatusBadGateway, string(charge.ClassRejected), "order_failed", "paypal order creation failed")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"orderId":    order.ID,
			"status":     order.Status,
			"approveUrl": order.ApproveLink(),
		})
	}
}
