package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	domver "pasarela/internal/domain/verification"
	"pasarela/internal/risk"
	"pasarela/internal/verification"

	"github.com/rs/zerolog/log"
)

type issueCodePayload struct {
	Email      string `json:"email"`
	ClientCode string `json:"clientCode"`
	QueryType  string `json:"queryType"`
	RiskToken  string `json:"riskToken,omitempty"`
}

// IssueCode generates and emails a one-time code gating account queries. When
// a scorer is configured the request must carry a passing risk token.
func IssueCode(svc *verification.Service, scorer risk.Scorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p issueCodePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "bad_json", "request body is not valid JSON")
			return
		}
		qt, ok := queryType(p.QueryType)
		if !ok {
			writeError(w, http.StatusBadRequest, "validation", "unknown_query_type", "queryType must be invoices or receipts")
			return
		}

		if scorer != nil {
			a, err := scorer.Verify(r.Context(), p.RiskToken, "issue_code")
			if err != nil {
				log.Warn().Err(err).Msg("risk check unavailable")
				writeError(w, http.StatusServiceUnavailable, "risk", "risk_unavailable", "risk check unavailable, try again")
				return
			}
			if !a.Valid {
				writeError(w, http.StatusForbidden, "risk", "risk_rejected", "request rejected by risk check")
				return
			}
		}

		code, err := svc.Issue(r.Context(), p.Email, p.ClientCode, qt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "issue_failed", err.Error())
			return
		}
		// The code itself travels only by email.
		writeJSON(w, http.StatusCreated, map[string]any{
			"status":    "sent",
			"expiresAt": code.ExpiresAt,
		})
	}
}

type verifyCodePayload struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	ClientCode string `json:"clientCode"`
	QueryType  string `json:"queryType"`
}

// VerifyCode consumes a code directly, without running the gated query. The
// code is single-use either way.
func VerifyCode(svc *verification.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p verifyCodePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "bad_json", "request body is not valid JSON")
			return
		}
		qt, ok := queryType(p.QueryType)
		if !ok {
			writeError(w, http.StatusBadRequest, "validation", "unknown_query_type", "queryType must be invoices or receipts")
			return
		}
		if !verifyCode(w, r, svc, p.Email, p.Code, p.ClientCode, qt) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
	}
}

func queryType(s string) (domver.QueryType, bool) {
	switch domver.QueryType(s) {
	case domver.QueryInvoices:
		return domver.QueryInvoices, true
	case domver.QueryReceipts:
		return domver.QueryReceipts, true
	default:
		return "", false
	}
}

// verifyCode maps verification errors onto responses shared by the gated
// query handlers.
func verifyCode(w http.ResponseWriter, r *http.Request, svc *verification.Service, email, code, clientCode string, qt domver.QueryType) bool {
	err := svc.Verify(r.Context(), email, code, clientCode, qt)
	switch {
	case err == nil:
		return true
	case errors.Is(err, domver.ErrExpired):
		writeError(w, http.StatusForbidden, "verification", "code_expired", "verification code expired, request a new one")
	case errors.Is(err, domver.ErrAlreadyUsed):
		writeError(w, http.StatusForbidden, "verification", "code_used", "verification code already used")
	case errors.Is(err, domver.ErrNotFound):
		writeError(w, http.StatusForbidden, "verification", "code_invalid", "verification code is not valid")
	default:
		writeError(w, http.StatusInternalServerError, "verification", "verify_failed", "could not verify code")
	}
	return false
}
