package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pasarela/internal/audit"
	"pasarela/internal/domain/achproof"
	"pasarela/internal/store/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxProofBytes = 8 << 20

// UploadACHProof accepts a multipart voucher upload and stores it pending
// operator review.
func UploadACHProof(repo *postgres.Repo, sink *audit.Resilient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxProofBytes); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "bad_multipart", "request is not valid multipart form data")
			return
		}

		amount, err := decimal.NewFromString(r.FormValue("amount"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid_amount", "amount is not a decimal")
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "missing_image", "proof image file is required")
			return
		}
		defer file.Close()
		image, err := io.ReadAll(io.LimitReader(file, maxProofBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "bad_image", "could not read proof image")
			return
		}

		proof, err := achproof.New(
			r.FormValue("companyCode"),
			r.FormValue("clientCode"),
			r.FormValue("invoiceNo"),
			r.FormValue("transactionNo"),
			amount,
			image,
			header.Header.Get("Content-Type"),
		)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid_proof", err.Error())
			return
		}

		id, err := repo.InsertProof(r.Context(), proof)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storage", "store_failed", "could not store proof")
			return
		}

		sink.Record(r.Context(), audit.Event{
			Type:        audit.EventACHProofUploaded,
			CompanyCode: proof.CompanyCode,
			Reference:   fmt.Sprintf("%d", id),
			Detail: map[string]any{
				"invoice_no":     proof.InvoiceNo,
				"transaction_no": proof.TransactionNo,
				"amount":         proof.Amount.String(),
			},
		})

		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": string(achproof.StatusPending)})
	}
}

type proofDecisionPayload struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// DecideACHProof records the operator's decision. Decided proofs are
// immutable; a second decision conflicts.
func DecideACHProof(repo *postgres.Repo, sink *audit.Resilient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "bad_id", "proof id must be numeric")
			return
		}
		var p proofDecisionPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "bad_json", "request body is not valid JSON")
			return
		}

		status := achproof.StatusRejected
		if p.Approve {
			status = achproof.StatusProcessed
		}
		if err := repo.DecideProof(r.Context(), id, status, p.Note); err != nil {
			if errors.Is(err, postgres.ErrProofNotFound) {
				writeError(w, http.StatusNotFound, "validation", "not_found", "proof not found")
				return
			}
			writeError(w, http.StatusConflict, "validation", "already_decided", err.Error())
			return
		}

		sink.Record(r.Context(), audit.Event{
			Type:      audit.EventACHProofDecided,
			Reference: fmt.Sprintf("%d", id),
			Detail:    map[string]any{"status": string(status), "note": p.Note},
		})

		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": string(status)})
	}
}

func ListACHProofs(repo *postgres.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)
		proofs, err := repo.ListProofs(r.Context(), r.URL.Query().Get("companyCode"), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storage", "list_failed", "could not list proofs")
			return
		}

		type row struct {
			ID            int64  `json:"id"`
			CompanyCode   string `json:"companyCode"`
			ClientCode    string `json:"clientCode"`
			InvoiceNo     string `json:"invoiceNo"`
			TransactionNo string `json:"transactionNo"`
			Amount        string `json:"amount"`
			Status        string `json:"status"`
			Note          string `json:"note,omitempty"`
		}
		out := make([]row, 0, len(proofs))
		for _, p := range proofs {
			out = append(out, row{
				ID: p.ID, CompanyCode: p.CompanyCode, ClientCode: p.ClientCode,
				InvoiceNo: p.InvoiceNo, TransactionNo: p.TransactionNo,
				Amount: p.Amount.StringFixed(2), Status: string(p.Status), Note: p.Note,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out})
	}
}
