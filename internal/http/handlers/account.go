package handlers

import (
	"net/http"
	"time"

	domver "pasarela/internal/domain/verification"
	"pasarela/internal/erp"
	"pasarela/internal/verification"

	"github.com/go-chi/chi/v5"
)

// dateRange reads from/to query params (YYYY-MM-DD), defaulting to the last
// twelve months.
func dateRange(r *http.Request) (time.Time, time.Time) {
	to := time.Now()
	from := to.AddDate(-1, 0, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t
		}
	}
	return from, to
}

// ListInvoices returns the client's invoices after consuming a verification
// code issued for the invoices query.
func ListInvoices(svc *verification.Service, hansa erp.Hansa) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		company := q.Get("companyCode")
		clientCode := q.Get("clientCode")
		if company == "" || clientCode == "" {
			writeError(w, http.StatusBadRequest, "validation", "missing_params", "companyCode and clientCode are required")
			return
		}
		if !verifyCode(w, r, svc, q.Get("email"), q.Get("code"), clientCode, domver.QueryInvoices) {
			return
		}

		from, to := dateRange(r)
		invoices, err := hansa.GetInvoices(r.Context(), company, clientCode, from, to)
		if err != nil {
			writeError(w, http.StatusBadGateway, "erp", "erp_query_failed", "could not query invoices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": invoices})
	}
}

// ListReceipts mirrors ListInvoices for the receipts query type.
func ListReceipts(svc *verification.Service, hansa erp.Hansa) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		company := q.Get("companyCode")
		clientCode := q.Get("clientCode")
		if company == "" || clientCode == "" {
			writeError(w, http.StatusBadRequest, "validation", "missing_params", "companyCode and clientCode are required")
			return
		}
		if !verifyCode(w, r, svc, q.Get("email"), q.Get("code"), clientCode, domver.QueryReceipts) {
			return
		}

		from, to := dateRange(r)
		receipts, err := hansa.GetReceipts(r.Context(), company, clientCode, from, to)
		if err != nil {
			writeError(w, http.StatusBadGateway, "erp", "erp_query_failed", "could not query receipts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": receipts})
	}
}

// ListInstallments returns the payment schedule of one invoice. API-key
// protected only; the invoice number was already disclosed by a verified
// invoice listing.
func ListInstallments(hansa erp.Hansa) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		company := r.URL.Query().Get("companyCode")
		invoiceNo := chi.URLParam(r, "invoiceNo")
		if company == "" || invoiceNo == "" {
			writeError(w, http.StatusBadRequest, "validation", "missing_params", "companyCode and invoice number are required")
			return
		}
		items, err := hansa.GetInstallments(r.Context(), company, invoiceNo)
		if err != nil {
			writeError(w, http.StatusBadGateway, "erp", "erp_query_failed", "could not query installments")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": items})
	}
}
