package httpx

import (
	"encoding/json"
	"net/http"

	"pasarela/internal/audit"
	"pasarela/internal/config"
	"pasarela/internal/erp"
	"pasarela/internal/http/handlers"
	middlewarex "pasarela/internal/http/middleware"
	"pasarela/internal/orchestrator"
	"pasarela/internal/provider/paypal"
	"pasarela/internal/risk"
	"pasarela/internal/store/postgres"
	"pasarela/internal/verification"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDependencies holds everything the HTTP surface needs.
type RouterDependencies struct {
	Config       config.Cfg
	Orchestrator *orchestrator.Orchestrator
	Verification *verification.Service
	Hansa        erp.Hansa
	Repo         *postgres.Repo
	PayPal       *paypal.Client
	Scorer       risk.Scorer
	Audit        *audit.Resilient
}

// NewRouter wires the public API, the operator surface and the health check.
func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if deps.Repo != nil {
		r.Use(middlewarex.RequestLog(deps.Repo))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"env":    deps.Config.App.Env,
		})
	})

	// Caller-facing API: charge execution, verification, account queries.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.APIKeyAuth(deps.Config.Sec.APIKeyHashes))

		r.Post("/charges", handlers.CreateCharge(deps.Orchestrator, deps.Audit))
		if deps.PayPal != nil {
			r.Post("/paypal/orders", handlers.CreatePayPalOrder(deps.PayPal))
		}

		r.Post("/verification/codes", handlers.IssueCode(deps.Verification, deps.Scorer))
		r.Post("/verification/verify", handlers.VerifyCode(deps.Verification))

		r.Get("/invoices", handlers.ListInvoices(deps.Verification, deps.Hansa))
		r.Get("/invoices/{invoiceNo}/installments", handlers.ListInstallments(deps.Hansa))
		r.Get("/receipts", handlers.ListReceipts(deps.Verification, deps.Hansa))

		r.Post("/ach-proofs", handlers.UploadACHProof(deps.Repo, deps.Audit))
	})

	// Operator surface.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middlewarex.AdminAuth(deps.Config.Sec.AdminToken))

		r.Get("/ach-proofs", handlers.ListACHProofs(deps.Repo))
		r.Post("/ach-proofs/{id}/decision", handlers.DecideACHProof(deps.Repo, deps.Audit))
		r.Get("/audit-events", handlers.ListAuditEvents(deps.Repo))
	})

	return r
}
