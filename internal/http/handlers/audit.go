package handlers

import (
	"net/http"

	"pasarela/internal/store/postgres"
)

// ListAuditEvents exposes the audit trail to operators, newest first.
func ListAuditEvents(repo *postgres.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)
		events, err := repo.ListAuditEvents(r.Context(), r.URL.Query().Get("companyCode"), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storage", "list_failed", "could not list audit events")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": events})
	}
}
