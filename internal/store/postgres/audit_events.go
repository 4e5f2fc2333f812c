package postgres

import (
	"context"
	"encoding/json"
	"time"

	"pasarela/internal/audit"
)

type AuditEventRow struct {
	ID          int64           `json:"id"`
	EventType   string          `json:"eventType"`
	CompanyCode string          `json:"companyCode"`
	Reference   string          `json:"reference"`
	Detail      json.RawMessage `json:"detail"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Record appends one audit event. Append-only by construction: there is no
// update or delete path for audit_events in this repo.
func (r *Repo) Record(ctx context.Context, e audit.Event) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		detail = []byte("{}")
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_events(event_type, company_code, reference, detail, occurred_at)
		VALUES ($1,$2,$3,$4,$5)`,
		string(e.Type), e.CompanyCode, e.Reference, detail, e.OccurredAt,
	)
	return err
}

func (r *Repo) ListAuditEvents(ctx context.Context, companyCode string, limit, offset int) ([]AuditEventRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_type, company_code, reference, detail, occurred_at
		  FROM audit_events
		 WHERE ($1 = '' OR company_code = $1)
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`,
		companyCode, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEventRow
	for rows.Next() {
		var e AuditEventRow
		if err := rows.Scan(&e.ID, &e.EventType, &e.CompanyCode, &e.Reference, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertRequestLog appends one HTTP request record, best-effort from the
// middleware's point of view.
func (r *Repo) InsertRequestLog(ctx context.Context, method, path, remoteAddr string, status int, durationMS int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO request_log(method, path, remote_addr, status, duration_ms)
		VALUES ($1,$2,$3,$4,$5)`,
		method, path, remoteAddr, status, durationMS,
	)
	return err
}
