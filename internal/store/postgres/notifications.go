package postgres

import (
	"context"

	"pasarela/internal/notify"
)

func (r *Repo) Enqueue(ctx context.Context, m notify.Message) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications(recipient, subject, body, status, attempts, created_at)
		VALUES ($1,$2,$3,'pending',0,now())`,
		m.To, m.Subject, m.HTMLBody,
	)
	return err
}

func (r *Repo) FetchPending(ctx context.Context, limit int) ([]notify.Pending, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, recipient, subject, body, attempts, created_at
		  FROM notifications
		 WHERE status = 'pending'
		 ORDER BY id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Pending
	for rows.Next() {
		var p notify.Pending
		if err := rows.Scan(&p.ID, &p.Message.To, &p.Message.Subject, &p.Message.HTMLBody, &p.Attempts, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = now() WHERE id = $1`, id)
	return err
}

// MarkFailed bumps the attempt counter; abandoned messages leave the pending
// pool for good.
func (r *Repo) MarkFailed(ctx context.Context, id int64, attempts int, abandoned bool) error {
	status := "pending"
	if abandoned {
		status = "abandoned"
	}
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET attempts = $2, status = $3 WHERE id = $1`,
		id, attempts, status)
	return err
}
