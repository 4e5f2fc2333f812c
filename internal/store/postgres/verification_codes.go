package postgres

import (
	"context"
	"errors"

	"pasarela/internal/domain/verification"

	"github.com/jackc/pgx/v5"
)

// SupersedeActive flips prior unused codes for the tuple to superseded.
// Supersession keeps the rows: nothing is deleted.
func (r *Repo) SupersedeActive(ctx context.Context, email, clientCode string, queryType verification.QueryType) error {
	_, err := r.db.Exec(ctx, `
		UPDATE verification_codes
		   SET status = 'superseded'
		 WHERE email = $1 AND client_code = $2 AND query_type = $3
		   AND status = 'active' AND used = FALSE`,
		email, clientCode, string(queryType),
	)
	return err
}

func (r *Repo) Create(ctx context.Context, c verification.Code) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO verification_codes(email, code, client_code, query_type, status, used, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,FALSE,$6,$7)
		RETURNING id`,
		c.Email, c.Code, c.ClientCode, string(c.QueryType), string(c.Status), c.CreatedAt, c.ExpiresAt,
	).Scan(&id)
	return id, err
}

// Find matches the full tuple plus the code. A superseded or absent row is a
// not-found: verification fails closed without revealing which field missed.
func (r *Repo) Find(ctx context.Context, email, clientCode string, queryType verification.QueryType, code string) (verification.Code, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, code, client_code, query_type, status, used, created_at, expires_at
		  FROM verification_codes
		 WHERE email = $1 AND client_code = $2 AND query_type = $3 AND code = $4
		 ORDER BY id DESC LIMIT 1`,
		email, clientCode, string(queryType), code,
	)

	var c verification.Code
	var qt, status string
	if err := row.Scan(&c.ID, &c.Email, &c.Code, &c.ClientCode, &qt, &status, &c.Used, &c.CreatedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return verification.Code{}, verification.ErrNotFound
		}
		return verification.Code{}, err
	}
	c.QueryType = verification.QueryType(qt)
	c.Status = verification.Status(status)
	if c.Status == verification.StatusSuperseded {
		return verification.Code{}, verification.ErrNotFound
	}
	return c, nil
}

// ConsumeOnce marks the code used under a conditional update; the row count
// decides the race.
func (r *Repo) ConsumeOnce(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE verification_codes
		   SET used = TRUE, used_at = now()
		 WHERE id = $1 AND used = FALSE`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
