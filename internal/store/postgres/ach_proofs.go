package postgres

import (
	"context"
	"errors"
	"fmt"

	"pasarela/internal/domain/achproof"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrProofNotFound = errors.New("ach proof not found")

func (r *Repo) InsertProof(ctx context.Context, p *achproof.Proof) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO ach_proofs(company_code, client_code, invoice_no, transaction_no, amount, image, content_type, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		p.CompanyCode, p.ClientCode, p.InvoiceNo, p.TransactionNo,
		p.Amount.StringFixed(2), p.Image, p.ContentType, string(p.Status), p.CreatedAt,
	).Scan(&id)
	return id, err
}

func (r *Repo) GetProof(ctx context.Context, id int64) (*achproof.Proof, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, company_code, client_code, invoice_no, transaction_no, amount, image, content_type, status, note, created_at, decided_at
		  FROM ach_proofs
		 WHERE id = $1`,
		id,
	)
	return scanProof(row)
}

// DecideProof transitions a pending proof to its terminal state. The update
// guards on status so a second decision loses and reports the conflict.
func (r *Repo) DecideProof(ctx context.Context, id int64, status achproof.Status, note string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ach_proofs
		   SET status = $2, note = $3, decided_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, string(status), note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		cur, err := r.GetProof(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("ach proof %d already %s", id, cur.Status)
	}
	return nil
}

// ListProofs returns proofs for a company, newest first, without the image
// payload.
func (r *Repo) ListProofs(ctx context.Context, companyCode string, limit, offset int) ([]*achproof.Proof, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, company_code, client_code, invoice_no, transaction_no, amount, ''::bytea, content_type, status, note, created_at, decided_at
		  FROM ach_proofs
		 WHERE ($1 = '' OR company_code = $1)
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`,
		companyCode, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*achproof.Proof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProof(row pgx.Row) (*achproof.Proof, error) {
	var p achproof.Proof
	var amount, status string
	err := row.Scan(&p.ID, &p.CompanyCode, &p.ClientCode, &p.InvoiceNo, &p.TransactionNo,
		&amount, &p.Image, &p.ContentType, &status, &p.Note, &p.CreatedAt, &p.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProofNotFound
		}
		return nil, err
	}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("ach proof %d: bad amount %q: %w", p.ID, amount, err)
	}
	p.Status = achproof.Status(status)
	return &p, nil
}
