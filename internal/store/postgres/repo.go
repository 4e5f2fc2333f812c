package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo bundles the relational persistence the gateway needs: the audit trail,
// the request log, verification codes, ACH proofs and the notification queue.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{db: db} }

// DB exposes the underlying pool for read-only helpers.
func (r *Repo) DB() *pgxpool.Pool { return r.db }
