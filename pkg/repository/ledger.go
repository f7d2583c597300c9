package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type LedgerPostgres struct {
	db *sqlx.DB
}

func NewLedgerPostgres(db *sqlx.DB) *LedgerPostgres {
	return &LedgerPostgres{db: db}
}

// Credit confirms the transaction for in.TxHash and adds its amount to the
// user's balance in one database transaction. Only the transition into
// "confirmed" credits, so a repeated call returns ErrAlreadyCredited and
// changes nothing.
func (r *LedgerPostgres) Credit(ctx context.Context, in CreditInput) (CreditResult, error) {
	var res CreditResult

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, errors.Wrap(err, "begin credit")
	}
	defer tx.Rollback()

	// the recorded amount wins over the caller's when a pending row exists
	err = tx.QueryRowxContext(ctx,
		`UPDATE transactions SET status = 'confirmed'
         WHERE tx_hash = $1 AND status <> 'confirmed'
         RETURNING id, amount`,
		in.TxHash,
	).Scan(&res.TransactionID, &res.Amount)

	if errors.Is(err, sql.ErrNoRows) {
		res.Amount = in.Amount
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO transactions (id, user_id, tx_hash, amount, usd_amount, status)
             VALUES ($1, $2, $3, $4, $5, 'confirmed')
             ON CONFLICT (tx_hash) DO NOTHING
             RETURNING id`,
			uuid.New(), in.UserID, in.TxHash, in.Amount, in.USDAmount,
		).Scan(&res.TransactionID)
		if errors.Is(err, sql.ErrNoRows) {
			return CreditResult{}, ErrAlreadyCredited
		}
	}
	if err != nil {
		return CreditResult{}, errors.Wrap(err, "record confirmed transaction")
	}

	err = tx.QueryRowxContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		res.Amount, in.UserID,
	).Scan(&res.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return CreditResult{}, ErrNotFound
	}
	if err != nil {
		return CreditResult{}, errors.Wrap(err, "update balance")
	}

	if err := tx.Commit(); err != nil {
		return CreditResult{}, errors.Wrap(err, "commit credit")
	}
	return res, nil
}
