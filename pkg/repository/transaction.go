package repository

import (
	"context"
	"time"

	"debitcard_back/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const transactionColumns = `id, user_id, tx_hash, amount, usd_amount, status, created_at`

const uniqueViolation = "23505"

type TransactionPostgres struct {
	db *sqlx.DB
}

func NewTransactionPostgres(db *sqlx.DB) *TransactionPostgres {
	return &TransactionPostgres{db: db}
}

func (r *TransactionPostgres) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &txs, query, userID); err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	return txs, nil
}

// CreatePending records a submitted transfer before it is broadcast.
func (r *TransactionPostgres) CreatePending(ctx context.Context, tx models.Transaction) error {
	query := `
        INSERT INTO transactions (id, user_id, tx_hash, amount, usd_amount, status)
        VALUES ($1, $2, $3, $4, $5, 'pending')
    `
	_, err := r.db.ExecContext(ctx, query, tx.ID, tx.UserID, tx.TxHash, tx.Amount, tx.USDAmount)
	if isUniqueViolation(err) {
		return ErrDuplicateHash
	}
	return errors.Wrap(err, "create pending transaction")
}

func (r *TransactionPostgres) MarkFailed(ctx context.Context, txHash string) error {
	query := `UPDATE transactions SET status = 'failed' WHERE tx_hash = $1 AND status = 'pending'`
	_, err := r.db.ExecContext(ctx, query, txHash)
	return errors.Wrap(err, "mark transaction failed")
}

func (r *TransactionPostgres) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions
        WHERE status = 'pending' AND created_at < $1
        ORDER BY created_at
        LIMIT $2`
	if err := r.db.SelectContext(ctx, &txs, query, createdBefore, limit); err != nil {
		return nil, errors.Wrap(err, "list pending transactions")
	}
	return txs, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
