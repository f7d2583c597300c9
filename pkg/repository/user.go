package repository

import (
	"context"
	"database/sql"

	"debitcard_back/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const userColumns = `id, wallet_address, full_name, card_number, expiry_date, cvv, billing_address, balance, created_at`

type UserPostgres struct {
	db *sqlx.DB
}

func NewUserPostgres(db *sqlx.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

// GetByWallet matches the address case-insensitively; hex addresses differ only in checksum casing.
func (r *UserPostgres) GetByWallet(ctx context.Context, wallet string) (models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(wallet_address) = lower($1)`
	err := r.db.GetContext(ctx, &user, query, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, errors.Wrap(err, "get user by wallet")
}

func (r *UserPostgres) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, errors.Wrap(err, "get user by id")
}
