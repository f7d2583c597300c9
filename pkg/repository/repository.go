package repository

import (
	"context"
	"time"

	"debitcard_back/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateHash   = errors.New("transaction hash already recorded")
	ErrAlreadyCredited = errors.New("transaction already credited")
)

type Users interface {
	GetByWallet(ctx context.Context, wallet string) (models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type Transactions interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	CreatePending(ctx context.Context, tx models.Transaction) error
	MarkFailed(ctx context.Context, txHash string) error
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)
}

type CreditInput struct {
	UserID    uuid.UUID
	TxHash    string
	Amount    decimal.Decimal
	USDAmount decimal.NullDecimal
}

type CreditResult struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	Balance       decimal.Decimal
}

type Ledger interface {
	Credit(ctx context.Context, in CreditInput) (CreditResult, error)
}

type Repository struct {
	Users
	Transactions
	Ledger
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Users:        NewUserPostgres(db),
		Transactions: NewTransactionPostgres(db),
		Ledger:       NewLedgerPostgres(db),
	}
}
