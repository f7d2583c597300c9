package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
)

type Transaction struct {
	ID        uuid.UUID           `json:"id" db:"id"`
	UserID    uuid.UUID           `json:"user_id" db:"user_id"`
	TxHash    string              `json:"tx_hash" db:"tx_hash"`
	Amount    decimal.Decimal     `json:"amount" db:"amount"`
	USDAmount decimal.NullDecimal `json:"usd_amount" db:"usd_amount"`
	Status    TransactionStatus   `json:"status" db:"status"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}
