package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is a card holder keyed by wallet address. Card fields stay empty until
// a card is issued out-of-band.
type User struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	WalletAddress  string          `json:"wallet_address" db:"wallet_address"`
	FullName       string          `json:"full_name" db:"full_name"`
	CardNumber     *string         `json:"card_number,omitempty" db:"card_number"`
	ExpiryDate     *string         `json:"expiry_date,omitempty" db:"expiry_date"`
	CVV            *string         `json:"cvv,omitempty" db:"cvv"`
	BillingAddress *string         `json:"billing_address,omitempty" db:"billing_address"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

func (u User) HasCard() bool {
	return u.CardNumber != nil && *u.CardNumber != ""
}

type SessionInput struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}
