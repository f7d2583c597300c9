package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TopUpState string

const (
	TopUpIdle              TopUpState = "idle"
	TopUpSubmitting        TopUpState = "submitting"
	TopUpAwaitingSignature TopUpState = "awaiting_signature"
	TopUpBroadcasting      TopUpState = "broadcasting"
	TopUpSubmitted         TopUpState = "submitted"
	TopUpConfirmed         TopUpState = "confirmed"
	TopUpRejected          TopUpState = "rejected"
	TopUpFailed            TopUpState = "failed"
	TopUpLedgerError       TopUpState = "ledger_error"
)

// Active reports whether the slot still blocks a new top-up.
func (s TopUpState) Active() bool {
	switch s {
	case TopUpSubmitting, TopUpAwaitingSignature, TopUpBroadcasting, TopUpSubmitted:
		return true
	}
	return false
}

// PendingTopUp lives between quote and confirmation. It is never written to SQL.
type PendingTopUp struct {
	Wallet      string          `json:"wallet"`
	UserID      uuid.UUID       `json:"user_id"`
	USDAmount   decimal.Decimal `json:"usd_amount"`
	TokenAmount decimal.Decimal `json:"token_amount"`
	Price       decimal.Decimal `json:"price"`
	ValueWei    string          `json:"value_wei"`
	State       TopUpState      `json:"state"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Error       string          `json:"error,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TransferRequest is what the wallet has to sign.
type TransferRequest struct {
	To       string `json:"to"`
	ValueWei string `json:"value_wei"`
	ChainID  int64  `json:"chain_id"`
}

type QuoteInput struct {
	USDAmount decimal.Decimal `json:"usd_amount"`
}

type QuoteResponse struct {
	TopUp    PendingTopUp    `json:"topup"`
	Transfer TransferRequest `json:"transfer"`
}

type SubmitInput struct {
	RawTx string `json:"raw_tx" binding:"required"`
}
