package models

import (
	"github.com/google/uuid"
)

type CardView struct {
	HasCard        bool   `json:"has_card"`
	CardNumber     string `json:"card_number"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
	CVV            string `json:"cvv"`
	BillingAddress string `json:"billing_address,omitempty"`
	Revealed       bool   `json:"revealed"`
}

type TransactionView struct {
	Transaction
	ShortHash   string `json:"short_hash"`
	ExplorerURL string `json:"explorer_url"`
	Display     string `json:"display"`
}

type Dashboard struct {
	UserID         uuid.UUID         `json:"user_id"`
	FullName       string            `json:"full_name"`
	WalletAddress  string            `json:"wallet_address"`
	ShortAddress   string            `json:"short_address"`
	Balance        string            `json:"balance"`
	BalanceDisplay string            `json:"balance_display"`
	Card           CardView          `json:"card"`
	Transactions   []TransactionView `json:"transactions"`
	TopUp          *PendingTopUp     `json:"topup,omitempty"`
}

// PublicConfig is what the browser needs before a wallet is connected.
type PublicConfig struct {
	ChainID          int64    `json:"chain_id"`
	ChainName        string   `json:"chain_name"`
	CurrencySymbol   string   `json:"currency_symbol"`
	CurrencyDecimals int32    `json:"currency_decimals"`
	RPCURL           string   `json:"rpc_url"`
	ExplorerName     string   `json:"explorer_name"`
	ExplorerURL      string   `json:"explorer_url"`
	TreasuryAddress  string   `json:"treasury_address"`
	TopUpAmounts     []string `json:"topup_amounts"`
	WalletConnectID  string   `json:"walletconnect_project_id"`
}
