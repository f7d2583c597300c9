package service

import (
	"context"
	"math/big"
	"time"

	"debitcard_back/models"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/chainclient"
	"debitcard_back/pkg/config"
	"debitcard_back/pkg/notify"
	"debitcard_back/pkg/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrAccessDenied     = errors.New("wallet address is not registered")
	ErrInvalidAmount    = errors.New("amount is not one of the selectable top-ups")
	ErrPriceUnavailable = errors.New("price data unavailable")
	ErrTopUpInFlight    = cache.ErrTopUpInFlight
	ErrNoPendingTopUp   = errors.New("no top-up awaiting this action")
	ErrTransferRejected = errors.New("transfer rejected")
	ErrTransferFailed   = errors.New("transfer failed")
	ErrLedgerUpdate     = errors.New("transaction completed but processing failed, contact support")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrSessionsDisabled = errors.New("wallet sessions are not configured")
)

type Account interface {
	Dashboard(ctx context.Context, wallet string, reveal bool) (models.Dashboard, error)
	RequestReload(ctx context.Context, wallet string, reveal bool) (models.Dashboard, error)
}

type TopUp interface {
	Quote(ctx context.Context, wallet string, usd decimal.Decimal) (models.QuoteResponse, error)
	Submit(ctx context.Context, wallet, rawTx string) (models.PendingTopUp, error)
	Reject(ctx context.Context, wallet string) (models.PendingTopUp, error)
	Cancel(ctx context.Context, wallet string) error
	Pending(ctx context.Context, wallet string) (models.PendingTopUp, error)
}

type Price interface {
	Current(ctx context.Context) models.PriceQuote
	Refresh(ctx context.Context) models.PriceQuote
	Options(ctx context.Context) []models.AmountOption
}

type Session interface {
	Enabled() bool
	SignInMessage(at time.Time) string
	Login(ctx context.Context, in models.SessionInput) (string, time.Time, error)
	Parse(token string) (string, error)
}

// PriceSource never fails; it degrades to a fallback quote.
type PriceSource interface {
	FetchUSD(ctx context.Context) models.PriceQuote
}

// Chain is the wallet/RPC layer as seen by the top-up flow.
type Chain interface {
	Treasury() common.Address
	ChainID() int64
	ToWei(amount decimal.Decimal) *big.Int
	DecodeTransfer(rawHex string, wallet common.Address, valueWei *big.Int) (*types.Transaction, error)
	Broadcast(ctx context.Context, tx *types.Transaction) error
	WaitConfirmed(ctx context.Context, hash common.Hash) error
	Status(ctx context.Context, hash common.Hash) (chainclient.ReceiptStatus, error)
}

type Publisher interface {
	Publish(m notify.Message)
}

type Service struct {
	Account
	TopUp
	Price
	Session

	Public models.PublicConfig
}

type Deps struct {
	Repos     *repository.Repository
	Pending   cache.PendingStore
	Rates     cache.RateCache
	Prices    PriceSource
	Chain     Chain
	Publisher Publisher
}

// NewService wires every component. ctx bounds the lifetime of confirmation
// watchers; TopUpService.Wait blocks until they have exited.
func NewService(ctx context.Context, cfg config.Config, deps Deps) (*Service, *TopUpService, *Reconciler) {
	prices := NewPriceService(deps.Prices, deps.Rates, cfg.Price.TokenID, cfg.TopUp)
	ledger := NewLedgerService(deps.Repos.Ledger, deps.Repos.Users, deps.Publisher, cfg.Chain.CurrencySymbol)
	topUp := NewTopUpService(ctx, deps.Repos.Users, deps.Repos.Transactions, ledger, deps.Pending, prices, deps.Chain, cfg.TopUp)
	account := NewAccountService(deps.Repos.Users, deps.Repos.Transactions, deps.Pending, deps.Publisher, cfg.Chain)
	session := NewSessionService(cfg.App.Name, cfg.Auth)
	reconciler := NewReconciler(deps.Repos.Transactions, ledger, deps.Chain, cfg.Reconcile)

	return &Service{
		Account: account,
		TopUp:   topUp,
		Price:   prices,
		Session: session,
		Public:  PublicConfig(cfg),
	}, topUp, reconciler
}

func PublicConfig(cfg config.Config) models.PublicConfig {
	amounts := make([]string, 0, len(cfg.TopUp.USDAmounts))
	for _, a := range cfg.TopUp.USDAmounts {
		amounts = append(amounts, a.String())
	}
	return models.PublicConfig{
		ChainID:          cfg.Chain.ID,
		ChainName:        cfg.Chain.Name,
		CurrencySymbol:   cfg.Chain.CurrencySymbol,
		CurrencyDecimals: cfg.Chain.Decimals,
		RPCURL:           cfg.Chain.RPCURL,
		ExplorerName:     cfg.Chain.ExplorerName,
		ExplorerURL:      cfg.Chain.ExplorerURL,
		TreasuryAddress:  cfg.Treasury,
		TopUpAmounts:     amounts,
		WalletConnectID:  cfg.WalletConnect,
	}
}
