package service

import (
	"context"

	"debitcard_back/models"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/config"
	"debitcard_back/pkg/notify"
	"debitcard_back/pkg/repository"
	"debitcard_back/pkg/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type AccountService struct {
	users     repository.Users
	txs       repository.Transactions
	pending   cache.PendingStore
	publisher Publisher
	chain     config.ChainConfig
}

func NewAccountService(users repository.Users, txs repository.Transactions, pending cache.PendingStore, publisher Publisher, chain config.ChainConfig) *AccountService {
	return &AccountService{
		users:     users,
		txs:       txs,
		pending:   pending,
		publisher: publisher,
		chain:     chain,
	}
}

// Resolve maps a wallet to its user and history. An unknown wallet is
// ErrAccessDenied and no history is read. A history failure yields an empty list.
func (s *AccountService) Resolve(ctx context.Context, wallet string) (models.User, []models.Transaction, error) {
	user, err := s.users.GetByWallet(ctx, wallet)
	if errors.Is(err, repository.ErrNotFound) {
		return user, nil, ErrAccessDenied
	}
	if err != nil {
		return user, nil, err
	}

	txs, err := s.txs.ListByUser(ctx, user.ID)
	if err != nil {
		logrus.WithField("wallet", wallet).Warnf("transaction history unavailable: %s", err)
		txs = []models.Transaction{}
	}
	return user, txs, nil
}

func (s *AccountService) Dashboard(ctx context.Context, wallet string, reveal bool) (models.Dashboard, error) {
	user, txs, err := s.Resolve(ctx, wallet)
	if err != nil {
		return models.Dashboard{}, err
	}

	d := models.Dashboard{
		UserID:         user.ID,
		FullName:       user.FullName,
		WalletAddress:  wallet,
		ShortAddress:   utils.Truncate(wallet),
		Balance:        user.Balance.String(),
		BalanceDisplay: utils.FormatAmount(user.Balance) + " " + s.chain.CurrencySymbol,
		Card:           cardView(user, reveal),
		Transactions:   make([]models.TransactionView, 0, len(txs)),
	}
	for _, tx := range txs {
		d.Transactions = append(d.Transactions, models.TransactionView{
			Transaction: tx,
			ShortHash:   utils.Truncate(tx.TxHash),
			ExplorerURL: utils.ExplorerTxURL(s.chain.ExplorerURL, tx.TxHash),
			Display:     txDisplay(tx, s.chain.CurrencySymbol),
		})
	}

	if p, found, err := s.pending.Get(ctx, wallet); err != nil {
		logrus.WithField("wallet", wallet).Warnf("pending top-up unavailable: %s", err)
	} else if found {
		d.TopUp = &p
	}
	return d, nil
}

// RequestReload notifies operators that the holder wants the balance
// re-synced and returns a fresh dashboard.
func (s *AccountService) RequestReload(ctx context.Context, wallet string, reveal bool) (models.Dashboard, error) {
	d, err := s.Dashboard(ctx, wallet, reveal)
	if err != nil {
		return d, err
	}
	s.publisher.Publish(notify.BalanceReloadRequested(d.FullName, wallet))
	return d, nil
}

// txDisplay shows only confirmed rows as credits.
func txDisplay(tx models.Transaction, symbol string) string {
	amount := utils.FormatAmount(tx.Amount) + " " + symbol
	if tx.Status == models.StatusConfirmed {
		return "+" + amount
	}
	return amount + " (" + string(tx.Status) + ")"
}

func cardView(user models.User, reveal bool) models.CardView {
	v := models.CardView{
		HasCard:  user.HasCard(),
		Revealed: reveal && user.HasCard(),
	}
	v.CardNumber = utils.MaskCardNumber(deref(user.CardNumber), v.Revealed)
	v.CVV = utils.MaskCVV(deref(user.CVV), v.Revealed)
	v.ExpiryDate = deref(user.ExpiryDate)
	if v.Revealed {
		v.BillingAddress = deref(user.BillingAddress)
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
