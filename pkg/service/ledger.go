package service

import (
	"context"
	"time"

	"debitcard_back/pkg/notify"
	"debitcard_back/pkg/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreditRequest struct {
	UserID    uuid.UUID
	TxHash    string
	Amount    decimal.Decimal
	USDAmount decimal.NullDecimal
}

// LedgerService credits confirmed transfers and, once the credit has
// committed, hands a notification to the publisher.
type LedgerService struct {
	ledger    repository.Ledger
	users     repository.Users
	publisher Publisher
	symbol    string
	now       func() time.Time
}

func NewLedgerService(ledger repository.Ledger, users repository.Users, publisher Publisher, symbol string) *LedgerService {
	return &LedgerService{
		ledger:    ledger,
		users:     users,
		publisher: publisher,
		symbol:    symbol,
		now:       time.Now,
	}
}

// Credit returns repository.ErrAlreadyCredited untouched when the hash was
// credited before. Any other failure is ErrLedgerUpdate: the transfer is on
// chain but the balance is not, and nothing retries it.
func (s *LedgerService) Credit(ctx context.Context, req CreditRequest) (repository.CreditResult, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": req.UserID, "tx_hash": req.TxHash})

	res, err := s.ledger.Credit(ctx, repository.CreditInput{
		UserID:    req.UserID,
		TxHash:    req.TxHash,
		Amount:    req.Amount,
		USDAmount: req.USDAmount,
	})
	if errors.Is(err, repository.ErrAlreadyCredited) {
		log.Info("transfer already credited")
		return res, err
	}
	if err != nil {
		log.Errorf("ledger update failed after on-chain confirmation: %s", err)
		return res, errors.Wrap(ErrLedgerUpdate, err.Error())
	}
	log.WithField("balance", res.Balance.String()).Info("top-up credited")

	s.notify(ctx, req, res)
	return res, nil
}

func (s *LedgerService) notify(ctx context.Context, req CreditRequest, res repository.CreditResult) {
	event := notify.TopUp{
		Amount:    res.Amount,
		USDAmount: req.USDAmount.Decimal,
		Symbol:    s.symbol,
		TxHash:    req.TxHash,
		Time:      s.now(),
	}
	if user, err := s.users.GetByID(ctx, req.UserID); err == nil {
		event.Name, event.Wallet = user.FullName, user.WalletAddress
	} else {
		logrus.WithField("user_id", req.UserID).Warnf("notification without user details: %s", err)
	}
	s.publisher.Publish(notify.TopUpCompleted(event))
}
