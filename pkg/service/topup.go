package service

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"debitcard_back/models"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/config"
	"debitcard_back/pkg/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ledgerTimeout bounds the credit after confirmation. The credit does not run
// on the watcher's context.
const ledgerTimeout = 30 * time.Second

// TopUpService runs the top-up lifecycle for one slot per wallet:
// quote, signed submission, confirmation watch and ledger credit.
type TopUpService struct {
	users   repository.Users
	txs     repository.Transactions
	ledger  *LedgerService
	pending cache.PendingStore
	prices  Price
	chain   Chain
	amounts config.TopUpConfig
	now     func() time.Time

	baseCtx  context.Context
	mu       sync.Mutex
	watchers map[string]*watcher
	wg       sync.WaitGroup
}

type watcher struct {
	cancel context.CancelFunc
}

func NewTopUpService(ctx context.Context, users repository.Users, txs repository.Transactions, ledger *LedgerService,
	pending cache.PendingStore, prices Price, chain Chain, amounts config.TopUpConfig) *TopUpService {
	return &TopUpService{
		users:    users,
		txs:      txs,
		ledger:   ledger,
		pending:  pending,
		prices:   prices,
		chain:    chain,
		amounts:  amounts,
		now:      time.Now,
		baseCtx:  ctx,
		watchers: make(map[string]*watcher),
	}
}

// Quote prices usd in tokens and reserves the wallet's slot until the wallet
// signs or declines.
func (s *TopUpService) Quote(ctx context.Context, wallet string, usd decimal.Decimal) (models.QuoteResponse, error) {
	user, err := s.users.GetByWallet(ctx, wallet)
	if errors.Is(err, repository.ErrNotFound) {
		return models.QuoteResponse{}, ErrAccessDenied
	}
	if err != nil {
		return models.QuoteResponse{}, err
	}
	if !s.amounts.AllowsAmount(usd) {
		return models.QuoteResponse{}, ErrInvalidAmount
	}

	p := models.PendingTopUp{
		Wallet:    wallet,
		UserID:    user.ID,
		USDAmount: usd,
		State:     models.TopUpSubmitting,
		UpdatedAt: s.now(),
	}
	if err := s.pending.Acquire(ctx, p); err != nil {
		return models.QuoteResponse{}, err
	}

	quote := s.prices.Current(ctx)
	if !quote.USD.IsPositive() {
		s.release(ctx, wallet)
		return models.QuoteResponse{}, ErrPriceUnavailable
	}
	p.Price = quote.USD
	p.TokenAmount = CalculateTokenAmount(usd, quote.USD)
	wei := s.chain.ToWei(p.TokenAmount)
	if wei.Sign() <= 0 {
		s.release(ctx, wallet)
		return models.QuoteResponse{}, ErrInvalidAmount
	}
	p.ValueWei = wei.String()

	if err := s.transition(ctx, &p, models.TopUpSubmitting, models.TopUpAwaitingSignature); err != nil {
		if !errors.Is(err, ErrNoPendingTopUp) {
			s.release(ctx, wallet)
		}
		return models.QuoteResponse{}, err
	}

	logrus.WithFields(logrus.Fields{
		"wallet": wallet,
		"usd":    usd.String(),
		"tokens": p.TokenAmount.String(),
	}).Info("top-up quoted")

	return models.QuoteResponse{
		TopUp: p,
		Transfer: models.TransferRequest{
			To:       s.chain.Treasury().Hex(),
			ValueWei: p.ValueWei,
			ChainID:  s.chain.ChainID(),
		},
	}, nil
}

// Submit takes the wallet-signed transfer for the quoted slot, records it as
// pending, broadcasts it and starts watching for confirmation. The slot is
// claimed before anything is decoded, so a quote yields at most one
// broadcast. Any failure clears the slot; nothing is retried.
func (s *TopUpService) Submit(ctx context.Context, wallet, rawTx string) (models.PendingTopUp, error) {
	p, found, err := s.pending.Get(ctx, wallet)
	if err != nil {
		return p, err
	}
	if !found || p.State != models.TopUpAwaitingSignature {
		return p, ErrNoPendingTopUp
	}
	log := logrus.WithField("wallet", wallet)

	if err := s.transition(ctx, &p, models.TopUpAwaitingSignature, models.TopUpBroadcasting); err != nil {
		return p, err
	}

	valueWei, ok := new(big.Int).SetString(p.ValueWei, 10)
	if !ok {
		s.release(ctx, wallet)
		return p, errors.Wrapf(ErrTransferFailed, "corrupt quoted value %q", p.ValueWei)
	}

	tx, err := s.chain.DecodeTransfer(rawTx, common.HexToAddress(wallet), valueWei)
	if err != nil {
		s.release(ctx, wallet)
		log.Warnf("signed transfer refused: %s", err)
		return p, errors.Wrap(ErrTransferRejected, err.Error())
	}
	p.TxHash = tx.Hash().Hex()
	log = log.WithField("tx_hash", p.TxHash)

	// cancelled while decoding: nothing written, nothing sent
	if err := s.transition(ctx, &p, models.TopUpBroadcasting, models.TopUpBroadcasting); err != nil {
		return p, err
	}

	err = s.txs.CreatePending(ctx, models.Transaction{
		ID:        uuid.New(),
		UserID:    p.UserID,
		TxHash:    p.TxHash,
		Amount:    p.TokenAmount,
		USDAmount: decimal.NewNullDecimal(p.USDAmount),
		Status:    models.StatusPending,
	})
	if err != nil {
		s.release(ctx, wallet)
		log.Errorf("pending record not written, transfer not broadcast: %s", err)
		return p, errors.Wrap(ErrTransferFailed, err.Error())
	}

	if err := s.chain.Broadcast(ctx, tx); err != nil {
		if mErr := s.txs.MarkFailed(ctx, p.TxHash); mErr != nil {
			log.Errorf("could not mark unbroadcast transfer failed: %s", mErr)
		}
		s.release(ctx, wallet)
		log.Warnf("broadcast refused: %s", err)
		return p, errors.Wrap(ErrTransferFailed, err.Error())
	}

	if err := s.transition(ctx, &p, models.TopUpBroadcasting, models.TopUpSubmitted); err != nil {
		// the transfer is out; the pending row lets the reconciler finish it
		log.Warnf("slot gone after broadcast, leaving transfer to reconciler: %s", err)
		p.State = models.TopUpSubmitted
		return p, nil
	}
	log.Info("top-up submitted")

	s.watch(p)
	return p, nil
}

// Reject records that the user declined to sign.
func (s *TopUpService) Reject(ctx context.Context, wallet string) (models.PendingTopUp, error) {
	p, found, err := s.pending.Get(ctx, wallet)
	if err != nil {
		return p, err
	}
	if !found || p.State != models.TopUpAwaitingSignature {
		return p, ErrNoPendingTopUp
	}
	if err := s.transition(ctx, &p, models.TopUpAwaitingSignature, models.TopUpRejected); err != nil {
		return p, err
	}
	s.release(ctx, wallet)

	logrus.WithField("wallet", wallet).Info("top-up declined in wallet")
	return p, nil
}

// Cancel drops the slot and stops watching. A transfer already broadcast
// stays on chain; its pending row is left for the reconciler.
func (s *TopUpService) Cancel(ctx context.Context, wallet string) error {
	s.mu.Lock()
	if w, ok := s.watchers[watchKey(wallet)]; ok {
		w.cancel()
		delete(s.watchers, watchKey(wallet))
	}
	s.mu.Unlock()

	return s.pending.Release(ctx, wallet)
}

// Pending reports the wallet's slot, or an idle one.
func (s *TopUpService) Pending(ctx context.Context, wallet string) (models.PendingTopUp, error) {
	p, found, err := s.pending.Get(ctx, wallet)
	if err != nil {
		return p, err
	}
	if !found {
		return models.PendingTopUp{Wallet: wallet, State: models.TopUpIdle}, nil
	}
	return p, nil
}

// Wait blocks until every watcher has returned. Watchers stop when the
// service context ends.
func (s *TopUpService) Wait() {
	s.wg.Wait()
}

func (s *TopUpService) watch(p models.PendingTopUp) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	w := &watcher{cancel: cancel}
	key := watchKey(p.Wallet)

	s.mu.Lock()
	if prev, ok := s.watchers[key]; ok {
		prev.cancel()
	}
	s.watchers[key] = w
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.watchers[key] == w {
				delete(s.watchers, key)
			}
			s.mu.Unlock()
			cancel()
		}()
		s.confirm(ctx, p)
	}()
}

// confirm waits for the receipt and settles the slot. It runs once per
// submitted hash.
func (s *TopUpService) confirm(ctx context.Context, p models.PendingTopUp) {
	log := logrus.WithFields(logrus.Fields{"wallet": p.Wallet, "tx_hash": p.TxHash})

	err := s.chain.WaitConfirmed(ctx, common.HexToHash(p.TxHash))
	if ctx.Err() != nil {
		log.Info("stopped watching transfer")
		return
	}

	settle, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()

	if err != nil {
		if mErr := s.txs.MarkFailed(settle, p.TxHash); mErr != nil {
			log.Errorf("could not mark transfer failed: %s", mErr)
		}
		log.Warnf("transfer did not confirm: %s", err)
		p.Error = err.Error()
		s.settle(settle, p, models.TopUpFailed)
		return
	}

	_, err = s.ledger.Credit(settle, CreditRequest{
		UserID:    p.UserID,
		TxHash:    p.TxHash,
		Amount:    p.TokenAmount,
		USDAmount: decimal.NewNullDecimal(p.USDAmount),
	})
	switch {
	case err == nil, errors.Is(err, repository.ErrAlreadyCredited):
		s.settle(settle, p, models.TopUpConfirmed)
	default:
		p.Error = ErrLedgerUpdate.Error()
		s.settle(settle, p, models.TopUpLedgerError)
	}
}

// settle writes the final state if the slot still belongs to p. The result
// stays visible until the next quote overwrites it.
func (s *TopUpService) settle(ctx context.Context, p models.PendingTopUp, state models.TopUpState) {
	cur, found, err := s.pending.Get(ctx, p.Wallet)
	if err != nil || !found || cur.TxHash != p.TxHash {
		return
	}
	if err := s.transition(ctx, &p, models.TopUpSubmitted, state); err != nil && !errors.Is(err, ErrNoPendingTopUp) {
		logrus.WithField("wallet", p.Wallet).Errorf("slot update failed: %s", err)
	}
}

// transition moves p from one state to the next only if the stored slot is
// still in from. A slot moved by a concurrent call is ErrNoPendingTopUp.
func (s *TopUpService) transition(ctx context.Context, p *models.PendingTopUp, from, to models.TopUpState) error {
	next := *p
	next.State = to
	next.UpdatedAt = s.now()
	err := s.pending.Transition(ctx, next, from)
	if errors.Is(err, cache.ErrSlotMoved) {
		return ErrNoPendingTopUp
	}
	if err != nil {
		return err
	}
	*p = next
	return nil
}

func (s *TopUpService) release(ctx context.Context, wallet string) {
	if err := s.pending.Release(ctx, wallet); err != nil {
		logrus.WithField("wallet", wallet).Errorf("release top-up slot: %s", err)
	}
}

func watchKey(wallet string) string {
	return strings.ToLower(wallet)
}
