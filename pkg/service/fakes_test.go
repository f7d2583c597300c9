package service

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"debitcard_back/models"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/chainclient"
	"debitcard_back/pkg/notify"
	"debitcard_back/pkg/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	testTreasury = "0x582ca7856CEbAbC9eE62E24a7b8D1Bb2fF9814aa"
	testWallet   = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
)

// fakeStore plays the users, transactions and ledger tables with the same
// hash uniqueness and credit rules as Postgres.
type fakeStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*models.User
	txs          map[string]*models.Transaction
	historyErr   error
	historyCalls int
	createErr    error
	creditErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[uuid.UUID]*models.User),
		txs:   make(map[string]*models.Transaction),
	}
}

func (s *fakeStore) addUser(wallet, name string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.New(), WalletAddress: wallet, FullName: name, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return *u
}

func (s *fakeStore) balance(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

func (s *fakeStore) tx(hash string) (models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[hash]
	if !ok {
		return models.Transaction{}, false
	}
	return *t, true
}

func (s *fakeStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *fakeStore) GetByWallet(_ context.Context, wallet string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.WalletAddress, wallet) {
			return *u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyCalls++
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	var out []models.Transaction
	for _, t := range s.txs {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) CreatePending(_ context.Context, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.txs[tx.TxHash]; ok {
		return repository.ErrDuplicateHash
	}
	tx.CreatedAt = time.Now()
	s.txs[tx.TxHash] = &tx
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.txs[hash]; ok && t.Status == models.StatusPending {
		t.Status = models.StatusFailed
	}
	return nil
}

func (s *fakeStore) ListPending(_ context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.txs {
		if t.Status == models.StatusPending && t.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeStore) Credit(_ context.Context, in repository.CreditInput) (repository.CreditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creditErr != nil {
		return repository.CreditResult{}, s.creditErr
	}
	u, ok := s.users[in.UserID]
	if !ok {
		return repository.CreditResult{}, errors.New("user not found")
	}

	t, ok := s.txs[in.TxHash]
	switch {
	case ok && t.Status == models.StatusConfirmed:
		return repository.CreditResult{}, repository.ErrAlreadyCredited
	case ok:
		t.Status = models.StatusConfirmed
	default:
		t = &models.Transaction{
			ID:        uuid.New(),
			UserID:    in.UserID,
			TxHash:    in.TxHash,
			Amount:    in.Amount,
			USDAmount: in.USDAmount,
			Status:    models.StatusConfirmed,
			CreatedAt: time.Now(),
		}
		s.txs[in.TxHash] = t
	}
	u.Balance = u.Balance.Add(t.Amount)
	return repository.CreditResult{TransactionID: t.ID, Amount: t.Amount, Balance: u.Balance}, nil
}

// fakeChain keeps the real unit conversion and treasury of chainclient.Client
// and scripts everything that would touch the network.
type fakeChain struct {
	*chainclient.Client

	mu           sync.Mutex
	decodeErr    error
	broadcastErr error
	onBroadcast  func()
	broadcast    []*types.Transaction
	statuses     map[common.Hash]chainclient.ReceiptStatus
	result       chan error
	nonce        uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		Client:   chainclient.New(nil, 5031, testTreasury, 18, time.Millisecond),
		statuses: make(map[common.Hash]chainclient.ReceiptStatus),
		result:   make(chan error, 1),
	}
}

func (c *fakeChain) DecodeTransfer(_ string, _ common.Address, valueWei *big.Int) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decodeErr != nil {
		return nil, c.decodeErr
	}
	c.nonce++
	to := c.Treasury()
	return types.NewTx(&types.LegacyTx{Nonce: c.nonce, To: &to, Value: valueWei, Gas: 21000, GasPrice: big.NewInt(1)}), nil
}

func (c *fakeChain) Broadcast(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	hook := c.onBroadcast
	if c.broadcastErr != nil {
		c.mu.Unlock()
		return c.broadcastErr
	}
	c.broadcast = append(c.broadcast, tx)
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (c *fakeChain) broadcastCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.broadcast)
}

// WaitConfirmed blocks until the test feeds a result or ctx ends.
func (c *fakeChain) WaitConfirmed(ctx context.Context, _ common.Hash) error {
	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeChain) Status(_ context.Context, hash common.Hash) (chainclient.ReceiptStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[hash], nil
}

// gatedPendingStore holds the next n Get calls after arm until all of them have
// arrived, so callers race on the same snapshot of the slot.
type gatedPendingStore struct {
	cache.PendingStore

	mu      sync.Mutex
	waiting int
	gate    chan struct{}
}

func newGatedPendingStore(inner cache.PendingStore) *gatedPendingStore {
	return &gatedPendingStore{PendingStore: inner, gate: make(chan struct{})}
}

func (s *gatedPendingStore) arm(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting = n
}

func (s *gatedPendingStore) Get(ctx context.Context, wallet string) (models.PendingTopUp, bool, error) {
	p, found, err := s.PendingStore.Get(ctx, wallet)

	s.mu.Lock()
	gated := s.waiting > 0
	if gated {
		s.waiting--
		if s.waiting == 0 {
			close(s.gate)
		}
	}
	s.mu.Unlock()

	if gated {
		<-s.gate
	}
	return p, found, err
}

type fakePrices struct {
	mu    sync.Mutex
	quote models.PriceQuote
	calls int
}

func (p *fakePrices) FetchUSD(_ context.Context) models.PriceQuote {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.quote
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (p *fakePublisher) Publish(m notify.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m)
}

func (p *fakePublisher) sent() []notify.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Message(nil), p.messages...)
}
