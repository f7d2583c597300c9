package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"debitcard_back/models"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

//go:embed lua/acquire.lua
var luaAcquire string

//go:embed lua/transition.lua
var luaTransition string

var (
	ErrTopUpInFlight = errors.New("a top-up is already in flight for this wallet")
	ErrSlotMoved     = errors.New("top-up slot is no longer in the expected state")
)

// PendingStore keeps one top-up slot per wallet. A slot in an active state
// blocks Acquire; a finished one is overwritten.
type PendingStore interface {
	Acquire(ctx context.Context, p models.PendingTopUp) error
	Get(ctx context.Context, wallet string) (models.PendingTopUp, bool, error)
	// Transition writes p only if the slot exists and is in state from,
	// otherwise it returns ErrSlotMoved.
	Transition(ctx context.Context, p models.PendingTopUp, from models.TopUpState) error
	Release(ctx context.Context, wallet string) error
}

func slotKey(wallet string) string {
	return "topup:{" + strings.ToLower(wallet) + "}"
}

type MemoryPendingStore struct {
	mu    sync.Mutex
	slots map[string]models.PendingTopUp
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{slots: make(map[string]models.PendingTopUp)}
}

func (s *MemoryPendingStore) Acquire(_ context.Context, p models.PendingTopUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey(p.Wallet)
	if cur, ok := s.slots[key]; ok && cur.State.Active() {
		return ErrTopUpInFlight
	}
	s.slots[key] = p
	return nil
}

func (s *MemoryPendingStore) Get(_ context.Context, wallet string) (models.PendingTopUp, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.slots[slotKey(wallet)]
	return p, ok, nil
}

func (s *MemoryPendingStore) Transition(_ context.Context, p models.PendingTopUp, from models.TopUpState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey(p.Wallet)
	if cur, ok := s.slots[key]; !ok || cur.State != from {
		return ErrSlotMoved
	}
	s.slots[key] = p
	return nil
}

func (s *MemoryPendingStore) Release(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, slotKey(wallet))
	return nil
}

type RedisPendingStore struct {
	rdb           redis.UniversalClient
	scrAcquire    *redis.Script
	scrTransition *redis.Script
}

func NewRedisPendingStore(rdb redis.UniversalClient) *RedisPendingStore {
	return &RedisPendingStore{
		rdb:           rdb,
		scrAcquire:    redis.NewScript(luaAcquire),
		scrTransition: redis.NewScript(luaTransition),
	}
}

func (s *RedisPendingStore) Acquire(ctx context.Context, p models.PendingTopUp) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode top-up")
	}
	ok, err := s.scrAcquire.Run(ctx, s.rdb, []string{slotKey(p.Wallet)}, string(raw)).Int()
	if err != nil {
		return errors.Wrap(err, "acquire top-up slot")
	}
	if ok == 0 {
		return ErrTopUpInFlight
	}
	return nil
}

func (s *RedisPendingStore) Get(ctx context.Context, wallet string) (models.PendingTopUp, bool, error) {
	var p models.PendingTopUp
	raw, err := s.rdb.Get(ctx, slotKey(wallet)).Bytes()
	if err == redis.Nil {
		return p, false, nil
	}
	if err != nil {
		return p, false, errors.Wrap(err, "read top-up slot")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, false, errors.Wrap(err, "decode top-up slot")
	}
	return p, true, nil
}

func (s *RedisPendingStore) Transition(ctx context.Context, p models.PendingTopUp, from models.TopUpState) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode top-up")
	}
	ok, err := s.scrTransition.Run(ctx, s.rdb, []string{slotKey(p.Wallet)}, string(from), string(raw)).Int()
	if err != nil {
		return errors.Wrap(err, "transition top-up slot")
	}
	if ok == 0 {
		return ErrSlotMoved
	}
	return nil
}

func (s *RedisPendingStore) Release(ctx context.Context, wallet string) error {
	return errors.Wrap(s.rdb.Del(ctx, slotKey(wallet)).Err(), "release top-up slot")
}
