package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RateCache holds the last fetched unit price per key.
type RateCache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool)
	Set(ctx context.Context, key string, rate decimal.Decimal)
}

type cachedRate struct {
	rate      decimal.Decimal
	timestamp time.Time
}

type MemoryRateCache struct {
	mu     sync.Mutex
	rates  map[string]cachedRate
	maxAge time.Duration
	now    func() time.Time
}

func NewMemoryRateCache(maxAge time.Duration) *MemoryRateCache {
	return &MemoryRateCache{
		rates:  make(map[string]cachedRate),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Get returns the rate or false when it is missing or older than maxAge.
func (c *MemoryRateCache) Get(_ context.Context, key string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rates[key]
	if !ok || c.now().Sub(r.timestamp) > c.maxAge {
		return decimal.Zero, false
	}
	return r.rate, true
}

func (c *MemoryRateCache) Set(_ context.Context, key string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rates[key] = cachedRate{rate: rate, timestamp: c.now()}
}

// RedisRateCache shares the last rate between instances. Redis errors degrade
// to a miss and are logged.
type RedisRateCache struct {
	rdb    redis.UniversalClient
	maxAge time.Duration
}

func NewRedisRateCache(rdb redis.UniversalClient, maxAge time.Duration) *RedisRateCache {
	return &RedisRateCache{rdb: rdb, maxAge: maxAge}
}

func rateKey(key string) string { return "rate:" + key }

func (c *RedisRateCache) Get(ctx context.Context, key string) (decimal.Decimal, bool) {
	raw, err := c.rdb.Get(ctx, rateKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.Warnf("rate cache read %s: %s", key, err)
		}
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		logrus.Warnf("rate cache holds garbage for %s: %q", key, raw)
		return decimal.Zero, false
	}
	return rate, true
}

func (c *RedisRateCache) Set(ctx context.Context, key string, rate decimal.Decimal) {
	if err := c.rdb.Set(ctx, rateKey(key), rate.String(), c.maxAge).Err(); err != nil {
		logrus.Warnf("rate cache write %s: %s", key, err)
	}
}
