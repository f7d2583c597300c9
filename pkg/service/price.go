package service

import (
	"context"
	"sync"
	"time"

	"debitcard_back/models"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/config"
)

// minRefreshGap is the shortest time between two calls to the price API.
const minRefreshGap = 10 * time.Second

// PriceService holds the last quote. Refresh is driven by the scheduler and
// by explicit user requests.
type PriceService struct {
	source  PriceSource
	rates   cache.RateCache
	key     string
	amounts config.TopUpConfig
	minGap  time.Duration
	now     func() time.Time

	fetchMu   sync.Mutex
	mu        sync.RWMutex
	last      *models.PriceQuote
	fetchedAt time.Time
}

func NewPriceService(source PriceSource, rates cache.RateCache, tokenID string, amounts config.TopUpConfig) *PriceService {
	return &PriceService{
		source:  source,
		rates:   rates,
		key:     tokenID + "_usd",
		amounts: amounts,
		minGap:  minRefreshGap,
		now:     time.Now,
	}
}

// Refresh fetches a new quote unless the last fetch is younger than minGap,
// in which case the last quote is returned.
func (s *PriceService) Refresh(ctx context.Context) models.PriceQuote {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	s.mu.RLock()
	last, fetchedAt := s.last, s.fetchedAt
	s.mu.RUnlock()
	if last != nil && s.now().Sub(fetchedAt) < s.minGap {
		return *last
	}

	quote := s.source.FetchUSD(ctx)

	s.mu.Lock()
	s.last = &quote
	s.fetchedAt = s.now()
	s.mu.Unlock()

	// a fallback must not overwrite a real quote shared with other instances
	if !quote.Fallback {
		s.rates.Set(ctx, s.key, quote.USD)
	}
	return quote
}

// Current returns the last quote, then a shared cached rate, and only then
// goes to the network.
func (s *PriceService) Current(ctx context.Context) models.PriceQuote {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last != nil && !last.Fallback {
		return *last
	}

	if rate, ok := s.rates.Get(ctx, s.key); ok {
		q := models.PriceQuote{USD: rate}
		if last != nil {
			q.Symbol, q.FetchedAt = last.Symbol, last.FetchedAt
		}
		return q
	}
	if last != nil {
		return *last
	}
	return s.Refresh(ctx)
}

// Options lists every selectable amount with its token equivalent.
func (s *PriceService) Options(ctx context.Context) []models.AmountOption {
	quote := s.Current(ctx)
	options := make([]models.AmountOption, 0, len(s.amounts.USDAmounts))
	for _, usd := range s.amounts.USDAmounts {
		opt := models.AmountOption{USD: usd}
		if quote.USD.IsPositive() {
			opt.Token = CalculateTokenAmount(usd, quote.USD)
		}
		options = append(options, opt)
	}
	return options
}
