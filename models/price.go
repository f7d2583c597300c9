package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PriceQuote struct {
	Symbol    string          `json:"symbol"`
	USD       decimal.Decimal `json:"usd"`
	Fallback  bool            `json:"fallback"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// AmountOption is one selectable top-up with its token equivalent at the current price.
type AmountOption struct {
	USD   decimal.Decimal `json:"usd"`
	Token decimal.Decimal `json:"token"`
}
