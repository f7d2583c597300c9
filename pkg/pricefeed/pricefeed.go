package pricefeed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"debitcard_back/models"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Client quotes the native token in USD from a CoinGecko-compatible API.
type Client struct {
	http     *resty.Client
	tokenID  string
	symbol   string
	fallback decimal.Decimal
}

func New(baseURL, apiKey, tokenID, symbol string, timeout time.Duration, fallback decimal.Decimal) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &Client{
		http:     client,
		tokenID:  tokenID,
		symbol:   symbol,
		fallback: fallback,
	}
}

// FetchUSD never fails: any problem with the API yields the fallback quote.
func (c *Client) FetchUSD(ctx context.Context) models.PriceQuote {
	quote := models.PriceQuote{Symbol: c.symbol, FetchedAt: time.Now()}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           c.tokenID,
			"vs_currencies": "usd",
		}).
		SetResult(map[string]map[string]json.Number{}).
		Get("/simple/price")

	if err != nil {
		return c.degrade(quote, "request failed: "+err.Error())
	}
	if resp.IsError() {
		return c.degrade(quote, "unexpected status "+resp.Status())
	}

	data, ok := resp.Result().(*map[string]map[string]json.Number)
	if !ok || data == nil {
		return c.degrade(quote, "unreadable response")
	}
	raw, ok := (*data)[c.tokenID]["usd"]
	if !ok {
		return c.degrade(quote, "usd price missing for "+c.tokenID)
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil || !price.IsPositive() {
		return c.degrade(quote, "invalid usd price "+raw.String())
	}

	quote.USD = price
	return quote
}

func (c *Client) degrade(quote models.PriceQuote, reason string) models.PriceQuote {
	logrus.WithField("token", c.tokenID).Warnf("price fetch degraded to fallback %s: %s", c.fallback, reason)
	quote.USD = c.fallback
	quote.Fallback = true
	return quote
}
