package service

import "github.com/shopspring/decimal"

// CalculateTokenAmount converts a USD amount to tokens at price USD per token.
// It does not validate: a zero price panics, so callers check price > 0 first.
func CalculateTokenAmount(usdAmount, price decimal.Decimal) decimal.Decimal {
	return usdAmount.Div(price)
}
