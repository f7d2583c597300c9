package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

const hiddenCard = "**** **** **** ****"

// Truncate keeps the first six and last four characters: 0x582c...14aa.
func Truncate(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

func MaskCardNumber(number string, reveal bool) string {
	if number == "" {
		return hiddenCard
	}
	if !reveal {
		if len(number) < 4 {
			return hiddenCard
		}
		return "**** **** **** " + number[len(number)-4:]
	}
	var b strings.Builder
	for i, r := range number {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func MaskCVV(cvv string, reveal bool) string {
	if cvv == "" || !reveal {
		return "***"
	}
	return cvv
}

// FormatAmount renders d with two decimals and thousands separators.
func FormatAmount(d decimal.Decimal) string {
	return group(d.StringFixed(2))
}

// FormatTokens renders up to three decimals, dropping trailing zeros.
func FormatTokens(d decimal.Decimal) string {
	return group(d.Round(3).String())
}

func FormatUSD(d decimal.Decimal) string {
	return "$" + FormatAmount(d)
}

func ExplorerTxURL(base, hash string) string {
	return strings.TrimRight(base, "/") + "/tx/" + hash
}

func group(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
