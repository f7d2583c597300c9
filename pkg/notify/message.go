package notify

import (
	"fmt"
	"html"
	"time"

	"debitcard_back/pkg/utils"

	"github.com/shopspring/decimal"
)

// Message is one operator notification. Text is Telegram-flavoured HTML.
type Message struct {
	Subject   string
	Text      string
	ParseMode string
}

type TopUp struct {
	Name      string
	Amount    decimal.Decimal
	USDAmount decimal.Decimal
	Symbol    string
	Wallet    string
	TxHash    string
	Time      time.Time
}

func TopUpCompleted(t TopUp) Message {
	text := "🚀 New Top-up Transaction\n\n" +
		fmt.Sprintf("👤 Name: %s\n", html.EscapeString(t.Name)) +
		fmt.Sprintf("💰 Amount: %s (%s %s)\n", utils.FormatUSD(t.USDAmount), utils.FormatTokens(t.Amount), t.Symbol) +
		fmt.Sprintf("🔗 Wallet: %s\n", t.Wallet) +
		fmt.Sprintf("📋 TX Hash: %s\n", t.TxHash) +
		fmt.Sprintf("⏰ Time: %s", t.Time.UTC().Format("2006-01-02 15:04:05 MST"))
	return Message{Subject: "New top-up", Text: text, ParseMode: "HTML"}
}

func BalanceReloadRequested(name, wallet string) Message {
	text := fmt.Sprintf("🔄 Balance Reload Request\n\nName: %s\nWallet: %s", html.EscapeString(name), wallet)
	return Message{Subject: "Balance reload request", Text: text}
}
