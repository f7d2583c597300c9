package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	name string
	err  error
	got  []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestTopUpCompletedText(t *testing.T) {
	m := TopUpCompleted(TopUp{
		Name:      "Ada <Admin>",
		Amount:    decimal.NewFromInt(10000),
		USDAmount: decimal.NewFromInt(100),
		Symbol:    "SOM",
		Wallet:    "0xabc",
		TxHash:    "0xdef",
		Time:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	assert.Equal(t, "HTML", m.ParseMode)
	assert.Contains(t, m.Text, "Name: Ada &lt;Admin&gt;")
	assert.Contains(t, m.Text, "Amount: $100.00 (10,000 SOM)")
	assert.Contains(t, m.Text, "TX Hash: 0xdef")
	assert.Contains(t, m.Text, "2026-01-02 03:04:05 UTC")
}

func TestBalanceReloadRequestedText(t *testing.T) {
	m := BalanceReloadRequested("Ada", "0xabc")
	assert.Empty(t, m.ParseMode)
	assert.Equal(t, "🔄 Balance Reload Request\n\nName: Ada\nWallet: 0xabc", m.Text)
}

func TestWebhookSink(t *testing.T) {
	var body webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "-100123")
	require.NoError(t, sink.Send(context.Background(), Message{Text: "hello", ParseMode: "HTML"}))
	assert.Equal(t, webhookPayload{ChatID: "-100123", Text: "hello", ParseMode: "HTML"}, body)
}

func TestWebhookSinkNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.Error(t, NewWebhookSink(srv.URL, "1").Send(context.Background(), Message{Text: "x"}))
}

func TestTelegramSink(t *testing.T) {
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"cards","username":"cards_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			sent = append(sent, r.Form.Get("chat_id")+"|"+r.Form.Get("text")+"|"+r.Form.Get("parse_mode"))
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100123,"type":"group"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	bot, err := tgbotapi.NewBotAPIWithClient("token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)

	sink := NewTelegramSink(bot, "-100123")
	require.NoError(t, sink.Send(context.Background(), Message{Text: "hi", ParseMode: "HTML"}))
	assert.Equal(t, []string{"-100123|hi|HTML"}, sent)
}

func TestRenderMail(t *testing.T) {
	out := renderMail(Message{Subject: "Balance reload request", Text: "Name: <b>\n\nWallet: 0xabc"})
	assert.Contains(t, out, "Balance reload request")
	assert.Contains(t, out, "Name: &lt;b&gt;")
	assert.Contains(t, out, "Wallet: 0xabc")
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	failing := &recordingSink{name: "broken", err: errors.New("boom")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(4, time.Second, failing, ok)
	d.Start()

	d.Publish(Message{Subject: "a"})
	d.Publish(Message{Subject: "b"})
	d.Stop()

	assert.Equal(t, 2, failing.count())
	assert.Equal(t, 2, ok.count())

	// after Stop publishing is dropped, not a panic
	d.Publish(Message{Subject: "c"})
	assert.Equal(t, 2, ok.count())
}

func TestDispatcherWithoutSinksIsNoop(t *testing.T) {
	d := NewDispatcher(1, time.Second)
	d.Start()
	assert.False(t, d.Enabled())
	d.Publish(Message{Subject: "a"})
	d.Stop()
}
