package service

import (
	"context"
	"testing"
	"time"

	"debitcard_back/models"
	"debitcard_back/pkg/cache"
	"debitcard_back/pkg/chainclient"
	"debitcard_back/pkg/config"
	"debitcard_back/pkg/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTokenAmount(t *testing.T) {
	cases := []struct {
		usd, price, want string
	}{
		{"100", "0.01", "10000"},
		{"50", "0.5", "100"},
		{"1000", "2", "500"},
	}
	for _, c := range cases {
		got := CalculateTokenAmount(decimal.RequireFromString(c.usd), decimal.RequireFromString(c.price))
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "%s / %s = %s", c.usd, c.price, got)
	}
}

func TestPriceService(t *testing.T) {
	ctx := context.Background()
	amounts, err := config.ParseAmounts("50,100")
	require.NoError(t, err)

	t.Run("fallback is served but not shared", func(t *testing.T) {
		rates := cache.NewMemoryRateCache(time.Minute)
		source := &fakePrices{quote: models.PriceQuote{USD: config.FallbackPrice, Fallback: true}}
		svc := NewPriceService(source, rates, "somnia", config.TopUpConfig{USDAmounts: amounts})

		q := svc.Current(ctx)
		assert.True(t, q.USD.Equal(decimal.RequireFromString("0.01")))
		assert.True(t, q.Fallback)

		_, ok := rates.Get(ctx, "somnia_usd")
		assert.False(t, ok)
	})

	t.Run("current reuses last real quote", func(t *testing.T) {
		rates := cache.NewMemoryRateCache(time.Minute)
		source := &fakePrices{quote: models.PriceQuote{USD: decimal.RequireFromString("0.25")}}
		svc := NewPriceService(source, rates, "somnia", config.TopUpConfig{USDAmounts: amounts})

		svc.Refresh(ctx)
		svc.Current(ctx)
		svc.Current(ctx)
		assert.Equal(t, 1, source.calls)

		opts := svc.Options(ctx)
		require.Len(t, opts, 2)
		assert.True(t, opts[0].Token.Equal(decimal.NewFromInt(200)))
		assert.True(t, opts[1].Token.Equal(decimal.NewFromInt(400)))
	})

	t.Run("refreshes are throttled", func(t *testing.T) {
		source := &fakePrices{quote: models.PriceQuote{USD: decimal.RequireFromString("0.25")}}
		svc := NewPriceService(source, cache.NewMemoryRateCache(time.Minute), "somnia", config.TopUpConfig{USDAmounts: amounts})
		now := time.Now()
		svc.now = func() time.Time { return now }

		for i := 0; i < 5; i++ {
			svc.Refresh(ctx)
		}
		assert.Equal(t, 1, source.calls)

		now = now.Add(minRefreshGap)
		svc.Refresh(ctx)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("shared rate beats a local fallback", func(t *testing.T) {
		rates := cache.NewMemoryRateCache(time.Minute)
		rates.Set(ctx, "somnia_usd", decimal.RequireFromString("0.5"))
		source := &fakePrices{quote: models.PriceQuote{USD: config.FallbackPrice, Fallback: true}}
		svc := NewPriceService(source, rates, "somnia", config.TopUpConfig{USDAmounts: amounts})

		svc.Refresh(ctx)
		q := svc.Current(ctx)
		assert.True(t, q.USD.Equal(decimal.RequireFromString("0.5")))
	})
}

func newAccountFixture() (*AccountService, *fakeStore, *fakePublisher, *cache.MemoryPendingStore) {
	store := newFakeStore()
	pending := cache.NewMemoryPendingStore()
	publisher := &fakePublisher{}
	chain := config.ChainConfig{CurrencySymbol: "SOM", ExplorerURL: "https://explorer.somnia.network"}
	return NewAccountService(store, store, pending, publisher, chain), store, publisher, pending
}

func TestAccount_UnknownWalletIsDeniedWithoutHistory(t *testing.T) {
	svc, store, _, _ := newAccountFixture()
	store.addUser(testWallet, "Ada")

	_, err := svc.Dashboard(context.Background(), "0x0000000000000000000000000000000000000002", false)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 0, store.historyCalls)
}

func TestAccount_DashboardMatchesWalletCaseInsensitively(t *testing.T) {
	svc, store, _, _ := newAccountFixture()
	card, cvv := "4111111111111111", "123"
	u := store.addUser(testWallet, "Ada")
	store.users[u.ID].CardNumber = &card
	store.users[u.ID].CVV = &cvv
	store.users[u.ID].Balance = decimal.RequireFromString("1234.5")

	hash := "0x" + "ab" + "000000000000000000000000000000000000000000000000000000000000cd"
	require.NoError(t, store.CreatePending(context.Background(), models.Transaction{
		ID: uuid.New(), UserID: u.ID, TxHash: hash, Amount: decimal.NewFromInt(10000), Status: models.StatusPending,
	}))

	d, err := svc.Dashboard(context.Background(), "0x71c7656ec7ab88b098defb751b7401b5f6d8976f", false)
	require.NoError(t, err)
	assert.Equal(t, "Ada", d.FullName)
	assert.Equal(t, "1,234.50 SOM", d.BalanceDisplay)
	assert.True(t, d.Card.HasCard)
	assert.False(t, d.Card.Revealed)
	assert.Equal(t, "**** **** **** 1111", d.Card.CardNumber)
	assert.Equal(t, "***", d.Card.CVV)

	require.Len(t, d.Transactions, 1)
	assert.Equal(t, "https://explorer.somnia.network/tx/"+hash, d.Transactions[0].ExplorerURL)
	assert.Equal(t, "10,000.00 SOM (pending)", d.Transactions[0].Display)

	d, err = svc.Dashboard(context.Background(), testWallet, true)
	require.NoError(t, err)
	assert.Equal(t, "4111 1111 1111 1111", d.Card.CardNumber)
	assert.Equal(t, "123", d.Card.CVV)
}

func TestAccount_OnlyConfirmedRowsShowAsCredit(t *testing.T) {
	cases := map[models.TransactionStatus]string{
		models.StatusConfirmed: "+500.00 SOM",
		models.StatusPending:   "500.00 SOM (pending)",
		models.StatusFailed:    "500.00 SOM (failed)",
	}
	for status, want := range cases {
		got := txDisplay(models.Transaction{Amount: decimal.NewFromInt(500), Status: status}, "SOM")
		assert.Equal(t, want, got, status)
	}
}

func TestAccount_HistoryFailureYieldsEmptyList(t *testing.T) {
	svc, store, _, _ := newAccountFixture()
	store.addUser(testWallet, "Ada")
	store.historyErr = errors.New("timeout")

	d, err := svc.Dashboard(context.Background(), testWallet, false)
	require.NoError(t, err)
	assert.NotNil(t, d.Transactions)
	assert.Empty(t, d.Transactions)
}

func TestAccount_ReloadPublishesRequest(t *testing.T) {
	svc, store, publisher, _ := newAccountFixture()
	store.addUser(testWallet, "Ada")

	_, err := svc.RequestReload(context.Background(), testWallet, false)
	require.NoError(t, err)

	sent := publisher.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, testWallet)
}

func TestLedger_CreditTwiceIsNoop(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	u := store.addUser(testWallet, "Ada")
	ledger := NewLedgerService(store, store, publisher, "SOM")

	req := CreditRequest{
		UserID:    u.ID,
		TxHash:    "0xfeed",
		Amount:    decimal.NewFromInt(10000),
		USDAmount: decimal.NewNullDecimal(decimal.NewFromInt(100)),
	}
	_, err := ledger.Credit(context.Background(), req)
	require.NoError(t, err)

	_, err = ledger.Credit(context.Background(), req)
	assert.ErrorIs(t, err, repository.ErrAlreadyCredited)

	assert.True(t, store.balance(u.ID).Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 1, store.txCount())
	assert.Len(t, publisher.sent(), 1)
}

func TestLedger_FailureIsLedgerUpdateError(t *testing.T) {
	store := newFakeStore()
	u := store.addUser(testWallet, "Ada")
	store.creditErr = errors.New("deadlock detected")
	ledger := NewLedgerService(store, store, &fakePublisher{}, "SOM")

	_, err := ledger.Credit(context.Background(), CreditRequest{UserID: u.ID, TxHash: "0x1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrLedgerUpdate)
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	chain := newFakeChain()
	u := store.addUser(testWallet, "Ada")
	ledger := NewLedgerService(store, store, &fakePublisher{}, "SOM")

	hashes := map[string]chainclient.ReceiptStatus{
		"0x0000000000000000000000000000000000000000000000000000000000000001": chainclient.ReceiptSuccess,
		"0x0000000000000000000000000000000000000000000000000000000000000002": chainclient.ReceiptFailed,
		"0x0000000000000000000000000000000000000000000000000000000000000003": chainclient.ReceiptNotFound,
	}
	for hash, status := range hashes {
		require.NoError(t, store.CreatePending(ctx, models.Transaction{
			ID: uuid.New(), UserID: u.ID, TxHash: hash, Amount: decimal.NewFromInt(500), Status: models.StatusPending,
		}))
		chain.statuses[common.HexToHash(hash)] = status
	}

	r := NewReconciler(store, ledger, chain, config.ReconcileConfig{PendingAge: time.Minute, BatchSize: 10})
	r.now = func() time.Time { return time.Now().Add(time.Hour) }

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 3, Credited: 1, Failed: 1, Unchanged: 1}, report)

	for hash, want := range map[string]models.TransactionStatus{
		"0x0000000000000000000000000000000000000000000000000000000000000001": models.StatusConfirmed,
		"0x0000000000000000000000000000000000000000000000000000000000000002": models.StatusFailed,
		"0x0000000000000000000000000000000000000000000000000000000000000003": models.StatusPending,
	} {
		row, _ := store.tx(hash)
		assert.Equal(t, want, row.Status, hash)
	}
	assert.True(t, store.balance(u.ID).Equal(decimal.NewFromInt(500)))

	// young rows are left to their watcher
	r.now = time.Now
	report, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Checked)
}
