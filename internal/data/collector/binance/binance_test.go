package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/kolcred/internal/models"
)

type call struct {
	symbol     string
	start, end time.Time
}

type fakeFuturesAPI struct {
	fills      map[string][]fill
	balance    string
	tradesErr  error
	balanceErr error
	calls      []call
}

// AccountTrades 与交易所一致，按闭区间 [start, end] 过滤
func (f *fakeFuturesAPI) AccountTrades(_ context.Context, symbol string, start, end time.Time) ([]fill, error) {
	f.calls = append(f.calls, call{symbol: symbol, start: start, end: end})
	if f.tradesErr != nil {
		return nil, f.tradesErr
	}
	var out []fill
	for _, fl := range f.fills[symbol] {
		if fl.Time >= start.UnixMilli() && fl.Time <= end.UnixMilli() {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (f *fakeFuturesAPI) WalletBalance(_ context.Context) (string, error) {
	return f.balance, f.balanceErr
}

func newTestSource(api *fakeFuturesAPI, now time.Time) *FuturesTradingSource {
	return &FuturesTradingSource{
		newClient: func(_, _ string) futuresAPI { return api },
		window:    defaultWindow,
		now:       func() time.Time { return now },
	}
}

func TestFuturesTradingSource_Name(t *testing.T) {
	assert.Equal(t, "binance", NewFuturesTradingSource().Name())
}

func TestFuturesTradingSource_CollectTradingData(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeFuturesAPI{
		fills: map[string][]fill{
			"BTCUSDT": {
				{QuoteQuantity: "1000", RealizedPnl: "0", Time: now.Add(-20 * 24 * time.Hour).UnixMilli()},
				{QuoteQuantity: "1500", RealizedPnl: "50", Time: now.Add(-time.Hour).UnixMilli()},
			},
			"ETHUSDT": {
				{QuoteQuantity: "2000", RealizedPnl: "-20", Time: now.Add(-3 * 24 * time.Hour).UnixMilli()},
				{QuoteQuantity: "500", RealizedPnl: "30", Time: now.UnixMilli()},
				// outside the window
				{QuoteQuantity: "9000", RealizedPnl: "90", Time: now.Add(-31 * 24 * time.Hour).UnixMilli()},
			},
		},
		balance: "1060",
	}
	src := newTestSource(api, now)

	data, err := src.CollectTradingData(context.Background(), models.ExchangeAccount{
		Exchange:  "binance",
		APIKey:    "key",
		SecretKey: "secret",
		Symbols:   []string{"BTCUSDT", "ETHUSDT"},
	})
	require.NoError(t, err)

	assert.Equal(t, 5000.0, data.Volume30d)
	assert.Equal(t, 4, data.TotalTrades)
	assert.Equal(t, 1250.0, data.AvgTradeSize)
	assert.InDelta(t, 66.6667, data.WinRate, 1e-3)
	assert.InDelta(t, 6.0, data.PnL30d, 1e-9)
	assert.True(t, data.Verified)

	// 30 days in 7-day slices: 5 requests per symbol
	require.Len(t, api.calls, 10)
	assert.Equal(t, now.Add(-defaultWindow), api.calls[0].start)
	assert.Equal(t, now, api.calls[4].end)
	for _, c := range api.calls {
		assert.LessOrEqual(t, c.end.Sub(c.start), maxSliceSpan)
	}
}

func TestFuturesTradingSource_SliceBoundaries(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	start := now.Add(-defaultWindow)

	tests := []struct {
		name string
		at   time.Time
	}{
		{name: "window start", at: start},
		{name: "first slice end", at: start.Add(maxSliceSpan - time.Millisecond)},
		{name: "second slice start", at: start.Add(maxSliceSpan)},
		{name: "last slice start", at: start.Add(4 * maxSliceSpan)},
		{name: "window end", at: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeFuturesAPI{
				fills:   map[string][]fill{"BTCUSDT": {{QuoteQuantity: "1000", RealizedPnl: "10", Time: tt.at.UnixMilli()}}},
				balance: "1010",
			}

			data, err := newTestSource(api, now).CollectTradingData(context.Background(), models.ExchangeAccount{
				APIKey:    "key",
				SecretKey: "secret",
				Symbols:   []string{"BTCUSDT"},
			})
			require.NoError(t, err)
			assert.Equal(t, 1, data.TotalTrades)
			assert.Equal(t, 1000.0, data.Volume30d)
			assert.Equal(t, 1000.0, data.AvgTradeSize)

			for i := 1; i < len(api.calls); i++ {
				assert.True(t, api.calls[i].start.After(api.calls[i-1].end))
			}
		})
	}
}

func TestFuturesClient_AccountTrades(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(maxSliceSpan)
	// 整页最后一毫秒之后还有同一毫秒的成交
	at := start.Add(time.Hour).UnixMilli()

	var queries []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/userTrades", r.URL.Path)
		q := r.URL.Query()
		queries = append(queries, q)

		var trades []map[string]interface{}
		switch q.Get("fromId") {
		case "":
			for id := 1; id <= maxTradesPerRequest; id++ {
				trades = append(trades, map[string]interface{}{"id": id, "time": at, "quoteQty": "10", "realizedPnl": "0"})
			}
		case strconv.Itoa(maxTradesPerRequest + 1):
			trades = []map[string]interface{}{
				{"id": maxTradesPerRequest + 1, "time": at, "quoteQty": "10", "realizedPnl": "1"},
				{"id": maxTradesPerRequest + 2, "time": end.UnixMilli() + 1, "quoteQty": "10", "realizedPnl": "1"},
			}
		default:
			t.Errorf("unexpected fromId %q", q.Get("fromId"))
		}

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(trades))
	}))
	defer server.Close()

	client := futures.NewClient("key", "secret")
	client.BaseURL = server.URL
	client.HTTPClient = server.Client()

	fills, err := (&futuresClient{client: client}).AccountTrades(context.Background(), "BTCUSDT", start, end)
	require.NoError(t, err)

	assert.Len(t, fills, maxTradesPerRequest+1)
	assert.Equal(t, "1", fills[len(fills)-1].RealizedPnl)

	require.Len(t, queries, 2)
	assert.Equal(t, strconv.FormatInt(start.UnixMilli(), 10), queries[0].Get("startTime"))
	assert.Equal(t, strconv.FormatInt(end.UnixMilli(), 10), queries[0].Get("endTime"))
	assert.Empty(t, queries[1].Get("startTime"))
	assert.Empty(t, queries[1].Get("endTime"))
}

func TestFuturesTradingSource_DefaultSymbols(t *testing.T) {
	api := &fakeFuturesAPI{balance: "100"}
	src := newTestSource(api, time.Now())

	data, err := src.CollectTradingData(context.Background(), models.ExchangeAccount{APIKey: "k", SecretKey: "s"})
	require.NoError(t, err)

	assert.Equal(t, 0, data.TotalTrades)
	assert.Equal(t, 0.0, data.WinRate)
	assert.Equal(t, 0.0, data.PnL30d)
	assert.Equal(t, defaultSymbols[0], api.calls[0].symbol)
	assert.Equal(t, defaultSymbols[1], api.calls[len(api.calls)-1].symbol)
}

func TestFuturesTradingSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeFuturesAPI
		account models.ExchangeAccount
	}{
		{
			name:    "missing credentials",
			api:     &fakeFuturesAPI{},
			account: models.ExchangeAccount{APIKey: "k"},
		},
		{
			name:    "trades error",
			api:     &fakeFuturesAPI{tradesErr: errors.New("rate limited")},
			account: models.ExchangeAccount{APIKey: "k", SecretKey: "s"},
		},
		{
			name:    "balance error",
			api:     &fakeFuturesAPI{balanceErr: errors.New("denied")},
			account: models.ExchangeAccount{APIKey: "k", SecretKey: "s"},
		},
		{
			name:    "bad balance",
			api:     &fakeFuturesAPI{balance: "n/a"},
			account: models.ExchangeAccount{APIKey: "k", SecretKey: "s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := newTestSource(tt.api, time.Now()).CollectTradingData(context.Background(), tt.account)
			assert.Error(t, err)
			assert.Nil(t, data)
		})
	}
}

func TestSummarizeFills(t *testing.T) {
	tests := []struct {
		name        string
		fills       []fill
		balance     string
		expectError bool
		wantPnL     float64
		wantWinRate float64
	}{
		{
			name:        "all losses",
			fills:       []fill{{QuoteQuantity: "100", RealizedPnl: "-10"}, {QuoteQuantity: "100", RealizedPnl: "-10"}},
			balance:     "980",
			wantPnL:     -2,
			wantWinRate: 0,
		},
		{
			name:    "balance fully realized",
			fills:   []fill{{QuoteQuantity: "100", RealizedPnl: "50"}},
			balance: "50",
			// base is zero, pnl percent undefined
			wantPnL:     0,
			wantWinRate: 100,
		},
		{
			name:        "bad quote",
			fills:       []fill{{QuoteQuantity: "x", RealizedPnl: "0"}},
			balance:     "1",
			expectError: true,
		},
		{
			name:        "bad pnl",
			fills:       []fill{{QuoteQuantity: "1", RealizedPnl: "x"}},
			balance:     "1",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := summarizeFills(tt.fills, tt.balance)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPnL, data.PnL30d, 1e-9)
			assert.InDelta(t, tt.wantWinRate, data.WinRate, 1e-9)
		})
	}
}
