package binance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/songzhibin97/kolcred/internal/models"
)

const (
	defaultWindow = 30 * 24 * time.Hour

	// 合约成交记录接口单次最多查询 7 天
	maxSliceSpan = 7 * 24 * time.Hour

	maxTradesPerRequest = 1000
)

var defaultSymbols = []string{"BTCUSDT", "ETHUSDT"}

// fill is a single futures account trade.
type fill struct {
	QuoteQuantity string
	RealizedPnl   string
	Time          int64
}

// futuresAPI is the subset of the futures client used to build trading data.
type futuresAPI interface {
	AccountTrades(ctx context.Context, symbol string, start, end time.Time) ([]fill, error)
	WalletBalance(ctx context.Context) (string, error)
}

// FuturesTradingSource implements TradingSource for Binance USDⓈ-M futures
type FuturesTradingSource struct {
	newClient func(apiKey, secretKey string) futuresAPI
	window    time.Duration
	now       func() time.Time
}

// NewFuturesTradingSource creates a new FuturesTradingSource instance
func NewFuturesTradingSource(testnet ...bool) *FuturesTradingSource {
	testnet = append(testnet, false)
	if testnet[0] {
		futures.UseTestnet = true
	}

	return &FuturesTradingSource{
		newClient: func(apiKey, secretKey string) futuresAPI {
			return &futuresClient{client: futures.NewClient(apiKey, secretKey)}
		},
		window: defaultWindow,
		now:    time.Now,
	}
}

func (b *FuturesTradingSource) Name() string {
	return "binance"
}

// CollectTradingData implements TradingSource interface
func (b *FuturesTradingSource) CollectTradingData(ctx context.Context, account models.ExchangeAccount) (*models.TradingData, error) {
	if account.APIKey == "" || account.SecretKey == "" {
		return nil, errors.New("binance api key and secret key are required")
	}

	symbols := account.Symbols
	if len(symbols) == 0 {
		symbols = defaultSymbols
	}

	api := b.newClient(account.APIKey, account.SecretKey)

	end := b.now()
	start := end.Add(-b.window)

	var fills []fill
	for _, symbol := range symbols {
		// 起止时间均为闭区间，相邻时间片错开 1ms
		for from := start; from.Before(end); {
			to := from.Add(maxSliceSpan - time.Millisecond)
			if to.After(end) {
				to = end
			}

			list, err := api.AccountTrades(ctx, symbol, from, to)
			if err != nil {
				return nil, fmt.Errorf("failed to list trades for %s: %w", symbol, err)
			}
			fills = append(fills, list...)
			from = to.Add(time.Millisecond)
		}
	}

	balance, err := api.WalletBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	return summarizeFills(fills, balance)
}

// summarizeFills turns raw fills into 30-day trading data. PnL is realized
// profit relative to the balance at the start of the window.
func summarizeFills(fills []fill, walletBalance string) (*models.TradingData, error) {
	volume := decimal.Zero
	realized := decimal.Zero
	var wins, closes int

	for _, f := range fills {
		quote, err := decimal.NewFromString(f.QuoteQuantity)
		if err != nil {
			return nil, fmt.Errorf("failed to parse quote quantity: %w", err)
		}
		pnl, err := decimal.NewFromString(f.RealizedPnl)
		if err != nil {
			return nil, fmt.Errorf("failed to parse realized pnl: %w", err)
		}

		volume = volume.Add(quote.Abs())
		realized = realized.Add(pnl)

		// 只有平仓成交才有已实现盈亏
		if !pnl.IsZero() {
			closes++
			if pnl.IsPositive() {
				wins++
			}
		}
	}

	balance, err := decimal.NewFromString(walletBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet balance: %w", err)
	}

	data := &models.TradingData{
		Volume30d:   volume.InexactFloat64(),
		TotalTrades: len(fills),
		Verified:    true,
	}

	if base := balance.Sub(realized); base.IsPositive() {
		data.PnL30d = realized.Div(base).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	if closes > 0 {
		data.WinRate = float64(wins) / float64(closes) * 100
	}
	if len(fills) > 0 {
		data.AvgTradeSize = volume.Div(decimal.NewFromInt(int64(len(fills)))).InexactFloat64()
	}

	return data, nil
}

type futuresClient struct {
	client *futures.Client
}

// AccountTrades pages through the account trade list of one symbol. The
// first page is selected by time range, later pages continue by trade id.
func (c *futuresClient) AccountTrades(ctx context.Context, symbol string, start, end time.Time) ([]fill, error) {
	var out []fill
	endMs := end.UnixMilli()
	var fromID int64

	for {
		svc := c.client.NewListAccountTradeService().
			Symbol(symbol).
			Limit(maxTradesPerRequest)
		// fromId 不能与时间范围同时使用
		if fromID == 0 {
			svc = svc.StartTime(start.UnixMilli()).EndTime(endMs)
		} else {
			svc = svc.FromID(fromID)
		}

		trades, err := svc.Do(ctx)
		if err != nil {
			return nil, err
		}

		for _, t := range trades {
			if t.Time > endMs {
				return out, nil
			}
			out = append(out, fill{
				QuoteQuantity: t.QuoteQuantity,
				RealizedPnl:   t.RealizedPnl,
				Time:          t.Time,
			})
		}

		if len(trades) < maxTradesPerRequest {
			return out, nil
		}
		fromID = trades[len(trades)-1].ID + 1
	}
}

func (c *futuresClient) WalletBalance(ctx context.Context) (string, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return "", err
	}
	return account.TotalWalletBalance, nil
}
