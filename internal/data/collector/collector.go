package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/songzhibin97/kolcred/internal/models"
)

// MultiSourceCollector implements ProfileCollector interface by aggregating multiple data sources
type MultiSourceCollector struct {
	tradingSources map[string]TradingSource
	socialSources  []SocialSource
	logger         Logger
}

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// TradingSource reads trading history from one exchange.
type TradingSource interface {
	Name() string
	CollectTradingData(ctx context.Context, account models.ExchangeAccount) (*models.TradingData, error)
}

// SocialSource reads public stats and posts from social platforms.
type SocialSource interface {
	Name() string
	CollectPlatformStats(ctx context.Context, platform, handle string) (*models.PlatformStats, error)
	CollectRecentPosts(ctx context.Context, platform, handle string, since time.Time) ([]models.Post, error)
}

func NewMultiSourceCollector(trading []TradingSource, social []SocialSource, logger Logger) *MultiSourceCollector {
	sources := make(map[string]TradingSource, len(trading))
	for _, s := range trading {
		sources[strings.ToLower(s.Name())] = s
	}
	return &MultiSourceCollector{
		tradingSources: sources,
		socialSources:  social,
		logger:         logger,
	}
}

// CollectTradingData implements ProfileCollector interface
func (c *MultiSourceCollector) CollectTradingData(ctx context.Context, accounts []models.ExchangeAccount) (*models.TradingData, error) {
	parts := make([]models.TradingData, 0, len(accounts))

	for _, acct := range accounts {
		source, ok := c.tradingSources[strings.ToLower(acct.Exchange)]
		if !ok {
			c.logger.Error("no trading source for exchange", "exchange", acct.Exchange)
			continue
		}

		data, err := source.CollectTradingData(ctx, acct)
		if err != nil || data == nil {
			c.logger.Error("failed to collect trading data", "source", source.Name(), "error", err)
			continue
		}

		c.logger.Info("collected trading data", "source", source.Name(), "trades", data.TotalTrades)
		parts = append(parts, *data)
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("failed to collect trading data from all sources")
	}

	merged := MergeTradingData(parts)
	return &merged, nil
}

// CollectSocialData implements ProfileCollector interface
func (c *MultiSourceCollector) CollectSocialData(ctx context.Context, handles map[string]string) (models.SocialData, error) {
	results := make(models.SocialData)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for platform, handle := range handles {
		if handle == "" {
			continue
		}

		wg.Add(1)
		go func(platform, handle string) {
			defer wg.Done()

			// 按顺序尝试数据源，第一个成功的为准
			for _, src := range c.socialSources {
				stats, err := src.CollectPlatformStats(ctx, platform, handle)
				if err != nil || stats == nil {
					c.logger.Error("failed to collect platform stats", "source", src.Name(), "platform", platform, "error", err)
					continue
				}

				mu.Lock()
				results[platform] = *stats
				mu.Unlock()

				c.logger.Info("collected platform stats", "source", src.Name(), "platform", platform, "handle", handle)
				return
			}
		}(platform, handle)
	}

	wg.Wait()

	if len(results) == 0 {
		return nil, fmt.Errorf("failed to collect social data from all sources")
	}

	return results, nil
}

// CollectRecentPosts implements ProfileCollector interface
func (c *MultiSourceCollector) CollectRecentPosts(ctx context.Context, handles map[string]string, since time.Time) ([]models.Post, error) {
	var posts []models.Post
	var collected int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for platform, handle := range handles {
		if handle == "" {
			continue
		}

		wg.Add(1)
		go func(platform, handle string) {
			defer wg.Done()

			for _, src := range c.socialSources {
				list, err := src.CollectRecentPosts(ctx, platform, handle, since)
				if err != nil {
					c.logger.Error("failed to collect posts", "source", src.Name(), "platform", platform, "error", err)
					continue
				}

				mu.Lock()
				posts = append(posts, list...)
				collected++
				mu.Unlock()
				return
			}
		}(platform, handle)
	}

	wg.Wait()

	if collected == 0 {
		return nil, fmt.Errorf("failed to collect posts from all sources")
	}

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].PublishedAt.Before(posts[j].PublishedAt)
	})

	return posts, nil
}

// MergeTradingData combines per-exchange data into one view. Volume and
// trade counts add up, win rate is weighted by trades and PnL by volume.
// The result is verified only if every part is.
func MergeTradingData(parts []models.TradingData) models.TradingData {
	var out models.TradingData
	if len(parts) == 0 {
		return out
	}

	out.Verified = true
	var winWeighted, pnlWeighted, pnlSum float64

	for _, p := range parts {
		out.Volume30d += p.Volume30d
		out.TotalTrades += p.TotalTrades
		winWeighted += p.WinRate * float64(p.TotalTrades)
		pnlWeighted += p.PnL30d * p.Volume30d
		pnlSum += p.PnL30d
		if !p.Verified {
			out.Verified = false
		}
	}

	if out.TotalTrades > 0 {
		out.WinRate = winWeighted / float64(out.TotalTrades)
		out.AvgTradeSize = out.Volume30d / float64(out.TotalTrades)
	}

	if out.Volume30d > 0 {
		out.PnL30d = pnlWeighted / out.Volume30d
	} else {
		out.PnL30d = pnlSum / float64(len(parts))
	}

	return out
}
