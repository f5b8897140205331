package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/songzhibin97/kolcred/internal/ai"
	"github.com/songzhibin97/kolcred/internal/credibility"
	"github.com/songzhibin97/kolcred/internal/data"
	"github.com/songzhibin97/kolcred/internal/models"
	"github.com/songzhibin97/kolcred/internal/risk"
)

const (
	defaultConcurrency   = 4
	defaultContentWindow = 30 * 24 * time.Hour
)

// Engine 定期收集 KOL 数据并生成评分快照
type Engine struct {
	collector data.ProfileCollector
	storage   data.ProfileStorage
	analyzer  ai.ContentAnalyzer
	evaluator credibility.Evaluator
	monitor   risk.Monitor
	log       *slog.Logger

	// 配置中的 KOL，包含不落库的交易所凭证
	profiles map[string]models.KOLProfile
	order    []string

	interval      time.Duration
	concurrency   int
	contentWindow time.Duration
	now           func() time.Time
}

type Options struct {
	Interval      time.Duration
	Concurrency   int
	ContentWindow time.Duration
	// Monitor is optional, it receives every new snapshot with its predecessor
	Monitor risk.Monitor
}

func New(
	collector data.ProfileCollector,
	storage data.ProfileStorage,
	analyzer ai.ContentAnalyzer,
	evaluator credibility.Evaluator,
	profiles []models.KOLProfile,
	opts Options,
	log *slog.Logger,
) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ContentWindow <= 0 {
		opts.ContentWindow = defaultContentWindow
	}

	e := &Engine{
		collector:     collector,
		storage:       storage,
		analyzer:      analyzer,
		evaluator:     evaluator,
		monitor:       opts.Monitor,
		log:           log,
		profiles:      make(map[string]models.KOLProfile, len(profiles)),
		interval:      opts.Interval,
		concurrency:   opts.Concurrency,
		contentWindow: opts.ContentWindow,
		now:           time.Now,
	}
	for _, p := range profiles {
		e.profiles[p.ID] = p
		e.order = append(e.order, p.ID)
	}
	return e
}

// SyncProfiles upserts the configured profiles. Stake and verification
// status already stored are kept since they are managed through the API.
func (e *Engine) SyncProfiles(ctx context.Context) error {
	for _, id := range e.order {
		p := e.profiles[id]

		stored, err := e.storage.GetProfile(ctx, id)
		switch {
		case err == nil:
			p.StakeAmount = stored.StakeAmount
			p.VerificationStatus = stored.VerificationStatus
			p.JoinedAt = stored.JoinedAt
		case errors.Is(err, data.ErrNotFound):
		default:
			return fmt.Errorf("failed to load profile %s: %w", id, err)
		}

		if err := e.storage.SaveProfile(ctx, &p); err != nil {
			return fmt.Errorf("failed to sync profile %s: %w", id, err)
		}
		e.log.Debug("synced profile", "kol", id)
	}
	return nil
}

// RefreshProfile collects fresh data for one KOL, scores it and stores a snapshot.
func (e *Engine) RefreshProfile(ctx context.Context, id string) (*models.ScoreSnapshot, error) {
	profile, err := e.storage.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg, ok := e.profiles[id]; ok {
		profile.Exchanges = cfg.Exchanges
	}

	var trading models.TradingData
	if len(profile.Exchanges) > 0 {
		t, err := e.collector.CollectTradingData(ctx, profile.Exchanges)
		if err != nil {
			return nil, fmt.Errorf("failed to collect trading data for %s: %w", id, err)
		}
		trading = *t
	}

	social, err := e.collector.CollectSocialData(ctx, profile.SocialHandles)
	if err != nil {
		return nil, fmt.Errorf("failed to collect social data for %s: %w", id, err)
	}

	// 内容分析失败不影响评分，按默认内容分处理
	content := e.analyzeContent(ctx, profile)

	return e.score(ctx, profile, trading, social, content)
}

func (e *Engine) analyzeContent(ctx context.Context, profile *models.KOLProfile) *models.ContentMetrics {
	if e.analyzer == nil {
		return nil
	}

	posts, err := e.collector.CollectRecentPosts(ctx, profile.SocialHandles, e.now().Add(-e.contentWindow))
	if err != nil {
		e.log.Warn("failed to collect posts", "kol", profile.ID, "err", err)
		return nil
	}

	content, err := e.analyzer.AnalyzeContent(ctx, posts)
	if err != nil {
		if !errors.Is(err, ai.ErrNoContent) {
			e.log.Warn("failed to analyze content", "kol", profile.ID, "err", err)
		}
		return nil
	}
	return content
}

// RefreshAll refreshes every configured KOL with bounded concurrency.
// A failing KOL is logged and does not stop the others.
func (e *Engine) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	var failed int
	results := make([]error, len(e.order))

	for i, id := range e.order {
		g.Go(func() error {
			snap, err := e.RefreshProfile(ctx, id)
			if err != nil {
				results[i] = err
				e.log.Error("failed to refresh profile", "kol", id, "err", err)
				return nil
			}
			e.log.Info("refreshed profile", "kol", id, "score", snap.Score.TotalScore, "tier", snap.Tier)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	if failed > 0 && failed == len(e.order) {
		return fmt.Errorf("failed to refresh all %d profiles: %w", failed, errors.Join(results...))
	}
	return nil
}

// Rescore recomputes the score from the latest stored inputs using the
// profile's current stake and verification status.
func (e *Engine) Rescore(ctx context.Context, id string) (*models.ScoreSnapshot, error) {
	profile, err := e.storage.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	latest, err := e.storage.GetLatestSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	return e.score(ctx, profile, latest.Trading, latest.Social, latest.Content)
}

func (e *Engine) score(
	ctx context.Context,
	profile *models.KOLProfile,
	trading models.TradingData,
	social models.SocialData,
	content *models.ContentMetrics,
) (*models.ScoreSnapshot, error) {
	assessment := e.evaluator.Evaluate(credibility.Params{
		Trading:            trading,
		Social:             social,
		StakeAmount:        profile.StakeAmount,
		VerificationStatus: profile.VerificationStatus,
		AccountAgeDays:     e.accountAgeDays(profile),
		Content:            content,
	})
	e.log.Debug("credibility score",
		"kol", profile.ID,
		"trading", assessment.Score.TradingSkill,
		"social", assessment.Score.SocialInfluence,
		"content", assessment.Score.ContentQuality,
		"transparency", assessment.Score.Transparency,
		"total", assessment.Score.TotalScore)

	prev, err := e.storage.GetLatestSnapshot(ctx, profile.ID)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			e.log.Warn("failed to load previous snapshot", "kol", profile.ID, "err", err)
		}
		prev = nil
	}

	snap := &models.ScoreSnapshot{
		KOLID:          profile.ID,
		ModelVersion:   assessment.ModelVersion,
		Score:          assessment.Score,
		Tier:           string(assessment.Tier.Tier),
		RiskLevel:      string(assessment.Risk.Level),
		Recommendation: string(assessment.Recommendation.Action),
		Trading:        trading,
		Social:         social,
		Content:        content,
		CreatedAt:      e.now().UTC(),
	}

	if err := e.storage.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot for %s: %w", profile.ID, err)
	}

	if e.monitor != nil {
		for _, a := range e.monitor.Observe(prev, snap) {
			e.log.Debug("credibility alert", "kol", a.KOLID, "type", a.AlertType, "severity", a.Severity)
		}
	}
	return snap, nil
}

func (e *Engine) accountAgeDays(p *models.KOLProfile) int {
	if p.JoinedAt.IsZero() {
		return 0
	}
	days := int(e.now().Sub(p.JoinedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Run 同步档案后立即刷新一次，之后按间隔刷新直到 ctx 取消
func (e *Engine) Run(ctx context.Context) error {
	if err := e.SyncProfiles(ctx); err != nil {
		return err
	}
	e.log.Debug("sync profiles ok!", "count", len(e.order))

	if err := e.RefreshAll(ctx); err != nil {
		e.log.Error("refresh failed", "err", err)
	}

	if e.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := e.RefreshAll(ctx); err != nil {
				e.log.Error("refresh failed", "err", err)
			}
		}
	}
}
