package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/songzhibin97/kolcred/internal/ai"
	"github.com/songzhibin97/kolcred/internal/ai/deepseek"
	"github.com/songzhibin97/kolcred/internal/ai/openai"
	"github.com/songzhibin97/kolcred/internal/ai/stats"
	"github.com/songzhibin97/kolcred/internal/api"
	"github.com/songzhibin97/kolcred/internal/configs"
	"github.com/songzhibin97/kolcred/internal/credibility"
	"github.com/songzhibin97/kolcred/internal/data/collector"
	"github.com/songzhibin97/kolcred/internal/data/collector/binance"
	"github.com/songzhibin97/kolcred/internal/data/collector/social"
	"github.com/songzhibin97/kolcred/internal/data/storage"
	"github.com/songzhibin97/kolcred/internal/engine"
	"github.com/songzhibin97/kolcred/internal/risk"
)

var (
	idFlag = &cli.StringFlag{
		Name:  "id",
		Usage: "Refresh a single KOL by id",
	}

	runCmd = &cli.Command{
		Name:   "run",
		Usage:  "Run the scoring engine and the HTTP API",
		Action: cmdRun,
	}

	refreshCmd = &cli.Command{
		Name:   "refresh",
		Usage:  "Collect data and score all configured KOLs once",
		Action: cmdRefresh,
		Flags: []cli.Flag{
			idFlag,
		},
	}
)

type system struct {
	config  *configs.Config
	log     *slog.Logger
	storage *storage.SQLStorage
	monitor *risk.BasicMonitor
	engine  *engine.Engine
}

func (s *system) Close() {
	if err := s.storage.Close(); err != nil {
		s.log.Error("error closing storage", "err", err)
	}
}

// newSystem 加载配置并初始化各个组件
func newSystem(cmd *cli.Command) (*system, error) {
	config, err := configs.Load(cmd.String(configFlag.Name))
	if err != nil {
		return nil, err
	}

	level := config.LogLevel
	if v := cmd.String(logLevelFlag.Name); v != "" {
		level = v
	}
	log := newLogger(level)

	log.Debug("loaded config", "path", cmd.String(configFlag.Name), "kols", len(config.KOLs))

	var socialSources []collector.SocialSource
	if config.SocialAPI.BaseURL != "" {
		socialSources = append(socialSources, social.NewAPISource(config.SocialAPI.BaseURL, config.SocialAPI.Token))
	} else {
		log.Warn("social api not configured")
	}

	c := collector.NewMultiSourceCollector(
		[]collector.TradingSource{binance.NewFuturesTradingSource(config.ExchangeConfig.Testnet)},
		socialSources,
		log,
	)

	log.Debug("init collector")

	store, err := storage.NewSQLStorage(config.Database.Driver, config.Database.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("error creating storage: %w", err)
	}

	log.Debug("init storage", "driver", config.Database.Driver)

	monitor := risk.NewBasicMonitor(risk.DefaultParameters())
	if err := monitor.SetParameters(&config.AlertParams); err != nil {
		store.Close()
		return nil, err
	}

	log.Debug("set alert parameters ok!")

	interval, _ := config.Interval()

	e := engine.New(
		c,
		store,
		newContentAnalyzer(config.AIConfig),
		credibility.NewDefaultEvaluator(),
		config.Profiles(),
		engine.Options{
			Interval:      interval,
			Concurrency:   config.Concurrency,
			ContentWindow: time.Duration(config.AIConfig.ContentWindowDays) * 24 * time.Hour,
			Monitor:       monitor,
		},
		log,
	)

	log.Debug("init engine", "provider", config.AIConfig.Provider)

	return &system{config: config, log: log, storage: store, monitor: monitor, engine: e}, nil
}

func newContentAnalyzer(cfg configs.AIConfig) ai.ContentAnalyzer {
	switch cfg.Provider {
	case "openai":
		return openai.NewOpenAIAnalyzer(cfg.APIKey, cfg.ModelType, cfg.ContentWindowDays)
	case "deepseek":
		return deepseek.NewDeepSeekAnalyzer(cfg.APIKey, cfg.ModelType, cfg.ContentWindowDays)
	default:
		return stats.NewAnalyzer(cfg.ContentWindowDays)
	}
}

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	sys, err := newSystem(cmd)
	if err != nil {
		return err
	}
	defer sys.Close()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(sys.storage, credibility.NewDefaultEvaluator(), sys.engine, sys.log)

	g, ctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, sys.config.Server.Addr)
	})
	g.Go(func() error {
		return sys.engine.Run(ctx)
	})
	g.Go(func() error {
		sys.watchAlerts(ctx)
		return nil
	})

	err = g.Wait()
	if sigCtx.Err() != nil {
		sys.log.Info("shutting down")
		return nil
	}
	return err
}

// watchAlerts 记录信誉预警直到 ctx 取消
func (s *system) watchAlerts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n := s.monitor.Dropped(); n > 0 {
				s.log.Warn("alerts dropped", "count", n)
			}
			return

		case a := <-s.monitor.Alerts():
			s.log.Warn("credibility alert",
				"kol", a.KOLID,
				"type", a.AlertType,
				"severity", a.Severity,
				"description", a.Description)
		}
	}
}

func cmdRefresh(ctx context.Context, cmd *cli.Command) error {
	sys, err := newSystem(cmd)
	if err != nil {
		return err
	}
	defer sys.Close()

	if err := sys.engine.SyncProfiles(ctx); err != nil {
		return err
	}

	id := cmd.String(idFlag.Name)
	if id == "" {
		return sys.engine.RefreshAll(ctx)
	}

	snap, err := sys.engine.RefreshProfile(ctx, id)
	if err != nil {
		return err
	}
	return encode(cmd.Root().Writer, formatJSON, snap)
}
