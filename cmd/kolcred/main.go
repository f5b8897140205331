package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	name    = "kolcred"
	version = "v0.0.1-default"
	commit  = ""

	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the JSON or YAML config file",
		Value:   "config.yaml",
		Sources: cli.EnvVars("KOLCRED_CONFIG"),
	}

	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error), overrides config",
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format (json, yaml)",
		Value:   formatJSON,
		Validator: func(v string) error {
			if v != formatJSON && v != formatYAML {
				return fmt.Errorf("unsupported output format: %s", v)
			}
			return nil
		},
	}

	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of results",
		Value: 20,
	}
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    name,
		Version: fmt.Sprintf("%s - (commit: %s)", version, commit),
		Usage:   "KOL credibility scoring service",
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
		},
		Commands: []*cli.Command{
			runCmd,
			refreshCmd,
			scoreCmd,
			leaderboardCmd,
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// newLogger 按日志级别创建 JSON logger 并设为默认
func newLogger(level string) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(level),
	}))
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
