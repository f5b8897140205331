package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/songzhibin97/kolcred/internal/credibility"
)

var (
	fileFlag = &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "JSON or YAML file with scoring params, - for stdin (JSON)",
		Required: true,
	}

	scoreCmd = &cli.Command{
		Name:   "score",
		Usage:  "Score a single KOL from a params file",
		Action: cmdScore,
		Flags: []cli.Flag{
			fileFlag,
			outputFlag,
		},
	}

	leaderboardCmd = &cli.Command{
		Name:    "leaderboard",
		Aliases: []string{"top"},
		Usage:   "Print the leaderboard from storage",
		Action:  cmdLeaderboard,
		Flags: []cli.Flag{
			limitFlag,
			outputFlag,
		},
	}
)

func cmdScore(_ context.Context, cmd *cli.Command) error {
	params, err := readParams(cmd.Root().Reader, cmd.String(fileFlag.Name))
	if err != nil {
		return err
	}

	if params.StakeAmount < 0 {
		return errors.New("stake_amount must not be negative")
	}
	if params.VerificationStatus != "" && !params.VerificationStatus.Valid() {
		return fmt.Errorf("unknown verification_status: %s", params.VerificationStatus)
	}

	assessment := credibility.NewDefaultEvaluator().Evaluate(*params)
	return encode(cmd.Root().Writer, cmd.String(outputFlag.Name), assessment)
}

func readParams(stdin io.Reader, path string) (*credibility.Params, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading params %s: %w", path, err)
	}

	params := &credibility.Params{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, params)
	default:
		err = json.Unmarshal(b, params)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing params %s: %w", path, err)
	}
	return params, nil
}

func cmdLeaderboard(ctx context.Context, cmd *cli.Command) error {
	sys, err := newSystem(cmd)
	if err != nil {
		return err
	}
	defer sys.Close()

	list, err := sys.storage.GetLeaderboard(ctx, int(cmd.Int(limitFlag.Name)))
	if err != nil {
		return err
	}
	return encode(cmd.Root().Writer, cmd.String(outputFlag.Name), list)
}

func encode(w io.Writer, format string, v any) error {
	if w == nil {
		w = os.Stdout
	}
	if format == formatYAML {
		return yaml.NewEncoder(w).Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
