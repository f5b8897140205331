package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/kolcred/internal/models"
	"github.com/songzhibin97/kolcred/internal/risk"
)

const yamlConfig = `
refresh_interval: 5m
database:
  driver: sqlite
  conn_str: test.db
social_api:
  base_url: http://localhost:9000
  token: env:KOLCRED_TEST_SOCIAL_TOKEN
kols:
  - id: kol-1
    username: alice
    social_handles:
      twitter: alice_trades
      medium: alice
    verification_status: verified
    stake_amount: 5000
    exchanges:
      - exchange: binance
        api_key: env:KOLCRED_TEST_BINANCE_KEY
        secret_key: secret
        symbols: [BTCUSDT]
`

const jsonConfig = `{
  "refresh_interval": "1m",
  "concurrency": 2,
  "database": {"driver": "postgres", "conn_str": "postgres://localhost/kol"},
  "ai_config": {"provider": "openai", "api_key": "sk-test"},
  "alert_params": {"max_score_drop": 5, "max_pnl_drop": 15, "min_win_rate": 45},
  "kols": [{"id": "kol-2", "username": "bob", "social_handles": {"twitter": "bob"}}]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("KOLCRED_TEST_SOCIAL_TOKEN", "social-token")
	t.Setenv("KOLCRED_TEST_BINANCE_KEY", "binance-key")

	c, err := Load(writeFile(t, "config.yaml", yamlConfig))
	require.NoError(t, err)

	d, err := c.Interval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
	assert.Equal(t, defaultConcurrency, c.Concurrency)
	assert.Equal(t, defaultAIProvider, c.AIConfig.Provider)
	assert.Equal(t, defaultContentWindowDays, c.AIConfig.ContentWindowDays)
	assert.Equal(t, "social-token", c.SocialAPI.Token)
	assert.Equal(t, risk.DefaultParameters(), c.AlertParams)

	profiles := c.Profiles()
	require.Len(t, profiles, 1)
	p := profiles[0]
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, models.StatusVerified, p.VerificationStatus)
	require.Len(t, p.Exchanges, 1)
	assert.Equal(t, "binance-key", p.Exchanges[0].APIKey)
	assert.Equal(t, []string{"BTCUSDT"}, p.Exchanges[0].Symbols)
}

func TestLoad_JSON(t *testing.T) {
	c, err := Load(writeFile(t, "config.json", jsonConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, 2, c.Concurrency)
	assert.Equal(t, defaultServerAddr, c.Server.Addr)
	assert.Equal(t, risk.Parameters{MaxScoreDrop: 5, MaxPnLDrop: 15, MinWinRate: 45}, c.AlertParams)
	require.Len(t, c.KOLs, 1)
	assert.Equal(t, string(models.StatusUnverified), c.KOLs[0].VerificationStatus)
}

func TestLoad_PartialAlertParams(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    risk.Parameters
	}{
		{
			name:    "only win rate",
			file:    "c.yaml",
			content: "alert_params:\n  min_win_rate: 50\n",
			want:    risk.Parameters{MaxScoreDrop: 10, MaxPnLDrop: 20, MinWinRate: 50},
		},
		{
			name:    "only drops",
			file:    "c.json",
			content: `{"alert_params": {"max_score_drop": 3, "max_pnl_drop": 7.5}}`,
			want:    risk.Parameters{MaxScoreDrop: 3, MaxPnLDrop: 7.5, MinWinRate: 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.AlertParams)

			m := risk.NewBasicMonitor(risk.DefaultParameters())
			assert.NoError(t, m.SetParameters(&c.AlertParams))
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "bad interval",
			file:    "c.json",
			content: `{"refresh_interval": "soon"}`,
		},
		{
			name:    "unknown driver",
			file:    "c.json",
			content: `{"database": {"driver": "mysql", "conn_str": "x"}}`,
		},
		{
			name:    "postgres without conn str",
			file:    "c.json",
			content: `{"database": {"driver": "postgres"}}`,
		},
		{
			name:    "openai without key",
			file:    "c.json",
			content: `{"ai_config": {"provider": "openai"}}`,
		},
		{
			name:    "kol without twitter",
			file:    "c.yaml",
			content: "kols:\n  - id: a\n    username: a\n",
		},
		{
			name:    "duplicate kol",
			file:    "c.yaml",
			content: "kols:\n  - {id: a, username: a, social_handles: {twitter: a}}\n  - {id: a, username: b, social_handles: {twitter: b}}\n",
		},
		{
			name:    "negative score drop",
			file:    "c.yaml",
			content: "alert_params:\n  max_score_drop: -5\n",
		},
		{
			name:    "win rate floor above 100",
			file:    "c.json",
			content: `{"alert_params": {"min_win_rate": 120}}`,
		},
		{
			name:    "malformed",
			file:    "c.json",
			content: `{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
