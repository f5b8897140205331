package configs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/songzhibin97/kolcred/internal/models"
	"github.com/songzhibin97/kolcred/internal/risk"
)

const (
	defaultRefreshInterval   = "10m"
	defaultConcurrency       = 4
	defaultLogLevel          = "info"
	defaultDriver            = "sqlite"
	defaultConnStr           = "kolcred.db"
	defaultServerAddr        = "127.0.0.1:8080"
	defaultAIProvider        = "stats"
	defaultContentWindowDays = 30

	envPrefix = "env:"
)

type Config struct {
	// 基础配置
	RefreshInterval string `json:"refresh_interval" yaml:"refresh_interval"` // 评分刷新间隔
	Concurrency     int    `json:"concurrency" yaml:"concurrency"`           // 并发刷新数
	LogLevel        string `json:"log_level" yaml:"log_level"`

	Database Database     `json:"database" yaml:"database"`
	Server   ServerConfig `json:"server" yaml:"server"`

	// 内容分析参数
	AIConfig AIConfig `json:"ai_config" yaml:"ai_config"`

	// 社交数据 API
	SocialAPI SocialAPIConfig `json:"social_api" yaml:"social_api"`

	// 交易所配置
	ExchangeConfig ExchangeConfig `json:"exchange_config" yaml:"exchange_config"`

	// 信誉预警参数
	AlertParams risk.Parameters `json:"alert_params" yaml:"alert_params"`

	// 跟踪的 KOL 列表
	KOLs []KOLConfig `json:"kols" yaml:"kols"`
}

type Database struct {
	Driver  string `json:"driver" yaml:"driver"`     // postgres 或 sqlite
	ConnStr string `json:"conn_str" yaml:"conn_str"` // 数据库连接字符串
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type AIConfig struct {
	Provider          string `json:"provider" yaml:"provider"`                       // stats, openai, deepseek
	APIKey            string `json:"api_key" yaml:"api_key"`                         // AI服务API密钥
	ModelType         string `json:"model_type" yaml:"model_type"`                   // AI模型类型
	ContentWindowDays int    `json:"content_window_days" yaml:"content_window_days"` // 内容统计窗口
}

type SocialAPIConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Token   string `json:"token" yaml:"token"`
}

type ExchangeConfig struct {
	Testnet bool `json:"testnet" yaml:"testnet"`
}

type KOLConfig struct {
	ID                 string            `json:"id" yaml:"id"`
	WalletAddress      string            `json:"wallet_address" yaml:"wallet_address"`
	Username           string            `json:"username" yaml:"username"`
	Bio                string            `json:"bio" yaml:"bio"`
	SocialHandles      map[string]string `json:"social_handles" yaml:"social_handles"`
	VerificationStatus string            `json:"verification_status" yaml:"verification_status"`
	StakeAmount        float64           `json:"stake_amount" yaml:"stake_amount"`
	Exchanges          []ExchangeAccount `json:"exchanges" yaml:"exchanges"`
}

type ExchangeAccount struct {
	Exchange  string   `json:"exchange" yaml:"exchange"`
	APIKey    string   `json:"api_key" yaml:"api_key"`       // 只读API密钥
	SecretKey string   `json:"secret_key" yaml:"secret_key"` // 只读密钥
	Symbols   []string `json:"symbols" yaml:"symbols"`
}

// Load reads a JSON or YAML config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, c)
	default:
		err = json.Unmarshal(b, c)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	c.applyDefaults()
	c.resolveSecrets()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.RefreshInterval == "" {
		c.RefreshInterval = defaultRefreshInterval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
	if c.Database.ConnStr == "" && c.Database.Driver == defaultDriver {
		c.Database.ConnStr = defaultConnStr
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.AIConfig.Provider == "" {
		c.AIConfig.Provider = defaultAIProvider
	}
	if c.AIConfig.ContentWindowDays <= 0 {
		c.AIConfig.ContentWindowDays = defaultContentWindowDays
	}
	c.AlertParams = c.AlertParams.WithDefaults()
	for i := range c.KOLs {
		if c.KOLs[i].VerificationStatus == "" {
			c.KOLs[i].VerificationStatus = string(models.StatusUnverified)
		}
	}
}

// resolveSecrets replaces "env:NAME" values with the named environment variable.
func (c *Config) resolveSecrets() {
	c.AIConfig.APIKey = resolveSecret(c.AIConfig.APIKey)
	c.SocialAPI.Token = resolveSecret(c.SocialAPI.Token)
	c.Database.ConnStr = resolveSecret(c.Database.ConnStr)
	for i := range c.KOLs {
		for j := range c.KOLs[i].Exchanges {
			acct := &c.KOLs[i].Exchanges[j]
			acct.APIKey = resolveSecret(acct.APIKey)
			acct.SecretKey = resolveSecret(acct.SecretKey)
		}
	}
}

func resolveSecret(v string) string {
	if name, ok := strings.CutPrefix(v, envPrefix); ok {
		return os.Getenv(name)
	}
	return v
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	if _, err := c.Interval(); err != nil {
		return fmt.Errorf("invalid refresh interval %q: %w", c.RefreshInterval, err)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.ConnStr == "" {
		return errors.New("database conn_str required")
	}

	switch c.AIConfig.Provider {
	case "stats":
	case "openai", "deepseek":
		if c.AIConfig.APIKey == "" {
			return fmt.Errorf("api_key required for provider %s", c.AIConfig.Provider)
		}
	default:
		return fmt.Errorf("unsupported ai provider: %s", c.AIConfig.Provider)
	}

	if err := c.AlertParams.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.KOLs))
	for _, k := range c.KOLs {
		p := k.Profile()
		if err := p.Validate(); err != nil {
			return fmt.Errorf("kol %q: %w", k.ID, err)
		}
		if seen[k.ID] {
			return fmt.Errorf("duplicate kol id: %s", k.ID)
		}
		seen[k.ID] = true
	}
	return nil
}

// Interval returns the parsed refresh interval.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// Profile converts the configured KOL into a profile.
func (k KOLConfig) Profile() models.KOLProfile {
	p := models.KOLProfile{
		ID:                 k.ID,
		WalletAddress:      k.WalletAddress,
		Username:           k.Username,
		Bio:                k.Bio,
		SocialHandles:      k.SocialHandles,
		VerificationStatus: models.VerificationStatus(k.VerificationStatus),
		StakeAmount:        k.StakeAmount,
	}
	for _, e := range k.Exchanges {
		p.Exchanges = append(p.Exchanges, models.ExchangeAccount{
			Exchange:  e.Exchange,
			APIKey:    e.APIKey,
			SecretKey: e.SecretKey,
			Symbols:   e.Symbols,
		})
	}
	return p
}

// Profiles returns all configured KOL profiles.
func (c *Config) Profiles() []models.KOLProfile {
	list := make([]models.KOLProfile, 0, len(c.KOLs))
	for _, k := range c.KOLs {
		list = append(list, k.Profile())
	}
	return list
}
