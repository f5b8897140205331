package models

import (
	"errors"
	"time"
)

// 平台名称
const (
	PlatformTwitter  = "twitter"
	PlatformTikTok   = "tiktok"
	PlatformBilibili = "bilibili"
	PlatformMedium   = "medium"
	PlatformZhihu    = "zhihu"
	PlatformQuora    = "quora"
)

// VerificationStatus 认证状态
type VerificationStatus string

const (
	StatusUnverified VerificationStatus = "unverified"
	StatusPending    VerificationStatus = "pending"
	StatusVerified   VerificationStatus = "verified"
)

// Valid reports whether s is one of the known statuses.
func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusUnverified, StatusPending, StatusVerified:
		return true
	}
	return false
}

// TradingData 30天交易数据
type TradingData struct {
	Volume30d    float64 `json:"volume_30d" yaml:"volume_30d"`
	PnL30d       float64 `json:"pnl_30d" yaml:"pnl_30d"`   // 百分比
	WinRate      float64 `json:"win_rate" yaml:"win_rate"` // 0-100
	AvgTradeSize float64 `json:"avg_trade_size" yaml:"avg_trade_size"`
	TotalTrades  int     `json:"total_trades" yaml:"total_trades"`
	Verified     bool    `json:"verified" yaml:"verified"`
}

// PlatformStats 单个社交平台指标
type PlatformStats struct {
	Followers      int64    `json:"followers" yaml:"followers"`
	Verified       bool     `json:"verified" yaml:"verified"`
	EngagementRate *float64 `json:"engagement_rate,omitempty" yaml:"engagement_rate,omitempty"`
}

// SocialData is keyed by platform name.
type SocialData map[string]PlatformStats

// ContentMetrics 内容指标
type ContentMetrics struct {
	PostsPerWeek      float64 `json:"posts_per_week" yaml:"posts_per_week"`
	AvgEngagementRate float64 `json:"avg_engagement_rate" yaml:"avg_engagement_rate"`
	ConsistencyScore  float64 `json:"consistency_score" yaml:"consistency_score"` // 0-100
}

// CredibilityScore 信誉分
type CredibilityScore struct {
	TradingSkill    int `json:"trading_skill" yaml:"trading_skill"`
	SocialInfluence int `json:"social_influence" yaml:"social_influence"`
	ContentQuality  int `json:"content_quality" yaml:"content_quality"`
	Transparency    int `json:"transparency" yaml:"transparency"`
	TotalScore      int `json:"total_score" yaml:"total_score"`
}

// Post is a single piece of published content.
type Post struct {
	ID             string    `json:"id"`
	Platform       string    `json:"platform"`
	PublishedAt    time.Time `json:"published_at"`
	EngagementRate float64   `json:"engagement_rate"` // 百分比
}

// ExchangeAccount holds read-only exchange credentials. Never persisted.
type ExchangeAccount struct {
	Exchange  string
	APIKey    string
	SecretKey string
	Symbols   []string
}

// KOLProfile KOL 档案
type KOLProfile struct {
	ID                 string             `json:"id" yaml:"id"`
	WalletAddress      string             `json:"wallet_address" yaml:"wallet_address"`
	Username           string             `json:"username" yaml:"username"`
	Bio                string             `json:"bio" yaml:"bio"`
	SocialHandles      map[string]string  `json:"social_handles" yaml:"social_handles"`
	Exchanges          []ExchangeAccount  `json:"-" yaml:"-"`
	VerificationStatus VerificationStatus `json:"verification_status" yaml:"verification_status"`
	StakeAmount        float64            `json:"stake_amount" yaml:"stake_amount"`
	JoinedAt           time.Time          `json:"joined_at" yaml:"joined_at"`
	UpdatedAt          time.Time          `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the fields required before a profile can be scored.
func (p *KOLProfile) Validate() error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	if p.Username == "" {
		return errors.New("profile username is required")
	}
	if p.SocialHandles[PlatformTwitter] == "" {
		return errors.New("twitter handle is required")
	}
	if p.VerificationStatus != "" && !p.VerificationStatus.Valid() {
		return errors.New("unknown verification status: " + string(p.VerificationStatus))
	}
	if p.StakeAmount < 0 {
		return errors.New("stake amount must not be negative")
	}
	return nil
}

// ScoreSnapshot 评分快照，连同计算时使用的输入一起保存
type ScoreSnapshot struct {
	ID             int64            `json:"id"`
	KOLID          string           `json:"kol_id"`
	ModelVersion   string           `json:"model_version"`
	Score          CredibilityScore `json:"score"`
	Tier           string           `json:"tier"`
	RiskLevel      string           `json:"risk_level"`
	Recommendation string           `json:"recommendation"`
	Trading        TradingData      `json:"trading"`
	Social         SocialData       `json:"social"`
	Content        *ContentMetrics  `json:"content,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	KOLID         string    `json:"kol_id"`
	Username      string    `json:"username"`
	TotalScore    int       `json:"total_score"`
	Tier          string    `json:"tier"`
	RiskLevel     string    `json:"risk_level"`
	FollowerCount int       `json:"follower_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}
