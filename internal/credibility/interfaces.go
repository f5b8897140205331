package credibility

import (
	"github.com/songzhibin97/kolcred/internal/models"
)

// Evaluator produces a full credibility assessment for a KOL.
type Evaluator interface {
	// Evaluate scores the params and derives tier, risk and recommendation
	Evaluate(params Params) *Assessment
}

// Params 评分输入
type Params struct {
	Trading            models.TradingData        `json:"trading" yaml:"trading"`
	Social             models.SocialData         `json:"social" yaml:"social"`
	StakeAmount        float64                   `json:"stake_amount" yaml:"stake_amount"`
	VerificationStatus models.VerificationStatus `json:"verification_status" yaml:"verification_status"`
	AccountAgeDays     int                       `json:"account_age_days" yaml:"account_age_days"`
	Content            *models.ContentMetrics    `json:"content,omitempty" yaml:"content,omitempty"`
}

// Tier 信誉等级
type Tier string

const (
	TierElite        Tier = "Elite"
	TierExpert       Tier = "Expert"
	TierProfessional Tier = "Professional"
	TierExperienced  Tier = "Experienced"
	TierBeginner     Tier = "Beginner"
)

// TierInfo describes a tier.
type TierInfo struct {
	Tier        Tier   `json:"tier" yaml:"tier"`
	Description string `json:"description" yaml:"description"`
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskVeryHigh RiskLevel = "Very High"
)

// RiskInfo 风险评估结果
type RiskInfo struct {
	Level       RiskLevel `json:"level" yaml:"level"`
	Score       float64   `json:"score" yaml:"score"`
	Description string    `json:"description" yaml:"description"`
}

// Action 跟单建议
type Action string

const (
	ActionStrongBuy Action = "Strong Buy"
	ActionBuy       Action = "Buy"
	ActionHold      Action = "Hold"
	ActionAvoid     Action = "Avoid"
)

// Recommendation pairs a follow action with its reasoning.
type Recommendation struct {
	Action    Action `json:"action" yaml:"action"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// Assessment 完整评估结果
type Assessment struct {
	ModelVersion   string                  `json:"model_version" yaml:"model_version"`
	Score          models.CredibilityScore `json:"score" yaml:"score"`
	Tier           TierInfo                `json:"tier" yaml:"tier"`
	Risk           RiskInfo                `json:"risk" yaml:"risk"`
	Recommendation Recommendation          `json:"recommendation" yaml:"recommendation"`
}
