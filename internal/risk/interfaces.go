package risk

import (
	"time"

	"github.com/songzhibin97/kolcred/internal/models"
)

// Monitor watches consecutive score snapshots of a KOL for deterioration
type Monitor interface {
	// CheckChange compares the previous and current snapshot
	CheckChange(prev, curr *models.ScoreSnapshot) *ChangeAssessment

	// SetParameters sets alert thresholds
	SetParameters(params *Parameters) error

	// Observe checks the change and publishes alerts
	Observe(prev, curr *models.ScoreSnapshot) []Alert

	// Alerts returns the channel alerts are published on
	Alerts() <-chan Alert
}

// Parameters 预警阈值
type Parameters struct {
	MaxScoreDrop int     `json:"max_score_drop" yaml:"max_score_drop"` // 单次刷新总分最大跌幅
	MaxPnLDrop   float64 `json:"max_pnl_drop" yaml:"max_pnl_drop"`     // 30天收益率最大跌幅（百分点）
	MinWinRate   float64 `json:"min_win_rate" yaml:"min_win_rate"`     // 胜率下限
}

// ChangeAssessment 变化评估结果
type ChangeAssessment struct {
	IsStable    bool     `json:"is_stable"`
	ScoreDelta  int      `json:"score_delta"`
	RiskFactors []string `json:"risk_factors"`
}

// Alert 信誉预警信息
type Alert struct {
	KOLID       string    `json:"kol_id"`
	AlertType   string    `json:"alert_type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}
