package risk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/songzhibin97/kolcred/internal/credibility"
	"github.com/songzhibin97/kolcred/internal/models"
)

const (
	alertBuffer = 100

	defaultMaxScoreDrop = 10
	defaultMaxPnLDrop   = 20
	defaultMinWinRate   = 40

	severityHigh   = "HIGH"
	severityMedium = "MEDIUM"
	severityLow    = "LOW"
)

// 预警类型
const (
	AlertScoreDrop        = "Score Drop"
	AlertTierDowngrade    = "Tier Downgrade"
	AlertRiskEscalation   = "Risk Escalation"
	AlertAvoid            = "Recommendation Downgrade"
	AlertPnLDrop          = "PnL Drop"
	AlertLowWinRate       = "Low Win Rate"
	AlertVerificationLost = "Verification Lost"
)

var tierRank = map[string]int{
	string(credibility.TierBeginner):     0,
	string(credibility.TierExperienced):  1,
	string(credibility.TierProfessional): 2,
	string(credibility.TierExpert):       3,
	string(credibility.TierElite):        4,
}

var riskRank = map[string]int{
	string(credibility.RiskLow):      0,
	string(credibility.RiskMedium):   1,
	string(credibility.RiskHigh):     2,
	string(credibility.RiskVeryHigh): 3,
}

type BasicMonitor struct {
	params   Parameters
	paramsMu sync.RWMutex
	alerts   chan Alert
	dropped  atomic.Int64
}

// DefaultParameters returns the thresholds used when none are configured.
func DefaultParameters() Parameters {
	return Parameters{
		MaxScoreDrop: defaultMaxScoreDrop,
		MaxPnLDrop:   defaultMaxPnLDrop,
		MinWinRate:   defaultMinWinRate,
	}
}

// WithDefaults fills each zero threshold from DefaultParameters.
func (p Parameters) WithDefaults() Parameters {
	def := DefaultParameters()
	if p.MaxScoreDrop == 0 {
		p.MaxScoreDrop = def.MaxScoreDrop
	}
	if p.MaxPnLDrop == 0 {
		p.MaxPnLDrop = def.MaxPnLDrop
	}
	if p.MinWinRate == 0 {
		p.MinWinRate = def.MinWinRate
	}
	return p
}

// Validate checks that drops are positive and the win rate floor is a percentage.
func (p Parameters) Validate() error {
	if p.MaxScoreDrop <= 0 || p.MaxPnLDrop <= 0 || p.MinWinRate < 0 || p.MinWinRate > 100 {
		return fmt.Errorf("invalid alert parameters: drops must be positive and win rate within 0-100")
	}
	return nil
}

func NewBasicMonitor(initialParams Parameters) *BasicMonitor {
	return &BasicMonitor{
		params: initialParams,
		alerts: make(chan Alert, alertBuffer),
	}
}

func (m *BasicMonitor) CheckChange(prev, curr *models.ScoreSnapshot) *ChangeAssessment {
	m.paramsMu.RLock()
	params := m.params
	m.paramsMu.RUnlock()

	assessment := &ChangeAssessment{
		IsStable:    true,
		RiskFactors: make([]string, 0),
	}
	if curr == nil {
		return assessment
	}

	// 胜率过低不依赖历史快照
	if curr.Trading.TotalTrades > 0 && curr.Trading.WinRate < params.MinWinRate {
		assessment.RiskFactors = append(assessment.RiskFactors, AlertLowWinRate)
	}

	if prev != nil {
		assessment.ScoreDelta = curr.Score.TotalScore - prev.Score.TotalScore

		if -assessment.ScoreDelta > params.MaxScoreDrop {
			assessment.RiskFactors = append(assessment.RiskFactors, AlertScoreDrop)
		}

		if tierRank[curr.Tier] < tierRank[prev.Tier] {
			assessment.RiskFactors = append(assessment.RiskFactors, AlertTierDowngrade)
		}

		if riskRank[curr.RiskLevel] > riskRank[prev.RiskLevel] {
			assessment.RiskFactors = append(assessment.RiskFactors, AlertRiskEscalation)
		}

		if curr.Recommendation == string(credibility.ActionAvoid) &&
			prev.Recommendation != string(credibility.ActionAvoid) {
			assessment.RiskFactors = append(assessment.RiskFactors, AlertAvoid)
		}

		if prev.Trading.PnL30d-curr.Trading.PnL30d > params.MaxPnLDrop {
			assessment.RiskFactors = append(assessment.RiskFactors, AlertPnLDrop)
		}

		if prev.Trading.Verified && !curr.Trading.Verified {
			assessment.RiskFactors = append(assessment.RiskFactors, AlertVerificationLost)
		}
	}

	assessment.IsStable = len(assessment.RiskFactors) == 0
	return assessment
}

func (m *BasicMonitor) SetParameters(params *Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}

	m.paramsMu.Lock()
	m.params = *params
	m.paramsMu.Unlock()

	return nil
}

// Observe publishes one alert per risk factor. Alerts are dropped when
// nobody drains the channel.
func (m *BasicMonitor) Observe(prev, curr *models.ScoreSnapshot) []Alert {
	assessment := m.CheckChange(prev, curr)
	if assessment.IsStable {
		return nil
	}

	list := make([]Alert, 0, len(assessment.RiskFactors))
	for _, factor := range assessment.RiskFactors {
		alert := Alert{
			KOLID:       curr.KOLID,
			AlertType:   factor,
			Severity:    getSeverityLevel(factor, assessment.ScoreDelta),
			Description: describe(factor, prev, curr),
			Timestamp:   curr.CreatedAt,
		}
		list = append(list, alert)

		select {
		case m.alerts <- alert:
		default:
			m.dropped.Add(1)
		}
	}
	return list
}

func (m *BasicMonitor) Alerts() <-chan Alert {
	return m.alerts
}

// Dropped returns how many alerts were discarded because the channel was full.
func (m *BasicMonitor) Dropped() int64 {
	return m.dropped.Load()
}

func describe(factor string, prev, curr *models.ScoreSnapshot) string {
	switch factor {
	case AlertScoreDrop:
		return fmt.Sprintf("Total score dropped from %d to %d", prev.Score.TotalScore, curr.Score.TotalScore)
	case AlertTierDowngrade:
		return fmt.Sprintf("Tier downgraded from %s to %s", prev.Tier, curr.Tier)
	case AlertRiskEscalation:
		return fmt.Sprintf("Risk level rose from %s to %s", prev.RiskLevel, curr.RiskLevel)
	case AlertAvoid:
		return fmt.Sprintf("Recommendation changed from %s to %s", prev.Recommendation, curr.Recommendation)
	case AlertPnLDrop:
		return fmt.Sprintf("30d PnL fell from %.2f%% to %.2f%%", prev.Trading.PnL30d, curr.Trading.PnL30d)
	case AlertLowWinRate:
		return fmt.Sprintf("Win rate %.2f%% below threshold", curr.Trading.WinRate)
	case AlertVerificationLost:
		return "Trading data is no longer exchange verified"
	}
	return factor
}

func getSeverityLevel(factor string, scoreDelta int) string {
	switch {
	case factor == AlertVerificationLost || scoreDelta <= -20:
		return severityHigh
	case factor == AlertTierDowngrade || factor == AlertRiskEscalation || scoreDelta <= -10:
		return severityMedium
	default:
		return severityLow
	}
}
