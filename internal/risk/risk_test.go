package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/kolcred/internal/models"
)

func snapshot(total int, tier, riskLevel, rec string, pnl, winRate float64, verified bool) *models.ScoreSnapshot {
	return &models.ScoreSnapshot{
		KOLID:          "kol-1",
		Score:          models.CredibilityScore{TotalScore: total},
		Tier:           tier,
		RiskLevel:      riskLevel,
		Recommendation: rec,
		Trading:        models.TradingData{PnL30d: pnl, WinRate: winRate, TotalTrades: 100, Verified: verified},
		CreatedAt:      time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBasicMonitor_CheckChange(t *testing.T) {
	// 设置基础预警参数
	params := Parameters{
		MaxScoreDrop: 10, // 总分最大跌幅
		MaxPnLDrop:   20, // 收益率最大跌幅
		MinWinRate:   40, // 胜率下限
	}

	base := snapshot(82, "Expert", "Medium", "Buy", 12, 65, true)

	tests := []struct {
		name        string
		prev        *models.ScoreSnapshot
		curr        *models.ScoreSnapshot
		wantStable  bool
		wantDelta   int
		wantFactors []string
	}{
		{
			name:        "first snapshot",
			prev:        nil,
			curr:        base,
			wantStable:  true,
			wantFactors: []string{},
		},
		{
			name:        "unchanged",
			prev:        base,
			curr:        snapshot(84, "Expert", "Medium", "Buy", 14, 66, true),
			wantStable:  true,
			wantDelta:   2,
			wantFactors: []string{},
		},
		{
			name:        "drop within tolerance crossing tier",
			prev:        base,
			curr:        snapshot(78, "Professional", "Medium", "Buy", 12, 65, true),
			wantDelta:   -4,
			wantFactors: []string{AlertTierDowngrade},
		},
		{
			name:        "large drop",
			prev:        base,
			curr:        snapshot(70, "Professional", "High", "Hold", 12, 65, true),
			wantDelta:   -12,
			wantFactors: []string{AlertScoreDrop, AlertTierDowngrade, AlertRiskEscalation},
		},
		{
			name:        "avoid and pnl collapse",
			prev:        base,
			curr:        snapshot(80, "Expert", "Very High", "Avoid", -15, 65, true),
			wantDelta:   -2,
			wantFactors: []string{AlertRiskEscalation, AlertAvoid, AlertPnLDrop},
		},
		{
			name:        "verification lost",
			prev:        base,
			curr:        snapshot(82, "Expert", "Medium", "Buy", 12, 65, false),
			wantFactors: []string{AlertVerificationLost},
		},
		{
			name:        "low win rate without history",
			curr:        snapshot(50, "Beginner", "High", "Avoid", 1, 30, true),
			wantFactors: []string{AlertLowWinRate},
		},
	}

	m := NewBasicMonitor(params)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.CheckChange(tt.prev, tt.curr)
			assert.Equal(t, len(tt.wantFactors) == 0, got.IsStable)
			assert.Equal(t, tt.wantDelta, got.ScoreDelta)
			assert.Equal(t, tt.wantFactors, got.RiskFactors)
		})
	}
}

func TestBasicMonitor_SetParameters(t *testing.T) {
	m := NewBasicMonitor(DefaultParameters())

	tests := []struct {
		name    string
		params  Parameters
		wantErr bool
	}{
		{name: "valid", params: Parameters{MaxScoreDrop: 5, MaxPnLDrop: 10, MinWinRate: 50}},
		{name: "zero score drop", params: Parameters{MaxScoreDrop: 0, MaxPnLDrop: 10, MinWinRate: 50}, wantErr: true},
		{name: "negative pnl drop", params: Parameters{MaxScoreDrop: 5, MaxPnLDrop: -1, MinWinRate: 50}, wantErr: true},
		{name: "win rate above 100", params: Parameters{MaxScoreDrop: 5, MaxPnLDrop: 10, MinWinRate: 101}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SetParameters(&tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	// 阈值收紧后 6 分跌幅触发预警
	prev := snapshot(80, "Expert", "Medium", "Buy", 10, 60, true)
	curr := snapshot(74, "Expert", "Medium", "Buy", 10, 60, true)
	assert.Equal(t, []string{AlertScoreDrop}, m.CheckChange(prev, curr).RiskFactors)
}

func TestBasicMonitor_Observe(t *testing.T) {
	m := NewBasicMonitor(DefaultParameters())

	prev := snapshot(82, "Expert", "Medium", "Buy", 12, 65, true)
	curr := snapshot(60, "Experienced", "Medium", "Hold", 12, 65, false)

	list := m.Observe(prev, curr)
	require.Len(t, list, 3)

	want := map[string]string{
		AlertScoreDrop:        severityHigh,
		AlertTierDowngrade:    severityHigh,
		AlertVerificationLost: severityHigh,
	}
	for i := 0; i < len(list); i++ {
		select {
		case a := <-m.Alerts():
			assert.Equal(t, "kol-1", a.KOLID)
			assert.Equal(t, want[a.AlertType], a.Severity, a.AlertType)
			assert.NotEmpty(t, a.Description)
			assert.Equal(t, curr.CreatedAt, a.Timestamp)
		case <-time.After(time.Second):
			t.Fatal("expected alert on channel")
		}
	}

	assert.Nil(t, m.Observe(nil, prev))
}

func TestBasicMonitor_ObserveDropsWhenFull(t *testing.T) {
	m := NewBasicMonitor(DefaultParameters())

	prev := snapshot(82, "Expert", "Medium", "Buy", 12, 65, true)
	curr := snapshot(82, "Expert", "Medium", "Buy", 12, 65, false)

	for i := 0; i < alertBuffer+5; i++ {
		m.Observe(prev, curr)
	}

	assert.Len(t, m.Alerts(), alertBuffer)
	assert.Equal(t, int64(5), m.Dropped())
}

func TestGetSeverityLevel(t *testing.T) {
	tests := []struct {
		factor string
		delta  int
		want   string
	}{
		{AlertVerificationLost, 0, severityHigh},
		{AlertScoreDrop, -25, severityHigh},
		{AlertScoreDrop, -12, severityMedium},
		{AlertTierDowngrade, -3, severityMedium},
		{AlertRiskEscalation, 0, severityMedium},
		{AlertPnLDrop, -2, severityLow},
		{AlertLowWinRate, 0, severityLow},
	}

	for _, tt := range tests {
		t.Run(tt.factor, func(t *testing.T) {
			assert.Equal(t, tt.want, getSeverityLevel(tt.factor, tt.delta))
		})
	}
}
