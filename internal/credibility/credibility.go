// Package credibility implements the KOL credibility model: a weighted
// score over trading skill, social influence, content quality and
// transparency, plus the tier, risk and follow-recommendation tables.
// Everything here is pure and safe for concurrent use.
package credibility

import (
	"math"

	"github.com/songzhibin97/kolcred/internal/models"
)

// ModelVersion is the current credibility model version.
const ModelVersion = "1.0.0"

// DefaultContentQuality is used when no content metrics are available.
const DefaultContentQuality = 12

const (
	// Category weights (sum to 1.0).
	tradingSkillWeight    = 0.4
	socialInfluenceWeight = 0.3
	contentQualityWeight  = 0.2
	transparencyWeight    = 0.1

	// Category ceilings.
	maxTradingSkill    = 40
	maxSocialInfluence = 30
	maxContentQuality  = 20
	maxTransparency    = 10

	// Tier thresholds, inclusive lower bounds.
	eliteThreshold        = 90
	expertThreshold       = 80
	professionalThreshold = 70
	experiencedThreshold  = 60
)

// CategoryWeight describes a scoring category and its weight.
type CategoryWeight struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	MaxScore int     `json:"max_score"`
}

// Categories returns the model's scoring categories with their weights.
func Categories() []CategoryWeight {
	return []CategoryWeight{
		{Name: "trading_skill", Weight: tradingSkillWeight, MaxScore: maxTradingSkill},
		{Name: "social_influence", Weight: socialInfluenceWeight, MaxScore: maxSocialInfluence},
		{Name: "content_quality", Weight: contentQualityWeight, MaxScore: maxContentQuality},
		{Name: "transparency", Weight: transparencyWeight, MaxScore: maxTransparency},
	}
}

// DefaultEvaluator implements Evaluator with the package-level model.
type DefaultEvaluator struct{}

func NewDefaultEvaluator() *DefaultEvaluator {
	return &DefaultEvaluator{}
}

// Evaluate implements Evaluator interface
func (e *DefaultEvaluator) Evaluate(params Params) *Assessment {
	score := CalculateScore(params)
	risk := CalculateRiskLevel(params.Trading)

	return &Assessment{
		ModelVersion:   ModelVersion,
		Score:          score,
		Tier:           GetTier(score.TotalScore),
		Risk:           risk,
		Recommendation: GetFollowRecommendation(score.TotalScore, risk.Level),
	}
}

// CalculateScore computes the four category scores and the weighted total.
func CalculateScore(params Params) models.CredibilityScore {
	tradingSkill := tradingSkillScore(params.Trading)
	socialInfluence := socialInfluenceScore(params.Social)
	contentQuality := contentQualityScore(params.Content)
	transparency := transparencyScore(params.VerificationStatus, params.StakeAmount)

	total := math.Round(
		float64(tradingSkill)*tradingSkillWeight +
			float64(socialInfluence)*socialInfluenceWeight +
			float64(contentQuality)*contentQualityWeight +
			float64(transparency)*transparencyWeight,
	)

	s := models.CredibilityScore{
		TradingSkill:    tradingSkill,
		SocialInfluence: socialInfluence,
		ContentQuality:  contentQuality,
		Transparency:    transparency,
		TotalScore:      clampInt(int(total), 0, 100),
	}

	return s
}

// 交易能力 (0-40)
func tradingSkillScore(t models.TradingData) int {
	var score float64

	// 交易量 (0-15)，log10(0) 为 -Inf，被下限截断为 0
	score += math.Max(0, math.Min(15, math.Log10(t.Volume30d/10000)*3))

	// 收益率 (0-15)
	score += math.Min(15, math.Max(0, t.PnL30d*0.5))

	// 胜率 (0-10)
	score += (t.WinRate / 100) * 10

	// 交易频率 (0-10)
	score += math.Min(10, math.Max(0, (float64(t.TotalTrades)/30)*2))

	return clampInt(int(math.Round(score)), 0, maxTradingSkill)
}

// 社交影响力 (0-30)
func socialInfluenceScore(social models.SocialData) int {
	var (
		totalFollowers  float64
		verifiedCount   int
		totalEngagement float64
	)

	for _, p := range social {
		totalFollowers += float64(p.Followers)
		if p.Verified {
			verifiedCount++
		}
		if p.EngagementRate != nil {
			totalEngagement += *p.EngagementRate * 1000
		}
	}

	var score float64
	score += math.Min(15, math.Log10(totalFollowers/1000+1)*5)
	score += math.Min(10, float64(verifiedCount)*2.5)
	score += math.Min(5, totalEngagement/10000)

	return clampInt(int(math.Round(score)), 0, maxSocialInfluence)
}

// 内容质量 (0-20)
func contentQualityScore(c *models.ContentMetrics) int {
	if c == nil {
		return DefaultContentQuality
	}

	var score float64
	score += math.Min(8, c.PostsPerWeek*1.5)
	score += math.Min(7, c.AvgEngagementRate*0.7)
	score += (c.ConsistencyScore / 100) * 5

	return clampInt(int(math.Round(score)), 0, maxContentQuality)
}

// 透明度 (0-10)
func transparencyScore(status models.VerificationStatus, stakeAmount float64) int {
	var score float64

	switch status {
	case models.StatusVerified:
		score += 4
	case models.StatusPending:
		score += 2
	}

	score += math.Min(6, math.Log10(stakeAmount/1000+1)*2)

	return clampInt(int(math.Round(score)), 0, maxTransparency)
}

// GetTier maps a total score to its tier. First match wins, highest first.
func GetTier(score int) TierInfo {
	switch {
	case score >= eliteThreshold:
		return TierInfo{Tier: TierElite, Description: "Top-tier trader with outstanding credibility"}
	case score >= expertThreshold:
		return TierInfo{Tier: TierExpert, Description: "Expert trader, trustworthy"}
	case score >= professionalThreshold:
		return TierInfo{Tier: TierProfessional, Description: "Professional trader with steady performance"}
	case score >= experiencedThreshold:
		return TierInfo{Tier: TierExperienced, Description: "Experienced trader, improving steadily"}
	default:
		return TierInfo{Tier: TierBeginner, Description: "Novice trader, use with caution"}
	}
}

// CalculateRiskLevel buckets trading behaviour into a risk level.
// Volatility is not clamped, so a large |pnl| yields a negative risk score,
// which always lands in Very High.
func CalculateRiskLevel(t models.TradingData) RiskInfo {
	volatility := math.Abs(t.PnL30d) / 10
	riskScore := (t.WinRate/100)*0.5 + (1-volatility)*0.5

	switch {
	case riskScore >= 0.8:
		return RiskInfo{Level: RiskLow, Score: riskScore, Description: "Low risk, conservative style"}
	case riskScore >= 0.6:
		return RiskInfo{Level: RiskMedium, Score: riskScore, Description: "Medium risk, balances return and risk"}
	case riskScore >= 0.4:
		return RiskInfo{Level: RiskHigh, Score: riskScore, Description: "High risk, aggressive strategy"}
	default:
		return RiskInfo{Level: RiskVeryHigh, Score: riskScore, Description: "Very high risk, follow with caution"}
	}
}

// GetFollowRecommendation is a pure decision table over score and risk.
func GetFollowRecommendation(score int, risk RiskLevel) Recommendation {
	switch {
	case score >= 85 && risk == RiskLow:
		return Recommendation{Action: ActionStrongBuy, Reasoning: "High credibility and low risk, strongly recommended to follow"}
	case score >= 75 && risk != RiskVeryHigh:
		return Recommendation{Action: ActionBuy, Reasoning: "Good credibility with controllable risk, recommended to follow"}
	case score >= 60:
		return Recommendation{Action: ActionHold, Reasoning: "Moderate credibility, try with a small position"}
	default:
		return Recommendation{Action: ActionAvoid, Reasoning: "Low credibility or excessive risk, be careful"}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
