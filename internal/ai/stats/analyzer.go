package stats

import (
	"context"
	"time"

	"github.com/songzhibin97/kolcred/internal/ai"
	"github.com/songzhibin97/kolcred/internal/models"
)

const (
	week          = 7 * 24 * time.Hour
	defaultWindow = 30 * 24 * time.Hour
)

// Analyzer computes content metrics directly from post timestamps and
// engagement, without calling any model.
type Analyzer struct {
	window time.Duration
	now    func() time.Time
}

// NewAnalyzer creates an analyzer over the last windowDays days.
func NewAnalyzer(windowDays int) *Analyzer {
	window := defaultWindow
	if windowDays > 0 {
		window = time.Duration(windowDays) * 24 * time.Hour
	}
	return &Analyzer{window: window, now: time.Now}
}

// AnalyzeContent implements the ContentAnalyzer interface
func (a *Analyzer) AnalyzeContent(_ context.Context, posts []models.Post) (*models.ContentMetrics, error) {
	now := a.now()
	start := now.Add(-a.window)

	// 只按整周分桶，不足一周的尾部并入最早的一周
	buckets := max(1, int(a.window/week))
	active := make([]bool, buckets)

	var count int
	var engagement float64
	for _, p := range posts {
		if p.PublishedAt.Before(start) {
			continue
		}

		idx := 0
		if age := now.Sub(p.PublishedAt); age > 0 {
			idx = int(age / week)
		}
		if idx >= buckets {
			idx = buckets - 1
		}
		active[idx] = true

		count++
		engagement += p.EngagementRate
	}

	if count == 0 {
		return nil, ai.ErrNoContent
	}

	var activeWeeks int
	for _, ok := range active {
		if ok {
			activeWeeks++
		}
	}

	return &models.ContentMetrics{
		PostsPerWeek:      float64(count) / (float64(a.window) / float64(week)),
		AvgEngagementRate: engagement / float64(count),
		ConsistencyScore:  float64(activeWeeks) / float64(buckets) * 100,
	}, nil
}
