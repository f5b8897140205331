package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/kolcred/internal/models"
)

func TestBuildContentPrompt(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{ID: "a", Platform: "twitter", PublishedAt: base.Add(-48 * time.Hour), EngagementRate: 3.5},
		{ID: "b", Platform: "medium", PublishedAt: base, EngagementRate: 6},
	}

	prompt := BuildContentPrompt(posts, 30)

	assert.Contains(t, prompt, "最近 30 天")
	assert.Contains(t, prompt, "共 2 条")
	assert.Contains(t, prompt, "posts_per_week")
	// newest first
	assert.Less(t,
		strings.Index(prompt, "2026-10-01T12:00:00Z"),
		strings.Index(prompt, "2026-09-29T12:00:00Z"))
	assert.Contains(t, prompt, "平台: medium, 互动率: 6.00%")
	// input slice untouched
	assert.Equal(t, "a", posts[0].ID)
}

func TestParseContentMetrics(t *testing.T) {
	tests := []struct {
		name        string
		resp        string
		expectError bool
		want        models.ContentMetrics
	}{
		{
			name: "plain json",
			resp: `{"posts_per_week": 5, "avg_engagement_rate": 6, "consistency_score": 80}`,
			want: models.ContentMetrics{PostsPerWeek: 5, AvgEngagementRate: 6, ConsistencyScore: 80},
		},
		{
			name: "fenced json",
			resp: "```json\n{\"posts_per_week\": 2.5, \"avg_engagement_rate\": 1.5, \"consistency_score\": 40}\n```",
			want: models.ContentMetrics{PostsPerWeek: 2.5, AvgEngagementRate: 1.5, ConsistencyScore: 40},
		},
		{
			name: "out of range values are clamped",
			resp: `{"posts_per_week": -3, "avg_engagement_rate": 250, "consistency_score": 120}`,
			want: models.ContentMetrics{PostsPerWeek: 0, AvgEngagementRate: 100, ConsistencyScore: 100},
		},
		{
			name:        "not json",
			resp:        "the creator posts often",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseContentMetrics(tt.resp)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *m)
		})
	}
}
