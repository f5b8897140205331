package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/songzhibin97/kolcred/internal/models"
)

// SystemPrompt is shared by the LLM backed analyzers.
const SystemPrompt = "你是一个专业的加密货币 KOL 内容分析师，擅长评估发帖频率、互动质量和内容持续性。请严格按照要求的JSON格式输出分析结果。"

// maxPromptPosts bounds the prompt size.
const maxPromptPosts = 200

// BuildContentPrompt renders posts, newest first, into the analysis prompt.
func BuildContentPrompt(posts []models.Post, windowDays int) string {
	sorted := make([]models.Post, len(posts))
	copy(sorted, posts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	if len(sorted) > maxPromptPosts {
		sorted = sorted[:maxPromptPosts]
	}

	var list strings.Builder
	for _, p := range sorted {
		list.WriteString(fmt.Sprintf("时间: %s, 平台: %s, 互动率: %.2f%%\n",
			p.PublishedAt.UTC().Format(time.RFC3339),
			p.Platform,
			p.EngagementRate))
	}

	return fmt.Sprintf(`分析以下 KOL 最近 %d 天发布的内容（共 %d 条）:
%s
请评估：
1. 平均每周发帖数
2. 平均互动率（百分比）
3. 发帖持续性（0-100，100表示每周都稳定输出）

输出格式为JSON:
{
    "posts_per_week": float,
    "avg_engagement_rate": float,
    "consistency_score": float
}`, windowDays, len(posts), list.String())
}

// ParseContentMetrics decodes an LLM answer and clamps each metric to its range.
func ParseContentMetrics(resp string) (*models.ContentMetrics, error) {
	resp = strings.TrimSpace(resp)
	// 部分模型会用 markdown 代码块包裹
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")

	var m models.ContentMetrics
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp)), &m); err != nil {
		return nil, fmt.Errorf("failed to parse content metrics: %w", err)
	}

	m.PostsPerWeek = clamp(m.PostsPerWeek, 0, 1000)
	m.AvgEngagementRate = clamp(m.AvgEngagementRate, 0, 100)
	m.ConsistencyScore = clamp(m.ConsistencyScore, 0, 100)
	return &m, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
