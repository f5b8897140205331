package ai

import (
	"context"
	"errors"

	"github.com/songzhibin97/kolcred/internal/models"
)

// ErrNoContent is returned when there are no posts to analyze.
var ErrNoContent = errors.New("no content to analyze")

// ContentAnalyzer derives content metrics from a KOL's recent posts
type ContentAnalyzer interface {
	// AnalyzeContent returns posting frequency, engagement and consistency
	AnalyzeContent(ctx context.Context, posts []models.Post) (*models.ContentMetrics, error)
}
