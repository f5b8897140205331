package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/kolcred/internal/models"
	"github.com/songzhibin97/kolcred/internal/utils/request"
)

const (
	statsPath = "/v1/platforms/{platform}/users/{handle}"
	postsPath = "/v1/platforms/{platform}/users/{handle}/posts"
)

// APISource implements SocialSource against an HTTP social stats API
type APISource struct {
	baseURL    string
	token      string
	httpClient *resty.Client
}

func NewAPISource(baseURL, token string) *APISource {
	return &APISource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: request.Request,
	}
}

func (s *APISource) Name() string {
	return "social-api"
}

type statsResponse struct {
	Followers      int64    `json:"followers"`
	Verified       bool     `json:"verified"`
	EngagementRate *float64 `json:"engagement_rate"`
}

type postsResponse struct {
	Posts []struct {
		ID             string    `json:"id"`
		PublishedAt    time.Time `json:"published_at"`
		EngagementRate float64   `json:"engagement_rate"`
	} `json:"posts"`
}

// CollectPlatformStats implements SocialSource interface
func (s *APISource) CollectPlatformStats(ctx context.Context, platform, handle string) (*models.PlatformStats, error) {
	body, err := s.get(ctx, statsPath, platform, handle, nil)
	if err != nil {
		return nil, err
	}

	var result statsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Followers < 0 {
		return nil, fmt.Errorf("invalid follower count: %d", result.Followers)
	}

	return &models.PlatformStats{
		Followers:      result.Followers,
		Verified:       result.Verified,
		EngagementRate: result.EngagementRate,
	}, nil
}

// CollectRecentPosts implements SocialSource interface
func (s *APISource) CollectRecentPosts(ctx context.Context, platform, handle string, since time.Time) ([]models.Post, error) {
	query := map[string]string{"since": since.UTC().Format(time.RFC3339)}

	body, err := s.get(ctx, postsPath, platform, handle, query)
	if err != nil {
		return nil, err
	}

	var result postsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	posts := make([]models.Post, 0, len(result.Posts))
	for _, p := range result.Posts {
		if p.PublishedAt.Before(since) {
			continue
		}
		posts = append(posts, models.Post{
			ID:             p.ID,
			Platform:       platform,
			PublishedAt:    p.PublishedAt,
			EngagementRate: p.EngagementRate,
		})
	}

	return posts, nil
}

func (s *APISource) get(ctx context.Context, path, platform, handle string, query map[string]string) ([]byte, error) {
	if s.baseURL == "" {
		return nil, errors.New("social api base url not configured")
	}

	req := s.httpClient.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"platform": platform,
			"handle":   handle,
		})
	if s.token != "" {
		req.SetAuthToken(s.token)
	}
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(s.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	return resp.Body(), nil
}
