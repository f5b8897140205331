package data

import (
	"context"
	"errors"
	"time"

	"github.com/songzhibin97/kolcred/internal/models"
)

// ErrNotFound is returned by ProfileStorage when a profile or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// ProfileCollector 负责从交易所和社交平台收集 KOL 数据
type ProfileCollector interface {
	// CollectTradingData aggregates 30-day trading data across exchange accounts
	CollectTradingData(ctx context.Context, accounts []models.ExchangeAccount) (*models.TradingData, error)

	// CollectSocialData retrieves per-platform social stats, keyed by platform
	CollectSocialData(ctx context.Context, handles map[string]string) (models.SocialData, error)

	// CollectRecentPosts retrieves posts published since the given time
	CollectRecentPosts(ctx context.Context, handles map[string]string, since time.Time) ([]models.Post, error)
}

// ProfileStorage 处理 KOL 档案、评分快照和关注关系的持久化
type ProfileStorage interface {
	// SaveProfile inserts or updates a profile
	SaveProfile(ctx context.Context, p *models.KOLProfile) error

	// GetProfile retrieves a profile by id
	GetProfile(ctx context.Context, id string) (*models.KOLProfile, error)

	// ListProfiles retrieves all profiles
	ListProfiles(ctx context.Context) ([]models.KOLProfile, error)

	// UpdateStake sets the staked amount of a profile
	UpdateStake(ctx context.Context, id string, amount float64) error

	// UpdateVerificationStatus sets the verification status of a profile
	UpdateVerificationStatus(ctx context.Context, id string, status models.VerificationStatus) error

	// SaveSnapshot stores a score snapshot
	SaveSnapshot(ctx context.Context, s *models.ScoreSnapshot) error

	// GetLatestSnapshot retrieves the most recent snapshot of a profile
	GetLatestSnapshot(ctx context.Context, kolID string) (*models.ScoreSnapshot, error)

	// GetSnapshotHistory retrieves snapshots newest first
	GetSnapshotHistory(ctx context.Context, kolID string, limit int) ([]models.ScoreSnapshot, error)

	// GetLeaderboard ranks profiles by their latest total score
	GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)

	// Follow records that address follows the KOL
	Follow(ctx context.Context, kolID, address string) error

	// Unfollow removes the follow relation
	Unfollow(ctx context.Context, kolID, address string) error

	// IsFollowing reports whether address follows the KOL
	IsFollowing(ctx context.Context, kolID, address string) (bool, error)

	// FollowerCount returns the number of followers of the KOL
	FollowerCount(ctx context.Context, kolID string) (int, error)
}
