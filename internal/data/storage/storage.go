package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/songzhibin97/kolcred/internal/data"
	"github.com/songzhibin97/kolcred/internal/models"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultHistoryLimit     = 30
	defaultLeaderboardLimit = 20
)

// ErrNotFound aliases data.ErrNotFound.
var ErrNotFound = data.ErrNotFound

var _ data.ProfileStorage = (*SQLStorage)(nil)

type SQLStorage struct {
	db     *sql.DB
	driver string
}

// NewSQLStorage opens the database for the given driver and creates the schema.
func NewSQLStorage(driver, connStr string) (*SQLStorage, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite 只允许单写
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStorage{db: db, driver: driver}

	err = s.initTables()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

// NewPostgresStorage opens a postgres backed storage.
func NewPostgresStorage(connStr string) (*SQLStorage, error) {
	return NewSQLStorage(DriverPostgres, connStr)
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStorage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveProfile implements ProfileStorage interface
func (s *SQLStorage) SaveProfile(ctx context.Context, p *models.KOLProfile) error {
	query := `
        INSERT INTO kol_profile (
            id, wallet_address, username, bio, social_handles,
            verification_status, stake_amount, joined_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            wallet_address = EXCLUDED.wallet_address,
            username = EXCLUDED.username,
            bio = EXCLUDED.bio,
            social_handles = EXCLUDED.social_handles,
            verification_status = EXCLUDED.verification_status,
            stake_amount = EXCLUDED.stake_amount,
            updated_at = EXCLUDED.updated_at
    `

	handles, err := json.Marshal(p.SocialHandles)
	if err != nil {
		return fmt.Errorf("failed to marshal social handles: %w", err)
	}

	now := time.Now().UTC()
	if p.JoinedAt.IsZero() {
		p.JoinedAt = now
	}
	p.UpdatedAt = now

	status := p.VerificationStatus
	if status == "" {
		status = models.StatusUnverified
	}

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		p.ID,
		p.WalletAddress,
		p.Username,
		p.Bio,
		string(handles),
		string(status),
		p.StakeAmount,
		p.JoinedAt.Unix(),
		p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

const selectProfileColumns = `SELECT id, wallet_address, username, bio, social_handles,
               verification_status, stake_amount, joined_at, updated_at
        FROM kol_profile`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.KOLProfile, error) {
	var (
		p         models.KOLProfile
		handles   string
		status    string
		joinedAt  int64
		updatedAt int64
	)

	err := row.Scan(
		&p.ID,
		&p.WalletAddress,
		&p.Username,
		&p.Bio,
		&handles,
		&status,
		&p.StakeAmount,
		&joinedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(handles), &p.SocialHandles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal social handles: %w", err)
	}
	p.VerificationStatus = models.VerificationStatus(status)
	p.JoinedAt = time.Unix(joinedAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &p, nil
}

// GetProfile implements ProfileStorage interface
func (s *SQLStorage) GetProfile(ctx context.Context, id string) (*models.KOLProfile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectProfileColumns+` WHERE id = ?`), id)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// ListProfiles implements ProfileStorage interface
func (s *SQLStorage) ListProfiles(ctx context.Context) ([]models.KOLProfile, error) {
	rows, err := s.db.QueryContext(ctx, selectProfileColumns+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	list := make([]models.KOLProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		list = append(list, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	return list, nil
}

// UpdateStake implements ProfileStorage interface
func (s *SQLStorage) UpdateStake(ctx context.Context, id string, amount float64) error {
	if amount < 0 {
		return errors.New("stake amount must not be negative")
	}
	return s.updateProfileField(ctx, `stake_amount`, id, amount)
}

// UpdateVerificationStatus implements ProfileStorage interface
func (s *SQLStorage) UpdateVerificationStatus(ctx context.Context, id string, status models.VerificationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown verification status: %s", status)
	}
	return s.updateProfileField(ctx, `verification_status`, id, string(status))
}

func (s *SQLStorage) updateProfileField(ctx context.Context, column, id string, value any) error {
	query := `UPDATE kol_profile SET ` + column + ` = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, s.rebind(query), value, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSnapshot implements ProfileStorage interface
func (s *SQLStorage) SaveSnapshot(ctx context.Context, snap *models.ScoreSnapshot) error {
	query := `
        INSERT INTO credibility_snapshot (
            kol_id, model_version, trading_skill, social_influence,
            content_quality, transparency, total_score, tier, risk_level,
            recommendation, trading_data, social_data, content_metrics, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	trading, err := json.Marshal(snap.Trading)
	if err != nil {
		return fmt.Errorf("failed to marshal trading data: %w", err)
	}
	social, err := json.Marshal(snap.Social)
	if err != nil {
		return fmt.Errorf("failed to marshal social data: %w", err)
	}

	var content sql.NullString
	if snap.Content != nil {
		b, err := json.Marshal(snap.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal content metrics: %w", err)
		}
		content = sql.NullString{String: string(b), Valid: true}
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		snap.KOLID,
		snap.ModelVersion,
		snap.Score.TradingSkill,
		snap.Score.SocialInfluence,
		snap.Score.ContentQuality,
		snap.Score.Transparency,
		snap.Score.TotalScore,
		snap.Tier,
		snap.RiskLevel,
		snap.Recommendation,
		string(trading),
		string(social),
		content,
		snap.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

const selectSnapshotColumns = `SELECT id, kol_id, model_version, trading_skill, social_influence,
               content_quality, transparency, total_score, tier, risk_level,
               recommendation, trading_data, social_data, content_metrics, created_at
        FROM credibility_snapshot`

func scanSnapshot(row rowScanner) (*models.ScoreSnapshot, error) {
	var (
		snap      models.ScoreSnapshot
		trading   string
		social    string
		content   sql.NullString
		createdAt int64
	)

	err := row.Scan(
		&snap.ID,
		&snap.KOLID,
		&snap.ModelVersion,
		&snap.Score.TradingSkill,
		&snap.Score.SocialInfluence,
		&snap.Score.ContentQuality,
		&snap.Score.Transparency,
		&snap.Score.TotalScore,
		&snap.Tier,
		&snap.RiskLevel,
		&snap.Recommendation,
		&trading,
		&social,
		&content,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(trading), &snap.Trading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trading data: %w", err)
	}
	if err := json.Unmarshal([]byte(social), &snap.Social); err != nil {
		return nil, fmt.Errorf("failed to unmarshal social data: %w", err)
	}
	if content.Valid {
		var c models.ContentMetrics
		if err := json.Unmarshal([]byte(content.String), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content metrics: %w", err)
		}
		snap.Content = &c
	}
	snap.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &snap, nil
}

// GetLatestSnapshot implements ProfileStorage interface
func (s *SQLStorage) GetLatestSnapshot(ctx context.Context, kolID string) (*models.ScoreSnapshot, error) {
	query := selectSnapshotColumns + ` WHERE kol_id = ? ORDER BY id DESC LIMIT 1`

	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, s.rebind(query), kolID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %s: %w", kolID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return snap, nil
}

// GetSnapshotHistory implements ProfileStorage interface
func (s *SQLStorage) GetSnapshotHistory(ctx context.Context, kolID string, limit int) ([]models.ScoreSnapshot, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := selectSnapshotColumns + ` WHERE kol_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), kolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	list := make([]models.ScoreSnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		list = append(list, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return list, nil
}

// GetLeaderboard implements ProfileStorage interface
func (s *SQLStorage) GetLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	query := `
        SELECT s.kol_id, p.username, s.total_score, s.tier, s.risk_level,
               (SELECT COUNT(*) FROM kol_follow f WHERE f.kol_id = s.kol_id),
               s.created_at
        FROM credibility_snapshot s
        JOIN kol_profile p ON p.id = s.kol_id
        WHERE s.id = (SELECT MAX(id) FROM credibility_snapshot WHERE kol_id = s.kol_id)
        ORDER BY s.total_score DESC, p.username ASC
        LIMIT ?
    `

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	list := make([]models.LeaderboardEntry, 0)
	for rows.Next() {
		var e models.LeaderboardEntry
		var updatedAt int64
		if err := rows.Scan(&e.KOLID, &e.Username, &e.TotalScore, &e.Tier, &e.RiskLevel, &e.FollowerCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		list = append(list, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}

	return list, nil
}

// Follow implements ProfileStorage interface
func (s *SQLStorage) Follow(ctx context.Context, kolID, address string) error {
	if address == "" {
		return errors.New("follower address required")
	}
	if _, err := s.GetProfile(ctx, kolID); err != nil {
		return err
	}

	query := `
        INSERT INTO kol_follow (kol_id, follower_address, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT (kol_id, follower_address) DO NOTHING
    `

	_, err := s.db.ExecContext(ctx, s.rebind(query), kolID, strings.ToLower(address), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

// Unfollow implements ProfileStorage interface
func (s *SQLStorage) Unfollow(ctx context.Context, kolID, address string) error {
	query := `DELETE FROM kol_follow WHERE kol_id = ? AND follower_address = ?`

	_, err := s.db.ExecContext(ctx, s.rebind(query), kolID, strings.ToLower(address))
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	return nil
}

// IsFollowing implements ProfileStorage interface
func (s *SQLStorage) IsFollowing(ctx context.Context, kolID, address string) (bool, error) {
	query := `SELECT COUNT(*) FROM kol_follow WHERE kol_id = ? AND follower_address = ?`

	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), kolID, strings.ToLower(address)).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return n > 0, nil
}

// FollowerCount implements ProfileStorage interface
func (s *SQLStorage) FollowerCount(ctx context.Context, kolID string) (int, error) {
	query := `SELECT COUNT(*) FROM kol_follow WHERE kol_id = ?`

	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), kolID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return n, nil
}

func (s *SQLStorage) initTables() error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS kol_profile (
			id VARCHAR(100) PRIMARY KEY,
			wallet_address VARCHAR(100),
			username VARCHAR(100) NOT NULL,
			bio TEXT,
			social_handles TEXT NOT NULL,
			verification_status VARCHAR(20) NOT NULL,
			stake_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			joined_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS credibility_snapshot (
			id ` + idColumn + `,
			kol_id VARCHAR(100) NOT NULL,
			model_version VARCHAR(20) NOT NULL,
			trading_skill INT NOT NULL,
			social_influence INT NOT NULL,
			content_quality INT NOT NULL,
			transparency INT NOT NULL,
			total_score INT NOT NULL,
			tier VARCHAR(20) NOT NULL,
			risk_level VARCHAR(20) NOT NULL,
			recommendation VARCHAR(20) NOT NULL,
			trading_data TEXT NOT NULL,
			social_data TEXT NOT NULL,
			content_metrics TEXT,
			created_at BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_snapshot_kol ON credibility_snapshot (kol_id, id)`,

		`CREATE TABLE IF NOT EXISTS kol_follow (
			kol_id VARCHAR(100) NOT NULL,
			follower_address VARCHAR(100) NOT NULL,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (kol_id, follower_address)
		)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
