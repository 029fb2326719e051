/*
Package sqlite provides a SQLite-backed implementation of challenge.Store.

PURPOSE:
  Production persistence for the challenge engine. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  challenges:        Challenge configuration (period, streak minimum, bonuses)
  activity_types:    Scoring configuration per type, stored as JSON documents
  activities:        Logged activities; soft-deleted, never hard-deleted
  participations:    Per (user, challenge) running totals and streaks
  achievements:      Criteria descriptors, stored as JSON documents
  user_achievements: Award records

INDEXES:
  Critical indexes for the engine's three hot lookups:
  - idx_activities_participant_date: Full-history streak replay
  - idx_activities_day: Drink accumulation and media once-per-day scans
  - idx_activities_external: Webhook upsert idempotency (unique per
    challenge among non-deleted rows)

SOFT DELETION:
  ActivitiesByParticipant and ActivitiesOnDay filter deleted rows in SQL;
  ActivityByID returns the row regardless so deletes and audits see it.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/challenges.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := challenge.NewEngine(store, achievement.NewEvaluator())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - challenge/store.go: Interface definition
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/challenge"
	"github.com/warp/challenge-engine/factory"
	"github.com/warp/challenge-engine/scoring"
)

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements challenge.Store using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{queries: queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS challenges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		streak_min_points TEXT NOT NULL,
		media_bonus_points TEXT NOT NULL,
		optional_bonuses_json TEXT,
		requires_payment BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_types (
		id TEXT PRIMARY KEY,
		challenge_id TEXT NOT NULL,
		name TEXT NOT NULL,
		scoring_json TEXT NOT NULL,
		contributes_to_streak BOOLEAN DEFAULT FALSE,
		is_penalty BOOLEAN DEFAULT FALSE,
		threshold_bonuses_json TEXT,
		max_per_challenge INTEGER,
		valid_week INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_types_challenge
		ON activity_types(challenge_id);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		type_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		metrics_json TEXT,
		selected_bonuses_json TEXT,
		has_media BOOLEAN DEFAULT FALSE,
		points TEXT NOT NULL,
		bonuses_json TEXT,
		external_id TEXT NOT NULL DEFAULT '',
		deleted BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Full-history streak replay (hot path)
	CREATE INDEX IF NOT EXISTS idx_activities_participant_date
		ON activities(user_id, challenge_id, date);

	-- Drink accumulation and media once-per-day scans
	CREATE INDEX IF NOT EXISTS idx_activities_day
		ON activities(user_id, challenge_id, date) WHERE deleted = FALSE;

	-- Webhook upsert idempotency: one live activity per vendor external ID
	CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_external
		ON activities(challenge_id, external_id)
		WHERE external_id != '' AND deleted = FALSE;

	CREATE TABLE IF NOT EXISTS participations (
		user_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		paid BOOLEAN DEFAULT FALSE,
		total_points TEXT NOT NULL,
		current_streak INTEGER DEFAULT 0,
		longest_streak INTEGER DEFAULT 0,
		last_streak_day TEXT,
		joined_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, challenge_id)
	);

	CREATE INDEX IF NOT EXISTS idx_participations_challenge
		ON participations(challenge_id);

	CREATE TABLE IF NOT EXISTS achievements (
		id TEXT PRIMARY KEY,
		challenge_id TEXT NOT NULL,
		criteria_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_achievements_challenge
		ON achievements(challenge_id);

	CREATE TABLE IF NOT EXISTS user_achievements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		awarded_on TEXT NOT NULL,
		points TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_user_achievements_user
		ON user_achievements(user_id, challenge_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The mutex serializes
// writers; SQLite allows only one anyway.
func (s *Store) WithTx(ctx context.Context, fn func(challenge.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries: queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	queries
}

// WithTx nested inside a transaction just runs the function; the outer
// transaction already guards atomicity.
func (t *txStore) WithTx(ctx context.Context, fn func(challenge.Store) error) error {
	return fn(t)
}

// =============================================================================
// QUERIES - shared between Store and txStore
// =============================================================================

type queries struct {
	db dbtx
}

// -----------------------------------------------------------------------------
// Challenges

func (q queries) SaveChallenge(ctx context.Context, c *challenge.Challenge) error {
	bonuses, err := json.Marshal(c.OptionalBonuses)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO challenges (id, name, start_date, end_date, streak_min_points,
			media_bonus_points, optional_bonuses_json, requires_payment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			streak_min_points = excluded.streak_min_points,
			media_bonus_points = excluded.media_bonus_points,
			optional_bonuses_json = excluded.optional_bonuses_json,
			requires_payment = excluded.requires_payment
	`

	_, err = q.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Start.String(), c.End.String(),
		c.StreakMinPoints.String(), c.MediaBonusPoints.String(),
		string(bonuses), c.RequiresPayment,
		timestamp(c.CreatedAt),
	)
	return err
}

func (q queries) ChallengeByID(ctx context.Context, id challenge.ChallengeID) (*challenge.Challenge, error) {
	var (
		c                          challenge.Challenge
		start, end, minPts, media  string
		bonuses                    sql.NullString
		createdAt                  string
	)

	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, streak_min_points, media_bonus_points,
		        optional_bonuses_json, requires_payment, created_at
		 FROM challenges WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &start, &end, &minPts, &media, &bonuses, &c.RequiresPayment, &createdAt)
	if err == sql.ErrNoRows {
		return nil, challenge.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}

	if c.Start, err = challenge.ParseDate(start); err != nil {
		return nil, fmt.Errorf("bad start date for challenge %s: %w", id, err)
	}
	if c.End, err = challenge.ParseDate(end); err != nil {
		return nil, fmt.Errorf("bad end date for challenge %s: %w", id, err)
	}
	if c.StreakMinPoints, err = parseDecimal(minPts); err != nil {
		return nil, fmt.Errorf("bad streak minimum for challenge %s: %w", id, err)
	}
	if c.MediaBonusPoints, err = parseDecimal(media); err != nil {
		return nil, fmt.Errorf("bad media bonus points for challenge %s: %w", id, err)
	}
	if bonuses.Valid && bonuses.String != "" {
		if err := json.Unmarshal([]byte(bonuses.String), &c.OptionalBonuses); err != nil {
			return nil, fmt.Errorf("bad optional bonuses for challenge %s: %w", id, err)
		}
	}
	c.CreatedAt = parseTimestamp(createdAt)
	return &c, nil
}

// -----------------------------------------------------------------------------
// Activity types

func (q queries) SaveActivityType(ctx context.Context, at *challenge.ActivityType) error {
	scoringJSON, err := factory.MarshalScoringConfig(at.Scoring)
	if err != nil {
		return err
	}
	thresholds, err := json.Marshal(at.ThresholdBonuses)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activity_types (id, challenge_id, name, scoring_json,
			contributes_to_streak, is_penalty, threshold_bonuses_json,
			max_per_challenge, valid_week, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			scoring_json = excluded.scoring_json,
			contributes_to_streak = excluded.contributes_to_streak,
			is_penalty = excluded.is_penalty,
			threshold_bonuses_json = excluded.threshold_bonuses_json,
			max_per_challenge = excluded.max_per_challenge,
			valid_week = excluded.valid_week
	`

	_, err = q.db.ExecContext(ctx, query,
		at.ID, at.ChallengeID, at.Name, scoringJSON,
		at.ContributesToStreak, at.IsPenalty, string(thresholds),
		at.MaxPerChallenge, at.ValidWeek,
		timestamp(at.CreatedAt),
	)
	return err
}

func (q queries) ActivityTypeByID(ctx context.Context, id challenge.ActivityTypeID) (*challenge.ActivityType, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, challenge_id, name, scoring_json, contributes_to_streak, is_penalty,
		        threshold_bonuses_json, max_per_challenge, valid_week, created_at
		 FROM activity_types WHERE id = ?`, id)

	at, err := scanActivityType(row.Scan)
	if err == sql.ErrNoRows {
		return nil, challenge.ErrActivityTypeNotFound
	}
	return at, err
}

func (q queries) ActivityTypesByChallenge(ctx context.Context, id challenge.ChallengeID) ([]challenge.ActivityType, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, challenge_id, name, scoring_json, contributes_to_streak, is_penalty,
		        threshold_bonuses_json, max_per_challenge, valid_week, created_at
		 FROM activity_types WHERE challenge_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []challenge.ActivityType
	for rows.Next() {
		at, err := scanActivityType(rows.Scan)
		if err != nil {
			return nil, err
		}
		types = append(types, *at)
	}
	return types, rows.Err()
}

func scanActivityType(scan func(...any) error) (*challenge.ActivityType, error) {
	var (
		at          challenge.ActivityType
		scoringJSON string
		thresholds  sql.NullString
		createdAt   string
	)

	err := scan(&at.ID, &at.ChallengeID, &at.Name, &scoringJSON,
		&at.ContributesToStreak, &at.IsPenalty, &thresholds,
		&at.MaxPerChallenge, &at.ValidWeek, &createdAt)
	if err != nil {
		return nil, err
	}

	at.Scoring, err = factory.ParseScoringConfig(scoringJSON)
	if err != nil {
		return nil, fmt.Errorf("bad scoring config for type %s: %w", at.ID, err)
	}
	if thresholds.Valid && thresholds.String != "" {
		if err := json.Unmarshal([]byte(thresholds.String), &at.ThresholdBonuses); err != nil {
			return nil, fmt.Errorf("bad threshold bonuses for type %s: %w", at.ID, err)
		}
	}
	at.CreatedAt = parseTimestamp(createdAt)
	return &at, nil
}

// -----------------------------------------------------------------------------
// Activities

const activityColumns = `id, user_id, challenge_id, type_id, date, metrics_json,
	selected_bonuses_json, has_media, points, bonuses_json, external_id,
	deleted, created_at, updated_at`

func (q queries) SaveActivity(ctx context.Context, a *challenge.Activity) error {
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return err
	}
	selected, err := json.Marshal(a.SelectedBonuses)
	if err != nil {
		return err
	}
	bonuses, err := json.Marshal(a.Bonuses)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO activities (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			metrics_json = excluded.metrics_json,
			selected_bonuses_json = excluded.selected_bonuses_json,
			has_media = excluded.has_media,
			points = excluded.points,
			bonuses_json = excluded.bonuses_json,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`

	_, err = q.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.ChallengeID, a.TypeID, a.Date.String(),
		string(metrics), string(selected), a.HasMedia,
		a.Points.String(), string(bonuses), a.ExternalID,
		a.Deleted, timestamp(a.CreatedAt), timestamp(a.UpdatedAt),
	)
	if err != nil && isUniqueConstraintError(err) {
		return fmt.Errorf("external ID %q: %w", a.ExternalID, challenge.ErrDuplicateExternalID)
	}
	return err
}

func (q queries) ActivityByID(ctx context.Context, id challenge.ActivityID) (*challenge.Activity, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)

	a, err := scanActivity(row.Scan)
	if err == sql.ErrNoRows {
		return nil, challenge.ErrActivityNotFound
	}
	return a, err
}

func (q queries) ActivityByExternalID(ctx context.Context, challengeID challenge.ChallengeID, externalID string) (*challenge.Activity, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE challenge_id = ? AND external_id = ? AND deleted = FALSE`,
		challengeID, externalID)

	a, err := scanActivity(row.Scan)
	if err == sql.ErrNoRows {
		return nil, challenge.ErrActivityNotFound
	}
	return a, err
}

func (q queries) ActivitiesByParticipant(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) ([]challenge.Activity, error) {
	return q.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE user_id = ? AND challenge_id = ? AND deleted = FALSE
		 ORDER BY date ASC, created_at ASC`,
		userID, challengeID)
}

func (q queries) ActivitiesOnDay(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID, day challenge.Date) ([]challenge.Activity, error) {
	return q.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activities
		 WHERE user_id = ? AND challenge_id = ? AND date = ? AND deleted = FALSE
		 ORDER BY created_at ASC`,
		userID, challengeID, day.String())
}

func (q queries) queryActivities(ctx context.Context, query string, args ...any) ([]challenge.Activity, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []challenge.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func scanActivity(scan func(...any) error) (*challenge.Activity, error) {
	var (
		a                           challenge.Activity
		date, points                string
		metrics, selected, bonuses  sql.NullString
		createdAt, updatedAt        string
	)

	err := scan(&a.ID, &a.UserID, &a.ChallengeID, &a.TypeID, &date,
		&metrics, &selected, &a.HasMedia, &points, &bonuses,
		&a.ExternalID, &a.Deleted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if a.Date, err = challenge.ParseDate(date); err != nil {
		return nil, fmt.Errorf("bad date for activity %s: %w", a.ID, err)
	}
	if a.Points, err = parseDecimal(points); err != nil {
		return nil, fmt.Errorf("bad points for activity %s: %w", a.ID, err)
	}
	if metrics.Valid && metrics.String != "" && metrics.String != "null" {
		var m scoring.Metrics
		d := json.NewDecoder(strings.NewReader(metrics.String))
		d.UseNumber()
		if err := d.Decode(&m); err != nil {
			return nil, fmt.Errorf("bad metrics for activity %s: %w", a.ID, err)
		}
		a.Metrics = m
	}
	if selected.Valid && selected.String != "" && selected.String != "null" {
		if err := json.Unmarshal([]byte(selected.String), &a.SelectedBonuses); err != nil {
			return nil, fmt.Errorf("bad selected bonuses for activity %s: %w", a.ID, err)
		}
	}
	if bonuses.Valid && bonuses.String != "" && bonuses.String != "null" {
		if err := json.Unmarshal([]byte(bonuses.String), &a.Bonuses); err != nil {
			return nil, fmt.Errorf("bad bonuses for activity %s: %w", a.ID, err)
		}
	}
	a.CreatedAt = parseTimestamp(createdAt)
	a.UpdatedAt = parseTimestamp(updatedAt)
	return &a, nil
}

// -----------------------------------------------------------------------------
// Participations

func (q queries) SaveParticipation(ctx context.Context, p *challenge.Participation) error {
	var lastDay string
	if !p.LastStreakDay.IsZero() {
		lastDay = p.LastStreakDay.String()
	}

	query := `
		INSERT INTO participations (user_id, challenge_id, paid, total_points,
			current_streak, longest_streak, last_streak_day, joined_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, challenge_id) DO UPDATE SET
			paid = excluded.paid,
			total_points = excluded.total_points,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_streak_day = excluded.last_streak_day,
			updated_at = excluded.updated_at
	`

	_, err := q.db.ExecContext(ctx, query,
		p.UserID, p.ChallengeID, p.Paid, p.TotalPoints.String(),
		p.CurrentStreak, p.LongestStreak, nullString(lastDay),
		timestamp(p.JoinedAt), timestamp(p.UpdatedAt),
	)
	return err
}

func (q queries) Participation(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) (*challenge.Participation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT user_id, challenge_id, paid, total_points, current_streak,
		        longest_streak, last_streak_day, joined_at, updated_at
		 FROM participations WHERE user_id = ? AND challenge_id = ?`,
		userID, challengeID)

	p, err := scanParticipation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, challenge.ErrParticipationNotFound
	}
	return p, err
}

func (q queries) ParticipationsByChallenge(ctx context.Context, challengeID challenge.ChallengeID) ([]challenge.Participation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT user_id, challenge_id, paid, total_points, current_streak,
		        longest_streak, last_streak_day, joined_at, updated_at
		 FROM participations WHERE challenge_id = ? ORDER BY user_id`,
		challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participations []challenge.Participation
	for rows.Next() {
		p, err := scanParticipation(rows.Scan)
		if err != nil {
			return nil, err
		}
		participations = append(participations, *p)
	}
	return participations, rows.Err()
}

func scanParticipation(scan func(...any) error) (*challenge.Participation, error) {
	var (
		p                    challenge.Participation
		total                string
		lastDay              sql.NullString
		joinedAt, updatedAt  string
	)

	err := scan(&p.UserID, &p.ChallengeID, &p.Paid, &total,
		&p.CurrentStreak, &p.LongestStreak, &lastDay, &joinedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if p.TotalPoints, err = parseDecimal(total); err != nil {
		return nil, fmt.Errorf("bad total points for participation %s/%s: %w", p.UserID, p.ChallengeID, err)
	}
	if lastDay.Valid && lastDay.String != "" {
		if p.LastStreakDay, err = challenge.ParseDate(lastDay.String); err != nil {
			return nil, fmt.Errorf("bad last streak day: %w", err)
		}
	}
	p.JoinedAt = parseTimestamp(joinedAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
}

// -----------------------------------------------------------------------------
// Achievements and awards

func (q queries) SaveAchievement(ctx context.Context, a *challenge.Achievement) error {
	criteria, err := factory.MarshalAchievement(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO achievements (id, challenge_id, criteria_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			criteria_json = excluded.criteria_json
	`

	_, err = q.db.ExecContext(ctx, query, a.ID, a.ChallengeID, criteria, timestamp(a.CreatedAt))
	return err
}

func (q queries) AchievementsByChallenge(ctx context.Context, challengeID challenge.ChallengeID) ([]challenge.Achievement, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT criteria_json, created_at FROM achievements WHERE challenge_id = ? ORDER BY id`,
		challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var achievements []challenge.Achievement
	for rows.Next() {
		var criteria, createdAt string
		if err := rows.Scan(&criteria, &createdAt); err != nil {
			return nil, err
		}
		a, err := factory.ParseAchievement(criteria)
		if err != nil {
			return nil, fmt.Errorf("bad achievement criteria: %w", err)
		}
		a.CreatedAt = parseTimestamp(createdAt)
		achievements = append(achievements, *a)
	}
	return achievements, rows.Err()
}

func (q queries) SaveAward(ctx context.Context, ua *challenge.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (id, user_id, achievement_id, challenge_id,
			awarded_on, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		ua.ID, ua.UserID, ua.AchievementID, ua.ChallengeID,
		ua.AwardedOn.String(), ua.Points.String(), timestamp(ua.CreatedAt),
	)
	return err
}

func (q queries) AwardsByUser(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) ([]challenge.UserAchievement, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, achievement_id, challenge_id, awarded_on, points, created_at
		 FROM user_achievements WHERE user_id = ? AND challenge_id = ?
		 ORDER BY created_at ASC`,
		userID, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awards []challenge.UserAchievement
	for rows.Next() {
		var (
			ua                 challenge.UserAchievement
			awardedOn, points  string
			createdAt          string
		)
		if err := rows.Scan(&ua.ID, &ua.UserID, &ua.AchievementID, &ua.ChallengeID,
			&awardedOn, &points, &createdAt); err != nil {
			return nil, err
		}
		if ua.AwardedOn, err = challenge.ParseDate(awardedOn); err != nil {
			return nil, fmt.Errorf("bad awarded_on for award %s: %w", ua.ID, err)
		}
		if ua.Points, err = parseDecimal(points); err != nil {
			return nil, fmt.Errorf("bad points for award %s: %w", ua.ID, err)
		}
		ua.CreatedAt = parseTimestamp(createdAt)
		awards = append(awards, ua)
	}
	return awards, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
