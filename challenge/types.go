/*
Package challenge holds the domain model and write-path engine for
time-boxed fitness challenges.

PURPOSE:
  Everything persisted lives here: challenges, activity types, logged
  activities, per-participant running totals, achievements, and awards.
  The Engine (engine.go) is the single write path that keeps the derived
  values - points, streaks, totals - consistent as activities are logged,
  edited, deleted, or backfilled out of order.

KEY CONCEPTS IN THIS FILE (types.go):
  - Date: A calendar day in UTC (activities are logged per day, not per
    timestamp)
  - ActivityType: Admin-created category with its scoring configuration
  - Activity: One logged instance; soft-deleted, never hard-deleted
  - Participation: A user's enrollment, running total, and streak

DESIGN PRINCIPLES:
  1. Replayability: A participant's total and streak are derivable by
     replaying all non-deleted activities in date order
  2. Soft deletion: Deleted rows stay for audit but vanish from every
     aggregate
  3. Precision: decimal.Decimal for all point arithmetic

SEE ALSO:
  - engine.go: The write path that maintains these invariants
  - streak.go: Full-history streak recomputation
  - achievement.go: Criteria and award records
*/
package challenge

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ChallengeID string
type ActivityTypeID string
type ActivityID string
type AchievementID string

// =============================================================================
// DATE - Calendar day in UTC
// =============================================================================

// Date is a day-granularity point in time. Activities carry a Date, not a
// timestamp: the streak machine and the drink penalty both group by
// calendar day.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date { return DateOf(time.Now()) }

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time     { return d.t }
func (d Date) IsZero() bool        { return d.t.IsZero() }
func (d Date) Before(o Date) bool  { return d.t.Before(o.t) }
func (d Date) After(o Date) bool   { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool   { return d.t.Equal(o.t) }
func (d Date) AddDays(n int) Date  { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) String() string      { return d.t.Format("2006-01-02") }

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// CHALLENGE - A time-boxed, multi-participant competition
// =============================================================================

type Challenge struct {
	ID    ChallengeID
	Name  string
	Start Date
	End   Date

	// StreakMinPoints is the per-day sum of streak-contributing points a
	// calendar day needs to qualify for the streak.
	StreakMinPoints decimal.Decimal

	// MediaBonusPoints is the fixed once-per-day media attachment bonus.
	// Zero disables it.
	MediaBonusPoints decimal.Decimal

	// OptionalBonuses is the named catalogue loggers can opt into.
	OptionalBonuses []scoring.OptionalBonus

	// RequiresPayment gates participation on the host's payment flag.
	RequiresPayment bool

	CreatedAt time.Time
}

// WeekOf returns the 1-based week of the challenge a date falls in, or 0
// when the date is outside the challenge period.
func (c *Challenge) WeekOf(d Date) int {
	if d.Before(c.Start) || d.After(c.End) {
		return 0
	}
	return DaysBetween(c.Start, d)/7 + 1
}

// Contains reports whether a date is inside the challenge period, inclusive.
func (c *Challenge) Contains(d Date) bool {
	return !d.Before(c.Start) && !d.After(c.End)
}

// =============================================================================
// ACTIVITY TYPE - Admin-created scoring category
// =============================================================================

type ActivityType struct {
	ID          ActivityTypeID
	ChallengeID ChallengeID
	Name        string

	// Scoring is the strategy-tagged configuration, validated at save time.
	Scoring scoring.Config

	// ContributesToStreak and IsPenalty are immutable configuration read by
	// several subsystems; they travel with the type value, never re-fetched.
	ContributesToStreak bool
	IsPenalty           bool

	ThresholdBonuses []scoring.ThresholdBonus

	// MaxPerChallenge caps how many activities of this type a participant
	// may log for the whole challenge. Nil = unlimited. Enforced by the
	// host before scoring.
	MaxPerChallenge *int

	// ValidWeek restricts logging to one 1-based week of the challenge.
	// Nil = any week. Enforced by the host before scoring.
	ValidWeek *int

	CreatedAt time.Time
}

// =============================================================================
// ACTIVITY - One logged instance
// =============================================================================

type Activity struct {
	ID          ActivityID
	UserID      UserID
	ChallengeID ChallengeID

	// TypeID is empty for synthetic achievement-bonus activities.
	TypeID ActivityTypeID

	Date    Date
	Metrics scoring.Metrics

	SelectedBonuses []string
	HasMedia        bool

	// Points is the final signed total: base + bonuses, penalty sign applied.
	Points  decimal.Decimal
	Bonuses []scoring.BonusAward

	// ExternalID is the fitness-vendor idempotency key for webhook upserts.
	ExternalID string

	// Deleted marks soft deletion. Deleted rows are excluded from every
	// aggregate but kept for audit.
	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSynthetic reports whether the activity is an achievement-bonus credit
// rather than a logged activity.
func (a *Activity) IsSynthetic() bool { return a.TypeID == "" }

// =============================================================================
// PARTICIPATION - Per (user, challenge) running state
// =============================================================================

type Participation struct {
	UserID      UserID
	ChallengeID ChallengeID

	// Paid mirrors the host's payment processor state; checked when the
	// challenge requires payment.
	Paid bool

	TotalPoints decimal.Decimal

	CurrentStreak int
	LongestStreak int
	LastStreakDay Date

	JoinedAt  time.Time
	UpdatedAt time.Time
}
