/*
achievement.go - Achievement criteria and award records

PURPOSE:
  An Achievement describes a challenge-scoped goal under one of five
  criteria variants; a UserAchievement records each award. The evaluation
  logic lives in the achievement package - this file is only the persisted
  shape, so the Store interface can speak about achievements without
  importing the evaluator.

VARIANTS:
  count:        N matching-type activities with metric >= threshold
  cumulative:   summed metric across matching-type activities
  distinct_types:   N distinct matching types with >=1 qualifying activity
  one_of_each:      a representative activity for every required type
  all_activity_type_thresholds: every per-type {metric, threshold} met

FREQUENCY:
  once_per_challenge: never re-checked after the first award
  once_per_week:      re-checkable past a rolling 7-day boundary
  unlimited:          re-checked on every accepted write
*/
package challenge

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CRITERIA
// =============================================================================

type CriteriaVariant string

const (
	CriteriaCount         CriteriaVariant = "count"
	CriteriaCumulative    CriteriaVariant = "cumulative"
	CriteriaDistinctTypes CriteriaVariant = "distinct_types"
	CriteriaOneOfEach     CriteriaVariant = "one_of_each"
	CriteriaAllThresholds CriteriaVariant = "all_activity_type_thresholds"
)

type AwardFrequency string

const (
	OncePerChallenge AwardFrequency = "once_per_challenge"
	OncePerWeek      AwardFrequency = "once_per_week"
	Unlimited        AwardFrequency = "unlimited"
)

// TypeRequirement is one row of an all_activity_type_thresholds criteria.
type TypeRequirement struct {
	TypeID    ActivityTypeID
	Metric    string
	Threshold decimal.Decimal
}

// Achievement is a challenge-scoped criteria descriptor. Static after
// creation.
type Achievement struct {
	ID          AchievementID
	ChallengeID ChallengeID
	Name        string

	Variant CriteriaVariant

	// TypeIDs scopes count/cumulative/distinct_types variants to matching
	// activity types. Empty = all types.
	TypeIDs []ActivityTypeID

	// RequiredTypeIDs is the fixed list for one_of_each.
	RequiredTypeIDs []ActivityTypeID

	// Requirements are the per-type rows for all_activity_type_thresholds.
	Requirements []TypeRequirement

	// Metric and Threshold qualify individual activities for count and
	// distinct_types, and name the summed metric for cumulative.
	Metric    string
	Threshold decimal.Decimal

	// RequiredCount is the target for count/cumulative/distinct_types.
	// For one_of_each and all_activity_type_thresholds the list lengths
	// are the target.
	RequiredCount decimal.Decimal

	// Conversions are optional per-type factors applied to cumulative
	// contributions after unit resolution.
	Conversions map[ActivityTypeID]decimal.Decimal

	BonusPoints decimal.Decimal
	Frequency   AwardFrequency

	CreatedAt time.Time
}

// =============================================================================
// AWARD RECORD
// =============================================================================

// UserAchievement is one award of an achievement to a user. Repeatable
// achievements accumulate several rows.
type UserAchievement struct {
	ID            string
	UserID        UserID
	AchievementID AchievementID
	ChallengeID   ChallengeID
	AwardedOn     Date
	Points        decimal.Decimal
	CreatedAt     time.Time
}
