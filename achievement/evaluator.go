/*
Package achievement evaluates achievement criteria after accepted writes.

PURPOSE:
  The evaluator replays a user's full non-deleted activity set against every
  achievement of a challenge and reports progress as
  {current, required, qualifying activity IDs}. When progress crosses the
  required count and the award frequency permits, it records a
  UserAchievement and emits a synthetic bonus activity so the points flow
  through the ordinary ledger path.

CRITERIA VARIANTS:
  count          N matching-type activities with metric >= threshold
  cumulative     summed metric across matching types, with optional per-type
                 conversion factors and a km<->miles same-axis fallback
  distinct_types N distinct matching types with >=1 qualifying activity
  one_of_each    every type in a fixed list has a representative activity
  all_activity_type_thresholds
                 every per-type {metric, threshold} requirement is met

DESIGN PRINCIPLES:
  1. Full replay: progress is always derived from history, never patched
  2. Determinism: activities arrive date-ordered from the store, so the
     qualifying ID list is stable for a given history
  3. The evaluator never writes points directly; synthetic activities carry
     them through the engine's settle path

SEE ALSO:
  - challenge/engine.go: The Awarder hook this package implements
*/
package achievement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/challenge"
)

// =============================================================================
// PROGRESS
// =============================================================================

// Progress is the evaluated state of one achievement for one user.
type Progress struct {
	Current    decimal.Decimal
	Required   decimal.Decimal
	Qualifying []challenge.ActivityID
}

// Satisfied reports whether the achievement's bar has been reached.
func (p Progress) Satisfied() bool {
	return p.Required.GreaterThan(decimal.Zero) && p.Current.GreaterThanOrEqual(p.Required)
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator implements challenge.Awarder.
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// ProcessAwards evaluates every achievement of the challenge for the user
// and returns the synthetic bonus activities for newly earned awards.
// Award records are saved here; the engine persists and settles the
// synthetic activities.
func (e *Evaluator) ProcessAwards(ctx context.Context, s challenge.Store, userID challenge.UserID, ch *challenge.Challenge) ([]challenge.Activity, error) {
	achievements, err := s.AchievementsByChallenge(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	if len(achievements) == 0 {
		return nil, nil
	}

	activities, err := s.ActivitiesByParticipant(ctx, userID, ch.ID)
	if err != nil {
		return nil, err
	}
	awards, err := s.AwardsByUser(ctx, userID, ch.ID)
	if err != nil {
		return nil, err
	}

	today := challenge.DateOf(e.now())
	var synthetic []challenge.Activity
	for i := range achievements {
		a := &achievements[i]
		if !e.checkable(a, awards, today) {
			continue
		}
		if !Evaluate(a, activities).Satisfied() {
			continue
		}

		award := challenge.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: a.ID,
			ChallengeID:   ch.ID,
			AwardedOn:     today,
			Points:        a.BonusPoints,
			CreatedAt:     e.now(),
		}
		if err := s.SaveAward(ctx, &award); err != nil {
			return nil, err
		}
		synthetic = append(synthetic, challenge.Activity{
			Date:   today,
			Points: a.BonusPoints,
		})
	}
	return synthetic, nil
}

// checkable applies the award-frequency gate against existing awards.
func (e *Evaluator) checkable(a *challenge.Achievement, awards []challenge.UserAchievement, today challenge.Date) bool {
	var last *challenge.UserAchievement
	for i := range awards {
		ua := &awards[i]
		if ua.AchievementID != a.ID {
			continue
		}
		if last == nil || ua.AwardedOn.After(last.AwardedOn) {
			last = ua
		}
	}
	if last == nil {
		return true
	}

	switch a.Frequency {
	case challenge.OncePerChallenge:
		return false
	case challenge.OncePerWeek:
		// Rolling boundary: re-checkable 7 days after the last award.
		return challenge.DaysBetween(last.AwardedOn, today) >= 7
	case challenge.Unlimited:
		return true
	default:
		return false
	}
}

// =============================================================================
// CRITERIA EVALUATION
// =============================================================================

// Evaluate computes progress for one achievement over the full non-deleted
// activity set. Synthetic bonus activities never qualify.
func Evaluate(a *challenge.Achievement, activities []challenge.Activity) Progress {
	switch a.Variant {
	case challenge.CriteriaCount:
		return evalCount(a, activities)
	case challenge.CriteriaCumulative:
		return evalCumulative(a, activities)
	case challenge.CriteriaDistinctTypes:
		return evalDistinctTypes(a, activities)
	case challenge.CriteriaOneOfEach:
		return evalOneOfEach(a, activities)
	case challenge.CriteriaAllThresholds:
		return evalAllThresholds(a, activities)
	default:
		return Progress{}
	}
}

func evalCount(a *challenge.Achievement, activities []challenge.Activity) Progress {
	p := Progress{Required: a.RequiredCount}
	for i := range activities {
		act := &activities[i]
		if !matchesType(a.TypeIDs, act) {
			continue
		}
		if a.Metric == "" {
			p.Current = p.Current.Add(decimal.NewFromInt(1))
			p.Qualifying = append(p.Qualifying, act.ID)
			continue
		}
		if v, ok := resolveMetric(act, a.Metric); ok && v.GreaterThanOrEqual(a.Threshold) {
			p.Current = p.Current.Add(decimal.NewFromInt(1))
			p.Qualifying = append(p.Qualifying, act.ID)
		}
	}
	return p
}

func evalCumulative(a *challenge.Achievement, activities []challenge.Activity) Progress {
	p := Progress{Required: a.RequiredCount}
	if p.Required.IsZero() {
		p.Required = a.Threshold
	}
	for i := range activities {
		act := &activities[i]
		if !matchesType(a.TypeIDs, act) {
			continue
		}
		v, ok := resolveMetric(act, a.Metric)
		if !ok {
			continue
		}
		if factor, has := a.Conversions[act.TypeID]; has {
			v = v.Mul(factor)
		}
		p.Current = p.Current.Add(v)
		p.Qualifying = append(p.Qualifying, act.ID)
	}
	return p
}

func evalDistinctTypes(a *challenge.Achievement, activities []challenge.Activity) Progress {
	p := Progress{Required: a.RequiredCount}
	seen := make(map[challenge.ActivityTypeID]bool)
	for i := range activities {
		act := &activities[i]
		if !matchesType(a.TypeIDs, act) || seen[act.TypeID] {
			continue
		}
		if a.Metric != "" {
			if v, ok := resolveMetric(act, a.Metric); !ok || v.LessThan(a.Threshold) {
				continue
			}
		}
		seen[act.TypeID] = true
		p.Current = p.Current.Add(decimal.NewFromInt(1))
		p.Qualifying = append(p.Qualifying, act.ID)
	}
	return p
}

func evalOneOfEach(a *challenge.Achievement, activities []challenge.Activity) Progress {
	p := Progress{Required: decimal.NewFromInt(int64(len(a.RequiredTypeIDs)))}
	for _, typeID := range a.RequiredTypeIDs {
		for i := range activities {
			act := &activities[i]
			if act.TypeID != typeID || act.IsSynthetic() {
				continue
			}
			p.Current = p.Current.Add(decimal.NewFromInt(1))
			p.Qualifying = append(p.Qualifying, act.ID)
			break
		}
	}
	return p
}

func evalAllThresholds(a *challenge.Achievement, activities []challenge.Activity) Progress {
	p := Progress{Required: decimal.NewFromInt(int64(len(a.Requirements)))}
	for _, req := range a.Requirements {
		for i := range activities {
			act := &activities[i]
			if act.TypeID != req.TypeID {
				continue
			}
			if v, ok := resolveMetric(act, req.Metric); ok && v.GreaterThanOrEqual(req.Threshold) {
				p.Current = p.Current.Add(decimal.NewFromInt(1))
				p.Qualifying = append(p.Qualifying, act.ID)
				break
			}
		}
	}
	return p
}

// =============================================================================
// HELPERS
// =============================================================================

// matchesType reports whether an activity's type is in scope. Synthetic
// bonus activities never match.
func matchesType(typeIDs []challenge.ActivityTypeID, act *challenge.Activity) bool {
	if act.IsSynthetic() {
		return false
	}
	if len(typeIDs) == 0 {
		return true
	}
	for _, id := range typeIDs {
		if act.TypeID == id {
			return true
		}
	}
	return false
}

var kmPerMile = decimal.RequireFromString("1.609344")

// resolveMetric resolves the named metric, falling back to the sibling
// distance axis with unit conversion when the direct value is absent. An
// achievement counting miles still credits an activity logged in km.
func resolveMetric(act *challenge.Activity, metric string) (decimal.Decimal, bool) {
	if v, ok := act.Metrics.Resolve(metric); ok {
		return v, true
	}
	switch metric {
	case "miles", "distance_miles":
		if v, ok := act.Metrics.Resolve("kilometers"); ok {
			return v.Div(kmPerMile), true
		}
	case "kilometers", "km", "distance_km":
		if v, ok := act.Metrics.Resolve("miles"); ok {
			return v.Mul(kmPerMile), true
		}
	}
	return decimal.Zero, false
}
