/*
strategy.go - Base point calculation, one function per strategy

PURPOSE:
  Executes the strategy selected by Config.EffectiveStrategy against an
  activity's resolved metrics. Every path is total over well-formed input:
  missing metrics and admin misconfiguration fail open to deterministic
  defaults (base points, first tier, zero) instead of raising.

THE DRINK PENALTY:
  A unit_based config whose unit is "drinks" charges only the marginal
  same-day units above the free allowance:

    penalty = pointsPerUnit * (charged(after) - charged(before))
    charged(x) = max(0, x - allowance)

  where "before" is the sum of the user's other same-day, same-type,
  non-deleted drink entries. Editing an earlier entry therefore never
  double-penalizes later ones: each entry only ever pays for the units it
  pushed past the allowance.

CONCURRENCY:
  All strategies are pure except the drink path, which reads same-day
  history through HistoryReader. The surrounding engine runs one writer per
  (user, challenge), which is what makes that read-then-score safe.

SEE ALSO:
  - config.go: Strategy selection and validation
  - bonus.go: Bonuses layered on top of base points
*/
package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SCORING CONTEXT
// =============================================================================

// Context carries everything the strategies need about the activity being
// scored. ActivityID identifies the entry being created or edited so that
// same-day history reads can exclude it.
type Context struct {
	Metrics     Metrics
	UserID      string
	ChallengeID string
	TypeID      string
	LoggedAt    time.Time // day granularity, UTC
	ActivityID  string

	// RequestedVariant names an explicitly requested variant, if any.
	RequestedVariant string

	// History provides same-day reads for the drink penalty. May be nil for
	// configs that never route to the drink path.
	History HistoryReader
}

// HistoryReader is the read access the drink strategy needs. Implemented by
// the engine over its store; fakes suffice in tests.
type HistoryReader interface {
	// SameDayUnits returns the summed value of unit across the user's
	// same-day, same-type, non-deleted activities, excluding excludeID.
	SameDayUnits(ctx context.Context, userID, challengeID, typeID string, day time.Time, unit string, excludeID string) (decimal.Decimal, error)
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver selects and executes a scoring strategy.
type Resolver struct{}

// BasePoints computes the base point value for an activity, before bonuses.
// Only structural failures (a required history read erroring) return an
// error; everything else degrades to deterministic defaults.
func (r *Resolver) BasePoints(ctx context.Context, cfg Config, sc Context) (decimal.Decimal, error) {
	switch cfg.EffectiveStrategy() {
	case StrategyTiered:
		return r.tiered(cfg.Tiered, sc), nil
	case StrategyCompletion:
		if cfg.Completion == nil {
			return decimal.Zero, nil
		}
		return cfg.Completion.Points, nil
	case StrategyVariable:
		// Admin assigns points manually; automatic scoring yields nothing.
		return decimal.Zero, nil
	case StrategyVariant:
		return r.variant(cfg, sc), nil
	default:
		if cfg.IsDrinkScored() {
			return r.drink(ctx, cfg, sc)
		}
		return r.unitBased(cfg.UnitBased, sc), nil
	}
}

// =============================================================================
// UNIT-BASED
// =============================================================================

// unitBased scores basePoints + unitValue * pointsPerUnit, clamped by
// MaxUnits. An absent unit yields base points alone.
func (r *Resolver) unitBased(cfg *UnitBasedConfig, sc Context) decimal.Decimal {
	if cfg == nil {
		return decimal.Zero
	}
	value, ok := sc.Metrics.Resolve(cfg.Unit)
	if !ok {
		return cfg.BasePoints
	}
	if cfg.MaxUnits != nil && value.GreaterThan(*cfg.MaxUnits) {
		value = *cfg.MaxUnits
	}
	return cfg.BasePoints.Add(value.Mul(cfg.PointsPerUnit))
}

// =============================================================================
// TIERED
// =============================================================================

// tiered returns the first tier whose MaxValue is open or >= the metric
// value (boundary inclusive). A value beyond every bound takes the last
// tier's points - fail open, never zero.
func (r *Resolver) tiered(cfg *TieredConfig, sc Context) decimal.Decimal {
	if cfg == nil || len(cfg.Tiers) == 0 {
		return decimal.Zero
	}
	value, _ := sc.Metrics.Resolve(cfg.Unit) // absent resolves as zero: first tier
	for _, tier := range cfg.Tiers {
		if tier.MaxValue == nil || value.LessThanOrEqual(*tier.MaxValue) {
			return tier.Points
		}
	}
	return cfg.Tiers[len(cfg.Tiers)-1].Points
}

// =============================================================================
// VARIANT
// =============================================================================

// variant selects a sub-configuration:
//  1. an explicitly requested, currently-valid variant
//  2. the first date-valid variant, ascending by condition value, whose
//     condition is satisfied
//  3. a date-valid default variant
//  4. the type's top-level unit-based config
func (r *Resolver) variant(cfg Config, sc Context) decimal.Decimal {
	if sc.RequestedVariant != "" {
		for _, v := range cfg.Variants {
			if v.Name == sc.RequestedVariant && variantValidOn(v, sc.LoggedAt) {
				return r.variantPoints(v, sc)
			}
		}
	}

	// Conditioned variants, ascending by comparison value.
	conditioned := make([]Variant, 0, len(cfg.Variants))
	for _, v := range cfg.Variants {
		if v.Condition != nil && variantValidOn(v, sc.LoggedAt) {
			conditioned = append(conditioned, v)
		}
	}
	sort.SliceStable(conditioned, func(i, j int) bool {
		return conditioned[i].Condition.Value.LessThan(conditioned[j].Condition.Value)
	})
	for _, v := range conditioned {
		if v.Condition.Satisfied(sc.Metrics) {
			return r.variantPoints(v, sc)
		}
	}

	for _, v := range cfg.Variants {
		if v.Default && variantValidOn(v, sc.LoggedAt) {
			return r.variantPoints(v, sc)
		}
	}

	return r.unitBased(cfg.UnitBased, sc)
}

func (r *Resolver) variantPoints(v Variant, sc Context) decimal.Decimal {
	if v.Points != nil {
		return *v.Points
	}
	return r.unitBased(v.UnitBased, sc)
}

// variantValidOn checks the inclusive date-validity window at day
// granularity. A missing bound is open.
func variantValidOn(v Variant, at time.Time) bool {
	day := at.UTC().Truncate(24 * time.Hour)
	if v.ValidFrom != nil && day.Before(v.ValidFrom.UTC().Truncate(24*time.Hour)) {
		return false
	}
	if v.ValidTo != nil && day.After(v.ValidTo.UTC().Truncate(24*time.Hour)) {
		return false
	}
	return true
}

// =============================================================================
// DRINK PENALTY
// =============================================================================

// drink charges the marginal same-day units above the free allowance.
func (r *Resolver) drink(ctx context.Context, cfg Config, sc Context) (decimal.Decimal, error) {
	if cfg.UnitBased == nil {
		return decimal.Zero, nil
	}
	if sc.History == nil {
		return decimal.Zero, fmt.Errorf("drink scoring requires same-day history access")
	}

	value, ok := sc.Metrics.Resolve(cfg.UnitBased.Unit)
	if !ok {
		return decimal.Zero, nil
	}

	before, err := sc.History.SameDayUnits(ctx, sc.UserID, sc.ChallengeID, sc.TypeID, sc.LoggedAt, cfg.UnitBased.Unit, sc.ActivityID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading same-day totals: %w", err)
	}
	after := before.Add(value)

	marginal := chargedUnits(after, cfg.DrinkAllowance).Sub(chargedUnits(before, cfg.DrinkAllowance))
	return marginal.Mul(cfg.UnitBased.PointsPerUnit), nil
}

// chargedUnits is max(0, total - allowance).
func chargedUnits(total, allowance decimal.Decimal) decimal.Decimal {
	charged := total.Sub(allowance)
	if charged.IsNegative() {
		return decimal.Zero
	}
	return charged
}
