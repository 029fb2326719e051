/*
config.go - Scoring configuration as a closed tagged union

PURPOSE:
  Defines the strategy-tagged scoring configuration attached to every
  activity type. Each strategy has its own variant struct carrying only the
  fields it needs, and the whole document is validated once at save time
  (see factory package) rather than at scoring time.

STRATEGIES:
  unit_based:  basePoints + unitValue * pointsPerUnit, clamped by maxUnits
  tiered:      ordered {maxValue, points} buckets, inclusive boundaries
  completion:  fixed points for doing the thing at all
  variable:    admin assigns points manually; automatic scoring yields 0
  variant:     named sub-configurations with date windows and conditions

  The drink penalty is not a separate tag: a unit_based config whose unit is
  "drinks" routes to the marginal daily penalty path (see strategy.go).

PRECEDENCE (EffectiveStrategy):
  explicit tiered/completion/variable -> variants present -> explicit
  unit_based or any configured unit -> default unit-based.

SEE ALSO:
  - strategy.go: Executes the selected strategy
  - factory/config.go: JSON <-> Config, save-time validation
*/
package scoring

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGY TAGS
// =============================================================================

type Strategy string

const (
	StrategyUnitBased  Strategy = "unit_based"
	StrategyTiered     Strategy = "tiered"
	StrategyCompletion Strategy = "completion"
	StrategyVariable   Strategy = "variable"
	StrategyVariant    Strategy = "variant"
)

// DrinkUnit is the unit name that routes a unit_based config to the
// marginal daily penalty strategy.
const DrinkUnit = "drinks"

// =============================================================================
// CONFIG - One variant per strategy
// =============================================================================

// Config is the scoring configuration for an activity type.
// Strategy may be empty, in which case it is inferred from the populated
// variant (see EffectiveStrategy).
type Config struct {
	Strategy Strategy

	UnitBased  *UnitBasedConfig
	Tiered     *TieredConfig
	Completion *CompletionConfig
	Variants   []Variant

	// DrinkAllowance is the number of same-day units that are free before
	// the drink penalty starts charging. Only meaningful when the configured
	// unit is DrinkUnit.
	DrinkAllowance decimal.Decimal
}

// UnitBasedConfig scores basePoints + unitValue * pointsPerUnit.
type UnitBasedConfig struct {
	Unit          string
	BasePoints    decimal.Decimal
	PointsPerUnit decimal.Decimal
	MaxUnits      *decimal.Decimal
}

// TieredConfig scores by bucket: the first tier whose MaxValue is nil or
// >= the metric value wins. Tiers must be ascending by MaxValue with at
// most one open (nil MaxValue) tier at the end.
type TieredConfig struct {
	Unit  string
	Tiers []Tier
}

type Tier struct {
	MaxValue *decimal.Decimal // nil = open tier
	Points   decimal.Decimal
}

// CompletionConfig scores a fixed amount; bonuses layer separately.
type CompletionConfig struct {
	Points decimal.Decimal
}

// Variant is a named sub-configuration with an optional inclusive
// date-validity window and either explicit points or its own unit formula.
type Variant struct {
	Name      string
	Default   bool
	ValidFrom *time.Time // inclusive, day granularity
	ValidTo   *time.Time // inclusive, day granularity
	Condition *Condition
	Points    *decimal.Decimal
	UnitBased *UnitBasedConfig
}

// Condition gates a variant on a metric comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    decimal.Decimal
}

type Operator string

const (
	OpEq  Operator = "eq"
	OpLte Operator = "lte"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpGt  Operator = "gt"
)

// Satisfied evaluates the condition against a metric map.
// An unresolvable field never satisfies.
func (c Condition) Satisfied(m Metrics) bool {
	v, ok := m.Resolve(c.Field)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEq:
		return v.Equal(c.Value)
	case OpLte:
		return v.LessThanOrEqual(c.Value)
	case OpGte:
		return v.GreaterThanOrEqual(c.Value)
	case OpLt:
		return v.LessThan(c.Value)
	case OpGt:
		return v.GreaterThan(c.Value)
	default:
		return false
	}
}

// =============================================================================
// STRATEGY SELECTION
// =============================================================================

// EffectiveStrategy applies the precedence rules and returns the strategy
// that will actually score an activity. Misconfiguration degrades to
// unit_based, never to an error - admin mistakes must not break logging.
func (c Config) EffectiveStrategy() Strategy {
	switch c.Strategy {
	case StrategyTiered, StrategyCompletion, StrategyVariable:
		return c.Strategy
	}
	if len(c.Variants) > 0 {
		return StrategyVariant
	}
	return StrategyUnitBased
}

// ConfiguredUnit returns the unit the config scores against, from whichever
// variant carries one.
func (c Config) ConfiguredUnit() string {
	if c.UnitBased != nil && c.UnitBased.Unit != "" {
		return c.UnitBased.Unit
	}
	if c.Tiered != nil && c.Tiered.Unit != "" {
		return c.Tiered.Unit
	}
	return ""
}

// IsDrinkScored reports whether the config routes to the drink penalty path.
func (c Config) IsDrinkScored() bool {
	return c.EffectiveStrategy() == StrategyUnitBased &&
		NormalizeUnit(c.ConfiguredUnit()) == DrinkUnit
}

// =============================================================================
// VALIDATION - Runs at save time, not at scoring time
// =============================================================================

// Validate checks structural soundness of a config. Scoring itself never
// calls this; admin tooling must validate before persisting.
func (c Config) Validate() error {
	switch c.Strategy {
	case "", StrategyUnitBased, StrategyTiered, StrategyCompletion, StrategyVariable, StrategyVariant:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}

	if c.Strategy == StrategyTiered || c.Tiered != nil {
		if c.Tiered == nil || len(c.Tiered.Tiers) == 0 {
			return fmt.Errorf("tiered strategy requires at least one tier")
		}
		var prev *decimal.Decimal
		for i, tier := range c.Tiered.Tiers {
			if tier.MaxValue == nil {
				if i != len(c.Tiered.Tiers)-1 {
					return fmt.Errorf("open tier must be last (tier %d)", i)
				}
				continue
			}
			if prev != nil && !tier.MaxValue.GreaterThan(*prev) {
				return fmt.Errorf("tiers must be ascending by max_value (tier %d)", i)
			}
			prev = tier.MaxValue
		}
	}

	if c.Strategy == StrategyCompletion && c.Completion == nil {
		return fmt.Errorf("completion strategy requires completion points")
	}

	defaults := 0
	for i, v := range c.Variants {
		if v.Name == "" {
			return fmt.Errorf("variant %d has no name", i)
		}
		if v.Points == nil && v.UnitBased == nil {
			return fmt.Errorf("variant %q needs points or a unit formula", v.Name)
		}
		if v.ValidFrom != nil && v.ValidTo != nil && v.ValidTo.Before(*v.ValidFrom) {
			return fmt.Errorf("variant %q validity window ends before it starts", v.Name)
		}
		if v.Condition != nil {
			switch v.Condition.Operator {
			case OpEq, OpLte, OpGte, OpLt, OpGt:
			default:
				return fmt.Errorf("variant %q has unknown operator %q", v.Name, v.Condition.Operator)
			}
		}
		if v.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one default variant allowed, got %d", defaults)
	}

	if c.DrinkAllowance.IsNegative() {
		return fmt.Errorf("drink allowance cannot be negative")
	}
	return nil
}
