package scoring_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeHistory serves a fixed same-day total for drink tests.
type fakeHistory struct {
	total decimal.Decimal
	err   error
}

func (f *fakeHistory) SameDayUnits(_ context.Context, _, _, _ string, _ time.Time, _ string, _ string) (decimal.Decimal, error) {
	return f.total, f.err
}

func basePoints(t *testing.T, cfg scoring.Config, sc scoring.Context) decimal.Decimal {
	t.Helper()
	r := &scoring.Resolver{}
	pts, err := r.BasePoints(context.Background(), cfg, sc)
	if err != nil {
		t.Fatalf("BasePoints failed: %v", err)
	}
	return pts
}

// =============================================================================
// UNIT-BASED
// =============================================================================

func TestUnitBased_CapsAtMaxUnits(t *testing.T) {
	// GIVEN: {unit: miles, basePoints: 5, pointsPerUnit: 2, maxUnits: 10}
	// WHEN: Logging {miles: 15}
	// THEN: 5 + 10*2 = 25 (capped at 10 units)

	cfg := scoring.Config{UnitBased: &scoring.UnitBasedConfig{
		Unit:          "miles",
		BasePoints:    dec(5),
		PointsPerUnit: dec(2),
		MaxUnits:      decPtr(10),
	}}

	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": 15.0}})
	if !pts.Equal(dec(25)) {
		t.Errorf("expected 25, got %v", pts)
	}
}

func TestUnitBased_AbsentUnitYieldsBasePointsAlone(t *testing.T) {
	cfg := scoring.Config{UnitBased: &scoring.UnitBasedConfig{
		Unit:          "miles",
		BasePoints:    dec(5),
		PointsPerUnit: dec(2),
	}}

	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"minutes": 30}})
	if !pts.Equal(dec(5)) {
		t.Errorf("absent unit should yield base points: expected 5, got %v", pts)
	}

	// Non-numeric value is absent too, never zero.
	pts = basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": "fifteen"}})
	if !pts.Equal(dec(5)) {
		t.Errorf("non-numeric unit should yield base points: expected 5, got %v", pts)
	}
}

func TestUnitBased_ResolvesAliasedKeys(t *testing.T) {
	cfg := scoring.Config{UnitBased: &scoring.UnitBasedConfig{
		Unit:          "miles",
		PointsPerUnit: dec(3),
	}}

	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"distance_miles": 4.0}})
	if !pts.Equal(dec(12)) {
		t.Errorf("expected 12, got %v", pts)
	}
}

// =============================================================================
// TIERED
// =============================================================================

func tieredConfig() scoring.Config {
	return scoring.Config{
		Strategy: scoring.StrategyTiered,
		Tiered: &scoring.TieredConfig{
			Unit: "minutes",
			Tiers: []scoring.Tier{
				{MaxValue: decPtr(5), Points: dec(10)},
				{MaxValue: decPtr(10), Points: dec(20)},
				{Points: dec(30)},
			},
		},
	}
}

func TestTiered_SelectsFirstCoveringTier(t *testing.T) {
	// GIVEN: tiers [{5:10},{10:20},{open:30}]
	// WHEN: value 7
	// THEN: 20

	pts := basePoints(t, tieredConfig(), scoring.Context{Metrics: scoring.Metrics{"minutes": 7}})
	if !pts.Equal(dec(20)) {
		t.Errorf("expected 20, got %v", pts)
	}
}

func TestTiered_BoundaryIsInclusive(t *testing.T) {
	pts := basePoints(t, tieredConfig(), scoring.Context{Metrics: scoring.Metrics{"minutes": 5}})
	if !pts.Equal(dec(10)) {
		t.Errorf("value equal to maxValue selects that tier: expected 10, got %v", pts)
	}

	pts = basePoints(t, tieredConfig(), scoring.Context{Metrics: scoring.Metrics{"minutes": 10}})
	if !pts.Equal(dec(20)) {
		t.Errorf("expected 20, got %v", pts)
	}
}

func TestTiered_ValueBeyondAllBoundsTakesLastTier(t *testing.T) {
	// Fail open: never zero.
	pts := basePoints(t, tieredConfig(), scoring.Context{Metrics: scoring.Metrics{"minutes": 50}})
	if !pts.Equal(dec(30)) {
		t.Errorf("expected last tier 30, got %v", pts)
	}
}

func TestTiered_BoundedTiersOnly_OverflowStillLastTier(t *testing.T) {
	cfg := scoring.Config{
		Strategy: scoring.StrategyTiered,
		Tiered: &scoring.TieredConfig{
			Unit: "minutes",
			Tiers: []scoring.Tier{
				{MaxValue: decPtr(5), Points: dec(10)},
				{MaxValue: decPtr(10), Points: dec(20)},
			},
		},
	}

	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"minutes": 50}})
	if !pts.Equal(dec(20)) {
		t.Errorf("overflow should take last tier, got %v", pts)
	}
}

func TestTiered_NoTiersFailsOpenToZero(t *testing.T) {
	cfg := scoring.Config{Strategy: scoring.StrategyTiered}
	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"minutes": 7}})
	if !pts.IsZero() {
		t.Errorf("missing tiers should score deterministic zero, got %v", pts)
	}
}

// =============================================================================
// COMPLETION AND VARIABLE
// =============================================================================

func TestCompletion_FixedPoints(t *testing.T) {
	cfg := scoring.Config{
		Strategy:   scoring.StrategyCompletion,
		Completion: &scoring.CompletionConfig{Points: dec(15)},
	}
	pts := basePoints(t, cfg, scoring.Context{})
	if !pts.Equal(dec(15)) {
		t.Errorf("expected 15, got %v", pts)
	}
}

func TestVariable_AutomaticScoringYieldsZero(t *testing.T) {
	cfg := scoring.Config{Strategy: scoring.StrategyVariable}
	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": 100}})
	if !pts.IsZero() {
		t.Errorf("variable strategy should score 0 automatically, got %v", pts)
	}
}

// =============================================================================
// VARIANTS
// =============================================================================

func variantConfig() scoring.Config {
	return scoring.Config{
		Variants: []scoring.Variant{
			{
				Name:      "short",
				Condition: &scoring.Condition{Field: "miles", Operator: scoring.OpLt, Value: dec(10)},
				Points:    decPtr(5),
			},
			{
				Name:      "long",
				Condition: &scoring.Condition{Field: "miles", Operator: scoring.OpGte, Value: dec(10)},
				Points:    decPtr(15),
			},
		},
	}
}

func TestVariant_ConditionSelection(t *testing.T) {
	// GIVEN: variants <10 miles -> 5 pts, >=10 miles -> 15 pts
	// WHEN: {miles: 12}
	// THEN: 15

	pts := basePoints(t, variantConfig(), scoring.Context{Metrics: scoring.Metrics{"miles": 12.0}})
	if !pts.Equal(dec(15)) {
		t.Errorf("expected 15, got %v", pts)
	}

	pts = basePoints(t, variantConfig(), scoring.Context{Metrics: scoring.Metrics{"miles": 3.0}})
	if !pts.Equal(dec(5)) {
		t.Errorf("expected 5, got %v", pts)
	}
}

func TestVariant_ConditionsCheckedAscendingByValue(t *testing.T) {
	// Declared out of order; the lower comparison value must be tried first
	// so a value of 3 hits the <5 variant, not the <100 catch-all.
	cfg := scoring.Config{
		Variants: []scoring.Variant{
			{
				Name:      "any",
				Condition: &scoring.Condition{Field: "miles", Operator: scoring.OpLt, Value: dec(100)},
				Points:    decPtr(1),
			},
			{
				Name:      "tiny",
				Condition: &scoring.Condition{Field: "miles", Operator: scoring.OpLt, Value: dec(5)},
				Points:    decPtr(7),
			},
		},
	}

	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": 3.0}})
	if !pts.Equal(dec(7)) {
		t.Errorf("expected ascending-order selection to pick 7, got %v", pts)
	}
}

func TestVariant_ExplicitRequestWinsWhenValid(t *testing.T) {
	cfg := variantConfig()
	sc := scoring.Context{
		Metrics:          scoring.Metrics{"miles": 12.0},
		RequestedVariant: "short",
	}
	pts := basePoints(t, cfg, sc)
	if !pts.Equal(dec(5)) {
		t.Errorf("requested variant should win: expected 5, got %v", pts)
	}
}

func TestVariant_DateWindowExcludesRequested(t *testing.T) {
	from := day(2025, time.June, 1)
	to := day(2025, time.June, 30)
	cfg := scoring.Config{
		UnitBased: &scoring.UnitBasedConfig{Unit: "miles", BasePoints: dec(2)},
		Variants: []scoring.Variant{
			{Name: "june-special", ValidFrom: &from, ValidTo: &to, Points: decPtr(50)},
		},
	}

	// Inside the window the request is honored.
	pts := basePoints(t, cfg, scoring.Context{
		RequestedVariant: "june-special",
		LoggedAt:         day(2025, time.June, 15),
	})
	if !pts.Equal(dec(50)) {
		t.Errorf("expected 50 inside window, got %v", pts)
	}

	// Outside the window it falls through to the top-level default.
	pts = basePoints(t, cfg, scoring.Context{
		RequestedVariant: "june-special",
		LoggedAt:         day(2025, time.July, 15),
	})
	if !pts.Equal(dec(2)) {
		t.Errorf("expected fallback 2 outside window, got %v", pts)
	}
}

func TestVariant_DefaultVariantFallback(t *testing.T) {
	cfg := scoring.Config{
		Variants: []scoring.Variant{
			{
				Name:      "conditioned",
				Condition: &scoring.Condition{Field: "miles", Operator: scoring.OpGte, Value: dec(10)},
				Points:    decPtr(15),
			},
			{Name: "standard", Default: true, Points: decPtr(4)},
		},
	}

	// Condition not met: default variant applies.
	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": 2.0}})
	if !pts.Equal(dec(4)) {
		t.Errorf("expected default variant 4, got %v", pts)
	}
}

func TestVariant_VariantWithOwnUnitFormula(t *testing.T) {
	cfg := scoring.Config{
		Variants: []scoring.Variant{
			{
				Name:      "per-mile",
				Default:   true,
				UnitBased: &scoring.UnitBasedConfig{Unit: "miles", PointsPerUnit: dec(2)},
			},
		},
	}

	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": 6.0}})
	if !pts.Equal(dec(12)) {
		t.Errorf("expected 12, got %v", pts)
	}
}

// =============================================================================
// DRINK PENALTY
// =============================================================================

func drinkConfig(allowance float64) scoring.Config {
	return scoring.Config{
		UnitBased: &scoring.UnitBasedConfig{
			Unit:          "drinks",
			PointsPerUnit: dec(-5),
		},
		DrinkAllowance: dec(allowance),
	}
}

func TestDrink_WithinAllowanceIsFree(t *testing.T) {
	// GIVEN: Allowance of 2, no prior drinks today
	// WHEN: Logging 2 drinks
	// THEN: 0 points charged

	sc := scoring.Context{
		Metrics: scoring.Metrics{"drinks": 2},
		History: &fakeHistory{total: decimal.Zero},
	}
	pts := basePoints(t, drinkConfig(2), sc)
	if !pts.IsZero() {
		t.Errorf("within allowance should be free, got %v", pts)
	}
}

func TestDrink_ChargesOnlyMarginalUnits(t *testing.T) {
	// GIVEN: Allowance 2, already 1 drink logged today
	// WHEN: Logging 3 more (total 4)
	// THEN: Charged for 2 units: charged(4)-charged(1) = 2-0 = 2 -> -10

	sc := scoring.Context{
		Metrics: scoring.Metrics{"drinks": 3},
		History: &fakeHistory{total: dec(1)},
	}
	pts := basePoints(t, drinkConfig(2), sc)
	if !pts.Equal(dec(-10)) {
		t.Errorf("expected -10, got %v", pts)
	}
}

func TestDrink_LaterEntryPaysOnlyItsOwnExcess(t *testing.T) {
	// GIVEN: Allowance 1, 3 drinks already charged today
	// WHEN: Logging 2 more
	// THEN: charged(5)-charged(3) = 4-2 = 2 units -> -10

	sc := scoring.Context{
		Metrics: scoring.Metrics{"drinks": 2},
		History: &fakeHistory{total: dec(3)},
	}
	pts := basePoints(t, drinkConfig(1), sc)
	if !pts.Equal(dec(-10)) {
		t.Errorf("expected -10, got %v", pts)
	}
}

func TestDrink_AbsentMetricScoresZero(t *testing.T) {
	sc := scoring.Context{
		Metrics: scoring.Metrics{"minutes": 30},
		History: &fakeHistory{total: decimal.Zero},
	}
	pts := basePoints(t, drinkConfig(1), sc)
	if !pts.IsZero() {
		t.Errorf("absent drinks metric should charge nothing, got %v", pts)
	}
}

func TestDrink_MissingHistoryIsStructuralError(t *testing.T) {
	r := &scoring.Resolver{}
	_, err := r.BasePoints(context.Background(), drinkConfig(1), scoring.Context{
		Metrics: scoring.Metrics{"drinks": 2},
	})
	if err == nil {
		t.Error("drink scoring without history access must fail, not guess")
	}
}

// =============================================================================
// PRECEDENCE AND INFERENCE
// =============================================================================

func TestPrecedence_ExplicitTagBeatsVariants(t *testing.T) {
	cfg := scoring.Config{
		Strategy:   scoring.StrategyCompletion,
		Completion: &scoring.CompletionConfig{Points: dec(9)},
		Variants: []scoring.Variant{
			{Name: "ignored", Default: true, Points: decPtr(100)},
		},
	}
	pts := basePoints(t, cfg, scoring.Context{})
	if !pts.Equal(dec(9)) {
		t.Errorf("explicit completion tag should win over variants, got %v", pts)
	}
}

func TestPrecedence_VariantsBeatConfiguredUnit(t *testing.T) {
	cfg := scoring.Config{
		UnitBased: &scoring.UnitBasedConfig{Unit: "miles", PointsPerUnit: dec(1)},
		Variants: []scoring.Variant{
			{Name: "flat", Default: true, Points: decPtr(3)},
		},
	}
	pts := basePoints(t, cfg, scoring.Context{Metrics: scoring.Metrics{"miles": 100.0}})
	if !pts.Equal(dec(3)) {
		t.Errorf("variants should win over plain unit config, got %v", pts)
	}
}

func TestPrecedence_EmptyConfigScoresZero(t *testing.T) {
	pts := basePoints(t, scoring.Config{}, scoring.Context{Metrics: scoring.Metrics{"miles": 5.0}})
	if !pts.IsZero() {
		t.Errorf("empty config should score deterministic zero, got %v", pts)
	}
}

// =============================================================================
// CONFIG VALIDATION
// =============================================================================

func TestValidate_RejectsUnorderedTiers(t *testing.T) {
	cfg := scoring.Config{
		Strategy: scoring.StrategyTiered,
		Tiered: &scoring.TieredConfig{
			Unit: "minutes",
			Tiers: []scoring.Tier{
				{MaxValue: decPtr(10), Points: dec(20)},
				{MaxValue: decPtr(5), Points: dec(10)},
			},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("descending tiers should fail validation")
	}
}

func TestValidate_RejectsOpenTierInMiddle(t *testing.T) {
	cfg := scoring.Config{
		Strategy: scoring.StrategyTiered,
		Tiered: &scoring.TieredConfig{
			Tiers: []scoring.Tier{
				{Points: dec(30)},
				{MaxValue: decPtr(5), Points: dec(10)},
			},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("open tier before the end should fail validation")
	}
}

func TestValidate_RejectsTwoDefaultVariants(t *testing.T) {
	cfg := scoring.Config{
		Variants: []scoring.Variant{
			{Name: "a", Default: true, Points: decPtr(1)},
			{Name: "b", Default: true, Points: decPtr(2)},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("two default variants should fail validation")
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	if err := tieredConfig().Validate(); err != nil {
		t.Errorf("well-formed tiered config should validate: %v", err)
	}
	if err := variantConfig().Validate(); err != nil {
		t.Errorf("well-formed variant config should validate: %v", err)
	}
	if err := drinkConfig(2).Validate(); err != nil {
		t.Errorf("well-formed drink config should validate: %v", err)
	}
}
