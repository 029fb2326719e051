package factory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/challenge-engine/challenge"
	"github.com/warp/challenge-engine/scoring"
)

func TestParseUnitBasedConfig(t *testing.T) {
	cfg, err := ParseScoringConfig(`{
		"strategy": "unit_based",
		"unit": "miles",
		"base_points": 5,
		"points_per_unit": 2,
		"max_units": 10
	}`)
	require.NoError(t, err)

	require.NotNil(t, cfg.UnitBased)
	assert.Equal(t, "miles", cfg.UnitBased.Unit)
	assert.True(t, cfg.UnitBased.BasePoints.Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.UnitBased.PointsPerUnit.Equal(decimal.NewFromInt(2)))
	require.NotNil(t, cfg.UnitBased.MaxUnits)
	assert.True(t, cfg.UnitBased.MaxUnits.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, scoring.StrategyUnitBased, cfg.EffectiveStrategy())
}

func TestParseTieredConfig(t *testing.T) {
	cfg, err := ParseScoringConfig(`{
		"strategy": "tiered",
		"unit": "minutes",
		"tiers": [
			{"max_value": 5, "points": 10},
			{"max_value": 10, "points": 20},
			{"points": 30}
		]
	}`)
	require.NoError(t, err)

	require.NotNil(t, cfg.Tiered)
	require.Len(t, cfg.Tiered.Tiers, 3)
	assert.Nil(t, cfg.Tiered.Tiers[2].MaxValue)
}

func TestParseTieredConfigRejectsUnorderedTiers(t *testing.T) {
	_, err := ParseScoringConfig(`{
		"strategy": "tiered",
		"unit": "minutes",
		"tiers": [
			{"max_value": 10, "points": 20},
			{"max_value": 5, "points": 10}
		]
	}`)
	assert.Error(t, err)
}

func TestParseVariantConfig(t *testing.T) {
	cfg, err := ParseScoringConfig(`{
		"variants": [
			{"name": "short", "condition": {"field": "miles", "operator": "lt", "value": 10}, "points": 5},
			{"name": "long", "condition": {"field": "miles", "operator": "gte", "value": 10}, "points": 15},
			{"name": "seasonal", "valid_from": "2026-03-01", "valid_to": "2026-03-07", "points": 20}
		]
	}`)
	require.NoError(t, err)

	assert.Equal(t, scoring.StrategyVariant, cfg.EffectiveStrategy())
	require.Len(t, cfg.Variants, 3)
	assert.NotNil(t, cfg.Variants[2].ValidFrom)
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	_, err := ParseScoringConfig(`{"strategy": "unit_based", "unit": "miles", "bogus": true}`)
	assert.Error(t, err)
}

func TestParseConfigRejectsBadOperator(t *testing.T) {
	_, err := ParseScoringConfig(`{
		"variants": [{"name": "x", "condition": {"field": "miles", "operator": "approx", "value": 1}, "points": 1}]
	}`)
	assert.Error(t, err)
}

func TestParseDrinkConfig(t *testing.T) {
	cfg, err := ParseScoringConfig(`{
		"unit": "drinks",
		"points_per_unit": 1,
		"drink_allowance": 2
	}`)
	require.NoError(t, err)
	assert.True(t, cfg.IsDrinkScored())
	assert.True(t, cfg.DrinkAllowance.Equal(decimal.NewFromInt(2)))
}

func TestScoringConfigRoundTrip(t *testing.T) {
	in := `{"strategy":"unit_based","unit":"miles","base_points":5,"points_per_unit":2,"max_units":10}`
	cfg, err := ParseScoringConfig(in)
	require.NoError(t, err)

	out, err := MarshalScoringConfig(cfg)
	require.NoError(t, err)
	again, err := ParseScoringConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg.EffectiveStrategy(), again.EffectiveStrategy())
	assert.True(t, again.UnitBased.BasePoints.Equal(cfg.UnitBased.BasePoints))
}

func TestParseAchievement(t *testing.T) {
	a, err := ParseAchievement(`{
		"id": "marathon",
		"challenge_id": "ch1",
		"name": "Marathon month",
		"variant": "cumulative",
		"type_ids": ["run"],
		"metric": "miles",
		"required_count": 26.2,
		"bonus_points": 50,
		"frequency": "once_per_challenge"
	}`)
	require.NoError(t, err)

	assert.Equal(t, challenge.CriteriaCumulative, a.Variant)
	assert.True(t, a.RequiredCount.Equal(decimal.RequireFromString("26.2")))
	assert.Equal(t, challenge.OncePerChallenge, a.Frequency)
}

func TestParseAchievementDefaultsFrequency(t *testing.T) {
	a, err := ParseAchievement(`{
		"id": "x", "challenge_id": "ch1", "name": "First run",
		"variant": "count", "metric": "miles", "threshold": 1,
		"required_count": 1, "bonus_points": 10
	}`)
	require.NoError(t, err)
	assert.Equal(t, challenge.OncePerChallenge, a.Frequency)
}

func TestParseAchievementValidation(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"unknown variant", `{"name": "x", "variant": "mystery", "bonus_points": 1}`},
		{"count without required_count", `{"name": "x", "variant": "count", "bonus_points": 1}`},
		{"one_of_each without types", `{"name": "x", "variant": "one_of_each", "bonus_points": 1}`},
		{"all thresholds without requirements", `{"name": "x", "variant": "all_activity_type_thresholds", "bonus_points": 1}`},
		{"unknown frequency", `{"name": "x", "variant": "count", "required_count": 1, "frequency": "daily", "bonus_points": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAchievement(tc.json)
			assert.Error(t, err, tc.json)
		})
	}
}
