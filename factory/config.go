/*
Package factory provides JSON to Go scoring configuration conversion.

PURPOSE:
  Converts JSON activity-type and achievement definitions into
  scoring.Config and challenge.Achievement values. This enables challenge
  configuration without code changes - admins define types in JSON, and
  the factory creates the proper Go structs and validates them at save
  time. Scoring itself never re-validates.

JSON SCHEMA (activity type scoring):
  {
    "strategy": "unit_based",
    "unit": "miles",
    "base_points": 5,
    "points_per_unit": 2,
    "max_units": 10
  }

  {
    "strategy": "tiered",
    "unit": "minutes",
    "tiers": [
      {"max_value": 5, "points": 10},
      {"max_value": 10, "points": 20},
      {"points": 30}
    ]
  }

  {
    "strategy": "variant",
    "variants": [
      {"name": "short", "condition": {"field": "miles", "operator": "lt", "value": 10}, "points": 5},
      {"name": "long",  "condition": {"field": "miles", "operator": "gte", "value": 10}, "points": 15}
    ]
  }

KEY FEATURES:
  - Validates structure once, at parse time
  - Decimal-exact numbers via json.Number, no float drift
  - Tier ordering and variant windows checked before anything persists

USAGE:
  cfg, err := factory.ParseScoringConfig(jsonStr)
  ach, err := factory.ParseAchievement(jsonStr)

SEE ALSO:
  - scoring/config.go: The Config union these parse into
  - challenge/achievement.go: Achievement criteria shapes
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/challenge"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScoringJSON is the JSON representation of an activity type's scoring
// configuration.
type ScoringJSON struct {
	Strategy string `json:"strategy,omitempty"`

	// unit_based fields (also used for the drink penalty; unit "drinks").
	Unit          string           `json:"unit,omitempty"`
	BasePoints    *decimal.Decimal `json:"base_points,omitempty"`
	PointsPerUnit *decimal.Decimal `json:"points_per_unit,omitempty"`
	MaxUnits      *decimal.Decimal `json:"max_units,omitempty"`

	Tiers []TierJSON `json:"tiers,omitempty"`

	// completion
	Points *decimal.Decimal `json:"points,omitempty"`

	Variants []VariantJSON `json:"variants,omitempty"`

	DrinkAllowance *decimal.Decimal `json:"drink_allowance,omitempty"`
}

type TierJSON struct {
	MaxValue *decimal.Decimal `json:"max_value,omitempty"`
	Points   decimal.Decimal  `json:"points"`
}

type VariantJSON struct {
	Name      string           `json:"name"`
	Default   bool             `json:"default,omitempty"`
	ValidFrom string           `json:"valid_from,omitempty"` // "2006-01-02"
	ValidTo   string           `json:"valid_to,omitempty"`
	Condition *ConditionJSON   `json:"condition,omitempty"`
	Points    *decimal.Decimal `json:"points,omitempty"`

	Unit          string           `json:"unit,omitempty"`
	BasePoints    *decimal.Decimal `json:"base_points,omitempty"`
	PointsPerUnit *decimal.Decimal `json:"points_per_unit,omitempty"`
	MaxUnits      *decimal.Decimal `json:"max_units,omitempty"`
}

type ConditionJSON struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Value    decimal.Decimal `json:"value"`
}

// AchievementJSON is the JSON representation of an achievement descriptor.
type AchievementJSON struct {
	ID          string `json:"id"`
	ChallengeID string `json:"challenge_id"`
	Name        string `json:"name"`
	Variant     string `json:"variant"`

	TypeIDs         []string `json:"type_ids,omitempty"`
	RequiredTypeIDs []string `json:"required_type_ids,omitempty"`

	Requirements []RequirementJSON `json:"requirements,omitempty"`

	Metric        string           `json:"metric,omitempty"`
	Threshold     *decimal.Decimal `json:"threshold,omitempty"`
	RequiredCount *decimal.Decimal `json:"required_count,omitempty"`

	Conversions map[string]decimal.Decimal `json:"conversions,omitempty"`

	BonusPoints decimal.Decimal `json:"bonus_points"`
	Frequency   string          `json:"frequency,omitempty"`
}

type RequirementJSON struct {
	TypeID    string          `json:"type_id"`
	Metric    string          `json:"metric"`
	Threshold decimal.Decimal `json:"threshold"`
}

// =============================================================================
// SCORING CONFIG PARSING
// =============================================================================

// ParseScoringConfig converts a JSON scoring document into a validated
// scoring.Config. Unknown fields are rejected; misconfigurations fail
// here, never at scoring time.
func ParseScoringConfig(jsonStr string) (scoring.Config, error) {
	var doc ScoringJSON
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return scoring.Config{}, fmt.Errorf("invalid scoring JSON: %w", err)
	}

	cfg, err := buildConfig(doc)
	if err != nil {
		return scoring.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return scoring.Config{}, fmt.Errorf("invalid scoring config: %w", err)
	}
	return cfg, nil
}

func buildConfig(doc ScoringJSON) (scoring.Config, error) {
	cfg := scoring.Config{Strategy: scoring.Strategy(doc.Strategy)}

	unitBased := len(doc.Tiers) == 0 && doc.Strategy != string(scoring.StrategyCompletion)
	if unitBased && (doc.Unit != "" || doc.BasePoints != nil || doc.PointsPerUnit != nil) {
		cfg.UnitBased = &scoring.UnitBasedConfig{
			Unit:     doc.Unit,
			MaxUnits: doc.MaxUnits,
		}
		if doc.BasePoints != nil {
			cfg.UnitBased.BasePoints = *doc.BasePoints
		}
		if doc.PointsPerUnit != nil {
			cfg.UnitBased.PointsPerUnit = *doc.PointsPerUnit
		}
	}

	if len(doc.Tiers) > 0 {
		tc := &scoring.TieredConfig{Unit: doc.Unit}
		for _, t := range doc.Tiers {
			tc.Tiers = append(tc.Tiers, scoring.Tier{MaxValue: t.MaxValue, Points: t.Points})
		}
		cfg.Tiered = tc
	}

	if doc.Strategy == string(scoring.StrategyCompletion) {
		if doc.Points == nil {
			return scoring.Config{}, fmt.Errorf("completion strategy requires points")
		}
		cfg.Completion = &scoring.CompletionConfig{Points: *doc.Points}
	}

	for _, v := range doc.Variants {
		variant, err := buildVariant(v)
		if err != nil {
			return scoring.Config{}, err
		}
		cfg.Variants = append(cfg.Variants, variant)
	}

	if doc.DrinkAllowance != nil {
		cfg.DrinkAllowance = *doc.DrinkAllowance
	}
	return cfg, nil
}

func buildVariant(v VariantJSON) (scoring.Variant, error) {
	out := scoring.Variant{
		Name:    v.Name,
		Default: v.Default,
		Points:  v.Points,
	}

	if v.ValidFrom != "" {
		t, err := time.Parse("2006-01-02", v.ValidFrom)
		if err != nil {
			return scoring.Variant{}, fmt.Errorf("variant %q: bad valid_from: %w", v.Name, err)
		}
		out.ValidFrom = &t
	}
	if v.ValidTo != "" {
		t, err := time.Parse("2006-01-02", v.ValidTo)
		if err != nil {
			return scoring.Variant{}, fmt.Errorf("variant %q: bad valid_to: %w", v.Name, err)
		}
		out.ValidTo = &t
	}

	if v.Condition != nil {
		out.Condition = &scoring.Condition{
			Field:    v.Condition.Field,
			Operator: scoring.Operator(v.Condition.Operator),
			Value:    v.Condition.Value,
		}
	}

	if v.Unit != "" || v.BasePoints != nil || v.PointsPerUnit != nil {
		ub := &scoring.UnitBasedConfig{Unit: v.Unit, MaxUnits: v.MaxUnits}
		if v.BasePoints != nil {
			ub.BasePoints = *v.BasePoints
		}
		if v.PointsPerUnit != nil {
			ub.PointsPerUnit = *v.PointsPerUnit
		}
		out.UnitBased = ub
	}
	return out, nil
}

// MarshalScoringConfig renders a Config back into its JSON document form,
// the inverse of ParseScoringConfig. Used by the sqlite store.
func MarshalScoringConfig(cfg scoring.Config) (string, error) {
	doc := ScoringJSON{
		Strategy:       string(cfg.Strategy),
		DrinkAllowance: nilIfZero(cfg.DrinkAllowance),
	}

	if cfg.UnitBased != nil {
		doc.Unit = cfg.UnitBased.Unit
		doc.BasePoints = nilIfZero(cfg.UnitBased.BasePoints)
		doc.PointsPerUnit = nilIfZero(cfg.UnitBased.PointsPerUnit)
		doc.MaxUnits = cfg.UnitBased.MaxUnits
	}
	if cfg.Tiered != nil {
		doc.Unit = cfg.Tiered.Unit
		for _, t := range cfg.Tiered.Tiers {
			doc.Tiers = append(doc.Tiers, TierJSON{MaxValue: t.MaxValue, Points: t.Points})
		}
	}
	if cfg.Completion != nil {
		p := cfg.Completion.Points
		doc.Points = &p
	}
	for _, v := range cfg.Variants {
		doc.Variants = append(doc.Variants, marshalVariant(v))
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalVariant(v scoring.Variant) VariantJSON {
	out := VariantJSON{
		Name:    v.Name,
		Default: v.Default,
		Points:  v.Points,
	}
	if v.ValidFrom != nil {
		out.ValidFrom = v.ValidFrom.Format("2006-01-02")
	}
	if v.ValidTo != nil {
		out.ValidTo = v.ValidTo.Format("2006-01-02")
	}
	if v.Condition != nil {
		out.Condition = &ConditionJSON{
			Field:    v.Condition.Field,
			Operator: string(v.Condition.Operator),
			Value:    v.Condition.Value,
		}
	}
	if v.UnitBased != nil {
		out.Unit = v.UnitBased.Unit
		out.BasePoints = nilIfZero(v.UnitBased.BasePoints)
		out.PointsPerUnit = nilIfZero(v.UnitBased.PointsPerUnit)
		out.MaxUnits = v.UnitBased.MaxUnits
	}
	return out
}

func nilIfZero(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	return &d
}

// =============================================================================
// ACHIEVEMENT PARSING
// =============================================================================

var validVariants = map[string]challenge.CriteriaVariant{
	"count":                        challenge.CriteriaCount,
	"cumulative":                   challenge.CriteriaCumulative,
	"distinct_types":               challenge.CriteriaDistinctTypes,
	"one_of_each":                  challenge.CriteriaOneOfEach,
	"all_activity_type_thresholds": challenge.CriteriaAllThresholds,
}

var validFrequencies = map[string]challenge.AwardFrequency{
	"":                   challenge.OncePerChallenge,
	"once_per_challenge": challenge.OncePerChallenge,
	"once_per_week":      challenge.OncePerWeek,
	"unlimited":          challenge.Unlimited,
}

// ParseAchievement converts a JSON achievement definition into a validated
// challenge.Achievement.
func ParseAchievement(jsonStr string) (*challenge.Achievement, error) {
	var doc AchievementJSON
	dec := json.NewDecoder(bytes.NewReader([]byte(jsonStr)))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid achievement JSON: %w", err)
	}
	return buildAchievement(doc)
}

func buildAchievement(doc AchievementJSON) (*challenge.Achievement, error) {
	variant, ok := validVariants[doc.Variant]
	if !ok {
		return nil, fmt.Errorf("unknown criteria variant %q", doc.Variant)
	}
	frequency, ok := validFrequencies[doc.Frequency]
	if !ok {
		return nil, fmt.Errorf("unknown award frequency %q", doc.Frequency)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("achievement needs a name")
	}

	a := &challenge.Achievement{
		ID:          challenge.AchievementID(doc.ID),
		ChallengeID: challenge.ChallengeID(doc.ChallengeID),
		Name:        doc.Name,
		Variant:     variant,
		Metric:      doc.Metric,
		BonusPoints: doc.BonusPoints,
		Frequency:   frequency,
	}
	if doc.Threshold != nil {
		a.Threshold = *doc.Threshold
	}
	if doc.RequiredCount != nil {
		a.RequiredCount = *doc.RequiredCount
	}
	for _, id := range doc.TypeIDs {
		a.TypeIDs = append(a.TypeIDs, challenge.ActivityTypeID(id))
	}
	for _, id := range doc.RequiredTypeIDs {
		a.RequiredTypeIDs = append(a.RequiredTypeIDs, challenge.ActivityTypeID(id))
	}
	for _, r := range doc.Requirements {
		a.Requirements = append(a.Requirements, challenge.TypeRequirement{
			TypeID:    challenge.ActivityTypeID(r.TypeID),
			Metric:    r.Metric,
			Threshold: r.Threshold,
		})
	}
	if len(doc.Conversions) > 0 {
		a.Conversions = make(map[challenge.ActivityTypeID]decimal.Decimal, len(doc.Conversions))
		for id, f := range doc.Conversions {
			a.Conversions[challenge.ActivityTypeID(id)] = f
		}
	}

	switch variant {
	case challenge.CriteriaCount, challenge.CriteriaDistinctTypes:
		if a.RequiredCount.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%s criteria needs a positive required_count", doc.Variant)
		}
	case challenge.CriteriaCumulative:
		if a.RequiredCount.LessThanOrEqual(decimal.Zero) && a.Threshold.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("cumulative criteria needs a positive target")
		}
	case challenge.CriteriaOneOfEach:
		if len(a.RequiredTypeIDs) == 0 {
			return nil, fmt.Errorf("one_of_each criteria needs required_type_ids")
		}
	case challenge.CriteriaAllThresholds:
		if len(a.Requirements) == 0 {
			return nil, fmt.Errorf("all_activity_type_thresholds criteria needs requirements")
		}
	}
	return a, nil
}

// MarshalAchievement renders an Achievement back into its JSON document
// form. Used by the sqlite store.
func MarshalAchievement(a *challenge.Achievement) (string, error) {
	doc := AchievementJSON{
		ID:          string(a.ID),
		ChallengeID: string(a.ChallengeID),
		Name:        a.Name,
		Variant:     string(a.Variant),
		Metric:      a.Metric,
		BonusPoints: a.BonusPoints,
		Frequency:   string(a.Frequency),
	}
	if !a.Threshold.IsZero() {
		t := a.Threshold
		doc.Threshold = &t
	}
	if !a.RequiredCount.IsZero() {
		c := a.RequiredCount
		doc.RequiredCount = &c
	}
	for _, id := range a.TypeIDs {
		doc.TypeIDs = append(doc.TypeIDs, string(id))
	}
	for _, id := range a.RequiredTypeIDs {
		doc.RequiredTypeIDs = append(doc.RequiredTypeIDs, string(id))
	}
	for _, r := range a.Requirements {
		doc.Requirements = append(doc.Requirements, RequirementJSON{
			TypeID:    string(r.TypeID),
			Metric:    r.Metric,
			Threshold: r.Threshold,
		})
	}
	if len(a.Conversions) > 0 {
		doc.Conversions = make(map[string]decimal.Decimal, len(a.Conversions))
		for id, f := range a.Conversions {
			doc.Conversions[string(id)] = f
		}
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
