/*
Package scoring computes the point value of a single logged activity.

PURPOSE:
  This package contains the pure scoring core: metric extraction from raw
  measurement maps, strategy-based base point calculation, and bonus
  composition. It has no knowledge of persistence or HTTP - callers supply
  the data, scoring returns the numbers.

KEY CONCEPTS IN THIS FILE (metric.go):
  - Metrics: A raw key->value mapping as logged by a participant
  - Resolve: Alias-aware lookup of a canonical unit in that mapping
  - Absent: A present-but-non-numeric value resolves to absent, never zero

WHY ABSENT, NOT ZERO:
  A participant who logs {"miles": "a lot"} should fall back to the activity
  type's base points, not be silently scored as zero miles. Strategies treat
  absent as "no unit value" and use their configured defaults.

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, no float drift in point totals
  2. Determinism: alias candidates are scanned in a fixed order, so the same
     metric map always resolves the same way
  3. Totality: Resolve never fails; it either finds a value or reports absent

SEE ALSO:
  - strategy.go: Consumes resolved values to compute base points
  - bonus.go: Uses the same alias table for threshold bonuses
*/
package scoring

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// METRICS - Raw measurement mapping
// =============================================================================

// Metrics is the raw measurement map attached to an activity.
// Keys are whatever the logger (or a fitness vendor mapping) produced;
// values may be numbers, numeric strings, or garbage.
type Metrics map[string]any

// canonicalAliases maps a normalized unit name to the keys it may appear
// under. Candidates are tried in order; the first present key wins.
var canonicalAliases = map[string][]string{
	"miles":            {"miles", "mile", "distance_miles", "distance"},
	"kilometers":       {"kilometers", "kilometer", "distance_km", "km"},
	"km":               {"km", "distance_km", "kilometers", "kilometer"},
	"distance_miles":   {"distance_miles", "miles", "mile"},
	"distance_km":      {"distance_km", "km", "kilometers", "kilometer"},
	"minutes":          {"minutes", "minute", "duration_minutes", "duration"},
	"duration_minutes": {"duration_minutes", "minutes", "minute"},
	"steps":            {"steps", "step", "step_count"},
	"reps":             {"reps", "rep", "repetitions"},
	"drinks":           {"drinks", "drink", "drink_count"},
}

// Resolve looks up the value for a requested unit name.
// Lookup order: exact key, normalized key, singular/plural forms, then the
// canonical alias table. Returns (value, true) on success and
// (zero, false) when the unit is absent or non-numeric.
func (m Metrics) Resolve(unit string) (decimal.Decimal, bool) {
	if len(m) == 0 {
		return decimal.Zero, false
	}

	// Exact match first - the common case for well-behaved loggers.
	if v, ok := m[unit]; ok {
		if d, ok := toDecimal(v); ok {
			return d, true
		}
		return decimal.Zero, false
	}

	norm := NormalizeUnit(unit)
	for _, candidate := range candidateKeys(norm) {
		if v, ok := m[candidate]; ok {
			if d, ok := toDecimal(v); ok {
				return d, true
			}
			// Present but non-numeric: absent, never zero.
			return decimal.Zero, false
		}
	}
	return decimal.Zero, false
}

// Has reports whether the unit resolves to a numeric value.
func (m Metrics) Has(unit string) bool {
	_, ok := m.Resolve(unit)
	return ok
}

// NormalizeUnit lowercases, trims, and collapses separators so that
// "Distance Miles", "distance-miles" and "distance_miles" are equivalent.
func NormalizeUnit(unit string) string {
	s := strings.ToLower(strings.TrimSpace(unit))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

// candidateKeys returns the ordered lookup candidates for a normalized unit:
// the unit itself, singular/plural variants, then canonical aliases.
func candidateKeys(norm string) []string {
	candidates := []string{norm}

	// Singular/plural forms.
	if strings.HasSuffix(norm, "s") {
		candidates = append(candidates, strings.TrimSuffix(norm, "s"))
	} else {
		candidates = append(candidates, norm+"s")
	}

	if aliases, ok := canonicalAliases[norm]; ok {
		candidates = append(candidates, aliases...)
	}

	// Dedupe while preserving order.
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// toDecimal converts the loose value types that survive JSON decoding.
// Anything unconvertible reports false.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
