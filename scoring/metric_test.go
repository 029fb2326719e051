package scoring_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func mustResolve(t *testing.T, m scoring.Metrics, unit string) decimal.Decimal {
	t.Helper()
	v, ok := m.Resolve(unit)
	if !ok {
		t.Fatalf("expected %q to resolve, got absent", unit)
	}
	return v
}

// =============================================================================
// EXACT AND NORMALIZED LOOKUP
// =============================================================================

func TestResolve_ExactKeyWins(t *testing.T) {
	m := scoring.Metrics{"miles": 5.0, "distance_miles": 99.0}

	v := mustResolve(t, m, "miles")
	if !v.Equal(dec(5)) {
		t.Errorf("exact key should win: expected 5, got %v", v)
	}
}

func TestResolve_NormalizesSeparatorsAndCase(t *testing.T) {
	m := scoring.Metrics{"distance_miles": 3.0}

	v := mustResolve(t, m, "Distance Miles")
	if !v.Equal(dec(3)) {
		t.Errorf("expected 3, got %v", v)
	}

	v = mustResolve(t, m, "distance-miles")
	if !v.Equal(dec(3)) {
		t.Errorf("expected 3, got %v", v)
	}
}

func TestResolve_SingularPluralForms(t *testing.T) {
	m := scoring.Metrics{"drink": 2}
	v := mustResolve(t, m, "drinks")
	if !v.Equal(dec(2)) {
		t.Errorf("plural request should find singular key: expected 2, got %v", v)
	}

	m = scoring.Metrics{"reps": 10}
	v = mustResolve(t, m, "rep")
	if !v.Equal(dec(10)) {
		t.Errorf("singular request should find plural key: expected 10, got %v", v)
	}
}

// =============================================================================
// CANONICAL ALIASES
// =============================================================================

func TestResolve_CanonicalAliases(t *testing.T) {
	cases := []struct {
		name    string
		metrics scoring.Metrics
		unit    string
		want    float64
	}{
		{"miles finds distance_miles", scoring.Metrics{"distance_miles": 26.2}, "miles", 26.2},
		{"kilometers finds km", scoring.Metrics{"km": 10.0}, "kilometers", 10},
		{"kilometers finds distance_km", scoring.Metrics{"distance_km": 21.1}, "kilometers", 21.1},
		{"minutes finds duration_minutes", scoring.Metrics{"duration_minutes": 45}, "minutes", 45},
		{"duration_minutes finds minutes", scoring.Metrics{"minutes": 30}, "duration_minutes", 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := mustResolve(t, tc.metrics, tc.unit)
			if !v.Equal(dec(tc.want)) {
				t.Errorf("expected %v, got %v", tc.want, v)
			}
		})
	}
}

// =============================================================================
// ABSENT, NEVER ZERO
// =============================================================================

func TestResolve_MissingKeyIsAbsent(t *testing.T) {
	m := scoring.Metrics{"miles": 5.0}
	if _, ok := m.Resolve("minutes"); ok {
		t.Error("unrelated unit should be absent")
	}
}

func TestResolve_NonNumericIsAbsent(t *testing.T) {
	// GIVEN: A present but non-numeric value
	// WHEN: Resolving it
	// THEN: Absent - strategies must fall back to base points, not score zero

	m := scoring.Metrics{"miles": "a lot", "minutes": map[string]any{}}

	if _, ok := m.Resolve("miles"); ok {
		t.Error("non-numeric string should resolve as absent")
	}
	if _, ok := m.Resolve("minutes"); ok {
		t.Error("non-numeric object should resolve as absent")
	}
}

func TestResolve_NumericStringsAndIntsConvert(t *testing.T) {
	m := scoring.Metrics{"steps": "10000", "reps": 12}

	if v := mustResolve(t, m, "steps"); !v.Equal(dec(10000)) {
		t.Errorf("expected 10000, got %v", v)
	}
	if v := mustResolve(t, m, "reps"); !v.Equal(dec(12)) {
		t.Errorf("expected 12, got %v", v)
	}
}

func TestResolve_EmptyMetrics(t *testing.T) {
	var m scoring.Metrics
	if _, ok := m.Resolve("miles"); ok {
		t.Error("nil metrics should resolve nothing")
	}
}
