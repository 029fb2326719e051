package challenge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func day(d int) Date { return NewDate(2026, time.March, d) }

func streakAct(typeID string, d Date, points float64) Activity {
	return Activity{
		ID:     ActivityID("a-" + typeID + "-" + d.String()),
		TypeID: ActivityTypeID(typeID),
		Date:   d,
		Points: dec(points),
	}
}

var runOnly = map[ActivityTypeID]bool{"run": true}

func TestRecomputeStreakConsecutiveDays(t *testing.T) {
	// GIVEN qualifying activity on three consecutive days
	activities := []Activity{
		streakAct("run", day(1), 10),
		streakAct("run", day(2), 10),
		streakAct("run", day(3), 10),
	}

	// WHEN the streak is recomputed
	r := RecomputeStreak(activities, runOnly, dec(5))

	// THEN the chain is unbroken
	if r.Current != 3 {
		t.Errorf("current = %d, want 3", r.Current)
	}
	if r.Longest != 3 {
		t.Errorf("longest = %d, want 3", r.Longest)
	}
	if !r.LastDay.Equal(day(3)) {
		t.Errorf("last day = %s, want %s", r.LastDay, day(3))
	}
}

func TestRecomputeStreakGapResets(t *testing.T) {
	// GIVEN a two-day gap in the middle of the history
	activities := []Activity{
		streakAct("run", day(1), 10),
		streakAct("run", day(2), 10),
		streakAct("run", day(3), 10),
		streakAct("run", day(6), 10),
		streakAct("run", day(7), 10),
	}

	r := RecomputeStreak(activities, runOnly, dec(5))

	// THEN the current streak restarts after the gap but the longest run
	// is remembered
	if r.Current != 2 {
		t.Errorf("current = %d, want 2", r.Current)
	}
	if r.Longest != 3 {
		t.Errorf("longest = %d, want 3", r.Longest)
	}
}

func TestRecomputeStreakDaySumAgainstMinimum(t *testing.T) {
	// GIVEN two small same-day activities that only qualify together
	activities := []Activity{
		streakAct("run", day(1), 3),
		{ID: "a2", TypeID: "run", Date: day(1), Points: dec(3)},
		streakAct("run", day(2), 2),
	}

	r := RecomputeStreak(activities, runOnly, dec(5))

	// THEN day 1 qualifies on the summed 6 points, day 2's lone 2 does not
	if r.Current != 1 {
		t.Errorf("current = %d, want 1", r.Current)
	}
	if !r.LastDay.Equal(day(1)) {
		t.Errorf("last day = %s, want %s", r.LastDay, day(1))
	}
}

func TestRecomputeStreakIgnoresNonContributingAndDeleted(t *testing.T) {
	deleted := streakAct("run", day(2), 10)
	deleted.Deleted = true

	activities := []Activity{
		streakAct("run", day(1), 10),
		deleted,
		streakAct("rest", day(3), 10), // type not in streakTypes
		{ID: "bonus", TypeID: "", Date: day(3), Points: dec(50)}, // synthetic
	}

	r := RecomputeStreak(activities, runOnly, dec(5))

	if r.Current != 1 {
		t.Errorf("current = %d, want 1", r.Current)
	}
	if !r.LastDay.Equal(day(1)) {
		t.Errorf("last day = %s, want %s", r.LastDay, day(1))
	}
}

func TestRecomputeStreakIdempotent(t *testing.T) {
	// GIVEN an out-of-order history
	activities := []Activity{
		streakAct("run", day(4), 10),
		streakAct("run", day(2), 10),
		streakAct("run", day(3), 10),
	}

	// WHEN recomputed twice with no intervening write
	first := RecomputeStreak(activities, runOnly, dec(5))
	second := RecomputeStreak(activities, runOnly, dec(5))

	// THEN both results are identical
	if first != second {
		t.Errorf("recompute not idempotent: %+v vs %+v", first, second)
	}
	if first.Current != 3 {
		t.Errorf("current = %d, want 3", first.Current)
	}
}

func TestRecomputeStreakEmptyHistory(t *testing.T) {
	r := RecomputeStreak(nil, runOnly, dec(5))
	if r.Current != 0 || r.Longest != 0 || !r.LastDay.IsZero() {
		t.Errorf("empty history should produce a zero result, got %+v", r)
	}
}

func TestApplyLedgerUpdate(t *testing.T) {
	p := &Participation{
		TotalPoints:   dec(100),
		CurrentStreak: 5,
		LongestStreak: 5,
		LastStreakDay: day(10),
	}

	// WHEN a negative delta and a shorter recomputed streak arrive
	ApplyLedgerUpdate(p, dec(-30), StreakResult{Current: 2, Longest: 2, LastDay: day(12)}, time.Now())

	// THEN the total moves by the delta and the streak is replaced
	// wholesale, but the longest streak never shrinks
	if !p.TotalPoints.Equal(dec(70)) {
		t.Errorf("total = %s, want 70", p.TotalPoints)
	}
	if p.CurrentStreak != 2 {
		t.Errorf("current streak = %d, want 2", p.CurrentStreak)
	}
	if p.LongestStreak != 5 {
		t.Errorf("longest streak = %d, want 5", p.LongestStreak)
	}
	if !p.LastStreakDay.Equal(day(12)) {
		t.Errorf("last streak day = %s, want %s", p.LastStreakDay, day(12))
	}
}
