/*
streak.go - Full-history streak recomputation

PURPOSE:
  Derives a participant's consecutive-day streak by replaying their entire
  non-deleted activity history. This is deliberately a FULL recomputation
  on every write: an edit or backfill can retroactively flip any earlier
  day's qualification and break or repair the chain, and incremental
  maintenance of that is exactly where streak bugs live.

ALGORITHM:
  1. Keep only activities of streak-contributing types
  2. Sum points per UTC calendar day
  3. Retain days whose sum >= the challenge's minimum
  4. Walk ascending: a one-day gap extends the streak, anything else
     resets it to 1

GUARANTEE:
  Pure function of the current non-deleted set. Two invocations with no
  intervening write return identical results.
*/
package challenge

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STREAK RESULT
// =============================================================================

// StreakResult is the Streak Recomputer's output: the streak ending at the
// most recent qualifying day, and that day. Longest is the best run seen
// anywhere in the history.
type StreakResult struct {
	Current int
	Longest int
	LastDay Date
}

// =============================================================================
// RECOMPUTATION
// =============================================================================

// RecomputeStreak replays activities and derives the streak. The caller
// supplies the set of streak-contributing type IDs; synthetic bonus
// activities (empty TypeID) never contribute.
func RecomputeStreak(activities []Activity, streakTypes map[ActivityTypeID]bool, minPoints decimal.Decimal) StreakResult {
	// Sum streak-contributing points per calendar day.
	byDay := make(map[Date]decimal.Decimal)
	for _, a := range activities {
		if a.Deleted {
			continue
		}
		if !streakTypes[a.TypeID] {
			continue
		}
		byDay[a.Date] = byDay[a.Date].Add(a.Points)
	}

	// Qualifying days, ascending.
	var days []Date
	for d, sum := range byDay {
		if sum.GreaterThanOrEqual(minPoints) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	if len(days) == 0 {
		return StreakResult{}
	}

	current, longest := 1, 1
	for i := 1; i < len(days); i++ {
		if DaysBetween(days[i-1], days[i]) == 1 {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}

	return StreakResult{
		Current: current,
		Longest: longest,
		LastDay: days[len(days)-1],
	}
}
