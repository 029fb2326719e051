/*
participation.go - The participation ledger updater

PURPOSE:
  Applies one activity mutation's outcome to a Participation record as a
  single logical step: the point delta is added to the running total, and
  the streak fields are replaced WHOLESALE by the recomputer's fresh
  output. Streaks are never incrementally patched - that is how stale
  streaks survive out-of-order backfills.
*/
package challenge

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplyLedgerUpdate mutates a participation with a point delta (may be
// negative) and the freshly recomputed streak.
//
// LongestStreak is a high-water mark, not a replay-derived value: it only
// ever ratchets up, so a streak that once existed stays recorded even
// after the activities behind it are deleted.
func ApplyLedgerUpdate(p *Participation, delta decimal.Decimal, streak StreakResult, now time.Time) {
	p.TotalPoints = p.TotalPoints.Add(delta)

	p.CurrentStreak = streak.Current
	p.LastStreakDay = streak.LastDay
	if streak.Longest > p.LongestStreak {
		p.LongestStreak = streak.Longest
	}

	p.UpdatedAt = now
}
