/*
bonus.go - Bonus composition and sign handling

PURPOSE:
  Computes the three independent bonus sources layered on base points:

  Threshold bonuses: configured per activity type; award when the named
  metric meets the threshold. Several can trigger on one activity.

  Optional bonuses:  a fixed catalogue on the challenge; the logger selects
  zero or more by name.

  Media bonus:       one fixed bonus for attaching media, capped to once per
  (user, challenge, calendar day). The cap is decided by the caller, who can
  see the day's other activities; this package just honors the flag.

SIGN RULE:
  Penalty activity types can never produce positive points, whatever their
  base + bonus arithmetic says. Non-penalty types keep their natural sign.

SEE ALSO:
  - strategy.go: Base points the bonuses layer onto
  - metric.go: Alias table shared with threshold resolution
*/
package scoring

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// BONUS DESCRIPTORS
// =============================================================================

// ThresholdBonus is configured on an activity type: meet the metric
// threshold, earn the bonus.
type ThresholdBonus struct {
	Metric      string
	Threshold   decimal.Decimal
	BonusPoints decimal.Decimal
	Description string
}

// OptionalBonus is a named catalogue entry the logger can opt into.
type OptionalBonus struct {
	Name        string
	Points      decimal.Decimal
	Description string
}

// BonusAward records one triggered bonus on a persisted activity.
type BonusAward struct {
	Source      BonusSource     `json:"source"`
	Metric      string          `json:"metric,omitempty"`
	Threshold   decimal.Decimal `json:"threshold"`
	BonusPoints decimal.Decimal `json:"bonus_points"`
	Description string          `json:"description"`
}

type BonusSource string

const (
	BonusThreshold BonusSource = "threshold"
	BonusOptional  BonusSource = "optional"
	BonusMedia     BonusSource = "media"
)

// MediaBonusDescription labels media bonus awards so the once-per-day scan
// can recognize them on existing activities.
const MediaBonusDescription = "media attachment"

// =============================================================================
// COMPOSER
// =============================================================================

// BonusInput bundles the three bonus sources for one activity.
type BonusInput struct {
	Metrics    Metrics
	Thresholds []ThresholdBonus

	Catalogue []OptionalBonus
	Selected  []string

	MediaPresent bool
	// MediaAlreadyGranted is true when another non-deleted activity on the
	// same (user, challenge, day) already carries the media bonus.
	MediaAlreadyGranted bool
	MediaBonusPoints    decimal.Decimal
}

// ComposeBonuses evaluates all three sources and returns the triggered
// awards. Pure; the once-per-day media decision arrives pre-computed.
func ComposeBonuses(in BonusInput) []BonusAward {
	var awards []BonusAward

	for _, tb := range in.Thresholds {
		value, ok := in.Metrics.Resolve(tb.Metric)
		if !ok {
			continue
		}
		if value.GreaterThanOrEqual(tb.Threshold) {
			awards = append(awards, BonusAward{
				Source:      BonusThreshold,
				Metric:      tb.Metric,
				Threshold:   tb.Threshold,
				BonusPoints: tb.BonusPoints,
				Description: tb.Description,
			})
		}
	}

	for _, name := range in.Selected {
		for _, ob := range in.Catalogue {
			if ob.Name == name {
				awards = append(awards, BonusAward{
					Source:      BonusOptional,
					BonusPoints: ob.Points,
					Description: ob.Description,
				})
				break
			}
		}
	}

	if in.MediaPresent && !in.MediaAlreadyGranted && in.MediaBonusPoints.IsPositive() {
		awards = append(awards, BonusAward{
			Source:      BonusMedia,
			BonusPoints: in.MediaBonusPoints,
			Description: MediaBonusDescription,
		})
	}

	return awards
}

// TotalBonus sums the awarded bonus points.
func TotalBonus(awards []BonusAward) decimal.Decimal {
	total := decimal.Zero
	for _, a := range awards {
		total = total.Add(a.BonusPoints)
	}
	return total
}

// HasMediaBonus reports whether an award list contains the media bonus.
func HasMediaBonus(awards []BonusAward) bool {
	for _, a := range awards {
		if a.Source == BonusMedia {
			return true
		}
	}
	return false
}

// ApplySign produces the final signed total. Penalty categories are forced
// non-positive in magnitude; everything else passes through.
func ApplySign(total decimal.Decimal, isPenalty bool) decimal.Decimal {
	if isPenalty && total.IsPositive() {
		return total.Neg()
	}
	return total
}
