/*
engine.go - The single write path for activity mutations

PURPOSE:
  Orchestrates everything one activity mutation implies:

    extract metrics -> resolve base points -> compose bonuses -> apply
    penalty sign -> persist the activity -> recompute the streak from full
    history -> apply the ledger update -> evaluate achievements

  All of it runs inside one store transaction: either every derived value
  commits together or none does. Partial point credit must never persist.

CONCURRENCY CONTRACT:
  One active writer per (user, challenge) pair, enforced by the hosting
  layer. That assumption is what lets the drink penalty and the media
  bonus read same-day history and then write without locking here.

VALIDATION SPLIT:
  Membership, payment gating, usage caps, and week-window checks happen in
  the host (api package) BEFORE these methods run. The engine only raises
  consistency errors - a record that should exist and doesn't aborts the
  whole unit.

SEE ALSO:
  - streak.go: Why recomputation is always full-history
  - achievement/evaluator.go: The Awarder implementation
*/
package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// ENGINE
// =============================================================================

// Awarder evaluates achievements after an accepted write and returns
// synthetic bonus activities to credit through the ledger path.
// Implemented by the achievement package.
type Awarder interface {
	ProcessAwards(ctx context.Context, s Store, userID UserID, ch *Challenge) ([]Activity, error)
}

// Engine is the write path for activity mutations.
type Engine struct {
	store    Store
	awarder  Awarder
	resolver scoring.Resolver
	now      func() time.Time
}

// NewEngine creates an engine. awarder may be nil to disable achievement
// evaluation (useful in tests and backfill tooling).
func NewEngine(store Store, awarder Awarder) *Engine {
	return &Engine{
		store:   store,
		awarder: awarder,
		now:     time.Now,
	}
}

// NewActivityID mints an activity identifier.
func NewActivityID() ActivityID { return ActivityID(uuid.NewString()) }

// =============================================================================
// INPUTS
// =============================================================================

// LogInput is a candidate activity from the logging entry point. The host
// has already validated membership, payment, usage cap, and week window.
type LogInput struct {
	UserID      UserID
	ChallengeID ChallengeID
	TypeID      ActivityTypeID
	Date        Date

	Metrics         scoring.Metrics
	SelectedBonuses []string
	HasMedia        bool

	// RequestedVariant names an explicitly requested scoring variant.
	RequestedVariant string

	// ManualPoints carries admin-assigned points for variable-strategy
	// types. Ignored for every other strategy.
	ManualPoints *decimal.Decimal

	// ExternalID is set by the fitness-service ingestion path; see
	// UpsertExternal.
	ExternalID string
}

// EditInput replaces the mutable fields of an existing activity.
type EditInput struct {
	Date             Date
	Metrics          scoring.Metrics
	SelectedBonuses  []string
	HasMedia         bool
	RequestedVariant string
	ManualPoints     *decimal.Decimal
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Log scores and persists a new activity, then restores participant
// consistency (streak, total, achievements) in the same transaction.
func (e *Engine) Log(ctx context.Context, in LogInput) (*Activity, error) {
	var out *Activity
	err := e.store.WithTx(ctx, func(s Store) error {
		a, err := e.logLocked(ctx, s, in)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// Edit rescores an existing activity with new inputs and applies the point
// difference to the participant's total.
func (e *Engine) Edit(ctx context.Context, id ActivityID, in EditInput) (*Activity, error) {
	var out *Activity
	err := e.store.WithTx(ctx, func(s Store) error {
		a, err := s.ActivityByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Deleted {
			return ErrActivityDeleted
		}
		if a.IsSynthetic() {
			return fmt.Errorf("achievement bonus activities cannot be edited: %w", ErrActivityNotFound)
		}

		edited, err := e.editLocked(ctx, s, a, in)
		if err != nil {
			return err
		}
		out = edited
		return nil
	})
	return out, err
}

// Delete soft-deletes an activity and removes its points from the total.
// Deleting an already-deleted activity is a no-op.
func (e *Engine) Delete(ctx context.Context, id ActivityID) error {
	return e.store.WithTx(ctx, func(s Store) error {
		a, err := s.ActivityByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Deleted {
			return nil
		}

		ch, err := s.ChallengeByID(ctx, a.ChallengeID)
		if err != nil {
			return &ConsistencyError{Op: "delete", Err: err}
		}

		a.Deleted = true
		a.UpdatedAt = e.now()
		if err := s.SaveActivity(ctx, a); err != nil {
			return err
		}

		if err := e.settle(ctx, s, a.UserID, ch, a.Points.Neg()); err != nil {
			return err
		}
		return e.processAwards(ctx, s, a.UserID, ch)
	})
}

// UpsertExternal is the idempotent ingestion path for fitness-service
// payloads: repeat delivery of the same external ID updates the derived
// points in place, never duplicates the activity.
func (e *Engine) UpsertExternal(ctx context.Context, in LogInput) (*Activity, error) {
	if in.ExternalID == "" {
		return nil, fmt.Errorf("external upsert requires an external ID")
	}

	var out *Activity
	err := e.store.WithTx(ctx, func(s Store) error {
		existing, err := s.ActivityByExternalID(ctx, in.ChallengeID, in.ExternalID)
		switch {
		case err == nil:
			edited, err := e.editLocked(ctx, s, existing, EditInput{
				Date:             in.Date,
				Metrics:          in.Metrics,
				SelectedBonuses:  in.SelectedBonuses,
				HasMedia:         in.HasMedia,
				RequestedVariant: in.RequestedVariant,
				ManualPoints:     in.ManualPoints,
			})
			if err != nil {
				return err
			}
			out = edited
			return nil
		case IsNotFound(err):
			a, err := e.logLocked(ctx, s, in)
			if err != nil {
				return err
			}
			out = a
			return nil
		default:
			return err
		}
	})
	return out, err
}

// =============================================================================
// CORE MUTATION STEPS
// =============================================================================

func (e *Engine) logLocked(ctx context.Context, s Store, in LogInput) (*Activity, error) {
	ch, at, err := e.loadConfig(ctx, s, in.ChallengeID, in.TypeID)
	if err != nil {
		return nil, err
	}

	a := &Activity{
		ID:              NewActivityID(),
		UserID:          in.UserID,
		ChallengeID:     in.ChallengeID,
		TypeID:          in.TypeID,
		Date:            in.Date,
		Metrics:         in.Metrics,
		SelectedBonuses: in.SelectedBonuses,
		HasMedia:        in.HasMedia,
		ExternalID:      in.ExternalID,
		CreatedAt:       e.now(),
		UpdatedAt:       e.now(),
	}

	if err := e.score(ctx, s, ch, at, a, in.RequestedVariant, in.ManualPoints); err != nil {
		return nil, err
	}
	if err := s.SaveActivity(ctx, a); err != nil {
		return nil, err
	}

	if err := e.settle(ctx, s, a.UserID, ch, a.Points); err != nil {
		return nil, err
	}
	if err := e.processAwards(ctx, s, a.UserID, ch); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) editLocked(ctx context.Context, s Store, a *Activity, in EditInput) (*Activity, error) {
	ch, at, err := e.loadConfig(ctx, s, a.ChallengeID, a.TypeID)
	if err != nil {
		return nil, err
	}

	oldPoints := a.Points
	a.Date = in.Date
	a.Metrics = in.Metrics
	a.SelectedBonuses = in.SelectedBonuses
	a.HasMedia = in.HasMedia
	a.UpdatedAt = e.now()

	if err := e.score(ctx, s, ch, at, a, in.RequestedVariant, in.ManualPoints); err != nil {
		return nil, err
	}
	if err := s.SaveActivity(ctx, a); err != nil {
		return nil, err
	}

	delta := a.Points.Sub(oldPoints)
	if err := e.settle(ctx, s, a.UserID, ch, delta); err != nil {
		return nil, err
	}
	if err := e.processAwards(ctx, s, a.UserID, ch); err != nil {
		return nil, err
	}
	return a, nil
}

// score fills in Points and Bonuses on the activity.
func (e *Engine) score(ctx context.Context, s Store, ch *Challenge, at *ActivityType, a *Activity, requestedVariant string, manualPoints *decimal.Decimal) error {
	base, err := e.resolver.BasePoints(ctx, at.Scoring, scoring.Context{
		Metrics:          a.Metrics,
		UserID:           string(a.UserID),
		ChallengeID:      string(a.ChallengeID),
		TypeID:           string(a.TypeID),
		LoggedAt:         a.Date.Time(),
		ActivityID:       string(a.ID),
		RequestedVariant: requestedVariant,
		History:          &historyReader{s: s},
	})
	if err != nil {
		return &ConsistencyError{Op: "scoring", Err: err}
	}
	if at.Scoring.EffectiveStrategy() == scoring.StrategyVariable && manualPoints != nil {
		base = *manualPoints
	}

	mediaGranted, err := e.mediaAlreadyGranted(ctx, s, a.UserID, a.ChallengeID, a.Date, a.ID)
	if err != nil {
		return &ConsistencyError{Op: "media bonus scan", Err: err}
	}

	a.Bonuses = scoring.ComposeBonuses(scoring.BonusInput{
		Metrics:             a.Metrics,
		Thresholds:          at.ThresholdBonuses,
		Catalogue:           ch.OptionalBonuses,
		Selected:            a.SelectedBonuses,
		MediaPresent:        a.HasMedia,
		MediaAlreadyGranted: mediaGranted,
		MediaBonusPoints:    ch.MediaBonusPoints,
	})
	a.Points = scoring.ApplySign(base.Add(scoring.TotalBonus(a.Bonuses)), at.IsPenalty)
	return nil
}

// settle recomputes the streak from full history and applies the ledger
// update to the participation record.
func (e *Engine) settle(ctx context.Context, s Store, userID UserID, ch *Challenge, delta decimal.Decimal) error {
	activities, err := s.ActivitiesByParticipant(ctx, userID, ch.ID)
	if err != nil {
		return &ConsistencyError{Op: "streak recompute", Err: err}
	}

	types, err := s.ActivityTypesByChallenge(ctx, ch.ID)
	if err != nil {
		return &ConsistencyError{Op: "streak recompute", Err: err}
	}
	streakTypes := make(map[ActivityTypeID]bool, len(types))
	for _, t := range types {
		if t.ContributesToStreak {
			streakTypes[t.ID] = true
		}
	}

	streak := RecomputeStreak(activities, streakTypes, ch.StreakMinPoints)

	p, err := s.Participation(ctx, userID, ch.ID)
	if err != nil {
		return &ConsistencyError{Op: "ledger update", Err: err}
	}
	ApplyLedgerUpdate(p, delta, streak, e.now())
	return s.SaveParticipation(ctx, p)
}

// processAwards runs the achievement evaluator and routes each synthetic
// bonus activity through the same settle path as ordinary activities.
func (e *Engine) processAwards(ctx context.Context, s Store, userID UserID, ch *Challenge) error {
	if e.awarder == nil {
		return nil
	}
	synthetic, err := e.awarder.ProcessAwards(ctx, s, userID, ch)
	if err != nil {
		return err
	}
	for i := range synthetic {
		sa := &synthetic[i]
		if sa.ID == "" {
			sa.ID = NewActivityID()
		}
		sa.UserID = userID
		sa.ChallengeID = ch.ID
		if sa.CreatedAt.IsZero() {
			sa.CreatedAt = e.now()
		}
		sa.UpdatedAt = e.now()

		if err := s.SaveActivity(ctx, sa); err != nil {
			return err
		}
		if err := e.settle(ctx, s, userID, ch, sa.Points); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) loadConfig(ctx context.Context, s Store, challengeID ChallengeID, typeID ActivityTypeID) (*Challenge, *ActivityType, error) {
	ch, err := s.ChallengeByID(ctx, challengeID)
	if err != nil {
		return nil, nil, &ConsistencyError{Op: "load challenge", Err: err}
	}
	at, err := s.ActivityTypeByID(ctx, typeID)
	if err != nil {
		return nil, nil, &ConsistencyError{Op: "load activity type", Err: err}
	}
	if at.ChallengeID != challengeID {
		return nil, nil, ErrWrongChallenge
	}
	return ch, at, nil
}

// mediaAlreadyGranted scans the day's other non-deleted activities for one
// that has media and previously triggered the media bonus.
func (e *Engine) mediaAlreadyGranted(ctx context.Context, s Store, userID UserID, challengeID ChallengeID, day Date, exclude ActivityID) (bool, error) {
	acts, err := s.ActivitiesOnDay(ctx, userID, challengeID, day)
	if err != nil {
		return false, err
	}
	for _, a := range acts {
		if a.ID == exclude {
			continue
		}
		if a.HasMedia && scoring.HasMediaBonus(a.Bonuses) {
			return true, nil
		}
	}
	return false, nil
}

// historyReader adapts the Store to the scoring package's drink-strategy
// read interface.
type historyReader struct {
	s Store
}

func (h *historyReader) SameDayUnits(ctx context.Context, userID, challengeID, typeID string, day time.Time, unit string, excludeID string) (decimal.Decimal, error) {
	acts, err := h.s.ActivitiesOnDay(ctx, UserID(userID), ChallengeID(challengeID), DateOf(day))
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range acts {
		if string(a.ID) == excludeID || string(a.TypeID) != typeID {
			continue
		}
		if v, ok := a.Metrics.Resolve(unit); ok {
			total = total.Add(v)
		}
	}
	return total, nil
}
