/*
errors.go - Centralized error types for the challenge domain

PURPOSE:
  All domain errors in one place. The split matters operationally:

  Validation errors (membership, caps, week windows) belong to the host
  layer and surface BEFORE the engine runs - see api package.

  Consistency errors (a record vanished mid-recompute) are fatal to the
  whole write unit: the surrounding transaction aborts and nothing is
  partially applied.

USAGE:
  if errors.Is(err, challenge.ErrActivityNotFound) { ... }
*/
package challenge

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrChallengeNotFound is returned when a referenced challenge doesn't exist.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrActivityTypeNotFound is returned when a referenced type doesn't exist.
	ErrActivityTypeNotFound = errors.New("activity type not found")

	// ErrActivityNotFound is returned for a missing or unknown activity.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrParticipationNotFound is returned when a user is not enrolled.
	ErrParticipationNotFound = errors.New("participation not found")

	// ErrAchievementNotFound is returned for a missing achievement.
	ErrAchievementNotFound = errors.New("achievement not found")

	// ErrActivityDeleted is returned when editing a soft-deleted activity.
	ErrActivityDeleted = errors.New("activity is deleted")

	// ErrWrongChallenge is returned when an activity type belongs to a
	// different challenge than the one being logged against.
	ErrWrongChallenge = errors.New("activity type belongs to another challenge")

	// ErrDuplicateExternalID is returned when a save would claim an
	// external ID already held by another live activity in the challenge.
	ErrDuplicateExternalID = errors.New("external ID already in use")
)

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrActivityTypeNotFound) ||
		errors.Is(err, ErrActivityNotFound) ||
		errors.Is(err, ErrParticipationNotFound) ||
		errors.Is(err, ErrAchievementNotFound)
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConsistencyError wraps a structural failure inside the write unit.
// Fatal: the whole mutation aborts, nothing partial persists.
type ConsistencyError struct {
	Op  string
	Err error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency failure during %s: %v", e.Op, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
