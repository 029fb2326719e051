/*
store.go - Persistence interface for the challenge domain

PURPOSE:
  Defines the interface between the engine and the database. Implementations
  live in store/memory (tests/dev) and store/sqlite (production).

QUERY SHAPE:
  The engine needs exactly three indexed lookups (drink accumulation,
  streak day-grouping, external-ID upserts) plus read-modify-write on the
  Participation record. Everything here maps to those needs.

ATOMICITY:
  WithTx executes a function against a transactional view: either every
  derived value of one activity mutation commits together or none does.
  The engine assumes a single active writer per (user, challenge); the
  store does not take per-participant locks itself.

SOFT DELETION:
  ActivitiesByParticipant and ActivitiesOnDay return only non-deleted rows;
  every aggregate builds on them. ActivityByID returns the row regardless,
  so deletes and audits can see it.

SEE ALSO:
  - store/memory: In-memory implementation
  - store/sqlite: SQLite implementation with the required indexes
*/
package challenge

import "context"

// Store is the persistence surface the engine writes through.
type Store interface {
	// Challenge and type configuration (admin-written, engine-read).
	SaveChallenge(ctx context.Context, c *Challenge) error
	ChallengeByID(ctx context.Context, id ChallengeID) (*Challenge, error)
	SaveActivityType(ctx context.Context, at *ActivityType) error
	ActivityTypeByID(ctx context.Context, id ActivityTypeID) (*ActivityType, error)
	ActivityTypesByChallenge(ctx context.Context, id ChallengeID) ([]ActivityType, error)

	// Activities. SaveActivity inserts or replaces by ID (soft deletes are
	// saves with Deleted=true).
	SaveActivity(ctx context.Context, a *Activity) error
	ActivityByID(ctx context.Context, id ActivityID) (*Activity, error)
	// ActivityByExternalID returns the non-deleted activity upserted under a
	// vendor external ID, or ErrActivityNotFound.
	ActivityByExternalID(ctx context.Context, challengeID ChallengeID, externalID string) (*Activity, error)
	// ActivitiesByParticipant returns all non-deleted activities for
	// (user, challenge), ordered by date ascending.
	ActivitiesByParticipant(ctx context.Context, userID UserID, challengeID ChallengeID) ([]Activity, error)
	// ActivitiesOnDay returns the participant's non-deleted activities on
	// one calendar day.
	ActivitiesOnDay(ctx context.Context, userID UserID, challengeID ChallengeID, day Date) ([]Activity, error)

	// Participation read-modify-write.
	SaveParticipation(ctx context.Context, p *Participation) error
	Participation(ctx context.Context, userID UserID, challengeID ChallengeID) (*Participation, error)
	ParticipationsByChallenge(ctx context.Context, challengeID ChallengeID) ([]Participation, error)

	// Achievements and awards.
	SaveAchievement(ctx context.Context, a *Achievement) error
	AchievementsByChallenge(ctx context.Context, challengeID ChallengeID) ([]Achievement, error)
	SaveAward(ctx context.Context, ua *UserAchievement) error
	AwardsByUser(ctx context.Context, userID UserID, challengeID ChallengeID) ([]UserAchievement, error)

	// WithTx executes fn against a transactional view. If fn returns an
	// error the transaction rolls back; otherwise it commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}
