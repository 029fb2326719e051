// Package memory provides an in-memory challenge.Store for testing/dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/challenge-engine/challenge"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu sync.RWMutex

	challenges     map[challenge.ChallengeID]challenge.Challenge
	types          map[challenge.ActivityTypeID]challenge.ActivityType
	activities     map[challenge.ActivityID]challenge.Activity
	participations map[participantKey]challenge.Participation
	achievements   map[challenge.AchievementID]challenge.Achievement
	awards         []challenge.UserAchievement
}

type participantKey struct {
	UserID      challenge.UserID
	ChallengeID challenge.ChallengeID
}

func New() *Store {
	return &Store{
		challenges:     make(map[challenge.ChallengeID]challenge.Challenge),
		types:          make(map[challenge.ActivityTypeID]challenge.ActivityType),
		activities:     make(map[challenge.ActivityID]challenge.Activity),
		participations: make(map[participantKey]challenge.Participation),
		achievements:   make(map[challenge.AchievementID]challenge.Achievement),
	}
}

// =============================================================================
// CHALLENGE / TYPE CONFIG
// =============================================================================

func (m *Store) SaveChallenge(_ context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.ID] = *c
	return nil
}

func (m *Store) ChallengeByID(_ context.Context, id challenge.ChallengeID) (*challenge.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	return &c, nil
}

func (m *Store) SaveActivityType(_ context.Context, at *challenge.ActivityType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[at.ID] = *at
	return nil
}

func (m *Store) ActivityTypeByID(_ context.Context, id challenge.ActivityTypeID) (*challenge.ActivityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.types[id]
	if !ok {
		return nil, challenge.ErrActivityTypeNotFound
	}
	return &at, nil
}

func (m *Store) ActivityTypesByChallenge(_ context.Context, id challenge.ChallengeID) ([]challenge.ActivityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []challenge.ActivityType
	for _, at := range m.types {
		if at.ChallengeID == id {
			out = append(out, at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func (m *Store) SaveActivity(_ context.Context, a *challenge.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ExternalID != "" && !a.Deleted {
		for _, other := range m.activities {
			if other.ID != a.ID && other.ChallengeID == a.ChallengeID &&
				other.ExternalID == a.ExternalID && !other.Deleted {
				return fmt.Errorf("external ID %q: %w", a.ExternalID, challenge.ErrDuplicateExternalID)
			}
		}
	}
	m.activities[a.ID] = *a
	return nil
}

func (m *Store) ActivityByID(_ context.Context, id challenge.ActivityID) (*challenge.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.activities[id]
	if !ok {
		return nil, challenge.ErrActivityNotFound
	}
	return &a, nil
}

func (m *Store) ActivityByExternalID(_ context.Context, challengeID challenge.ChallengeID, externalID string) (*challenge.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.activities {
		if a.ChallengeID == challengeID && a.ExternalID == externalID && !a.Deleted {
			out := a
			return &out, nil
		}
	}
	return nil, challenge.ErrActivityNotFound
}

func (m *Store) ActivitiesByParticipant(_ context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) ([]challenge.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []challenge.Activity
	for _, a := range m.activities {
		if a.UserID == userID && a.ChallengeID == challengeID && !a.Deleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Store) ActivitiesOnDay(_ context.Context, userID challenge.UserID, challengeID challenge.ChallengeID, day challenge.Date) ([]challenge.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []challenge.Activity
	for _, a := range m.activities {
		if a.UserID == userID && a.ChallengeID == challengeID && a.Date.Equal(day) && !a.Deleted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// PARTICIPATIONS
// =============================================================================

func (m *Store) SaveParticipation(_ context.Context, p *challenge.Participation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participations[participantKey{p.UserID, p.ChallengeID}] = *p
	return nil
}

func (m *Store) Participation(_ context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) (*challenge.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participations[participantKey{userID, challengeID}]
	if !ok {
		return nil, challenge.ErrParticipationNotFound
	}
	return &p, nil
}

func (m *Store) ParticipationsByChallenge(_ context.Context, challengeID challenge.ChallengeID) ([]challenge.Participation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []challenge.Participation
	for k, p := range m.participations {
		if k.ChallengeID == challengeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// =============================================================================
// ACHIEVEMENTS
// =============================================================================

func (m *Store) SaveAchievement(_ context.Context, a *challenge.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.achievements[a.ID] = *a
	return nil
}

func (m *Store) AchievementsByChallenge(_ context.Context, challengeID challenge.ChallengeID) ([]challenge.Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []challenge.Achievement
	for _, a := range m.achievements {
		if a.ChallengeID == challengeID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) SaveAward(_ context.Context, ua *challenge.UserAchievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awards = append(m.awards, *ua)
	return nil
}

func (m *Store) AwardsByUser(_ context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) ([]challenge.UserAchievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []challenge.UserAchievement
	for _, ua := range m.awards {
		if ua.UserID == userID && ua.ChallengeID == challengeID {
			out = append(out, ua)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback on error
// =============================================================================

// WithTx executes fn against the store. For the memory implementation the
// transaction is simulated with a full snapshot restored on error.
func (m *Store) WithTx(ctx context.Context, fn func(challenge.Store) error) error {
	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := fn(&txView{parent: m}); err != nil {
		m.mu.Lock()
		m.restoreLocked(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	challenges     map[challenge.ChallengeID]challenge.Challenge
	types          map[challenge.ActivityTypeID]challenge.ActivityType
	activities     map[challenge.ActivityID]challenge.Activity
	participations map[participantKey]challenge.Participation
	achievements   map[challenge.AchievementID]challenge.Achievement
	awards         []challenge.UserAchievement
}

func (m *Store) snapshotLocked() snapshot {
	s := snapshot{
		challenges:     make(map[challenge.ChallengeID]challenge.Challenge, len(m.challenges)),
		types:          make(map[challenge.ActivityTypeID]challenge.ActivityType, len(m.types)),
		activities:     make(map[challenge.ActivityID]challenge.Activity, len(m.activities)),
		participations: make(map[participantKey]challenge.Participation, len(m.participations)),
		achievements:   make(map[challenge.AchievementID]challenge.Achievement, len(m.achievements)),
		awards:         append([]challenge.UserAchievement{}, m.awards...),
	}
	for k, v := range m.challenges {
		s.challenges[k] = v
	}
	for k, v := range m.types {
		s.types[k] = v
	}
	for k, v := range m.activities {
		s.activities[k] = v
	}
	for k, v := range m.participations {
		s.participations[k] = v
	}
	for k, v := range m.achievements {
		s.achievements[k] = v
	}
	return s
}

func (m *Store) restoreLocked(s snapshot) {
	m.challenges = s.challenges
	m.types = s.types
	m.activities = s.activities
	m.participations = s.participations
	m.achievements = s.achievements
	m.awards = s.awards
}

// txView delegates to the parent; writes inside a failed fn are undone by
// the snapshot restore.
type txView struct {
	parent *Store
}

func (t *txView) SaveChallenge(ctx context.Context, c *challenge.Challenge) error {
	return t.parent.SaveChallenge(ctx, c)
}
func (t *txView) ChallengeByID(ctx context.Context, id challenge.ChallengeID) (*challenge.Challenge, error) {
	return t.parent.ChallengeByID(ctx, id)
}
func (t *txView) SaveActivityType(ctx context.Context, at *challenge.ActivityType) error {
	return t.parent.SaveActivityType(ctx, at)
}
func (t *txView) ActivityTypeByID(ctx context.Context, id challenge.ActivityTypeID) (*challenge.ActivityType, error) {
	return t.parent.ActivityTypeByID(ctx, id)
}
func (t *txView) ActivityTypesByChallenge(ctx context.Context, id challenge.ChallengeID) ([]challenge.ActivityType, error) {
	return t.parent.ActivityTypesByChallenge(ctx, id)
}
func (t *txView) SaveActivity(ctx context.Context, a *challenge.Activity) error {
	return t.parent.SaveActivity(ctx, a)
}
func (t *txView) ActivityByID(ctx context.Context, id challenge.ActivityID) (*challenge.Activity, error) {
	return t.parent.ActivityByID(ctx, id)
}
func (t *txView) ActivityByExternalID(ctx context.Context, challengeID challenge.ChallengeID, externalID string) (*challenge.Activity, error) {
	return t.parent.ActivityByExternalID(ctx, challengeID, externalID)
}
func (t *txView) ActivitiesByParticipant(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) ([]challenge.Activity, error) {
	return t.parent.ActivitiesByParticipant(ctx, userID, challengeID)
}
func (t *txView) ActivitiesOnDay(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID, day challenge.Date) ([]challenge.Activity, error) {
	return t.parent.ActivitiesOnDay(ctx, userID, challengeID, day)
}
func (t *txView) SaveParticipation(ctx context.Context, p *challenge.Participation) error {
	return t.parent.SaveParticipation(ctx, p)
}
func (t *txView) Participation(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) (*challenge.Participation, error) {
	return t.parent.Participation(ctx, userID, challengeID)
}
func (t *txView) ParticipationsByChallenge(ctx context.Context, challengeID challenge.ChallengeID) ([]challenge.Participation, error) {
	return t.parent.ParticipationsByChallenge(ctx, challengeID)
}
func (t *txView) SaveAchievement(ctx context.Context, a *challenge.Achievement) error {
	return t.parent.SaveAchievement(ctx, a)
}
func (t *txView) AchievementsByChallenge(ctx context.Context, challengeID challenge.ChallengeID) ([]challenge.Achievement, error) {
	return t.parent.AchievementsByChallenge(ctx, challengeID)
}
func (t *txView) SaveAward(ctx context.Context, ua *challenge.UserAchievement) error {
	return t.parent.SaveAward(ctx, ua)
}
func (t *txView) AwardsByUser(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID) ([]challenge.UserAchievement, error) {
	return t.parent.AwardsByUser(ctx, userID, challengeID)
}

// WithTx nested inside a transaction just runs the function; the outer
// snapshot already guards rollback.
func (t *txView) WithTx(ctx context.Context, fn func(challenge.Store) error) error {
	return fn(t)
}
