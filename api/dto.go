/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/config.go: ScoringJSON and AchievementJSON document types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/challenge-engine/challenge"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// CHALLENGE TYPES
// =============================================================================

// CreateChallengeRequest is the request to create a challenge.
type CreateChallengeRequest struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Start            string             `json:"start"` // "2006-01-02"
	End              string             `json:"end"`
	StreakMinPoints  decimal.Decimal    `json:"streak_min_points"`
	MediaBonusPoints decimal.Decimal    `json:"media_bonus_points"`
	OptionalBonuses  []OptionalBonusDTO `json:"optional_bonuses,omitempty"`
	RequiresPayment  bool               `json:"requires_payment,omitempty"`
}

type OptionalBonusDTO struct {
	Name        string          `json:"name"`
	Points      decimal.Decimal `json:"points"`
	Description string          `json:"description,omitempty"`
}

// ChallengeDTO represents a challenge in API responses.
type ChallengeDTO struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Start            string             `json:"start"`
	End              string             `json:"end"`
	StreakMinPoints  decimal.Decimal    `json:"streak_min_points"`
	MediaBonusPoints decimal.Decimal    `json:"media_bonus_points"`
	OptionalBonuses  []OptionalBonusDTO `json:"optional_bonuses,omitempty"`
	RequiresPayment  bool               `json:"requires_payment"`
}

// CreateActivityTypeRequest is the request to create an activity type.
// Scoring is the raw JSON document parsed by the factory.
type CreateActivityTypeRequest struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Scoring             map[string]any      `json:"scoring"`
	ContributesToStreak bool                `json:"contributes_to_streak,omitempty"`
	IsPenalty           bool                `json:"is_penalty,omitempty"`
	ThresholdBonuses    []ThresholdBonusDTO `json:"threshold_bonuses,omitempty"`
	MaxPerChallenge     *int                `json:"max_per_challenge,omitempty"`
	ValidWeek           *int                `json:"valid_week,omitempty"`
}

type ThresholdBonusDTO struct {
	Metric      string          `json:"metric"`
	Threshold   decimal.Decimal `json:"threshold"`
	BonusPoints decimal.Decimal `json:"bonus_points"`
	Description string          `json:"description,omitempty"`
}

// ActivityTypeDTO represents an activity type in API responses.
type ActivityTypeDTO struct {
	ID                  string              `json:"id"`
	ChallengeID         string              `json:"challenge_id"`
	Name                string              `json:"name"`
	Strategy            string              `json:"strategy"`
	ContributesToStreak bool                `json:"contributes_to_streak"`
	IsPenalty           bool                `json:"is_penalty"`
	ThresholdBonuses    []ThresholdBonusDTO `json:"threshold_bonuses,omitempty"`
	MaxPerChallenge     *int                `json:"max_per_challenge,omitempty"`
	ValidWeek           *int                `json:"valid_week,omitempty"`
}

// =============================================================================
// PARTICIPATION
// =============================================================================

// JoinRequest enrolls a user into a challenge.
type JoinRequest struct {
	UserID string `json:"user_id"`
	Paid   bool   `json:"paid,omitempty"`
}

// ParticipationDTO represents a participant's running state.
type ParticipationDTO struct {
	UserID        string          `json:"user_id"`
	ChallengeID   string          `json:"challenge_id"`
	Paid          bool            `json:"paid"`
	TotalPoints   decimal.Decimal `json:"total_points"`
	CurrentStreak int             `json:"current_streak"`
	LongestStreak int             `json:"longest_streak"`
	LastStreakDay string          `json:"last_streak_day,omitempty"`
}

// AwardDTO represents one achievement award.
type AwardDTO struct {
	AchievementID string          `json:"achievement_id"`
	AwardedOn     string          `json:"awarded_on"`
	Points        decimal.Decimal `json:"points"`
}

// =============================================================================
// ACTIVITIES
// =============================================================================

// LogActivityRequest is the request to log (or edit) an activity.
type LogActivityRequest struct {
	UserID          string           `json:"user_id"`
	ChallengeID     string           `json:"challenge_id"`
	TypeID          string           `json:"type_id"`
	Date            string           `json:"date"` // "2006-01-02"
	Metrics         map[string]any   `json:"metrics,omitempty"`
	SelectedBonuses []string         `json:"selected_bonuses,omitempty"`
	HasMedia        bool             `json:"has_media,omitempty"`
	Variant         string           `json:"variant,omitempty"`
	ManualPoints    *decimal.Decimal `json:"manual_points,omitempty"`
}

// ActivityDTO represents an activity in API responses.
type ActivityDTO struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	ChallengeID     string               `json:"challenge_id"`
	TypeID          string               `json:"type_id,omitempty"`
	Date            string               `json:"date"`
	Metrics         map[string]any       `json:"metrics,omitempty"`
	SelectedBonuses []string             `json:"selected_bonuses,omitempty"`
	HasMedia        bool                 `json:"has_media"`
	Points          decimal.Decimal      `json:"points"`
	Bonuses         []scoring.BonusAward `json:"bonuses,omitempty"`
	ExternalID      string               `json:"external_id,omitempty"`
	CreatedAt       string               `json:"created_at,omitempty"`
}

// FitnessWebhookRequest is the ingestion payload from the fitness service.
// ExternalID is the vendor's idempotency key; redelivery updates in place.
type FitnessWebhookRequest struct {
	ExternalID  string         `json:"external_id"`
	UserID      string         `json:"user_id"`
	ChallengeID string         `json:"challenge_id"`
	TypeID      string         `json:"type_id"`
	Date        string         `json:"date"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toChallengeDTO(c *challenge.Challenge) ChallengeDTO {
	dto := ChallengeDTO{
		ID:               string(c.ID),
		Name:             c.Name,
		Start:            c.Start.String(),
		End:              c.End.String(),
		StreakMinPoints:  c.StreakMinPoints,
		MediaBonusPoints: c.MediaBonusPoints,
		RequiresPayment:  c.RequiresPayment,
	}
	for _, b := range c.OptionalBonuses {
		dto.OptionalBonuses = append(dto.OptionalBonuses, OptionalBonusDTO{
			Name: b.Name, Points: b.Points, Description: b.Description,
		})
	}
	return dto
}

func toActivityTypeDTO(at *challenge.ActivityType) ActivityTypeDTO {
	dto := ActivityTypeDTO{
		ID:                  string(at.ID),
		ChallengeID:         string(at.ChallengeID),
		Name:                at.Name,
		Strategy:            string(at.Scoring.EffectiveStrategy()),
		ContributesToStreak: at.ContributesToStreak,
		IsPenalty:           at.IsPenalty,
		MaxPerChallenge:     at.MaxPerChallenge,
		ValidWeek:           at.ValidWeek,
	}
	for _, tb := range at.ThresholdBonuses {
		dto.ThresholdBonuses = append(dto.ThresholdBonuses, ThresholdBonusDTO{
			Metric: tb.Metric, Threshold: tb.Threshold,
			BonusPoints: tb.BonusPoints, Description: tb.Description,
		})
	}
	return dto
}

func toParticipationDTO(p *challenge.Participation) ParticipationDTO {
	dto := ParticipationDTO{
		UserID:        string(p.UserID),
		ChallengeID:   string(p.ChallengeID),
		Paid:          p.Paid,
		TotalPoints:   p.TotalPoints,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
	}
	if !p.LastStreakDay.IsZero() {
		dto.LastStreakDay = p.LastStreakDay.String()
	}
	return dto
}

func toActivityDTO(a *challenge.Activity) ActivityDTO {
	dto := ActivityDTO{
		ID:              string(a.ID),
		UserID:          string(a.UserID),
		ChallengeID:     string(a.ChallengeID),
		TypeID:          string(a.TypeID),
		Date:            a.Date.String(),
		Metrics:         a.Metrics,
		SelectedBonuses: a.SelectedBonuses,
		HasMedia:        a.HasMedia,
		Points:          a.Points,
		Bonuses:         a.Bonuses,
		ExternalID:      a.ExternalID,
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}
