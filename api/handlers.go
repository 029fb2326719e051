/*
handlers.go - HTTP API handlers for the challenge engine

PURPOSE:
  Exposes the challenge engine via REST API. Handles HTTP request/response,
  JSON serialization, the host-side validations, and delegates scoring to
  the engine.

ENDPOINTS:
  Challenges:
    POST   /api/challenges                      Create challenge
    GET    /api/challenges/{id}                 Get challenge
    POST   /api/challenges/{id}/types           Create activity type
    GET    /api/challenges/{id}/types           List activity types
    POST   /api/challenges/{id}/achievements    Create achievement
    POST   /api/challenges/{id}/join            Enroll a participant
    GET    /api/challenges/{id}/leaderboard     Ranked participants
    GET    /api/challenges/{id}/participants/{userID}         Participation
    GET    /api/challenges/{id}/participants/{userID}/awards  Award history

  Activities:
    POST   /api/activities                      Log activity
    GET    /api/activities/{id}                 Get activity
    PUT    /api/activities/{id}                 Edit activity
    DELETE /api/activities/{id}                 Delete activity (soft)

  Webhooks:
    POST   /api/webhooks/fitness                Fitness-service ingestion

VALIDATION SPLIT:
  The handlers own the host-side gate the engine assumes has already run:
  enrollment, payment, the per-challenge usage cap, the week window, and
  the challenge period. Only a request that passes all of them reaches the
  engine's write path.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 402: Payment required for a gated challenge
  - 403: Usage cap or week window violations
  - 404: Resource not found
  - 500: Consistency failures, internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - challenge/engine.go: The write path behind these handlers
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/challenge-engine/challenge"
	"github.com/warp/challenge-engine/factory"
	"github.com/warp/challenge-engine/scoring"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  challenge.Store
	Engine *challenge.Engine
}

// NewHandler creates a handler over a store and engine.
func NewHandler(store challenge.Store, engine *challenge.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

// =============================================================================
// CHALLENGE HANDLERS
// =============================================================================

// CreateChallenge creates a challenge.
func (h *Handler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	start, err := challenge.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date", err)
		return
	}
	end, err := challenge.ParseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "Challenge ends before it starts", nil)
		return
	}

	ch := &challenge.Challenge{
		ID:               challenge.ChallengeID(req.ID),
		Name:             req.Name,
		Start:            start,
		End:              end,
		StreakMinPoints:  req.StreakMinPoints,
		MediaBonusPoints: req.MediaBonusPoints,
		RequiresPayment:  req.RequiresPayment,
		CreatedAt:        time.Now(),
	}
	for _, b := range req.OptionalBonuses {
		ch.OptionalBonuses = append(ch.OptionalBonuses, scoring.OptionalBonus{
			Name: b.Name, Points: b.Points, Description: b.Description,
		})
	}

	if err := h.Store.SaveChallenge(r.Context(), ch); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save challenge", err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeDTO(ch))
}

// GetChallenge returns a single challenge.
func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.Store.ChallengeByID(r.Context(), challenge.ChallengeID(chi.URLParam(r, "id")))
	if err != nil {
		writeNotFoundOr500(w, "Challenge not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeDTO(ch))
}

// CreateActivityType creates an activity type under a challenge. The
// scoring document is validated through the factory before anything
// persists.
func (h *Handler) CreateActivityType(w http.ResponseWriter, r *http.Request) {
	challengeID := challenge.ChallengeID(chi.URLParam(r, "id"))
	if _, err := h.Store.ChallengeByID(r.Context(), challengeID); err != nil {
		writeNotFoundOr500(w, "Challenge not found", err)
		return
	}

	var req CreateActivityTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	scoringDoc, err := json.Marshal(req.Scoring)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scoring document", err)
		return
	}
	cfg, err := factory.ParseScoringConfig(string(scoringDoc))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scoring config", err)
		return
	}

	at := &challenge.ActivityType{
		ID:                  challenge.ActivityTypeID(req.ID),
		ChallengeID:         challengeID,
		Name:                req.Name,
		Scoring:             cfg,
		ContributesToStreak: req.ContributesToStreak,
		IsPenalty:           req.IsPenalty,
		MaxPerChallenge:     req.MaxPerChallenge,
		ValidWeek:           req.ValidWeek,
		CreatedAt:           time.Now(),
	}
	for _, tb := range req.ThresholdBonuses {
		at.ThresholdBonuses = append(at.ThresholdBonuses, scoring.ThresholdBonus{
			Metric: tb.Metric, Threshold: tb.Threshold,
			BonusPoints: tb.BonusPoints, Description: tb.Description,
		})
	}

	if err := h.Store.SaveActivityType(r.Context(), at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save activity type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityTypeDTO(at))
}

// ListActivityTypes returns the types of a challenge.
func (h *Handler) ListActivityTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ActivityTypesByChallenge(r.Context(), challenge.ChallengeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activity types", err)
		return
	}

	dtos := make([]ActivityTypeDTO, len(types))
	for i := range types {
		dtos[i] = toActivityTypeDTO(&types[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAchievement creates an achievement from its JSON criteria document.
func (h *Handler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	challengeID := challenge.ChallengeID(chi.URLParam(r, "id"))
	if _, err := h.Store.ChallengeByID(r.Context(), challengeID); err != nil {
		writeNotFoundOr500(w, "Challenge not found", err)
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	a, err := factory.ParseAchievement(string(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid achievement", err)
		return
	}
	a.ChallengeID = challengeID
	a.CreatedAt = time.Now()

	if err := h.Store.SaveAchievement(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save achievement", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// =============================================================================
// PARTICIPATION HANDLERS
// =============================================================================

// JoinChallenge enrolls a user.
func (h *Handler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := challenge.ChallengeID(chi.URLParam(r, "id"))
	if _, err := h.Store.ChallengeByID(r.Context(), challengeID); err != nil {
		writeNotFoundOr500(w, "Challenge not found", err)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	// Re-joining keeps the existing ledger; only the payment flag moves.
	p, err := h.Store.Participation(r.Context(), challenge.UserID(req.UserID), challengeID)
	switch {
	case err == nil:
		p.Paid = req.Paid
		p.UpdatedAt = time.Now()
	case challenge.IsNotFound(err):
		p = &challenge.Participation{
			UserID:      challenge.UserID(req.UserID),
			ChallengeID: challengeID,
			Paid:        req.Paid,
			JoinedAt:    time.Now(),
			UpdatedAt:   time.Now(),
		}
	default:
		writeError(w, http.StatusInternalServerError, "Failed to load participation", err)
		return
	}

	if err := h.Store.SaveParticipation(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save participation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipationDTO(p))
}

// GetParticipation returns one participant's running state.
func (h *Handler) GetParticipation(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Participation(r.Context(),
		challenge.UserID(chi.URLParam(r, "userID")),
		challenge.ChallengeID(chi.URLParam(r, "id")))
	if err != nil {
		writeNotFoundOr500(w, "Participation not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipationDTO(p))
}

// GetAwards returns a participant's achievement awards.
func (h *Handler) GetAwards(w http.ResponseWriter, r *http.Request) {
	awards, err := h.Store.AwardsByUser(r.Context(),
		challenge.UserID(chi.URLParam(r, "userID")),
		challenge.ChallengeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list awards", err)
		return
	}

	dtos := make([]AwardDTO, len(awards))
	for i, ua := range awards {
		dtos[i] = AwardDTO{
			AchievementID: string(ua.AchievementID),
			AwardedOn:     ua.AwardedOn.String(),
			Points:        ua.Points,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeaderboard returns participants ranked by total points.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	participations, err := h.Store.ParticipationsByChallenge(r.Context(),
		challenge.ChallengeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load leaderboard", err)
		return
	}

	sort.SliceStable(participations, func(i, j int) bool {
		return participations[i].TotalPoints.GreaterThan(participations[j].TotalPoints)
	})

	dtos := make([]ParticipationDTO, len(participations))
	for i := range participations {
		dtos[i] = toParticipationDTO(&participations[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// LogActivity validates and logs a new activity.
func (h *Handler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var req LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, ok := h.buildLogInput(w, r, req, "")
	if !ok {
		return
	}

	a, err := h.Engine.Log(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(a))
}

// GetActivity returns a single activity.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.ActivityByID(r.Context(), challenge.ActivityID(chi.URLParam(r, "id")))
	if err != nil {
		writeNotFoundOr500(w, "Activity not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// EditActivity rescores an existing activity with new inputs.
func (h *Handler) EditActivity(w http.ResponseWriter, r *http.Request) {
	id := challenge.ActivityID(chi.URLParam(r, "id"))
	existing, err := h.Store.ActivityByID(r.Context(), id)
	if err != nil {
		writeNotFoundOr500(w, "Activity not found", err)
		return
	}

	var req LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// The edit keeps the activity's identity; only the mutable fields move.
	req.UserID = string(existing.UserID)
	req.ChallengeID = string(existing.ChallengeID)
	req.TypeID = string(existing.TypeID)

	in, ok := h.buildLogInput(w, r, req, id)
	if !ok {
		return
	}

	a, err := h.Engine.Edit(r.Context(), id, challenge.EditInput{
		Date:             in.Date,
		Metrics:          in.Metrics,
		SelectedBonuses:  in.SelectedBonuses,
		HasMedia:         in.HasMedia,
		RequestedVariant: in.RequestedVariant,
		ManualPoints:     in.ManualPoints,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// DeleteActivity soft-deletes an activity.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Delete(r.Context(), challenge.ActivityID(chi.URLParam(r, "id"))); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// WEBHOOK HANDLERS
// =============================================================================

// FitnessWebhook ingests a fitness-service activity. Redelivery of the
// same external ID updates the existing activity in place.
func (h *Handler) FitnessWebhook(w http.ResponseWriter, r *http.Request) {
	var req FitnessWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ExternalID == "" {
		writeError(w, http.StatusBadRequest, "external_id is required", nil)
		return
	}

	// Redelivery updates the existing activity, so the usage-cap count
	// must exclude it, exactly like an edit.
	var editing challenge.ActivityID
	existing, err := h.Store.ActivityByExternalID(r.Context(),
		challenge.ChallengeID(req.ChallengeID), req.ExternalID)
	switch {
	case err == nil:
		editing = existing.ID
	case challenge.IsNotFound(err):
	default:
		writeError(w, http.StatusInternalServerError, "Failed to look up external ID", err)
		return
	}

	in, ok := h.buildLogInput(w, r, LogActivityRequest{
		UserID:      req.UserID,
		ChallengeID: req.ChallengeID,
		TypeID:      req.TypeID,
		Date:        req.Date,
		Metrics:     req.Metrics,
	}, editing)
	if !ok {
		return
	}
	in.ExternalID = req.ExternalID

	a, err := h.Engine.UpsertExternal(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(a))
}

// =============================================================================
// HOST-SIDE VALIDATION
// =============================================================================

// buildLogInput runs every host-side gate and assembles the engine input.
// On failure it writes the error response and reports !ok. editing names
// the activity being edited so cap counting can exclude it.
func (h *Handler) buildLogInput(w http.ResponseWriter, r *http.Request, req LogActivityRequest, editing challenge.ActivityID) (challenge.LogInput, bool) {
	var in challenge.LogInput

	if req.UserID == "" || req.ChallengeID == "" || req.TypeID == "" {
		writeError(w, http.StatusBadRequest, "user_id, challenge_id, and type_id are required", nil)
		return in, false
	}

	date, err := challenge.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return in, false
	}

	ctx := r.Context()
	userID := challenge.UserID(req.UserID)
	challengeID := challenge.ChallengeID(req.ChallengeID)

	ch, err := h.Store.ChallengeByID(ctx, challengeID)
	if err != nil {
		writeNotFoundOr500(w, "Challenge not found", err)
		return in, false
	}
	if !ch.Contains(date) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Date %s is outside the challenge period", date), nil)
		return in, false
	}

	// Enrollment and payment.
	p, err := h.Store.Participation(ctx, userID, challengeID)
	if err != nil {
		writeNotFoundOr500(w, "User is not enrolled in this challenge", err)
		return in, false
	}
	if ch.RequiresPayment && !p.Paid {
		writeError(w, http.StatusPaymentRequired, "Challenge requires payment", nil)
		return in, false
	}

	at, err := h.Store.ActivityTypeByID(ctx, challenge.ActivityTypeID(req.TypeID))
	if err != nil {
		writeNotFoundOr500(w, "Activity type not found", err)
		return in, false
	}
	if at.ChallengeID != challengeID {
		writeError(w, http.StatusBadRequest, "Activity type belongs to another challenge", nil)
		return in, false
	}

	// Week window.
	if at.ValidWeek != nil && ch.WeekOf(date) != *at.ValidWeek {
		writeError(w, http.StatusForbidden,
			fmt.Sprintf("Activity type %s is only valid in week %d", at.ID, *at.ValidWeek), nil)
		return in, false
	}

	// Per-challenge usage cap.
	if at.MaxPerChallenge != nil {
		count, err := h.countTypeUsage(ctx, userID, challengeID, at.ID, editing)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check usage cap", err)
			return in, false
		}
		if count >= *at.MaxPerChallenge {
			writeError(w, http.StatusForbidden,
				fmt.Sprintf("Activity type %s is capped at %d per challenge", at.ID, *at.MaxPerChallenge), nil)
			return in, false
		}
	}

	in = challenge.LogInput{
		UserID:           userID,
		ChallengeID:      challengeID,
		TypeID:           at.ID,
		Date:             date,
		Metrics:          scoring.Metrics(req.Metrics),
		SelectedBonuses:  req.SelectedBonuses,
		HasMedia:         req.HasMedia,
		RequestedVariant: req.Variant,
		ManualPoints:     req.ManualPoints,
	}
	return in, true
}

func (h *Handler) countTypeUsage(ctx context.Context, userID challenge.UserID, challengeID challenge.ChallengeID, typeID challenge.ActivityTypeID, exclude challenge.ActivityID) (int, error) {
	activities, err := h.Store.ActivitiesByParticipant(ctx, userID, challengeID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range activities {
		if a.TypeID == typeID && a.ID != exclude {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeNotFoundOr500(w http.ResponseWriter, message string, err error) {
	if challenge.IsNotFound(err) {
		writeError(w, http.StatusNotFound, message, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeEngineError(w http.ResponseWriter, err error) {
	var consistency *challenge.ConsistencyError
	switch {
	case errors.Is(err, challenge.ErrActivityDeleted):
		writeError(w, http.StatusBadRequest, "Activity is deleted", err)
	case challenge.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.As(err, &consistency):
		writeError(w, http.StatusInternalServerError, "Write aborted", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
