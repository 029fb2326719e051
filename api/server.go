/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/challenges/*   Challenge, type, achievement, participation management
  /api/activities/*   Activity logging, editing, deletion
  /api/webhooks/*     Fitness-service ingestion

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Challenge routes
		r.Route("/challenges", func(r chi.Router) {
			r.Post("/", h.CreateChallenge)
			r.Get("/{id}", h.GetChallenge)
			r.Post("/{id}/types", h.CreateActivityType)
			r.Get("/{id}/types", h.ListActivityTypes)
			r.Post("/{id}/achievements", h.CreateAchievement)
			r.Post("/{id}/join", h.JoinChallenge)
			r.Get("/{id}/leaderboard", h.GetLeaderboard)
			r.Get("/{id}/participants/{userID}", h.GetParticipation)
			r.Get("/{id}/participants/{userID}/awards", h.GetAwards)
		})

		// Activity routes
		r.Route("/activities", func(r chi.Router) {
			r.Post("/", h.LogActivity)
			r.Get("/{id}", h.GetActivity)
			r.Put("/{id}", h.EditActivity)
			r.Delete("/{id}", h.DeleteActivity)
		})

		// Webhook routes
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/fitness", h.FitnessWebhook)
		})
	})

	return r
}
