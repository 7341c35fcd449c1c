//go:build review

package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/pushdeck/agent/internal/http/handlers"
)

// reviewRoutes registers the app-store review bypass endpoint.
func reviewRoutes(r chi.Router, authHandler *handlers.AuthHandler) {
	r.Post("/review_bypass", authHandler.HandleReviewBypass)
}
