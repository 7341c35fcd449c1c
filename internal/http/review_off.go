//go:build !review

package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/pushdeck/agent/internal/http/handlers"
)

// reviewRoutes is a no-op in production builds; the review bypass endpoint
// only exists under the review tag.
func reviewRoutes(chi.Router, *handlers.AuthHandler) {}
