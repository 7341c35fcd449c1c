package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pushdeck/agent/internal/kv"
)

type contextKey string

const emailKey contextKey = "email"

// SessionRequired gates endpoints that need a completed login. A session
// exists when a device_id is on record; the persisted email is attached to
// the request context for the handler.
func SessionRequired(store kv.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := store.Get(r.Context(), kv.KeyDeviceID); err != nil {
				if errors.Is(err, kv.ErrNotFound) {
					respondWithError(w, http.StatusUnauthorized, "not logged in")
					return
				}
				respondWithError(w, http.StatusInternalServerError, "session lookup failed")
				return
			}

			email, err := store.Get(r.Context(), kv.KeyEmail)
			if err != nil {
				// device_id without email: crashed mid-registration, treat
				// as logged out and let the UI resume from code entry
				respondWithError(w, http.StatusUnauthorized, "not logged in")
				return
			}

			ctx := context.WithValue(r.Context(), emailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionEmail returns the email attached by SessionRequired.
func SessionEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
