package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pushdeck/agent/internal/api"
	"github.com/pushdeck/agent/internal/auth"
	"github.com/pushdeck/agent/internal/device"
	"github.com/pushdeck/agent/internal/inbox"
	"github.com/pushdeck/agent/internal/middleware"
)

// AuthHandler exposes the login flow to the UI shell.
type AuthHandler struct {
	flow           *auth.Flow
	cache          *inbox.Cache
	backend        *api.Client
	requestLimiter *middleware.RateLimiter
	verifyLimiter  *middleware.RateLimiter
}

// NewAuthHandler creates the auth endpoints. The limiters guard the OTP
// provider: 5 code requests and 10 verifies per 10 minutes per client.
func NewAuthHandler(flow *auth.Flow, cache *inbox.Cache, backend *api.Client) *AuthHandler {
	return &AuthHandler{
		flow:           flow,
		cache:          cache,
		backend:        backend,
		requestLimiter: middleware.NewRateLimiter(10*time.Minute, 5),
		verifyLimiter:  middleware.NewRateLimiter(10*time.Minute, 10),
	}
}

// requestCodeRequest is the body for POST /auth/request_code
type requestCodeRequest struct {
	Email string `json:"email"`
}

// verifyCodeRequest is the body for POST /auth/verify_code
type verifyCodeRequest struct {
	Code string `json:"code"`
}

// HandleRequestCode handles POST /auth/request_code
func (h *AuthHandler) HandleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	if !h.requestLimiter.Allow(middleware.ClientKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if err := h.flow.RequestCode(r.Context(), req.Email); err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "code_sent"})
}

// HandleVerifyCode handles POST /auth/verify_code
func (h *AuthHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "code is required")
		return
	}

	if !h.verifyLimiter.Allow(middleware.ClientKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if err := h.flow.VerifyCode(r.Context(), req.Code); err != nil {
		respondAuthError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "code_verified"})
}

// HandleBindDevice handles POST /auth/bind_device
func (h *AuthHandler) HandleBindDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.BindDevice(r.Context()); err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "device_registered"})
}

// HandleStatus handles GET /auth/status. When a backend token is on record
// its expiry is reported so the UI can prompt re-login before the backend
// starts answering 401.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"logged_in": h.flow.LoggedIn(r.Context())}
	if expiry, err := h.backend.TokenExpiry(r.Context()); err == nil {
		status["token_expires_at"] = expiry.Format(time.RFC3339)
		status["token_expired"] = time.Now().After(expiry)
	}
	respondJSON(w, http.StatusOK, status)
}

// HandleLogout handles POST /auth/logout. The local message cache goes with
// the session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Logout(r.Context()); err != nil {
		respondAuthError(w, err)
		return
	}
	if err := h.cache.Clear(r.Context()); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to clear messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged_out"})
}

// respondAuthError maps flow errors onto HTTP statuses. Provider failures
// are 502 (the agent is a gateway to them), the device-identity timeout is
// 504 so the UI can suggest checking connectivity.
func respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInFlight):
		respondWithError(w, http.StatusConflict, "already_in_progress")
	case errors.Is(err, auth.ErrInvalidEmail):
		respondWithError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, auth.ErrMissingEmail), errors.Is(err, auth.ErrNotVerified):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCode):
		respondWithError(w, http.StatusUnauthorized, "invalid or expired code")
	case errors.Is(err, device.ErrUnavailable):
		respondWithError(w, http.StatusGatewayTimeout, "device identity unavailable, check connectivity")
	case errors.Is(err, auth.ErrCodeSend), errors.Is(err, auth.ErrVerify), errors.Is(err, auth.ErrRegistration):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
