package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pushdeck/agent/internal/api"
	"github.com/pushdeck/agent/internal/middleware"
	"github.com/pushdeck/agent/internal/model"
)

// SettingsHandler proxies notification preferences and tenant branding to
// the backend on behalf of the logged-in user.
type SettingsHandler struct {
	backend *api.Client
}

// NewSettingsHandler creates the settings endpoints.
func NewSettingsHandler(backend *api.Client) *SettingsHandler {
	return &SettingsHandler{backend: backend}
}

// HandleGet handles GET /settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.SessionEmail(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	settings, err := h.backend.Settings(r.Context(), email)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// HandlePut handles PUT /settings
func (h *SettingsHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.SessionEmail(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	var settings model.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.backend.SaveSettings(r.Context(), email, settings); err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "saved"})
}

// HandleCompany handles GET /company. Branding is public per tenant, no
// session needed.
func (h *SettingsHandler) HandleCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.backend.Company(r.Context())
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "failed to load company data")
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// respondBackendError maps backend client errors onto HTTP statuses.
func respondBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrTokenExpired), errors.Is(err, api.ErrNoToken):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	default:
		respondWithError(w, http.StatusBadGateway, err.Error())
	}
}
