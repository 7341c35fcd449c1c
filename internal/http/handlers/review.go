//go:build review

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// reviewBypassRequest is the body for POST /auth/review_bypass
type reviewBypassRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleReviewBypass handles POST /auth/review_bypass. The route is only
// registered in builds made with the review tag.
func (h *AuthHandler) HandleReviewBypass(w http.ResponseWriter, r *http.Request) {
	var req reviewBypassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	if err := h.flow.ReviewBypass(r.Context(), req.Email, req.Code); err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "device_registered"})
}
