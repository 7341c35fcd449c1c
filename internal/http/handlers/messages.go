package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pushdeck/agent/internal/inbox"
	"github.com/pushdeck/agent/internal/model"
)

// defaultQueryDays matches the widest range the UI offers.
const defaultQueryDays = 7

// MessagesHandler serves the local inbox and the webhook inbound path.
type MessagesHandler struct {
	cache *inbox.Cache
}

// NewMessagesHandler creates the message endpoints.
func NewMessagesHandler(cache *inbox.Cache) *MessagesHandler {
	return &MessagesHandler{cache: cache}
}

// HandleList handles GET /messages?days=N
func (h *MessagesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	days := defaultQueryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}

	messages, err := h.cache.Query(r.Context(), days)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// HandleMarkRead handles POST /messages/{id}/read
func (h *MessagesHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "message id is required")
		return
	}

	if err := h.cache.MarkRead(r.Context(), id); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to update message")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

// HandleUnreadCount handles GET /messages/unread_count
func (h *MessagesHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.cache.Unread(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// HandleNotification handles POST /notifications, the webhook inbound path.
// It mirrors what the NATS listener does for broker-delivered messages.
func (h *MessagesHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	var n model.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Body) == "" {
		respondWithError(w, http.StatusBadRequest, "notification has no content")
		return
	}

	msg, err := h.cache.Append(r.Context(), n)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to store notification")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
