package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pushdeck/agent/internal/http/handlers"
	"github.com/pushdeck/agent/internal/kv"
	"github.com/pushdeck/agent/internal/middleware"
)

// NewRouter wires the agent's local API.
func NewRouter(
	authHandler *handlers.AuthHandler,
	messagesHandler *handlers.MessagesHandler,
	settingsHandler *handlers.SettingsHandler,
	store kv.Store,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/request_code", authHandler.HandleRequestCode)
		r.Post("/verify_code", authHandler.HandleVerifyCode)
		r.Post("/bind_device", authHandler.HandleBindDevice)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/status", authHandler.HandleStatus)
		reviewRoutes(r, authHandler)
	})

	r.Route("/messages", func(r chi.Router) {
		r.Get("/", messagesHandler.HandleList)
		r.Get("/unread_count", messagesHandler.HandleUnreadCount)
		r.Post("/{id}/read", messagesHandler.HandleMarkRead)
	})

	r.Post("/notifications", messagesHandler.HandleNotification)
	r.Get("/company", settingsHandler.HandleCompany)

	// Backed by the product API; needs a completed login.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionRequired(store))
		r.Get("/settings", settingsHandler.HandleGet)
		r.Put("/settings", settingsHandler.HandlePut)
	})

	return r
}
