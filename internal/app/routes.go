package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"calendar-chat/internal/handlers"
	"calendar-chat/internal/middleware"
	"calendar-chat/internal/ratelimit"
)

// SetupRoutes configures the HTTP surface
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authMiddleware func(http.Handler) http.Handler, limiter *ratelimit.Limiter) {
	router.Use(middleware.Logging)

	// Connect flow and health need no session.
	router.HandleFunc("/auth/google/login", h.HandleLogin).Methods("GET")
	router.HandleFunc("/auth/google/callback", h.HandleCallback).Methods("GET")
	router.HandleFunc("/auth/logout", h.HandleLogout).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Everything under /api requires a session.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)
	if limiter != nil {
		api.Use(ratelimit.Middleware(limiter))
	}

	api.HandleFunc("/me", h.HandleMe).Methods("GET")

	// Conversation threads.
	api.HandleFunc("/threads", h.ListThreads).Methods("GET")
	api.HandleFunc("/threads", h.CreateThread).Methods("POST")
	api.HandleFunc("/threads/{id}", h.GetThread).Methods("GET")
	api.HandleFunc("/threads/{id}", h.RenameThread).Methods("PUT")
	api.HandleFunc("/threads/{id}", h.DeleteThread).Methods("DELETE")
	api.HandleFunc("/threads/{id}/messages", h.SendMessage).Methods("POST")

	// Direct calendar access for the calendar pane.
	api.HandleFunc("/calendar/events", h.ListEvents).Methods("GET")
	api.HandleFunc("/calendar/events", h.CreateEvent).Methods("POST")
	api.HandleFunc("/calendar/events/{id}", h.UpdateEvent).Methods("PATCH")
	api.HandleFunc("/calendar/events/{id}", h.DeleteEvent).Methods("DELETE")
	api.HandleFunc("/calendar/calendars", h.ListCalendars).Methods("GET")
	api.HandleFunc("/calendar/export.ics", h.ExportICS).Methods("GET")
}
