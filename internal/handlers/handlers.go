// Package handlers holds the HTTP handlers for the chat and calendar API.
package handlers

import (
	"encoding/json"
	"net/http"

	"calendar-chat/internal/auth"
	"calendar-chat/internal/chat"
	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/gcal"
	"calendar-chat/internal/storage"
)

// Handlers bundles the services the HTTP surface dispatches to
type Handlers struct {
	storage   storage.Storage
	chat      *chat.Service
	calendar  *gcal.Client
	sessions  *auth.Sessions
	connector *auth.GoogleConnector
	logger    logging.Logger
}

// New wires the handler set
func New(store storage.Storage, chatSvc *chat.Service, calendarClient *gcal.Client, sessions *auth.Sessions, connector *auth.GoogleConnector) *Handlers {
	return &Handlers{
		storage:   store,
		chat:      chatSvc,
		calendar:  calendarClient,
		sessions:  sessions,
		connector: connector,
		logger:    logging.GetGlobalLogger(),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			h.logger.Warn("Failed to encode response",
				logging.Field{Key: "error", Value: err},
			)
		}
	}
}

type errorResponse struct {
	Error       string `json:"error"`
	Type        string `json:"type,omitempty"`
	NeedsReauth bool   `json:"needs_reauth,omitempty"`
}

// writeError maps service errors onto HTTP statuses. Token-lifecycle
// failures that only a re-authorization can fix are flagged so the client
// can send the user back through the connect flow instead of retrying.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal error"}

	switch {
	case errors.IsType(err, errors.ErrTypeValidation):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	case errors.IsType(err, errors.ErrTypeNotFound):
		status = http.StatusNotFound
		resp.Error = "not found"
	case errors.NeedsReauth(err):
		status = http.StatusUnauthorized
		resp.Error = err.Error()
		resp.NeedsReauth = true
	case errors.IsType(err, errors.ErrTypeUpstream), errors.IsType(err, errors.ErrTypeConnection):
		status = http.StatusBadGateway
		resp.Error = err.Error()
	case errors.IsType(err, errors.ErrTypeAuth):
		status = http.StatusUnauthorized
		resp.Error = err.Error()
	default:
		h.logger.Error("Unhandled error in request", err)
	}

	resp.Type = string(errors.GetType(err))
	h.writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ValidationError("invalid JSON body")
	}
	return nil
}
