package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"calendar-chat/internal/auth"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage posts a user message to a thread and returns the assistant's
// reply once any tool calls have run.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	reply, err := h.chat.SendMessage(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"], req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}
