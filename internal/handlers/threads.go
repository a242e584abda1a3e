package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"calendar-chat/internal/auth"
)

type createThreadRequest struct {
	Title string `json:"title"`
}

type renameThreadRequest struct {
	Title string `json:"title"`
}

// CreateThread starts a new conversation
func (h *Handlers) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	thread, err := h.chat.CreateThread(r.Context(), auth.UserID(r.Context()), req.Title)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, thread)
}

// ListThreads returns the user's conversations
func (h *Handlers) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.chat.ListThreads(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, threads)
}

// GetThread returns one thread with its messages
func (h *Handlers) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	userID := auth.UserID(r.Context())

	thread, err := h.chat.GetThread(r.Context(), userID, threadID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	messages, err := h.chat.History(r.Context(), userID, threadID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"thread":   thread,
		"messages": messages,
	})
}

// RenameThread changes a thread title
func (h *Handlers) RenameThread(w http.ResponseWriter, r *http.Request) {
	var req renameThreadRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.chat.RenameThread(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"], req.Title); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// DeleteThread removes a thread and its messages
func (h *Handlers) DeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteThread(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
