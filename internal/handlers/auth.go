package handlers

import (
	"net/http"

	"calendar-chat/internal/auth"
	"calendar-chat/internal/tokens"
)

// HandleLogin starts the Google connect flow
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.connector.HandleLogin(w, r)
}

// HandleCallback finishes the Google connect flow
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	h.connector.HandleCallback(w, r)
}

// HandleLogout clears the session cookie
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// HandleMe reports the authenticated user and whether their Google account
// link is still usable.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	cred, err := h.storage.FindCredential(r.Context(), userID, tokens.ProviderGoogle)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":          userID,
		"google_connected": cred != nil && cred.RefreshToken != "",
	})
}
