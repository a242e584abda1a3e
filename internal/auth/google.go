package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/storage"
	"calendar-chat/internal/tokens"
)

const stateCookie = "oauth_state"

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Scopes requested when linking a Google account. Calendar access plus
// enough identity to key the credential row.
var googleScopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/userinfo.email",
}

// GoogleConnector runs the authorization-code flow that links a Google
// account: it produces the initial credential row (access token, refresh
// token, expiry) that the token supervisor maintains from then on.
type GoogleConnector struct {
	config   *oauth2.Config
	store    storage.CredentialStore
	sessions *Sessions
	logger   logging.Logger
}

// NewGoogleConnector wires the connect flow
func NewGoogleConnector(clientID, clientSecret, redirectURL string, store storage.CredentialStore, sessions *Sessions) *GoogleConnector {
	return &GoogleConnector{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       googleScopes,
			Endpoint:     google.Endpoint,
		},
		store:    store,
		sessions: sessions,
		logger:   logging.GetGlobalLogger(),
	}
}

// HandleLogin starts the flow: sets an anti-forgery state cookie and sends
// the browser to Google's consent screen. Offline access plus forced
// consent guarantees Google returns a refresh token, which the token
// lifecycle cannot work without.
func (g *GoogleConnector) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := randomState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	authURL := g.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback finishes the flow: verifies state, exchanges the code,
// stores the credential and logs the browser in.
func (g *GoogleConnector) HandleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	token, err := g.config.Exchange(r.Context(), code)
	if err != nil {
		g.logger.Error("OAuth code exchange failed", err)
		http.Error(w, "authorization failed", http.StatusBadGateway)
		return
	}
	if token.RefreshToken == "" {
		// Without a refresh token every future expiry is terminal. Refuse
		// the link so the user retries with consent.
		http.Error(w, "Google did not grant offline access, please retry", http.StatusBadGateway)
		return
	}

	userID, err := g.fetchUserID(r.Context(), token)
	if err != nil {
		g.logger.Error("Failed to resolve Google identity", err)
		http.Error(w, "authorization failed", http.StatusBadGateway)
		return
	}

	cred := &storage.Credential{
		UserID:       userID,
		Provider:     tokens.ProviderGoogle,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
	if err := g.store.UpsertCredential(r.Context(), cred); err != nil {
		g.logger.Error("Failed to store credential", err,
			logging.Field{Key: "user_id", Value: userID},
		)
		http.Error(w, "failed to store credentials", http.StatusInternalServerError)
		return
	}

	session, err := g.sessions.Issue(userID)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	g.sessions.SetCookie(w, session)

	g.logger.Info("Google account linked",
		logging.Field{Key: "user_id", Value: userID},
	)
	http.Redirect(w, r, "/", http.StatusFound)
}

// fetchUserID resolves the stable identity behind the token. The Google
// account ID keys the credential row; email changes, the ID does not.
func (g *GoogleConnector) fetchUserID(ctx context.Context, token *oauth2.Token) (string, error) {
	client := g.config.Client(ctx, token)
	resp, err := client.Get(userinfoURL)
	if err != nil {
		return "", errors.ConnectionError("userinfo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.UpstreamError("userinfo request rejected", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", errors.ConnectionError("failed to read userinfo response", err)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &info); err != nil || info.ID == "" {
		return "", errors.InternalError("failed to decode userinfo response", err)
	}
	return info.ID, nil
}

func randomState() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
