package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"calendar-chat/internal/app"
	"calendar-chat/internal/auth"
	"calendar-chat/internal/chat"
	"calendar-chat/internal/gcal"
	"calendar-chat/internal/handlers"
	"calendar-chat/internal/llm"
	"calendar-chat/internal/storage"
	"calendar-chat/internal/tokens"
	"calendar-chat/internal/tools"
)

const sessionSecret = "0123456789abcdef0123456789abcdef"

type staticRefresher struct{}

func (staticRefresher) Refresh(ctx context.Context, refreshToken string) (*tokens.RefreshResult, error) {
	return &tokens.RefreshResult{AccessToken: "at-refreshed"}, nil
}

type cannedCompleter struct {
	reply string
}

func (c cannedCompleter) Complete(ctx context.Context, messages []llm.Message, toolDefs []llm.Tool) (*llm.CompletionResult, error) {
	return &llm.CompletionResult{Content: c.reply}, nil
}

type testEnv struct {
	router   *mux.Router
	store    *storage.MemoryStorage
	sessions *auth.Sessions
}

// newTestEnv wires the real stack over in-memory storage and a fake
// Calendar API, with the model replaced by a canned reply.
func newTestEnv(t *testing.T, reply string) *testEnv {
	t.Helper()

	store := storage.NewMemoryStorage()
	supervisor := tokens.NewSupervisor(store, staticRefresher{})

	calendarAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/events") && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(&calendar.Events{Items: []*calendar.Event{
				{
					Id:      "evt-1",
					Summary: "standup",
					Start:   &calendar.EventDateTime{DateTime: "2026-09-01T09:00:00Z"},
					End:     &calendar.EventDateTime{DateTime: "2026-09-01T09:15:00Z"},
				},
			}})
		case strings.Contains(r.URL.Path, "calendarList"):
			json.NewEncoder(w).Encode(&calendar.CalendarList{Items: []*calendar.CalendarListEntry{
				{Id: "primary", Summary: "Work", Primary: true},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(calendarAPI.Close)

	client := gcal.NewClient(gcal.NewCaller(supervisor, calendarAPI.URL, nil))
	chatSvc := chat.NewService(store, cannedCompleter{reply: reply}, tools.NewExecutor(client))

	sessions := auth.NewSessions(sessionSecret)
	connector := auth.NewGoogleConnector("client-id", "client-secret",
		"http://localhost/auth/google/callback", store, sessions)

	h := handlers.New(store, chatSvc, client, sessions, connector)
	router := mux.NewRouter()
	app.SetupRoutes(router, h, sessions.RequireAuth, nil)

	return &testEnv{router: router, store: store, sessions: sessions}
}

func (e *testEnv) linkGoogle(t *testing.T, userID string) {
	t.Helper()
	err := e.store.UpsertCredential(context.Background(), &storage.Credential{
		UserID:       userID,
		Provider:     tokens.ProviderGoogle,
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
}

func (e *testEnv) do(t *testing.T, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		token, err := e.sessions.Issue(userID)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodGet, "/api/threads", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestThreadAndChatFlow(t *testing.T) {
	env := newTestEnv(t, "You have standup at 9am.")
	env.linkGoogle(t, "user-1")

	// Create a thread.
	rec := env.do(t, http.MethodPost, "/api/threads", `{"title":"Planning"}`, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var thread storage.Thread
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &thread))

	// Send a message, get the assistant reply.
	rec = env.do(t, http.MethodPost, "/api/threads/"+thread.ID+"/messages",
		`{"content":"What's on today?"}`, "user-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reply storage.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "You have standup at 9am.", reply.Content)

	// Thread detail includes both messages.
	rec = env.do(t, http.MethodGet, "/api/threads/"+thread.ID, "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Thread   storage.Thread     `json:"thread"`
		Messages []*storage.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Messages, 2)

	// Another user cannot see it.
	rec = env.do(t, http.MethodGet, "/api/threads/"+thread.ID, "", "user-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarEndpoints(t *testing.T) {
	env := newTestEnv(t, "")
	env.linkGoogle(t, "user-1")

	rec := env.do(t, http.MethodGet, "/api/calendar/events?timeMin=2026-09-01T00:00:00Z", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "standup")

	rec = env.do(t, http.MethodGet, "/api/calendar/calendars", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Work")

	rec = env.do(t, http.MethodGet, "/api/calendar/export.ics", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
}

func TestUnlinkedAccountNeedsReauth(t *testing.T) {
	env := newTestEnv(t, "")
	// Session exists but no Google credential was ever stored.

	rec := env.do(t, http.MethodGet, "/api/calendar/events", "", "user-1")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp struct {
		NeedsReauth bool   `json:"needs_reauth"`
		Type        string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.NeedsReauth)
	assert.Equal(t, "no_account", resp.Type)
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	env.linkGoogle(t, "user-1")

	rec := env.do(t, http.MethodGet, "/api/me", "", "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID          string `json:"user_id"`
		GoogleConnected bool   `json:"google_connected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.UserID)
	assert.True(t, resp.GoogleConnected)
}
