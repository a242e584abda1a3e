// Package auth covers the two identity concerns of the service: browser
// sessions (signed JWT cookie) and linking a Google account to a user.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"calendar-chat/internal/common/errors"
)

// SessionCookie is the name of the browser session cookie
const SessionCookie = "session"

// SessionTTL is how long a login lasts
const SessionTTL = 24 * time.Hour

type contextKey string

const userIDKey contextKey = "user_id"

// Sessions mints and verifies the signed session tokens carried in the
// browser cookie. Sessions are stateless: logout is cookie deletion.
type Sessions struct {
	secret []byte
}

// NewSessions creates a session manager. The secret must be long enough to
// resist brute force; config validation enforces that upstream.
func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret)}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue mints a session token for the user
func (s *Sessions) Issue(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign session token", err)
	}
	return signed, nil
}

// Verify parses a session token and returns the user ID it vouches for
func (s *Sessions) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.AuthError("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.AuthError("invalid session")
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return "", errors.AuthError("invalid session")
	}
	return claims.Subject, nil
}

// SetCookie attaches the session cookie to the response
func (s *Sessions) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie logs the browser out
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuth rejects requests without a valid session and stores the user
// ID on the request context for handlers.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil {
			unauthorized(w)
			return
		}
		userID, err := s.Verify(cookie.Value)
		if err != nil {
			unauthorized(w)
			return
		}
		// Header mutation is visible to the outer logging middleware,
		// which only sees the original request.
		r.Header.Set("X-User-ID", userID)
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID stores the authenticated user ID on the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user ID, or "" when unauthenticated
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication required"}`))
}
