package tokens

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-chat/internal/common/errors"
)

func newTestRefresher(t *testing.T, tokenURL string) *Refresher {
	t.Helper()
	r, err := NewRefresher(RefresherConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenURL,
	}, nil)
	require.NoError(t, err)
	return r
}

func TestNewRefresherValidation(t *testing.T) {
	tests := []struct {
		name   string
		config RefresherConfig
	}{
		{"missing client id", RefresherConfig{ClientSecret: "s", TokenURL: "http://t"}},
		{"missing client secret", RefresherConfig{ClientID: "c", TokenURL: "http://t"}},
		{"missing token url", RefresherConfig{ClientID: "c", ClientSecret: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRefresher(tt.config, nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
		})
	}
}

func TestRefreshSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-new","expires_in":3599,"token_type":"Bearer"}`))
	}))
	defer server.Close()

	r := newTestRefresher(t, server.URL)
	result, err := r.Refresh(context.Background(), "rt-1")

	require.NoError(t, err)
	assert.Equal(t, "at-new", result.AccessToken)
	assert.Equal(t, 3599, result.ExpiresIn)
}

func TestRefreshOmittedExpiresIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"at-new"}`))
	}))
	defer server.Close()

	r := newTestRefresher(t, server.URL)
	result, err := r.Refresh(context.Background(), "rt-1")

	require.NoError(t, err)
	assert.Equal(t, "at-new", result.AccessToken)
	assert.Zero(t, result.ExpiresIn)
}

func TestRefreshProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been revoked"}`))
	}))
	defer server.Close()

	r := newTestRefresher(t, server.URL)
	_, err := r.Refresh(context.Background(), "rt-revoked")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeRefreshFailed))
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.True(t, errors.NeedsReauth(err))
}

func TestRefreshMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scope":"calendar"}`))
	}))
	defer server.Close()

	r := newTestRefresher(t, server.URL)
	_, err := r.Refresh(context.Background(), "rt-1")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeRefreshFailed))
}

func TestRefreshTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	r := newTestRefresher(t, server.URL)
	_, err := r.Refresh(context.Background(), "rt-1")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeRefreshFailed))
}

func TestRefreshEmptyRefreshToken(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	r := newTestRefresher(t, server.URL)
	_, err := r.Refresh(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeMissingToken))
	assert.False(t, called, "empty refresh token must not reach the provider")
}
