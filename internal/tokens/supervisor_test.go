package tokens

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/storage"
)

type stubRefresher struct {
	calls  int
	result *RefreshResult
	err    error
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubLocker struct {
	acquired   bool
	acquireErr error
	releases   int
	onAcquire  func()
}

func (l *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.onAcquire != nil {
		l.onAcquire()
	}
	return l.acquired, l.acquireErr
}

func (l *stubLocker) Release(ctx context.Context, key string) error {
	l.releases++
	return nil
}

func seedCredential(t *testing.T, store storage.CredentialStore, expiresAt int64) {
	t.Helper()
	err := store.UpsertCredential(context.Background(), &storage.Credential{
		UserID:       "user-1",
		Provider:     ProviderGoogle,
		AccessToken:  "at-old",
		RefreshToken: "rt-1",
		ExpiresAt:    expiresAt,
	})
	require.NoError(t, err)
}

func TestValidAccessTokenFreshNoWrite(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	seedCredential(t, store, time.Now().Add(30*time.Minute).Unix())

	sup := NewSupervisor(store, refresher)
	token, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "at-old", token)
	assert.Zero(t, refresher.calls, "fresh token must not trigger a refresh")

	cred, err := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "at-old", cred.AccessToken, "fresh path must not write")
}

func TestValidAccessTokenRefreshesExpired(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new", ExpiresIn: 120}}
	seedCredential(t, store, time.Now().Add(-time.Minute).Unix())

	sup := NewSupervisor(store, refresher)
	before := time.Now()
	token, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, 1, refresher.calls)

	cred, err := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "at-new", cred.AccessToken)
	assert.Equal(t, "rt-1", cred.RefreshToken, "refresh must never rotate the refresh token")

	// Provider reported 120s but the fixed window wins by default.
	wantLow := before.Add(DefaultValidityWindow).Unix() - 2
	wantHigh := time.Now().Add(DefaultValidityWindow).Unix() + 2
	assert.GreaterOrEqual(t, cred.ExpiresAt, wantLow)
	assert.LessOrEqual(t, cred.ExpiresAt, wantHigh)
}

func TestValidAccessTokenInsideBufferRefreshes(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	// Valid for 30 more seconds, inside the 60s safety buffer.
	seedCredential(t, store, time.Now().Add(30*time.Second).Unix())

	sup := NewSupervisor(store, refresher)
	token, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, 1, refresher.calls)
}

func TestValidAccessTokenZeroExpiryRefreshes(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	seedCredential(t, store, 0)

	sup := NewSupervisor(store, refresher)
	token, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
}

func TestValidAccessTokenNoAccount(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{}

	sup := NewSupervisor(store, refresher)
	_, err := sup.ValidAccessToken(context.Background(), "nobody")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNoAccount))
	assert.True(t, errors.NeedsReauth(err))
	assert.Zero(t, refresher.calls)
}

func TestValidAccessTokenMissingTokens(t *testing.T) {
	tests := []struct {
		name string
		cred storage.Credential
	}{
		{"no access token", storage.Credential{AccessToken: "", RefreshToken: "rt-1"}},
		{"no refresh token", storage.Credential{AccessToken: "at-1", RefreshToken: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			refresher := &stubRefresher{}
			cred := tt.cred
			cred.UserID = "user-1"
			cred.Provider = ProviderGoogle
			cred.ExpiresAt = time.Now().Add(time.Hour).Unix()
			require.NoError(t, store.UpsertCredential(context.Background(), &cred))

			sup := NewSupervisor(store, refresher)
			_, err := sup.ValidAccessToken(context.Background(), "user-1")

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeMissingToken))
			assert.Zero(t, refresher.calls)
		})
	}
}

func TestValidAccessTokenRefreshFailureLeavesStoreUntouched(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{err: errors.RefreshFailedError("provider said no", 400, nil)}
	expiresAt := time.Now().Add(-time.Minute).Unix()
	seedCredential(t, store, expiresAt)

	sup := NewSupervisor(store, refresher)
	_, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeRefreshFailed))

	cred, findErr := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, findErr)
	assert.Equal(t, "at-old", cred.AccessToken)
	assert.Equal(t, "rt-1", cred.RefreshToken)
	assert.Equal(t, expiresAt, cred.ExpiresAt)
}

func TestValidAccessTokenTrustProviderExpiry(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new", ExpiresIn: 120}}
	seedCredential(t, store, 0)

	sup := NewSupervisor(store, refresher, WithTrustProviderExpiry())
	_, err := sup.ValidAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	cred, err := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(120*time.Second).Unix(), cred.ExpiresAt, 2)
}

func TestValidAccessTokenCustomWindow(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	seedCredential(t, store, 0)

	sup := NewSupervisor(store, refresher, WithValidityWindow(10*time.Minute))
	_, err := sup.ValidAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	cred, err := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(10*time.Minute).Unix(), cred.ExpiresAt, 2)
}

func TestForceExpireCompelsRefresh(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	seedCredential(t, store, time.Now().Add(time.Hour).Unix())

	sup := NewSupervisor(store, refresher)
	require.NoError(t, sup.ForceExpire(context.Background(), "user-1"))

	cred, err := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, err)
	assert.Less(t, cred.ExpiresAt, time.Now().Unix())
	assert.Equal(t, "at-old", cred.AccessToken, "force-expire must only touch the expiry")

	token, err := sup.ValidAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, 1, refresher.calls)
}

func TestLockerSkipsRefreshWhenAlreadyRenewed(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-unwanted"}}
	seedCredential(t, store, time.Now().Add(-time.Minute).Unix())

	// Simulate a concurrent request renewing the credential while this one
	// waits on the lock.
	locker := &stubLocker{acquired: true}
	locker.onAcquire = func() {
		err := store.UpdateCredentialTokens(context.Background(), "user-1", ProviderGoogle,
			"at-renewed-elsewhere", time.Now().Add(time.Hour).Unix())
		require.NoError(t, err)
	}

	sup := NewSupervisor(store, refresher, WithLocker(locker))
	token, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "at-renewed-elsewhere", token)
	assert.Zero(t, refresher.calls, "re-check under the lock must avoid a duplicate refresh")
	assert.Equal(t, 1, locker.releases)
}

func TestLockerFailureFallsThroughToRefresh(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	seedCredential(t, store, time.Now().Add(-time.Minute).Unix())

	locker := &stubLocker{acquired: false, acquireErr: fmt.Errorf("redis down")}

	sup := NewSupervisor(store, refresher, WithLocker(locker))
	token, err := sup.ValidAccessToken(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "at-new", token)
	assert.Equal(t, 1, refresher.calls, "lock backend failure must not block the refresh")
	assert.Zero(t, locker.releases)
}

func TestRefreshNowIgnoresExpiry(t *testing.T) {
	store := storage.NewMemoryStorage()
	refresher := &stubRefresher{result: &RefreshResult{AccessToken: "at-new"}}
	seedCredential(t, store, time.Now().Add(time.Hour).Unix())

	sup := NewSupervisor(store, refresher)
	require.NoError(t, sup.RefreshNow(context.Background(), "user-1"))

	assert.Equal(t, 1, refresher.calls)
	cred, err := store.FindCredential(context.Background(), "user-1", ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "at-new", cred.AccessToken)
}
