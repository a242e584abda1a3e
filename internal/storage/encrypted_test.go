package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-chat/internal/crypto"
)

func newEncryptedStore(t *testing.T) (*EncryptedCredentials, *MemoryStorage) {
	t.Helper()
	encryptor, err := crypto.NewTokenEncryptor("test-key")
	require.NoError(t, err)
	inner := NewMemoryStorage()
	return NewEncryptedCredentials(inner, encryptor), inner
}

func TestEncryptedCredentials_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, inner := newEncryptedStore(t)

	require.NoError(t, store.UpsertCredential(ctx, &Credential{
		UserID:       "u1",
		Provider:     "google",
		AccessToken:  "plain-access",
		RefreshToken: "plain-refresh",
		ExpiresAt:    1000,
	}))

	// Backend holds ciphertext only
	raw, err := inner.FindCredential(ctx, "u1", "google")
	require.NoError(t, err)
	assert.NotEqual(t, "plain-access", raw.AccessToken)
	assert.NotEqual(t, "plain-refresh", raw.RefreshToken)

	// Callers see plaintext
	cred, err := store.FindCredential(ctx, "u1", "google")
	require.NoError(t, err)
	assert.Equal(t, "plain-access", cred.AccessToken)
	assert.Equal(t, "plain-refresh", cred.RefreshToken)
	assert.Equal(t, int64(1000), cred.ExpiresAt)
}

func TestEncryptedCredentials_UpdateTokens(t *testing.T) {
	ctx := context.Background()
	store, inner := newEncryptedStore(t)

	require.NoError(t, store.UpsertCredential(ctx, &Credential{
		UserID: "u1", Provider: "google", AccessToken: "old", RefreshToken: "R",
	}))

	require.NoError(t, store.UpdateCredentialTokens(ctx, "u1", "google", "new-access", 2000))

	raw, _ := inner.FindCredential(ctx, "u1", "google")
	assert.NotEqual(t, "new-access", raw.AccessToken)

	cred, err := store.FindCredential(ctx, "u1", "google")
	require.NoError(t, err)
	assert.Equal(t, "new-access", cred.AccessToken)
	assert.Equal(t, "R", cred.RefreshToken, "refresh token untouched by token update")
}

func TestEncryptedCredentials_MissingPassesThrough(t *testing.T) {
	ctx := context.Background()
	store, _ := newEncryptedStore(t)

	cred, err := store.FindCredential(ctx, "nobody", "google")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestEncryptedCredentials_ListExpiring(t *testing.T) {
	ctx := context.Background()
	store, _ := newEncryptedStore(t)

	require.NoError(t, store.UpsertCredential(ctx, &Credential{
		UserID: "u1", Provider: "google", AccessToken: "A", RefreshToken: "R", ExpiresAt: 10,
	}))

	creds, err := store.ListExpiringCredentials(ctx, 100)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "A", creds[0].AccessToken)
	assert.Equal(t, "R", creds[0].RefreshToken)
}
