package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calendar-chat/internal/common/errors"
)

func TestMemoryStorage_Credentials(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	// Absent credential returns nil, nil
	cred, err := store.FindCredential(ctx, "u1", "google")
	require.NoError(t, err)
	assert.Nil(t, cred)

	// Upsert then find
	require.NoError(t, store.UpsertCredential(ctx, &Credential{
		UserID:       "u1",
		Provider:     "google",
		AccessToken:  "A",
		RefreshToken: "R",
		ExpiresAt:    1000,
	}))

	cred, err = store.FindCredential(ctx, "u1", "google")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "A", cred.AccessToken)
	assert.Equal(t, "R", cred.RefreshToken)
	assert.Equal(t, int64(1000), cred.ExpiresAt)

	// Token update changes access token and expiry but not refresh token
	require.NoError(t, store.UpdateCredentialTokens(ctx, "u1", "google", "B", 2000))
	cred, _ = store.FindCredential(ctx, "u1", "google")
	assert.Equal(t, "B", cred.AccessToken)
	assert.Equal(t, int64(2000), cred.ExpiresAt)
	assert.Equal(t, "R", cred.RefreshToken)

	// Forced expiry only moves the timestamp
	require.NoError(t, store.SetExpiry(ctx, "u1", "google", 1))
	cred, _ = store.FindCredential(ctx, "u1", "google")
	assert.Equal(t, int64(1), cred.ExpiresAt)
	assert.Equal(t, "B", cred.AccessToken)

	// Updates against a missing row fail typed
	err = store.UpdateCredentialTokens(ctx, "nobody", "google", "X", 1)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	err = store.SetExpiry(ctx, "nobody", "google", 1)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestMemoryStorage_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	require.NoError(t, store.UpsertCredential(ctx, &Credential{
		UserID: "u1", Provider: "google", AccessToken: "A", RefreshToken: "R",
	}))

	cred, _ := store.FindCredential(ctx, "u1", "google")
	cred.RefreshToken = "mutated"

	again, _ := store.FindCredential(ctx, "u1", "google")
	assert.Equal(t, "R", again.RefreshToken, "caller mutation must not leak into the store")
}

func TestMemoryStorage_ListExpiringCredentials(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	_ = store.UpsertCredential(ctx, &Credential{UserID: "soon", Provider: "google", RefreshToken: "R", ExpiresAt: 100})
	_ = store.UpsertCredential(ctx, &Credential{UserID: "later", Provider: "google", RefreshToken: "R", ExpiresAt: 10000})

	creds, err := store.ListExpiringCredentials(ctx, 500)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "soon", creds[0].UserID)
}

func TestMemoryStorage_Threads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	now := time.Now()

	require.NoError(t, store.CreateThread(ctx, &Thread{ID: "t1", UserID: "u1", Title: "first", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.CreateThread(ctx, &Thread{ID: "t2", UserID: "u1", Title: "second", CreatedAt: now, UpdatedAt: now.Add(time.Minute)}))
	require.NoError(t, store.CreateThread(ctx, &Thread{ID: "t3", UserID: "u2", Title: "other", CreatedAt: now, UpdatedAt: now}))

	threads, err := store.ListThreads(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "t2", threads[0].ID, "most recently updated first")

	require.NoError(t, store.RenameThread(ctx, "t1", "renamed"))
	thread, _ := store.GetThread(ctx, "t1")
	assert.Equal(t, "renamed", thread.Title)

	require.NoError(t, store.DeleteThread(ctx, "t1"))
	_, err = store.GetThread(ctx, "t1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestMemoryStorage_Messages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	now := time.Now()

	require.NoError(t, store.CreateThread(ctx, &Thread{ID: "t1", UserID: "u1", CreatedAt: now, UpdatedAt: now}))

	later := now.Add(time.Minute)
	require.NoError(t, store.AppendMessage(ctx, &Message{ID: "m1", ThreadID: "t1", Role: "user", Content: "hi", CreatedAt: now}))
	require.NoError(t, store.AppendMessage(ctx, &Message{ID: "m2", ThreadID: "t1", Role: "assistant", Content: "hello", CreatedAt: later}))

	msgs, err := store.ListMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)

	// Appending bumps the thread's UpdatedAt
	thread, _ := store.GetThread(ctx, "t1")
	assert.Equal(t, later, thread.UpdatedAt)

	// Messages for a missing thread fail
	err = store.AppendMessage(ctx, &Message{ID: "m3", ThreadID: "missing", Role: "user", CreatedAt: now})
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}
