// Package storage defines the persistence contract for the calendar chat
// assistant: one OAuth credential row per (user, provider), plus chat
// threads and messages.
package storage

import (
	"context"
	"time"
)

// Credential is the persisted OAuth token pair for one user and provider.
//
// ExpiresAt is the absolute epoch-seconds expiry of the access token; zero
// means unknown and is treated as already expired. RefreshToken is set once
// at the initial grant and never rewritten by the refresh flow.
type Credential struct {
	UserID       string `json:"user_id"`
	Provider     string `json:"provider"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Thread is one chat conversation owned by a user
type Thread struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one chat message inside a thread. Role is "user", "assistant"
// or "tool"; ToolCalls holds the serialized tool-call payload for assistant
// messages that requested tools.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ToolCalls string    `json:"tool_calls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialStore provides typed access to persisted OAuth credentials.
//
// UpdateCredentialTokens persists a new access token and expiry together as
// one atomic row update; it must never touch the refresh token. SetExpiry
// overwrites only the expiry column and exists for forced expiry after an
// out-of-band 401.
type CredentialStore interface {
	// FindCredential returns the credential for (userID, provider), or nil
	// if the user never linked the provider.
	FindCredential(ctx context.Context, userID, provider string) (*Credential, error)
	// UpsertCredential creates or replaces the credential row. Used by the
	// initial authorization callback, never by the refresh flow.
	UpsertCredential(ctx context.Context, cred *Credential) error
	// UpdateCredentialTokens atomically sets accessToken and expiresAt.
	UpdateCredentialTokens(ctx context.Context, userID, provider, accessToken string, expiresAt int64) error
	// SetExpiry overwrites only the expiry timestamp.
	SetExpiry(ctx context.Context, userID, provider string, expiresAt int64) error
	// ListExpiringCredentials returns credentials whose expiry is at or
	// before the given epoch-seconds cutoff, for the proactive sweep.
	ListExpiringCredentials(ctx context.Context, before int64) ([]*Credential, error)
}

// ChatStore persists threads and messages
type ChatStore interface {
	CreateThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id string) (*Thread, error)
	ListThreads(ctx context.Context, userID string) ([]*Thread, error)
	RenameThread(ctx context.Context, id, title string) error
	DeleteThread(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, threadID string) ([]*Message, error)
}

// Storage is the full persistence contract
type Storage interface {
	CredentialStore
	ChatStore

	Health() error
	Close() error
}
