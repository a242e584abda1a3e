// Package postgres implements storage.Storage on PostgreSQL via pgx's
// database/sql driver. Use this backend for multi-instance deployments.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/storage"
)

// Adapter implements storage.Storage backed by PostgreSQL
type Adapter struct {
	db *sql.DB
}

// NewAdapter connects to PostgreSQL and runs migrations
func NewAdapter(dsn string) (*Adapter, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Adapter{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return a, nil
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (user_id, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_user ON threads(user_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			tool_calls TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// FindCredential returns the credential row, or nil if absent
func (a *Adapter) FindCredential(ctx context.Context, userID, provider string) (*storage.Credential, error) {
	cred := &storage.Credential{UserID: userID, Provider: provider}
	err := a.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM credentials WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	).Scan(&cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.InternalError("failed to load credential", err)
	}
	return cred, nil
}

// UpsertCredential creates or replaces the credential row
func (a *Adapter) UpsertCredential(ctx context.Context, cred *storage.Credential) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, provider, access_token, refresh_token, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		cred.UserID, cred.Provider, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt,
	)
	if err != nil {
		return errors.InternalError("failed to upsert credential", err)
	}
	return nil
}

// UpdateCredentialTokens atomically sets access token and expiry in one row update
func (a *Adapter) UpdateCredentialTokens(ctx context.Context, userID, provider, accessToken string, expiresAt int64) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE credentials SET access_token = $1, expires_at = $2, updated_at = NOW()
		 WHERE user_id = $3 AND provider = $4`,
		accessToken, expiresAt, userID, provider,
	)
	if err != nil {
		return errors.InternalError("failed to update credential tokens", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFoundError("credential")
	}
	return nil
}

// SetExpiry overwrites only the expiry timestamp
func (a *Adapter) SetExpiry(ctx context.Context, userID, provider string, expiresAt int64) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE credentials SET expires_at = $1, updated_at = NOW()
		 WHERE user_id = $2 AND provider = $3`,
		expiresAt, userID, provider,
	)
	if err != nil {
		return errors.InternalError("failed to set credential expiry", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFoundError("credential")
	}
	return nil
}

// ListExpiringCredentials returns credentials expiring at or before the cutoff
func (a *Adapter) ListExpiringCredentials(ctx context.Context, before int64) ([]*storage.Credential, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT user_id, provider, access_token, refresh_token, expires_at
		 FROM credentials WHERE expires_at <= $1`,
		before,
	)
	if err != nil {
		return nil, errors.InternalError("failed to list expiring credentials", err)
	}
	defer rows.Close()

	var creds []*storage.Credential
	for rows.Next() {
		cred := &storage.Credential{}
		if err := rows.Scan(&cred.UserID, &cred.Provider, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt); err != nil {
			return nil, errors.InternalError("failed to scan credential", err)
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// CreateThread stores a new thread
func (a *Adapter) CreateThread(ctx context.Context, thread *storage.Thread) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO threads (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		thread.ID, thread.UserID, thread.Title, thread.CreatedAt, thread.UpdatedAt,
	)
	if err != nil {
		return errors.InternalError("failed to create thread", err)
	}
	return nil
}

// GetThread returns a thread by ID
func (a *Adapter) GetThread(ctx context.Context, id string) (*storage.Thread, error) {
	thread := &storage.Thread{}
	err := a.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM threads WHERE id = $1`, id,
	).Scan(&thread.ID, &thread.UserID, &thread.Title, &thread.CreatedAt, &thread.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundError("thread")
	}
	if err != nil {
		return nil, errors.InternalError("failed to load thread", err)
	}
	return thread, nil
}

// ListThreads returns a user's threads, most recently updated first
func (a *Adapter) ListThreads(ctx context.Context, userID string) ([]*storage.Thread, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM threads
		 WHERE user_id = $1 ORDER BY updated_at DESC`, userID,
	)
	if err != nil {
		return nil, errors.InternalError("failed to list threads", err)
	}
	defer rows.Close()

	var threads []*storage.Thread
	for rows.Next() {
		thread := &storage.Thread{}
		if err := rows.Scan(&thread.ID, &thread.UserID, &thread.Title, &thread.CreatedAt, &thread.UpdatedAt); err != nil {
			return nil, errors.InternalError("failed to scan thread", err)
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

// RenameThread updates a thread's title
func (a *Adapter) RenameThread(ctx context.Context, id, title string) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE threads SET title = $1, updated_at = NOW() WHERE id = $2`, title, id,
	)
	if err != nil {
		return errors.InternalError("failed to rename thread", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFoundError("thread")
	}
	return nil
}

// DeleteThread removes a thread; messages cascade
func (a *Adapter) DeleteThread(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		return errors.InternalError("failed to delete thread", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.NotFoundError("thread")
	}
	return nil
}

// AppendMessage adds a message and bumps the thread's updated_at
func (a *Adapter) AppendMessage(ctx context.Context, message *storage.Message) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.InternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, tool_calls, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		message.ID, message.ThreadID, message.Role, message.Content, message.ToolCalls, message.CreatedAt,
	); err != nil {
		return errors.InternalError("failed to append message", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = $1 WHERE id = $2`, message.CreatedAt, message.ThreadID,
	); err != nil {
		return errors.InternalError("failed to touch thread", err)
	}
	return tx.Commit()
}

// ListMessages returns a thread's messages in chronological order
func (a *Adapter) ListMessages(ctx context.Context, threadID string) ([]*storage.Message, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, tool_calls, created_at FROM messages
		 WHERE thread_id = $1 ORDER BY created_at ASC`, threadID,
	)
	if err != nil {
		return nil, errors.InternalError("failed to list messages", err)
	}
	defer rows.Close()

	var messages []*storage.Message
	for rows.Next() {
		msg := &storage.Message{}
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Role, &msg.Content, &msg.ToolCalls, &msg.CreatedAt); err != nil {
			return nil, errors.InternalError("failed to scan message", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Health pings the database
func (a *Adapter) Health() error {
	return a.db.Ping()
}

// Close closes the database connection
func (a *Adapter) Close() error {
	return a.db.Close()
}
