package storage

import (
	"context"
	"sort"
	"sync"

	"calendar-chat/internal/common/errors"
)

// MemoryStorage is a thread-safe in-memory Storage implementation used for
// tests and development. All data is lost when the process stops.
type MemoryStorage struct {
	mu          sync.RWMutex
	credentials map[string]*Credential // key: userID + "/" + provider
	threads     map[string]*Thread
	messages    map[string][]*Message // key: threadID
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		credentials: make(map[string]*Credential),
		threads:     make(map[string]*Thread),
		messages:    make(map[string][]*Message),
	}
}

func credKey(userID, provider string) string {
	return userID + "/" + provider
}

// FindCredential returns a copy of the stored credential, or nil if absent
func (m *MemoryStorage) FindCredential(ctx context.Context, userID, provider string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.credentials[credKey(userID, provider)]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

// UpsertCredential creates or replaces a credential row
func (m *MemoryStorage) UpsertCredential(ctx context.Context, cred *Credential) error {
	if cred.UserID == "" || cred.Provider == "" {
		return errors.ValidationError("credential requires user_id and provider")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *cred
	m.credentials[credKey(cred.UserID, cred.Provider)] = &copied
	return nil
}

// UpdateCredentialTokens sets access token and expiry together
func (m *MemoryStorage) UpdateCredentialTokens(ctx context.Context, userID, provider, accessToken string, expiresAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.credentials[credKey(userID, provider)]
	if !ok {
		return errors.NotFoundError("credential")
	}
	cred.AccessToken = accessToken
	cred.ExpiresAt = expiresAt
	return nil
}

// SetExpiry overwrites only the expiry timestamp
func (m *MemoryStorage) SetExpiry(ctx context.Context, userID, provider string, expiresAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.credentials[credKey(userID, provider)]
	if !ok {
		return errors.NotFoundError("credential")
	}
	cred.ExpiresAt = expiresAt
	return nil
}

// ListExpiringCredentials returns credentials expiring at or before the cutoff
func (m *MemoryStorage) ListExpiringCredentials(ctx context.Context, before int64) ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Credential
	for _, cred := range m.credentials {
		if cred.ExpiresAt <= before {
			copied := *cred
			result = append(result, &copied)
		}
	}
	return result, nil
}

// CreateThread stores a new thread
func (m *MemoryStorage) CreateThread(ctx context.Context, thread *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.threads[thread.ID]; exists {
		return errors.ValidationError("thread already exists")
	}
	copied := *thread
	m.threads[thread.ID] = &copied
	return nil
}

// GetThread returns a thread by ID
func (m *MemoryStorage) GetThread(ctx context.Context, id string) (*Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	thread, ok := m.threads[id]
	if !ok {
		return nil, errors.NotFoundError("thread")
	}
	copied := *thread
	return &copied, nil
}

// ListThreads returns a user's threads, most recently updated first
func (m *MemoryStorage) ListThreads(ctx context.Context, userID string) ([]*Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Thread
	for _, thread := range m.threads {
		if thread.UserID == userID {
			copied := *thread
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// RenameThread updates a thread's title
func (m *MemoryStorage) RenameThread(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread, ok := m.threads[id]
	if !ok {
		return errors.NotFoundError("thread")
	}
	thread.Title = title
	return nil
}

// DeleteThread removes a thread and its messages
func (m *MemoryStorage) DeleteThread(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[id]; !ok {
		return errors.NotFoundError("thread")
	}
	delete(m.threads, id)
	delete(m.messages, id)
	return nil
}

// AppendMessage adds a message to a thread
func (m *MemoryStorage) AppendMessage(ctx context.Context, message *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread, ok := m.threads[message.ThreadID]
	if !ok {
		return errors.NotFoundError("thread")
	}
	copied := *message
	m.messages[message.ThreadID] = append(m.messages[message.ThreadID], &copied)
	thread.UpdatedAt = message.CreatedAt
	return nil
}

// ListMessages returns a thread's messages in insertion order
func (m *MemoryStorage) ListMessages(ctx context.Context, threadID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[threadID]
	result := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		copied := *msg
		result = append(result, &copied)
	}
	return result, nil
}

// Health always succeeds for in-memory storage
func (m *MemoryStorage) Health() error { return nil }

// Close is a no-op for in-memory storage
func (m *MemoryStorage) Close() error { return nil }
