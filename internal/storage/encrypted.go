package storage

import (
	"context"

	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/crypto"
)

// EncryptedCredentials wraps a CredentialStore and encrypts access and
// refresh tokens before they reach the backend. Callers always see
// plaintext tokens; the backend only ever sees ciphertext.
type EncryptedCredentials struct {
	inner     CredentialStore
	encryptor *crypto.TokenEncryptor
}

// NewEncryptedCredentials wraps the given store with token encryption
func NewEncryptedCredentials(inner CredentialStore, encryptor *crypto.TokenEncryptor) *EncryptedCredentials {
	return &EncryptedCredentials{inner: inner, encryptor: encryptor}
}

// FindCredential loads and decrypts a credential
func (e *EncryptedCredentials) FindCredential(ctx context.Context, userID, provider string) (*Credential, error) {
	cred, err := e.inner.FindCredential(ctx, userID, provider)
	if err != nil || cred == nil {
		return cred, err
	}

	accessToken, err := e.encryptor.Decrypt(cred.AccessToken)
	if err != nil {
		return nil, errors.InternalError("failed to decrypt access token", err)
	}
	refreshToken, err := e.encryptor.Decrypt(cred.RefreshToken)
	if err != nil {
		return nil, errors.InternalError("failed to decrypt refresh token", err)
	}

	cred.AccessToken = accessToken
	cred.RefreshToken = refreshToken
	return cred, nil
}

// UpsertCredential encrypts tokens and stores the credential
func (e *EncryptedCredentials) UpsertCredential(ctx context.Context, cred *Credential) error {
	accessToken, err := e.encryptor.Encrypt(cred.AccessToken)
	if err != nil {
		return errors.InternalError("failed to encrypt access token", err)
	}
	refreshToken, err := e.encryptor.Encrypt(cred.RefreshToken)
	if err != nil {
		return errors.InternalError("failed to encrypt refresh token", err)
	}

	stored := *cred
	stored.AccessToken = accessToken
	stored.RefreshToken = refreshToken
	return e.inner.UpsertCredential(ctx, &stored)
}

// UpdateCredentialTokens encrypts the new access token before the atomic update
func (e *EncryptedCredentials) UpdateCredentialTokens(ctx context.Context, userID, provider, accessToken string, expiresAt int64) error {
	encrypted, err := e.encryptor.Encrypt(accessToken)
	if err != nil {
		return errors.InternalError("failed to encrypt access token", err)
	}
	return e.inner.UpdateCredentialTokens(ctx, userID, provider, encrypted, expiresAt)
}

// SetExpiry passes through; the expiry timestamp is not sensitive
func (e *EncryptedCredentials) SetExpiry(ctx context.Context, userID, provider string, expiresAt int64) error {
	return e.inner.SetExpiry(ctx, userID, provider, expiresAt)
}

// ListExpiringCredentials loads and decrypts expiring credentials
func (e *EncryptedCredentials) ListExpiringCredentials(ctx context.Context, before int64) ([]*Credential, error) {
	creds, err := e.inner.ListExpiringCredentials(ctx, before)
	if err != nil {
		return nil, err
	}

	for _, cred := range creds {
		accessToken, err := e.encryptor.Decrypt(cred.AccessToken)
		if err != nil {
			return nil, errors.InternalError("failed to decrypt access token", err)
		}
		refreshToken, err := e.encryptor.Decrypt(cred.RefreshToken)
		if err != nil {
			return nil, errors.InternalError("failed to decrypt refresh token", err)
		}
		cred.AccessToken = accessToken
		cred.RefreshToken = refreshToken
	}
	return creds, nil
}

// encryptedStorage is a full Storage whose credential operations go through
// the encryption decorator while everything else passes through.
type encryptedStorage struct {
	Storage
	creds *EncryptedCredentials
}

// WithEncryption returns a Storage identical to inner except that stored
// OAuth tokens are encrypted at rest.
func WithEncryption(inner Storage, encryptor *crypto.TokenEncryptor) Storage {
	return &encryptedStorage{
		Storage: inner,
		creds:   NewEncryptedCredentials(inner, encryptor),
	}
}

func (s *encryptedStorage) FindCredential(ctx context.Context, userID, provider string) (*Credential, error) {
	return s.creds.FindCredential(ctx, userID, provider)
}

func (s *encryptedStorage) UpsertCredential(ctx context.Context, cred *Credential) error {
	return s.creds.UpsertCredential(ctx, cred)
}

func (s *encryptedStorage) UpdateCredentialTokens(ctx context.Context, userID, provider, accessToken string, expiresAt int64) error {
	return s.creds.UpdateCredentialTokens(ctx, userID, provider, accessToken, expiresAt)
}

func (s *encryptedStorage) SetExpiry(ctx context.Context, userID, provider string, expiresAt int64) error {
	return s.creds.SetExpiry(ctx, userID, provider, expiresAt)
}

func (s *encryptedStorage) ListExpiringCredentials(ctx context.Context, before int64) ([]*Credential, error) {
	return s.creds.ListExpiringCredentials(ctx, before)
}
