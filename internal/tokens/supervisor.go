package tokens

import (
	"context"
	"time"

	"calendar-chat/internal/common/errors"
	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/storage"
)

// TokenSource yields a currently valid access token for a user. It is the
// only interface the API caller layer depends on.
type TokenSource interface {
	// ValidAccessToken returns an access token that is valid right now,
	// refreshing and persisting a renewal when the stored one is stale.
	ValidAccessToken(ctx context.Context, userID string) (string, error)
	// ForceExpire marks the stored credential as already expired so the
	// next ValidAccessToken call must refresh.
	ForceExpire(ctx context.Context, userID string) error
}

// TokenRefresher abstracts the refresh exchange for testability
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// Locker provides optional per-user mutual exclusion around the refresh
// exchange. A nil Locker (the default) accepts the concurrent double-refresh
// race: both refreshes succeed independently and last write wins, which is
// safe because Google access tokens are not single-use.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SupervisorOption customizes a Supervisor
type SupervisorOption func(*Supervisor)

// WithValidityWindow overrides the lifetime assigned to refreshed tokens
func WithValidityWindow(window time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.validityWindow = window
	}
}

// WithTrustProviderExpiry makes the Supervisor honor the provider-reported
// expires_in instead of the fixed validity window when the provider sent one
func WithTrustProviderExpiry() SupervisorOption {
	return func(s *Supervisor) {
		s.trustProviderExpiry = true
	}
}

// WithLocker enables single-flight refresh de-duplication per user
func WithLocker(locker Locker) SupervisorOption {
	return func(s *Supervisor) {
		s.locker = locker
	}
}

// Supervisor orchestrates the credential store, expiry evaluation and the
// refresh exchange to produce "a currently valid access token" for a user.
// At most one store write happens per call, and only on the renewal path.
type Supervisor struct {
	store     storage.CredentialStore
	refresher TokenRefresher
	provider  string
	logger    logging.Logger

	validityWindow      time.Duration
	trustProviderExpiry bool
	locker              Locker
}

// NewSupervisor creates a Supervisor for the fixed Google provider
func NewSupervisor(store storage.CredentialStore, refresher TokenRefresher, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		store:          store,
		refresher:      refresher,
		provider:       ProviderGoogle,
		logger:         logging.GetGlobalLogger(),
		validityWindow: DefaultValidityWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidAccessToken implements the token lifecycle:
//
//  1. Load the credential; a missing row fails with no_account, a row
//     without both tokens fails with missing_token. Neither performs any
//     network call.
//  2. A non-expired token is returned as-is with no store write.
//  3. An expired token triggers one refresh. Failure propagates without
//     mutating the store; success persists the new access token and expiry
//     together as one atomic update, then returns the new token.
func (s *Supervisor) ValidAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := s.store.FindCredential(ctx, userID, s.provider)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", errors.NoAccountError(s.provider)
	}
	if cred.AccessToken == "" || cred.RefreshToken == "" {
		return "", errors.MissingTokenError("credential has no usable tokens")
	}

	if !IsExpired(cred.ExpiresAt, time.Now()) {
		return cred.AccessToken, nil
	}

	if s.locker != nil {
		acquired, lockErr := s.locker.Acquire(ctx, s.lockKey(userID), 30*time.Second)
		if lockErr == nil && acquired {
			defer func() {
				if releaseErr := s.locker.Release(ctx, s.lockKey(userID)); releaseErr != nil {
					s.logger.Warn("Failed to release refresh lock",
						logging.Field{Key: "user_id", Value: userID},
						logging.Field{Key: "error", Value: releaseErr},
					)
				}
			}()
			// Another request may have refreshed while we waited; re-check
			// before spending a refresh exchange.
			if fresh, err := s.store.FindCredential(ctx, userID, s.provider); err == nil && fresh != nil {
				if fresh.AccessToken != "" && !IsExpired(fresh.ExpiresAt, time.Now()) {
					return fresh.AccessToken, nil
				}
			}
		}
		// Lock contention or a lock backend failure falls through to the
		// unguarded refresh; a duplicate refresh is safe, a stalled
		// request is not.
	}

	return s.refresh(ctx, userID, cred)
}

func (s *Supervisor) refresh(ctx context.Context, userID string, cred *storage.Credential) (string, error) {
	s.logger.Debug("Access token expired, refreshing",
		logging.Field{Key: "user_id", Value: userID},
		logging.Field{Key: "expires_at", Value: cred.ExpiresAt},
	)

	result, err := s.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	window := s.validityWindow
	if s.trustProviderExpiry && result.ExpiresIn > 0 {
		window = time.Duration(result.ExpiresIn) * time.Second
	}
	newExpiresAt := time.Now().Add(window).Unix()

	if err := s.store.UpdateCredentialTokens(ctx, userID, s.provider, result.AccessToken, newExpiresAt); err != nil {
		return "", errors.InternalError("failed to persist refreshed token", err)
	}

	s.logger.Info("Access token refreshed",
		logging.Field{Key: "user_id", Value: userID},
		logging.Field{Key: "expires_at", Value: newExpiresAt},
	)

	return result.AccessToken, nil
}

// RefreshNow refreshes a credential regardless of its current expiry. Used
// by the proactive sweep, which targets tokens that are close to expiring
// but would still pass the buffered expiry check.
func (s *Supervisor) RefreshNow(ctx context.Context, userID string) error {
	cred, err := s.store.FindCredential(ctx, userID, s.provider)
	if err != nil {
		return err
	}
	if cred == nil {
		return errors.NoAccountError(s.provider)
	}
	if cred.RefreshToken == "" {
		return errors.MissingTokenError("credential has no refresh token")
	}
	_, err = s.refresh(ctx, userID, cred)
	return err
}

// ForceExpire overwrites the stored expiry with a past timestamp. Used after
// an out-of-band 401 to compel the next ValidAccessToken call to refresh
// even though the stored token looked unexpired locally.
func (s *Supervisor) ForceExpire(ctx context.Context, userID string) error {
	return s.store.SetExpiry(ctx, userID, s.provider, time.Now().Unix()-1)
}

func (s *Supervisor) lockKey(userID string) string {
	return "token-refresh:" + s.provider + ":" + userID
}
