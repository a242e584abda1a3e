// Package tokens keeps per-user Google OAuth credentials valid across time:
// it decides when an access token is stale, performs the refresh-token
// exchange, and persists renewals without ever touching the refresh token.
package tokens

import "time"

const (
	// ProviderGoogle is the fixed identity provider for this deployment
	ProviderGoogle = "google"

	// ExpiryBuffer is the safety margin applied to expiry checks. A token
	// within this margin of expiring is treated as expired so it cannot
	// lapse mid-flight during the round trip to the calendar API.
	ExpiryBuffer = 60 * time.Second

	// DefaultValidityWindow is the lifetime assigned to a freshly refreshed
	// access token. Google's token responses carry expires_in, but the
	// fixed window avoids depending on the response shape; see
	// Supervisor's TrustProviderExpiry option.
	DefaultValidityWindow = time.Hour
)

// IsExpired reports whether an access token expiring at expiresAt (absolute
// epoch seconds; zero means unknown) is unusable at the given instant.
// Unknown expiry always counts as expired.
func IsExpired(expiresAt int64, now time.Time) bool {
	if expiresAt == 0 {
		return true
	}
	return expiresAt <= now.Add(ExpiryBuffer).Unix()
}
