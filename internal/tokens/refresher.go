package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"calendar-chat/internal/circuitbreaker"
	"calendar-chat/internal/common/errors"
	commonhttp "calendar-chat/internal/common/http"
)

// RefresherConfig holds the identity-provider client credentials and token
// endpoint. These are process-wide configuration, never user input.
type RefresherConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// RefreshResult is the outcome of one refresh-token exchange. ExpiresIn is
// the provider-reported lifetime in seconds, zero when the provider omitted
// it; the Supervisor decides whether to honor it.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int
}

// Refresher performs the OAuth refresh-token exchange against the identity
// provider's token endpoint. It never touches the credential store; renewals
// are persisted one layer up by the Supervisor.
type Refresher struct {
	config     RefresherConfig
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
}

// NewRefresher creates a Refresher with the given client credentials.
// A nil httpClient falls back to the shared default client.
func NewRefresher(config RefresherConfig, httpClient *http.Client) (*Refresher, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, errors.ConfigError("refresher requires client_id and client_secret")
	}
	if config.TokenURL == "" {
		return nil, errors.ConfigError("refresher requires a token endpoint URL")
	}

	if httpClient == nil {
		httpClient = commonhttp.NewHTTPClientWithTimeout(30 * time.Second)
	}

	return &Refresher{
		config:     config,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewGoBreaker("oauth-refresh", circuitbreaker.OAuthConfig, nil),
	}, nil
}

// Refresh exchanges a refresh token for a new access token. Transport
// failures and non-2xx responses both surface as a refresh_failed error
// carrying the HTTP status (when there is one) and the provider's error
// body. The provider does not rotate the refresh token in this flow, so the
// result never contains one.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, errors.MissingTokenError("refresh token is empty")
	}

	data := url.Values{}
	data.Set("client_id", r.config.ClientID)
	data.Set("client_secret", r.config.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var resp *http.Response
	err = r.breaker.Execute(ctx, func() error {
		var httpErr error
		resp, httpErr = r.httpClient.Do(req)
		return httpErr
	})
	if err != nil {
		return nil, errors.RefreshFailedError("token refresh request failed", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.RefreshFailedError("failed to read token response", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("token refresh failed with status %d", resp.StatusCode)
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = fmt.Sprintf("token refresh failed: %s - %s", errResp.Error, errResp.Description)
		}
		return nil, errors.RefreshFailedError(msg, resp.StatusCode, nil)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.RefreshFailedError("failed to decode token response", resp.StatusCode, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.RefreshFailedError("no access token in provider response", resp.StatusCode, nil)
	}

	return &RefreshResult{
		AccessToken: tokenResp.AccessToken,
		ExpiresIn:   tokenResp.ExpiresIn,
	}, nil
}
