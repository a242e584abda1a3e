// Package gcal talks to the Google Calendar API on behalf of linked users,
// transparently recovering from stale access tokens.
package gcal

import (
	"bytes"
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
	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/tokens"
)

// maxAuthRetries bounds how many times a call is re-sent after a 401. One
// retry distinguishes "token went stale server-side" from "this account is
// genuinely unauthorized"; more would only hammer a broken credential.
const maxAuthRetries = 1

// CallRequest describes one HTTP call to the upstream API. Body is a byte
// slice rather than a reader so the call can be re-sent after a 401.
type CallRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// Caller sends authenticated requests to the upstream API. Every call gets
// a token from the supervisor first; a 401 response forces the stored token
// to expire and the call is retried once with a freshly refreshed token.
type Caller struct {
	tokens     tokens.TokenSource
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	baseURL    string
	logger     logging.Logger
}

// NewCaller creates a Caller rooted at baseURL. A nil httpClient falls back
// to the shared default client.
func NewCaller(source tokens.TokenSource, baseURL string, httpClient *http.Client) *Caller {
	if httpClient == nil {
		httpClient = commonhttp.NewHTTPClientWithTimeout(30 * time.Second)
	}
	return &Caller{
		tokens:     source,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewGoBreaker("gcal-api", circuitbreaker.HTTPConfig, nil),
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logging.GetGlobalLogger(),
	}
}

// Do executes the call for the given user. Token acquisition failures are
// returned without any HTTP traffic; they already carry the reason the user
// cannot call the API. The response is returned as-is for every status
// except a first-attempt 401, so callers see upstream errors unmodified.
func (c *Caller) Do(ctx context.Context, userID string, call CallRequest) (*http.Response, error) {
	for attempt := 0; attempt <= maxAuthRetries; attempt++ {
		token, err := c.tokens.ValidAccessToken(ctx, userID)
		if err != nil {
			return nil, err
		}

		req, err := c.buildRequest(ctx, call, token)
		if err != nil {
			return nil, err
		}

		var resp *http.Response
		err = c.breaker.Execute(ctx, func() error {
			var httpErr error
			resp, httpErr = c.httpClient.Do(req)
			return httpErr
		})
		if err != nil {
			return nil, errors.ConnectionError("upstream request failed", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt < maxAuthRetries {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<14))
			resp.Body.Close()

			c.logger.Info("Upstream rejected access token, forcing refresh",
				logging.Field{Key: "user_id", Value: userID},
				logging.Field{Key: "path", Value: call.Path},
			)
			if err := c.tokens.ForceExpire(ctx, userID); err != nil {
				return nil, errors.InternalError("failed to invalidate stale token", err)
			}
			continue
		}

		return resp, nil
	}
	// Unreachable: the loop always returns on its final attempt.
	return nil, errors.InternalError("request retry loop exhausted", nil)
}

// DoJSON executes the call and decodes a 2xx JSON body into out (skipped
// when out is nil). Non-2xx responses become an upstream error carrying the
// status code and as much of the error body as Google provided.
func (c *Caller) DoJSON(ctx context.Context, userID string, call CallRequest, out interface{}) error {
	resp, err := c.Do(ctx, userID, call)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.ConnectionError("failed to read upstream response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return upstreamError(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.InternalError("failed to decode upstream response", err)
	}
	return nil
}

func (c *Caller) buildRequest(ctx context.Context, call CallRequest, token string) (*http.Request, error) {
	rawURL := c.baseURL + call.Path
	if len(call.Query) > 0 {
		rawURL += "?" + call.Query.Encode()
	}

	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, rawURL, body)
	if err != nil {
		return nil, errors.InternalError("failed to build upstream request", err)
	}

	for k, v := range call.Headers {
		req.Header.Set(k, v)
	}
	if len(call.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	// Set last so a caller-supplied Authorization header can never shadow
	// the supervised token.
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

func upstreamError(status int, body []byte) error {
	msg := fmt.Sprintf("upstream API returned status %d", status)
	var googleErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &googleErr) == nil && googleErr.Error.Message != "" {
		msg = fmt.Sprintf("upstream API error: %s", googleErr.Error.Message)
	}
	return errors.UpstreamError(msg, status)
}
