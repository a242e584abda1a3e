package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		contains []string
	}{
		{
			name:     "simple validation error",
			err:      ValidationError("field is required"),
			contains: []string{"validation", "field is required"},
		},
		{
			name:     "error with cause",
			err:      InternalError("operation failed", errors.New("db down")),
			contains: []string{"internal", "operation failed", "cause=db down"},
		},
		{
			name:     "error with code",
			err:      AuthError("bad token").WithCode("401"),
			contains: []string{"authentication", "bad token", "code=401"},
		},
		{
			name:     "refresh failed with status context",
			err:      RefreshFailedError("provider rejected refresh", 400, nil),
			contains: []string{"refresh_failed", "provider rejected refresh", "status=400"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("expected %q in %q", want, msg)
				}
			}
		})
	}
}

func TestIsType(t *testing.T) {
	if !IsType(NoAccountError("google"), ErrTypeNoAccount) {
		t.Error("expected NoAccountError to match ErrTypeNoAccount")
	}
	if IsType(NoAccountError("google"), ErrTypeMissingToken) {
		t.Error("expected NoAccountError not to match ErrTypeMissingToken")
	}
	if IsType(nil, ErrTypeInternal) {
		t.Error("nil error should not match any type")
	}
	if IsType(errors.New("plain"), ErrTypeInternal) {
		t.Error("plain error should not match")
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(MissingTokenError("no refresh token")); got != ErrTypeMissingToken {
		t.Errorf("expected missing_token, got %s", got)
	}
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("expected internal for plain error, got %s", got)
	}
	if got := GetType(nil); got != "" {
		t.Errorf("expected empty type for nil, got %s", got)
	}
}

func TestNeedsReauth(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no account", NoAccountError("google"), true},
		{"missing token", MissingTokenError("no tokens"), true},
		{"refresh failed", RefreshFailedError("rejected", 400, nil), true},
		{"upstream failure", UpstreamError("calendar API error", 503), false},
		{"internal", InternalError("boom", nil), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsReauth(tt.err); got != tt.want {
				t.Errorf("NeedsReauth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := RefreshFailedError("refresh failed", 0, cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}
