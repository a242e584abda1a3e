package tokens

import (
	"testing"
	"time"
)

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name      string
		expiresAt int64
		want      bool
	}{
		{"zero expiry is expired", 0, true},
		{"long past expiry is expired", now.Unix() - 7200, true},
		{"just past expiry is expired", now.Unix() - 1, true},
		{"expiring exactly now is expired", now.Unix(), true},
		{"inside the 60s buffer is expired", now.Unix() + 30, true},
		{"exactly at the buffer edge is expired", now.Unix() + 60, true},
		{"one second past the buffer is valid", now.Unix() + 61, false},
		{"far future is valid", now.Unix() + 7200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpired(tt.expiresAt, now); got != tt.want {
				t.Errorf("IsExpired(%d) = %v, want %v", tt.expiresAt, got, tt.want)
			}
		})
	}
}
