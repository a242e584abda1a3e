// Package ratelimit throttles API traffic per authenticated user. Chat
// turns fan out into model and calendar calls, so one noisy client can buy
// a lot of downstream spend; the limiter caps that at the front door.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"calendar-chat/internal/auth"
)

// Config controls the per-key token bucket
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig is generous for interactive use and tight for scripts
var DefaultConfig = Config{
	RequestsPerSecond: 5,
	Burst:             10,
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter applies a token bucket per key with idle-entry cleanup
type Limiter struct {
	config Config

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

// New creates a Limiter and starts its cleanup loop
func New(config Config) *Limiter {
	if config.RequestsPerSecond <= 0 {
		config = DefaultConfig
	}
	l := &Limiter{
		config:   config,
		limiters: make(map[string]*keyedLimiter),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether the key may proceed right now
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedLimiter{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst),
		}
		l.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, key)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware rejects over-limit requests with 429. Requests are keyed by
// the authenticated user, falling back to remote address before auth.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.UserID(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			if !l.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
