package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/script-licensing-service/internal/model"
)

// Window is the fixed rate-limit window length.
const Window = time.Minute

const (
	cleanupInterval    = 5 * time.Minute
	expiredWindowGrace = 10 * time.Minute
	staleEntryTTL      = 24 * time.Hour
)

// RateLimiter implements fixed-window counting keyed by an arbitrary
// string (credential ID or caller IP). The per-window maximum is
// supplied by the caller because it is derived from subscription tier.
type RateLimiter struct {
	mu          sync.Mutex
	counters    map[string]*window
	lastCleanup time.Time
}

type window struct {
	count    int
	resetAt  time.Time
	lastSeen time.Time
}

// NewRateLimiter creates a new in-memory rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		counters:    make(map[string]*window),
		lastCleanup: time.Now(),
	}
}

// Allow counts one request against the key's current window.
// Returns (allowed, remaining, resetAt).
func (rl *RateLimiter) Allow(key string, max int) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	defer rl.cleanupLocked(now)

	w, exists := rl.counters[key]
	if !exists || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(Window), lastSeen: now}
		rl.counters[key] = w
		return true, max - 1, w.resetAt
	}

	w.lastSeen = now
	if w.count >= max {
		return false, 0, w.resetAt
	}

	w.count++
	return true, max - w.count, w.resetAt
}

// Remaining returns the remaining request count without incrementing.
func (rl *RateLimiter) Remaining(key string, max int) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	defer rl.cleanupLocked(now)

	w, exists := rl.counters[key]
	if !exists || now.After(w.resetAt) {
		return max
	}

	w.lastSeen = now
	remaining := max - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RateLimit returns middleware that enforces the authenticated
// account's tier-derived per-minute ceiling, keyed by credential.
// Every response, allowed or not, carries the rate-limit headers.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := GetAPIKey(r.Context())
			account := GetAccount(r.Context())
			if apiKey == nil || account == nil {
				next.ServeHTTP(w, r)
				return
			}

			max := model.LimitsFor(account.Tier).RequestsPerMinute
			allowed, remaining, resetAt := rl.Allow("key:"+apiKey.ID.String(), max)
			setRateLimitHeaders(w, max, remaining, resetAt)

			if !allowed {
				respondError(w, r, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit returns middleware for unauthenticated endpoints, keyed
// by caller IP with a flat per-minute ceiling.
func IPRateLimit(rl *RateLimiter, max int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetAt := rl.Allow(clientIPKey(r, "ip"), max)
			setRateLimitHeaders(w, max, remaining, resetAt)

			if !allowed {
				respondError(w, r, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, max, remaining int, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}

	for key, w := range rl.counters {
		if now.Sub(w.lastSeen) > staleEntryTTL || now.After(w.resetAt.Add(expiredWindowGrace)) {
			delete(rl.counters, key)
		}
	}

	rl.lastCleanup = now
}
