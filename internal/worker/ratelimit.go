package worker

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is a token bucket plus the last time its client was seen.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerClientRateLimiter implements per-client rate limiting.
type PerClientRateLimiter struct {
	lastCleanup     time.Time
	clients         map[string]*clientLimiter
	now             func() time.Time
	rate            rate.Limit
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	requests        int64
	rejected        int64
	mu              sync.Mutex
}

// NewPerClientRateLimiter creates a new per-client rate limiter.
// rps is the sustained number of requests per second per client;
// burst is the maximum burst of requests to allow.
func NewPerClientRateLimiter(rps float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		rate:            rate.Limit(rps),
		burst:           burst,
		clients:         make(map[string]*clientLimiter),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// Allow checks if a request from the given client should be allowed.
func (l *PerClientRateLimiter) Allow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > l.cleanupInterval {
		l.cleanupLocked(now)
	}

	c, ok := l.clients[clientKey]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[clientKey] = c
	}
	c.lastSeen = now

	l.requests++
	if c.limiter.AllowN(now, 1) {
		return true
	}
	l.rejected++
	return false
}

// cleanupLocked removes idle clients. Must be called with lock held.
func (l *PerClientRateLimiter) cleanupLocked(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.maxIdleTime {
			delete(l.clients, key)
		}
	}
	l.lastCleanup = now
}

// Stats returns aggregate statistics.
func (l *PerClientRateLimiter) Stats() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]any{
		"rate":           float64(l.rate),
		"burst":          l.burst,
		"active_clients": len(l.clients),
		"total_requests": l.requests,
		"total_rejected": l.rejected,
	}
}

// PerClientRateLimitMiddleware creates middleware that applies per-client rate limiting.
// Clients are keyed by RemoteAddr, which chi's RealIP middleware has already
// rewritten from X-Real-IP / X-Forwarded-For. onReject may be nil.
func PerClientRateLimitMiddleware(limiter *PerClientRateLimiter, onReject func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				if onReject != nil {
					onReject()
				}
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, "Rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller by host, dropping the ephemeral port.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
