package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client. Clients are keyed by session,
// then user, then remote address.
type RateLimiter struct {
	limit rate.Limit
	burst int
	clock func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		clock:    time.Now,
		visitors: make(map[string]*visitor),
	}
}

func (l *RateLimiter) Allow(key string) bool {
	now := l.clock()
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Sweep forgets clients idle for longer than maxIdle.
func (l *RateLimiter) Sweep(maxIdle time.Duration) {
	cutoff := l.clock().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
		}
	}
}

// Limit wraps a single route with the per-client bucket.
func (l *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next(w, r)
	}
}

func clientKey(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get(headerSessionID)); s != "" {
		return "session:" + s
	}
	if u := strings.TrimSpace(r.Header.Get(headerUserID)); u != "" {
		return "user:" + u
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
