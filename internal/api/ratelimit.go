package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter tracks the token bucket for a single client IP together with
// its last activity, so idle entries can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-IP token bucket to the routes it wraps. It is
// mounted on the /auth/* group only: login kickoff and callback are the
// routes an attacker can hammer without credentials, while guarded routes
// already cost a signature verification.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter

	limit rate.Limit
	burst int

	// window is how long an idle client entry survives before eviction.
	window time.Duration
}

// NewRateLimiter creates a limiter allowing rpm requests per minute per IP.
func NewRateLimiter(rpm int) *RateLimiter {
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(rpm) / 60.0),
		burst:   burst,
		window:  5 * time.Minute,
	}
}

// Middleware returns the chi-compatible wrapper enforcing the limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			ErrTooManyRequests(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow reports whether the given IP may proceed, creating its bucket on
// first sight and opportunistically evicting idle entries.
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now

	// Piggyback eviction on request handling instead of a background
	// goroutine. The map only grows while traffic flows, and traffic is
	// exactly when this code runs.
	if len(rl.clients) > 1000 {
		rl.evictIdleLocked(now)
	}

	return c.limiter.Allow()
}

// evictIdleLocked removes entries idle longer than the window.
// Caller must hold mu.
func (rl *RateLimiter) evictIdleLocked(now time.Time) {
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.window {
			delete(rl.clients, ip)
		}
	}
}

// clientIP extracts the client address, relying on chi's RealIP middleware
// having already rewritten RemoteAddr from X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
