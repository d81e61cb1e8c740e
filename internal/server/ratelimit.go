package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/vetrag-go/internal/logging"
)

const (
	// defaultRateLimit is the per-IP sustained rate (requests/second) on the
	// search and ask routes when none is configured. Every request costs at
	// least one embedding call.
	defaultRateLimit = 10

	// defaultRateBurst is the per-IP burst when none is configured.
	defaultRateBurst = 20

	// limiterIdleTTL is how long an IP may stay silent before its bucket is
	// evicted.
	limiterIdleTTL = 5 * time.Minute
)

// bucket is one client's token bucket and the last time it was used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a token bucket per client IP. Idle buckets are swept
// once a minute so the map stays bounded.
type rateLimiter struct {
	// mu guards buckets.
	mu sync.Mutex
	// buckets maps client IP to its bucket.
	buckets map[string]*bucket
	// rps is the sustained request rate allowed per IP.
	rps rate.Limit
	// burst is the maximum instantaneous burst per IP.
	burst int
	// log receives sweep diagnostics.
	log *slog.Logger
}

// newRateLimiter builds a rateLimiter and starts its sweeper. Calling the
// returned function stops the sweeper.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		log:     log,
	}

	done := make(chan struct{})
	var once sync.Once
	go rl.sweepLoop(done)

	return rl, func() { once.Do(func() { close(done) }) }
}

// allow reports whether ip may make a request now.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	rl.mu.Unlock()
	return b.limiter.Allow()
}

func (rl *rateLimiter) sweepLoop(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			if n := rl.sweep(now.Add(-limiterIdleTTL)); n > 0 {
				rl.log.Debug("ratelimit: evicted idle clients", slog.Int("count", n))
			}
		}
	}
}

// sweep drops buckets not used since cutoff and returns how many went.
func (rl *rateLimiter) sweep(cutoff time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

// middleware rejects requests over the limit with 429 and a Retry-After
// header before they reach next.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is ignored;
// put a proxy that rewrites RemoteAddr in front if one is needed.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
