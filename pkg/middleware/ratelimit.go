package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate            float64                                      // requests per second
	Burst           int                                          // max burst
	KeyFunc         func(r *http.Request) string                 // default: remote IP
	OnLimit         func(w http.ResponseWriter, r *http.Request) // default: 429 response
	CleanupInterval time.Duration                                // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration                                // remove limiters idle longer than this (default: 5m)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns middleware that applies per-key rate limiting. Each
// key gets its own token bucket; buckets idle past MaxIdle are pruned
// lazily during request handling.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(r *http.Request) string {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				return r.RemoteAddr
			}
			return host
		}
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5 * time.Minute
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*limiterEntry)
		lastCleanup time.Time
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			now := time.Now()

			mu.Lock()
			entry, ok := limiters[key]
			if !ok {
				entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)}
				limiters[key] = entry
			}
			entry.lastSeen = now

			if now.Sub(lastCleanup) > cleanupInterval {
				for k, e := range limiters {
					if now.Sub(e.lastSeen) > maxIdle {
						delete(limiters, k)
					}
				}
				lastCleanup = now
			}
			allowed := entry.limiter.Allow()
			mu.Unlock()

			if !allowed {
				cfg.OnLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
