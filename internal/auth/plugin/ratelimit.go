package plugin

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// RateLimitConfig bounds how fast a single client may hit the guarded
// paths. Zero values fall back to one request per second with a burst of
// five.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	Paths []string
}

// RateLimit throttles credential-guessing surfaces per client IP. Each
// configured path pattern becomes one middleware entry; all of them share
// the same limiter table.
func RateLimit(cfg RateLimitConfig) dispatch.Plugin {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"/sign-in/*", "/sign-up/*", "/forget-password"}
	}

	table := newLimiterTable(rate.Limit(cfg.RPS), cfg.Burst)

	middlewares := make([]dispatch.Middleware, 0, len(cfg.Paths))
	for _, path := range cfg.Paths {
		middlewares = append(middlewares, dispatch.Middleware{
			Path: path,
			Handler: func(ctx *dispatch.Context) (any, error) {
				if !table.allow(clientKey(ctx)) {
					return nil, pkgerror.NewTooManyRequests()
				}
				return nil, nil
			},
		})
	}

	return dispatch.Plugin{
		ID:          "ratelimit",
		Middlewares: middlewares,
	}
}

// limiterTable hands out one token bucket per client key. Client keys are
// caller-controlled, so the table evicts entries that have been idle long
// enough for their bucket to refill completely; an idle entry is
// indistinguishable from a fresh one.
type limiterTable struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	limiters  map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterTable(limit rate.Limit, burst int) *limiterTable {
	// Time for an empty bucket to refill, floored so a high rate does not
	// turn every sweep into a full reset.
	idleAfter := time.Duration(float64(burst)/float64(limit)) * time.Second
	if idleAfter < time.Minute {
		idleAfter = time.Minute
	}

	return &limiterTable{
		limit:     limit,
		burst:     burst,
		idleAfter: idleAfter,
		limiters:  make(map[string]*limiterEntry),
		now:       time.Now,
	}
}

func (t *limiterTable) allow(key string) bool {
	t.mu.Lock()
	now := t.now()

	if now.Sub(t.lastSweep) >= t.idleAfter {
		for k, entry := range t.limiters {
			if now.Sub(entry.lastSeen) >= t.idleAfter {
				delete(t.limiters, k)
			}
		}
		t.lastSweep = now
	}

	entry, ok := t.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = now
	t.mu.Unlock()

	return entry.limiter.Allow()
}

func clientKey(ctx *dispatch.Context) string {
	if forwarded := ctx.Headers.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if ctx.Request != nil {
		if host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr); err == nil {
			return host
		}
		return ctx.Request.RemoteAddr
	}

	return "unknown"
}
