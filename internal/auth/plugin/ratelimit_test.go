package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

func rateLimitContext(ip string) *dispatch.Context {
	ctx := dispatch.NewContext(context.Background(), nil)
	ctx.Headers.Set("X-Forwarded-For", ip)
	return ctx
}

func TestRateLimitDefaultPaths(t *testing.T) {
	p := RateLimit(RateLimitConfig{})

	want := map[string]bool{
		"/sign-in/*":       true,
		"/sign-up/*":       true,
		"/forget-password": true,
	}
	if len(p.Middlewares) != len(want) {
		t.Fatalf("expected %d middleware entries, got %d", len(want), len(p.Middlewares))
	}
	for _, mw := range p.Middlewares {
		if !want[mw.Path] {
			t.Fatalf("unexpected guarded path %q", mw.Path)
		}
	}
}

func TestRateLimitThrottlesPerClient(t *testing.T) {
	p := RateLimit(RateLimitConfig{RPS: 1, Burst: 2, Paths: []string{"/sign-in/*"}})
	handler := p.Middlewares[0].Handler

	for i := 0; i < 2; i++ {
		if _, err := handler(rateLimitContext("203.0.113.7")); err != nil {
			t.Fatalf("request %d within burst: %v", i, err)
		}
	}

	_, err := handler(rateLimitContext("203.0.113.7"))
	var perr *pkgerror.Error
	if !errors.As(err, &perr) || perr.Code() != pkgerror.CodeTooManyRequests {
		t.Fatalf("expected too-many-requests, got %v", err)
	}

	// A different client has its own bucket.
	if _, err := handler(rateLimitContext("198.51.100.9")); err != nil {
		t.Fatalf("other client must not be throttled: %v", err)
	}
}

func TestLimiterTableEvictsIdleClients(t *testing.T) {
	table := newLimiterTable(1, 5)

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	table.now = func() time.Time { return now }

	for _, key := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		table.allow(key)
	}
	if len(table.limiters) != 3 {
		t.Fatalf("expected 3 tracked clients, got %d", len(table.limiters))
	}

	// One client stays active; the sweep drops the two idle ones.
	now = now.Add(table.idleAfter / 2)
	table.allow("203.0.113.1")

	now = now.Add(table.idleAfter / 2)
	table.allow("203.0.113.4")

	if len(table.limiters) != 2 {
		t.Fatalf("expected idle clients to be evicted, got %d entries", len(table.limiters))
	}
	for _, key := range []string{"203.0.113.1", "203.0.113.4"} {
		if _, ok := table.limiters[key]; !ok {
			t.Fatalf("active client %s must survive the sweep", key)
		}
	}
}
