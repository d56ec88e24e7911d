package dispatch

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalonix/better-auth/internal/pkg/pkgconfig"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

func TestCSRFGuard(t *testing.T) {
	trusted := []string{"https://app.example.com", "*.internal.test"}

	tests := []struct {
		name    string
		method  string
		origin  string
		referer string
		wantErr bool
	}{
		{
			name:   "safe method skips the check",
			method: http.MethodGet,
			origin: "https://evil.example.com",
		},
		{
			name:   "trusted origin passes",
			method: http.MethodPost,
			origin: "https://app.example.com",
		},
		{
			name:   "wildcard subdomain passes",
			method: http.MethodPost,
			origin: "http://staging.internal.test",
		},
		{
			name:   "wildcard apex passes",
			method: http.MethodPost,
			origin: "https://internal.test",
		},
		{
			name:    "untrusted origin rejected",
			method:  http.MethodPost,
			origin:  "https://evil.example.com",
			wantErr: true,
		},
		{
			name:    "wildcard does not match lookalike host",
			method:  http.MethodPost,
			origin:  "https://notinternal.test",
			wantErr: true,
		},
		{
			name:   "no origin header passes",
			method: http.MethodPost,
		},
		{
			name:    "referer fallback trusted",
			method:  http.MethodPost,
			referer: "https://app.example.com/sign-in",
		},
		{
			name:    "referer fallback untrusted",
			method:  http.MethodPost,
			referer: "https://evil.example.com/sign-in",
			wantErr: true,
		},
	}

	guard := CSRFGuard(trusted)
	if guard.Path != "/*" {
		t.Fatalf("guard must cover every path, got %q", guard.Path)
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := NewContext(context.Background(), nil)
			ctx.Method = tc.method
			if tc.origin != "" {
				ctx.Headers.Set("Origin", tc.origin)
			}
			if tc.referer != "" {
				ctx.Headers.Set("Referer", tc.referer)
			}

			_, err := guard.Handler(ctx)
			if tc.wantErr {
				var perr *pkgerror.Error
				if !errors.As(err, &perr) || perr.Code() != pkgerror.CodeForbidden {
					t.Fatalf("expected forbidden error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected pass, got %v", err)
			}
		})
	}
}

func TestCSRFGuardTrustsConfiguredOrigins(t *testing.T) {
	content := "auth:\n  trusted_origins:\n    - https://app.example.com\n    - http://localhost:3000\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := pkgconfig.NewViper(path)
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}

	guard := CSRFGuard(cfg.GetArray("auth.trusted_origins"))

	ctx := NewContext(context.Background(), nil)
	ctx.Method = http.MethodPost
	ctx.Headers.Set("Origin", "http://localhost:3000")
	if _, err := guard.Handler(ctx); err != nil {
		t.Fatalf("configured origin must be trusted: %v", err)
	}

	ctx = NewContext(context.Background(), nil)
	ctx.Method = http.MethodPost
	ctx.Headers.Set("Origin", "https://evil.example.com")
	if _, err := guard.Handler(ctx); err == nil {
		t.Fatal("unconfigured origin must be rejected")
	}
}
