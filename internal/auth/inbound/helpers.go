package inbound

import (
	"net"
	"net/http"
	"strings"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
)

// sessionToken resolves the caller's session token: an overlay value placed
// by a before-hook wins over the session cookie.
func sessionToken(ctx *dispatch.Context) string {
	if v, ok := ctx.Value(ContextSessionToken); ok {
		if token, ok := v.(string); ok && token != "" {
			return token
		}
	}

	// Parse the Cookie header through a throwaway request so the stdlib
	// cookie parser handles quoting and multiple cookies.
	probe := http.Request{Header: ctx.Headers}
	if cookie, err := probe.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}

	return ""
}

func bodyString(ctx *dispatch.Context, key string) string {
	v, _ := ctx.Body[key].(string)
	return v
}

func bodyBool(ctx *dispatch.Context, key string) bool {
	v, _ := ctx.Body[key].(bool)
	return v
}

func clientIP(ctx *dispatch.Context) string {
	if forwarded := ctx.Headers.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}

	if ctx.Request != nil {
		if host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr); err == nil {
			return host
		}
		return ctx.Request.RemoteAddr
	}

	return ""
}
