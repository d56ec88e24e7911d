package dispatch

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// CSRFGuard returns the origin-check middleware. The router installs it on
// the catch-all pattern ahead of every plugin middleware, for every
// configuration; plugins cannot remove or reorder it.
//
// State-changing requests that carry a browser Origin (or Referer) must
// match one of the trusted origins. Requests without either header pass
// through: non-browser clients authenticate with bearer tokens and are not
// subject to cross-site request forgery.
func CSRFGuard(trustedOrigins []string) Middleware {
	return Middleware{
		Path: "/*",
		Handler: func(ctx *Context) (any, error) {
			switch ctx.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return nil, nil
			}

			origin := ctx.Headers.Get("Origin")
			if origin == "" {
				origin = refererOrigin(ctx.Headers.Get("Referer"))
			}
			if origin == "" {
				return nil, nil
			}
			if originTrusted(origin, trustedOrigins) {
				return nil, nil
			}

			return nil, pkgerror.NewForbidden("request origin is not trusted")
		},
	}
}

func refererOrigin(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// originTrusted matches an origin against the trusted list. Entries are
// exact origins ("https://app.example.com") or wildcard hosts
// ("*.example.com") that match any subdomain on any scheme.
func originTrusted(origin string, trusted []string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Host

	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(entry, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if entry == origin {
			return true
		}
	}

	return false
}
