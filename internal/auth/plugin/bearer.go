package plugin

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
	"github.com/nalonix/better-auth/internal/auth/inbound"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// AuthTokenHeader carries the signed bearer token back to API clients on
// the operations that open a session.
const AuthTokenHeader = "Set-Auth-Token"

// Bearer lets cookie-less clients authenticate with a signed JWT.
//
// The before-hook turns a valid "Authorization: Bearer" header into the
// session-token overlay value the built-in endpoints resolve. The
// after-hook watches sign-in and sign-up and re-issues the fresh session
// token as a JWT in the Set-Auth-Token response header.
func Bearer(secret []byte, tokenTTL time.Duration) dispatch.Plugin {
	return dispatch.Plugin{
		ID: "bearer",
		Hooks: dispatch.Hooks{
			Before: []dispatch.BeforeHook{{
				Matcher: func(ctx *dispatch.Context, _ dispatch.Endpoint) bool {
					return strings.HasPrefix(ctx.Headers.Get("Authorization"), "Bearer ")
				},
				Handler: func(ctx *dispatch.Context) (*dispatch.Patch, error) {
					raw := strings.TrimPrefix(ctx.Headers.Get("Authorization"), "Bearer ")

					claims := &jwt.RegisteredClaims{}
					token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
						return secret, nil
					}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
					if err != nil || !token.Valid || claims.Subject == "" {
						return nil, pkgerror.NewUnauthorized("invalid bearer token")
					}

					return &dispatch.Patch{
						Values: map[string]any{inbound.ContextSessionToken: claims.Subject},
					}, nil
				},
			}},
			After: []dispatch.AfterHook{{
				Matcher: func(ctx *dispatch.Context) bool {
					return ctx.Path == "/sign-in/email" || ctx.Path == "/sign-up/email"
				},
				Handler: func(ctx *dispatch.Context) (*dispatch.Replacement, error) {
					carrier, ok := ctx.Returned.(interface{ SessionToken() string })
					if !ok {
						return nil, nil
					}

					now := time.Now()
					signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
						Subject:   carrier.SessionToken(),
						IssuedAt:  jwt.NewNumericDate(now),
						ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
					}).SignedString(secret)
					if err != nil {
						return nil, pkgerror.NewServer(err)
					}

					return &dispatch.Replacement{Response: &dispatch.Reply{
						Header: http.Header{AuthTokenHeader: {signed}},
						Body:   ctx.Returned,
					}}, nil
				},
			}},
		},
	}
}
