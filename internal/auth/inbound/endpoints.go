package inbound

import (
	"context"
	"net/http"
	"time"

	"github.com/nalonix/better-auth/internal/auth/dispatch"
	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/auth/usecase"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// SessionCookie is the browser credential. The bearer plugin provides the
// non-cookie alternative for API clients.
const SessionCookie = "better_auth.session_token"

// ContextSessionToken is the overlay key a before-hook (for example the
// bearer plugin) may use to supply a session token without a cookie.
const ContextSessionToken = "session_token"

type uc interface {
	SignUp(ctx context.Context, in usecase.SignUpInput) (usecase.SessionResult, error)
	SignIn(ctx context.Context, in usecase.SignInInput) (usecase.SessionResult, error)
	SignOut(ctx context.Context, sessionToken string) error
	GetSession(ctx context.Context, sessionToken string) (usecase.SessionResult, error)
	ListSessions(ctx context.Context, sessionToken string) ([]entity.Session, error)
	RevokeSession(ctx context.Context, sessionToken, targetToken string) error
	RevokeOtherSessions(ctx context.Context, sessionToken string) error
	ForgetPassword(ctx context.Context, in usecase.ForgetPasswordInput) error
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error
	ChangePassword(ctx context.Context, in usecase.ChangePasswordInput) error
	DeleteUser(ctx context.Context, in usecase.DeleteUserInput) error
	SessionTTL() time.Duration
}

// Config carries the transport-level settings for the built-in endpoints.
type Config struct {
	CookieSecure bool
}

// SessionResponse is returned by the operations that open a session.
type SessionResponse struct {
	Token   string         `json:"token"`
	User    entity.User    `json:"user"`
	Session entity.Session `json:"session"`
}

// SessionToken lets hooks pick up the opened session without depending on
// this package's response type.
func (r SessionResponse) SessionToken() string {
	return r.Token
}

type statusResponse struct {
	Success bool `json:"success"`
}

// Endpoints builds the built-in endpoint table in declaration order. The
// dispatch registry merges plugin endpoints over these.
func Endpoints(u uc, cfg Config) []dispatch.Endpoint {
	h := &handlers{uc: u, cfg: cfg}

	return []dispatch.Endpoint{
		{Name: "signUpEmail", Path: "/sign-up/email", Method: http.MethodPost, Handler: h.signUpEmail},
		{Name: "signInEmail", Path: "/sign-in/email", Method: http.MethodPost, Handler: h.signInEmail},
		{Name: "signOut", Path: "/sign-out", Method: http.MethodPost, Handler: h.signOut},
		{Name: "getSession", Path: "/get-session", Method: http.MethodGet, Handler: h.getSession},
		{
			Name: "listSessions", Path: "/list-sessions", Method: http.MethodGet,
			Options: dispatch.Options{RequireAuth: true, Use: []dispatch.Handler{requireSession}},
			Handler: h.listSessions,
		},
		{
			Name: "revokeSession", Path: "/revoke-session", Method: http.MethodPost,
			Options: dispatch.Options{RequireAuth: true, Use: []dispatch.Handler{requireSession}},
			Handler: h.revokeSession,
		},
		{
			Name: "revokeOtherSessions", Path: "/revoke-other-sessions", Method: http.MethodPost,
			Options: dispatch.Options{RequireAuth: true, Use: []dispatch.Handler{requireSession}},
			Handler: h.revokeOtherSessions,
		},
		{Name: "forgetPassword", Path: "/forget-password", Method: http.MethodPost, Handler: h.forgetPassword},
		{Name: "resetPassword", Path: "/reset-password", Method: http.MethodPost, Handler: h.resetPassword},
		{
			Name: "changePassword", Path: "/change-password", Method: http.MethodPost,
			Options: dispatch.Options{RequireAuth: true, Use: []dispatch.Handler{requireSession}},
			Handler: h.changePassword,
		},
		{
			Name: "deleteUser", Path: "/delete-user", Method: http.MethodPost,
			Options: dispatch.Options{RequireAuth: true, Use: []dispatch.Handler{requireSession}},
			Handler: h.deleteUser,
		},
	}
}

type handlers struct {
	uc  uc
	cfg Config
}

func (h *handlers) signUpEmail(ctx *dispatch.Context) (any, error) {
	result, err := h.uc.SignUp(ctx.Context, usecase.SignUpInput{
		Email:     bodyString(ctx, "email"),
		Password:  bodyString(ctx, "password"),
		Name:      bodyString(ctx, "name"),
		IPAddress: clientIP(ctx),
		UserAgent: ctx.Headers.Get("User-Agent"),
	})
	if err != nil {
		return nil, err
	}

	h.setSessionCookie(ctx, result.Session.Token)

	return SessionResponse{Token: result.Session.Token, User: result.User, Session: result.Session}, nil
}

func (h *handlers) signInEmail(ctx *dispatch.Context) (any, error) {
	result, err := h.uc.SignIn(ctx.Context, usecase.SignInInput{
		Email:     bodyString(ctx, "email"),
		Password:  bodyString(ctx, "password"),
		IPAddress: clientIP(ctx),
		UserAgent: ctx.Headers.Get("User-Agent"),
	})
	if err != nil {
		return nil, err
	}

	h.setSessionCookie(ctx, result.Session.Token)

	return SessionResponse{Token: result.Session.Token, User: result.User, Session: result.Session}, nil
}

func (h *handlers) signOut(ctx *dispatch.Context) (any, error) {
	if err := h.uc.SignOut(ctx.Context, sessionToken(ctx)); err != nil {
		return nil, err
	}

	h.clearSessionCookie(ctx)

	return statusResponse{Success: true}, nil
}

func (h *handlers) getSession(ctx *dispatch.Context) (any, error) {
	result, err := h.uc.GetSession(ctx.Context, sessionToken(ctx))
	if err != nil {
		return nil, err
	}

	return SessionResponse{Token: result.Session.Token, User: result.User, Session: result.Session}, nil
}

func (h *handlers) listSessions(ctx *dispatch.Context) (any, error) {
	sessions, err := h.uc.ListSessions(ctx.Context, sessionToken(ctx))
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (h *handlers) revokeSession(ctx *dispatch.Context) (any, error) {
	if err := h.uc.RevokeSession(ctx.Context, sessionToken(ctx), bodyString(ctx, "token")); err != nil {
		return nil, err
	}

	return statusResponse{Success: true}, nil
}

func (h *handlers) revokeOtherSessions(ctx *dispatch.Context) (any, error) {
	if err := h.uc.RevokeOtherSessions(ctx.Context, sessionToken(ctx)); err != nil {
		return nil, err
	}

	return statusResponse{Success: true}, nil
}

func (h *handlers) forgetPassword(ctx *dispatch.Context) (any, error) {
	if err := h.uc.ForgetPassword(ctx.Context, usecase.ForgetPasswordInput{
		Email: bodyString(ctx, "email"),
	}); err != nil {
		return nil, err
	}

	return statusResponse{Success: true}, nil
}

func (h *handlers) resetPassword(ctx *dispatch.Context) (any, error) {
	if err := h.uc.ResetPassword(ctx.Context, usecase.ResetPasswordInput{
		Token:       bodyString(ctx, "token"),
		NewPassword: bodyString(ctx, "newPassword"),
	}); err != nil {
		return nil, err
	}

	return statusResponse{Success: true}, nil
}

func (h *handlers) changePassword(ctx *dispatch.Context) (any, error) {
	if err := h.uc.ChangePassword(ctx.Context, usecase.ChangePasswordInput{
		SessionToken:    sessionToken(ctx),
		CurrentPassword: bodyString(ctx, "currentPassword"),
		NewPassword:     bodyString(ctx, "newPassword"),
		RevokeOthers:    bodyBool(ctx, "revokeOtherSessions"),
	}); err != nil {
		return nil, err
	}

	return statusResponse{Success: true}, nil
}

func (h *handlers) deleteUser(ctx *dispatch.Context) (any, error) {
	if err := h.uc.DeleteUser(ctx.Context, usecase.DeleteUserInput{
		SessionToken: sessionToken(ctx),
		Password:     bodyString(ctx, "password"),
	}); err != nil {
		return nil, err
	}

	h.clearSessionCookie(ctx)

	return statusResponse{Success: true}, nil
}

func (h *handlers) setSessionCookie(ctx *dispatch.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.uc.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *handlers) clearSessionCookie(ctx *dispatch.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireSession is the shared endpoint chain link for operations that only
// make sense with a credential attached. The business layer still validates
// the token; this only rejects obviously anonymous calls early.
func requireSession(ctx *dispatch.Context) (any, error) {
	if sessionToken(ctx) == "" {
		return nil, pkgerror.NewUnauthorized("authentication required")
	}
	return nil, nil
}
