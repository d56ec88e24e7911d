package usecase

import (
	"context"
	"errors"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// GetSession resolves a session token into its session and user, expiring
// stale sessions on the way and sliding the expiry of fresh ones forward.
func (u *Usecase) GetSession(ctx context.Context, sessionToken string) (SessionResult, error) {
	if sessionToken == "" {
		return SessionResult{}, pkgerror.NewUnauthorized("missing session token")
	}

	session, err := u.sessions.GetSession(ctx, sessionToken)
	if err != nil {
		return SessionResult{}, mapSessionErr(err)
	}

	now := u.clock.Now()
	if session.Expired(now) {
		if delErr := u.sessions.DeleteSession(ctx, sessionToken); delErr != nil && !errors.Is(delErr, pkgerror.ErrNotFound) {
			return SessionResult{}, normalizeErr(delErr)
		}
		return SessionResult{}, pkgerror.NewUnauthorized("session not found or expired")
	}

	// Sliding expiry: refresh when more than half the lifetime is spent.
	if session.ExpiresAt.Sub(now) < u.sessionTTL/2 {
		session.ExpiresAt = now.Add(u.sessionTTL)
		if refreshErr := u.sessions.RefreshSession(ctx, sessionToken, session); refreshErr != nil && !errors.Is(refreshErr, pkgerror.ErrNotFound) {
			return SessionResult{}, normalizeErr(refreshErr)
		}
	}

	user, err := u.users.GetUser(ctx, session.UserID)
	if err != nil {
		return SessionResult{}, mapUserErr(err)
	}

	return SessionResult{User: user, Session: session}, nil
}

// ListSessions returns every live session belonging to the caller.
func (u *Usecase) ListSessions(ctx context.Context, sessionToken string) ([]entity.Session, error) {
	current, err := u.GetSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	sessions, err := u.sessions.ListUserSessions(ctx, current.Session.UserID)
	if err != nil {
		return nil, normalizeErr(err)
	}

	now := u.clock.Now()
	live := make([]entity.Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.Expired(now) {
			live = append(live, session)
		}
	}

	return live, nil
}

// RevokeSession deletes one of the caller's sessions by token. Callers can
// only revoke sessions they own.
func (u *Usecase) RevokeSession(ctx context.Context, sessionToken, targetToken string) error {
	if targetToken == "" {
		return pkgerror.NewInvalidInput(errors.New("token is required"))
	}

	current, err := u.GetSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	target, err := u.sessions.GetSession(ctx, targetToken)
	if err != nil {
		return mapSessionErr(err)
	}
	if target.UserID != current.Session.UserID {
		return pkgerror.NewForbidden("session belongs to another user")
	}

	if err := u.sessions.DeleteSession(ctx, targetToken); err != nil {
		return normalizeErr(err)
	}

	u.publish(ctx, entity.EventSessionRevoked, current.Session.UserID, current.Session.IPAddress)

	return nil
}

// RevokeOtherSessions deletes every session of the caller except the one
// making the request.
func (u *Usecase) RevokeOtherSessions(ctx context.Context, sessionToken string) error {
	current, err := u.GetSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := u.sessions.DeleteUserSessions(ctx, current.Session.UserID, sessionToken); err != nil {
		return normalizeErr(err)
	}

	return nil
}
