package usecase

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// DeleteUser removes the caller's account and every session attached to it.
// The password must be re-confirmed even with a valid session.
func (u *Usecase) DeleteUser(ctx context.Context, in DeleteUserInput) error {
	current, err := u.GetSession(ctx, in.SessionToken)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(current.User.PasswordHash), []byte(in.Password)) != nil {
		return pkgerror.NewUnauthorized("password confirmation failed")
	}

	if err := u.sessions.DeleteUserSessions(ctx, current.User.ID, ""); err != nil {
		return normalizeErr(err)
	}

	if err := u.users.DeleteUser(ctx, current.User.ID); err != nil {
		return mapUserErr(err)
	}

	u.publish(ctx, entity.EventUserDeleted, current.User.ID, current.Session.IPAddress)

	return nil
}
