package usecase

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// ForgetPassword issues a reset token and mails it asynchronously. The
// response is identical whether or not the account exists, so the endpoint
// cannot be used to enumerate accounts.
func (u *Usecase) ForgetPassword(ctx context.Context, in ForgetPasswordInput) error {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return err
	}

	user, err := u.users.GetUserByEmail(ctx, email)
	if errors.Is(err, pkgerror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return normalizeErr(err)
	}

	now := u.clock.Now()
	verification := entity.Verification{
		Token:     u.token.Generate(),
		UserID:    user.ID,
		Purpose:   entity.PurposePasswordReset,
		ExpiresAt: now.Add(u.resetTTL),
		CreatedAt: now,
	}

	if err := u.verifications.CreateVerification(ctx, verification); err != nil {
		return normalizeErr(err)
	}

	u.runner.Go(u.rootCtx, func(ctx context.Context) error {
		if err := u.mailer.SendPasswordReset(ctx, user.Email, verification.Token); err != nil {
			slog.ErrorContext(ctx, "failed to deliver password reset mail", "error", err)
			return err
		}
		return nil
	})

	return nil
}

// ResetPassword consumes a reset token, stores the new password hash and
// revokes every session of the affected user.
func (u *Usecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if in.Token == "" {
		return pkgerror.NewInvalidInput(errors.New("token is required"))
	}
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	verification, err := u.verifications.ConsumeVerification(ctx, in.Token)
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewUnauthorized("invalid or expired reset token")
	}
	if err != nil {
		return normalizeErr(err)
	}

	if verification.Purpose != entity.PurposePasswordReset || verification.ExpiresAt.Before(u.clock.Now()) {
		return pkgerror.NewUnauthorized("invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), u.bcryptCost)
	if err != nil {
		return pkgerror.NewServer(err)
	}

	if err := u.users.UpdatePassword(ctx, verification.UserID, string(hash)); err != nil {
		return mapUserErr(err)
	}

	if err := u.sessions.DeleteUserSessions(ctx, verification.UserID, ""); err != nil {
		return normalizeErr(err)
	}

	u.publish(ctx, entity.EventPasswordReset, verification.UserID, "")

	return nil
}

// ChangePassword re-hashes the password of an authenticated caller after
// verifying the current one.
func (u *Usecase) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	current, err := u.GetSession(ctx, in.SessionToken)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(current.User.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return pkgerror.NewUnauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), u.bcryptCost)
	if err != nil {
		return pkgerror.NewServer(err)
	}

	if err := u.users.UpdatePassword(ctx, current.User.ID, string(hash)); err != nil {
		return mapUserErr(err)
	}

	if in.RevokeOthers {
		if err := u.sessions.DeleteUserSessions(ctx, current.User.ID, in.SessionToken); err != nil {
			return normalizeErr(err)
		}
	}

	return nil
}
