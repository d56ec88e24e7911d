package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

const minPasswordLength = 8

// SignUp registers a new account and opens its first session.
func (u *Usecase) SignUp(ctx context.Context, in SignUpInput) (SessionResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return SessionResult{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return SessionResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.bcryptCost)
	if err != nil {
		return SessionResult{}, pkgerror.NewServer(err)
	}

	now := u.clock.Now()
	user := entity.User{
		ID:           u.userID.Generate(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := u.users.CreateUser(ctx, user); err != nil {
		return SessionResult{}, normalizeErr(err)
	}

	session, err := u.openSession(ctx, user.ID, in.IPAddress, in.UserAgent)
	if err != nil {
		return SessionResult{}, err
	}

	u.publish(ctx, entity.EventSignedUp, user.ID, in.IPAddress)

	return SessionResult{User: user, Session: session}, nil
}

// SignIn verifies credentials and opens a session.
func (u *Usecase) SignIn(ctx context.Context, in SignInInput) (SessionResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return SessionResult{}, err
	}
	if in.Password == "" {
		return SessionResult{}, pkgerror.NewInvalidInput(errors.New("password is required"))
	}

	user, err := u.users.GetUserByEmail(ctx, email)
	if errors.Is(err, pkgerror.ErrNotFound) {
		// Burn a comparison so missing accounts cost the same as wrong
		// passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
		return SessionResult{}, errInvalidCredentials
	}
	if err != nil {
		return SessionResult{}, normalizeErr(err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return SessionResult{}, errInvalidCredentials
	}

	session, err := u.openSession(ctx, user.ID, in.IPAddress, in.UserAgent)
	if err != nil {
		return SessionResult{}, err
	}

	u.publish(ctx, entity.EventSignedIn, user.ID, in.IPAddress)

	return SessionResult{User: user, Session: session}, nil
}

// SignOut revokes the given session. Revoking an unknown token is not an
// error: the caller's goal state is already reached.
func (u *Usecase) SignOut(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return pkgerror.NewUnauthorized("no session to sign out of")
	}

	err := u.sessions.DeleteSession(ctx, sessionToken)
	if err != nil && !errors.Is(err, pkgerror.ErrNotFound) {
		return normalizeErr(err)
	}

	return nil
}

func (u *Usecase) openSession(ctx context.Context, userID int64, ip, userAgent string) (entity.Session, error) {
	now := u.clock.Now()
	session := entity.Session{
		Token:     u.token.Generate(),
		UserID:    userID,
		ExpiresAt: now.Add(u.sessionTTL),
		CreatedAt: now,
		IPAddress: ip,
		UserAgent: userAgent,
	}

	if err := u.sessions.CreateSession(ctx, session); err != nil {
		return entity.Session{}, normalizeErr(err)
	}

	return session, nil
}

// dummyHash is a bcrypt hash of an unguessable value, used to equalize
// timing between unknown-account and wrong-password failures.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", pkgerror.NewInvalidInput(errors.New("email is required"))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", pkgerror.NewInvalidInput(errors.New("invalid email address"))
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return pkgerror.NewInvalidInput(errors.New("password must be at least 8 characters"))
	}
	return nil
}
