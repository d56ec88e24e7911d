package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/auth/store"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type seqToken struct {
	n int
}

func (s *seqToken) Generate() string {
	s.n++
	return fmt.Sprintf("tok-%d", s.n)
}

type seqID struct {
	n int64
}

func (s *seqID) Generate() int64 {
	s.n++
	return s.n
}

// syncRunner executes submitted work inline so tests observe side effects
// without sleeping.
type syncRunner struct{}

func (syncRunner) Go(ctx context.Context, f func(ctx context.Context) error) {
	_ = f(ctx)
}

type captureMailer struct {
	emails []string
	tokens []string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, token)
	return nil
}

type captureTrail struct {
	events []entity.AuditEvent
}

func (t *captureTrail) Publish(_ context.Context, event entity.AuditEvent) error {
	t.events = append(t.events, event)
	return nil
}

func (t *captureTrail) kinds() []string {
	kinds := make([]string, 0, len(t.events))
	for _, event := range t.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type fixture struct {
	uc     *Usecase
	store  *store.Memory
	clock  *fixedClock
	mailer *captureMailer
	trail  *captureTrail
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	memory := store.NewMemory()
	clock := &fixedClock{now: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)}
	mailer := &captureMailer{}
	trail := &captureTrail{}

	uc := New(Dependency{
		Users:         memory,
		Sessions:      memory,
		Verifications: memory,
		Mailer:        mailer,
		Runner:        syncRunner{},
		Clock:         clock,
		Trail:         trail,
		Token:         &seqToken{},
		UserID:        &seqID{},
		EventID:       &seqToken{n: 1000},
		SessionTTL:    24 * time.Hour,
		ResetTTL:      time.Hour,
		BcryptCost:    bcrypt.MinCost,
	})

	return &fixture{uc: uc, store: memory, clock: clock, mailer: mailer, trail: trail}
}

func (f *fixture) signUp(t *testing.T, email string) SessionResult {
	t.Helper()

	result, err := f.uc.SignUp(context.Background(), SignUpInput{
		Email:    email,
		Password: "correct-horse",
		Name:     "Tester",
	})
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	return result
}

func errCode(t *testing.T, err error) pkgerror.Code {
	t.Helper()

	var perr *pkgerror.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected a structured error, got %v", err)
	}
	return perr.Code()
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result := f.signUp(t, "A@B.C")
	if result.User.Email != "a@b.c" {
		t.Fatalf("email must be normalized, got %q", result.User.Email)
	}
	if result.Session.Token == "" {
		t.Fatal("sign up must open a session")
	}
	if bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte("correct-horse")) != nil {
		t.Fatal("stored hash does not match the password")
	}

	_, err := f.uc.SignUp(ctx, SignUpInput{Email: "a@b.c", Password: "correct-horse"})
	if errCode(t, err) != pkgerror.CodeConflict {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}

	_, err = f.uc.SignUp(ctx, SignUpInput{Email: "not-an-email", Password: "correct-horse"})
	if errCode(t, err) != pkgerror.CodeInvalidInput {
		t.Fatalf("expected invalid input for bad email, got %v", err)
	}

	_, err = f.uc.SignUp(ctx, SignUpInput{Email: "b@b.c", Password: "short"})
	if errCode(t, err) != pkgerror.CodeInvalidInput {
		t.Fatalf("expected invalid input for short password, got %v", err)
	}

	if kinds := f.trail.kinds(); len(kinds) == 0 || kinds[0] != entity.EventSignedUp {
		t.Fatalf("expected a signed-up audit event, got %v", kinds)
	}
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "a@b.c")

	result, err := f.uc.SignIn(ctx, SignInInput{Email: "a@b.c", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if result.Session.UserID != result.User.ID {
		t.Fatal("session must belong to the signed-in user")
	}

	_, err = f.uc.SignIn(ctx, SignInInput{Email: "a@b.c", Password: "wrong-password"})
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}

	_, err = f.uc.SignIn(ctx, SignInInput{Email: "missing@b.c", Password: "correct-horse"})
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for unknown account, got %v", err)
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	if err := f.uc.SignOut(ctx, result.Session.Token); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := f.uc.GetSession(ctx, result.Session.Token); errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("session must be gone after sign out, got %v", err)
	}

	// Revoking an already-revoked token is idempotent.
	if err := f.uc.SignOut(ctx, result.Session.Token); err != nil {
		t.Fatalf("second sign out: %v", err)
	}

	if err := f.uc.SignOut(ctx, ""); errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for empty token, got %v", err)
	}
}

func TestGetSessionExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	f.clock.now = f.clock.now.Add(25 * time.Hour)

	_, err := f.uc.GetSession(ctx, result.Session.Token)
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for expired session, got %v", err)
	}

	// The stale record is removed on the way.
	if _, err := f.store.GetSession(ctx, result.Session.Token); !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatalf("expired session must be deleted, got %v", err)
	}
}

func TestGetSessionSlidingRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	// Less than half the lifetime left: the expiry slides forward.
	f.clock.now = f.clock.now.Add(13 * time.Hour)

	got, err := f.uc.GetSession(ctx, result.Session.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	want := f.clock.now.Add(24 * time.Hour)
	if !got.Session.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got.Session.ExpiresAt)
	}

	stored, err := f.store.GetSession(ctx, result.Session.Token)
	if err != nil || !stored.ExpiresAt.Equal(want) {
		t.Fatalf("refresh must be persisted: %v %v", err, stored.ExpiresAt)
	}
}

func TestListSessionsFiltersExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	expired := entity.Session{
		Token:     "stale",
		UserID:    result.User.ID,
		ExpiresAt: f.clock.now.Add(-time.Minute),
	}
	if err := f.store.CreateSession(ctx, expired); err != nil {
		t.Fatalf("seed expired session: %v", err)
	}

	sessions, err := f.uc.ListSessions(ctx, result.Session.Token)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Token != result.Session.Token {
		t.Fatalf("expected only the live session, got %+v", sessions)
	}
}

func TestRevokeSessionOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.signUp(t, "alice@b.c")
	bob := f.signUp(t, "bob@b.c")

	err := f.uc.RevokeSession(ctx, alice.Session.Token, bob.Session.Token)
	if errCode(t, err) != pkgerror.CodeForbidden {
		t.Fatalf("expected forbidden revoking another user's session, got %v", err)
	}

	second, err := f.uc.SignIn(ctx, SignInInput{Email: "alice@b.c", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	if err := f.uc.RevokeSession(ctx, alice.Session.Token, second.Session.Token); err != nil {
		t.Fatalf("revoke own session: %v", err)
	}
	if _, err := f.store.GetSession(ctx, second.Session.Token); !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatal("revoked session must be deleted")
	}
}

func TestRevokeOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.signUp(t, "a@b.c")

	second, err := f.uc.SignIn(ctx, SignInInput{Email: "a@b.c", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	if err := f.uc.RevokeOtherSessions(ctx, first.Session.Token); err != nil {
		t.Fatalf("revoke other sessions: %v", err)
	}

	if _, err := f.uc.GetSession(ctx, first.Session.Token); err != nil {
		t.Fatalf("current session must survive: %v", err)
	}
	if _, err := f.store.GetSession(ctx, second.Session.Token); !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatal("other session must be revoked")
	}
}

func TestForgetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "a@b.c")

	// Unknown accounts get the same silent success as known ones.
	if err := f.uc.ForgetPassword(ctx, ForgetPasswordInput{Email: "missing@b.c"}); err != nil {
		t.Fatalf("forget password for unknown account: %v", err)
	}
	if len(f.mailer.emails) != 0 {
		t.Fatal("no mail may be sent for unknown accounts")
	}

	if err := f.uc.ForgetPassword(ctx, ForgetPasswordInput{Email: "a@b.c"}); err != nil {
		t.Fatalf("forget password: %v", err)
	}
	if len(f.mailer.emails) != 1 || f.mailer.emails[0] != "a@b.c" {
		t.Fatalf("expected one reset mail, got %v", f.mailer.emails)
	}
	if len(f.mailer.tokens) != 1 || f.mailer.tokens[0] == "" {
		t.Fatalf("expected a reset token in the mail, got %v", f.mailer.tokens)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	if err := f.uc.ForgetPassword(ctx, ForgetPasswordInput{Email: "a@b.c"}); err != nil {
		t.Fatalf("forget password: %v", err)
	}
	token := f.mailer.tokens[0]

	err := f.uc.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "brand-new-pass"})
	if err != nil {
		t.Fatalf("reset password: %v", err)
	}

	// Every session is revoked and the new password works.
	if _, err := f.uc.GetSession(ctx, result.Session.Token); errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("sessions must be revoked after a reset, got %v", err)
	}
	if _, err := f.uc.SignIn(ctx, SignInInput{Email: "a@b.c", Password: "brand-new-pass"}); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}

	// The token is single-use.
	err = f.uc.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "another-pass-1"})
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for reused token, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "a@b.c")

	if err := f.uc.ForgetPassword(ctx, ForgetPasswordInput{Email: "a@b.c"}); err != nil {
		t.Fatalf("forget password: %v", err)
	}
	token := f.mailer.tokens[0]

	f.clock.now = f.clock.now.Add(2 * time.Hour)

	err := f.uc.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "brand-new-pass"})
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	err := f.uc.ChangePassword(ctx, ChangePasswordInput{
		SessionToken:    result.Session.Token,
		CurrentPassword: "wrong-password",
		NewPassword:     "brand-new-pass",
	})
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized for wrong current password, got %v", err)
	}

	other, err := f.uc.SignIn(ctx, SignInInput{Email: "a@b.c", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	err = f.uc.ChangePassword(ctx, ChangePasswordInput{
		SessionToken:    result.Session.Token,
		CurrentPassword: "correct-horse",
		NewPassword:     "brand-new-pass",
		RevokeOthers:    true,
	})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := f.uc.GetSession(ctx, result.Session.Token); err != nil {
		t.Fatalf("current session must survive: %v", err)
	}
	if _, err := f.store.GetSession(ctx, other.Session.Token); !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatal("other sessions must be revoked when requested")
	}
	if _, err := f.uc.SignIn(ctx, SignInInput{Email: "a@b.c", Password: "brand-new-pass"}); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result := f.signUp(t, "a@b.c")

	err := f.uc.DeleteUser(ctx, DeleteUserInput{
		SessionToken: result.Session.Token,
		Password:     "wrong-password",
	})
	if errCode(t, err) != pkgerror.CodeUnauthorized {
		t.Fatalf("expected unauthorized without password confirmation, got %v", err)
	}

	err = f.uc.DeleteUser(ctx, DeleteUserInput{
		SessionToken: result.Session.Token,
		Password:     "correct-horse",
	})
	if err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, err := f.store.GetUser(ctx, result.User.ID); !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatal("user must be removed")
	}
	if _, err := f.store.GetSession(ctx, result.Session.Token); !errors.Is(err, pkgerror.ErrNotFound) {
		t.Fatal("sessions must be removed with the account")
	}

	kinds := f.trail.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != entity.EventUserDeleted {
		t.Fatalf("expected a user-deleted audit event, got %v", kinds)
	}
}
