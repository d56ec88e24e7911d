package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
	"github.com/nalonix/better-auth/internal/pkg/pkguid"
)

type UserStore interface {
	CreateUser(ctx context.Context, user entity.User) error
	GetUser(ctx context.Context, id int64) (entity.User, error)
	GetUserByEmail(ctx context.Context, email string) (entity.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, session entity.Session) error
	GetSession(ctx context.Context, token string) (entity.Session, error)
	RefreshSession(ctx context.Context, token string, session entity.Session) error
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID int64, exceptToken string) error
	ListUserSessions(ctx context.Context, userID int64) ([]entity.Session, error)
}

type VerificationStore interface {
	CreateVerification(ctx context.Context, v entity.Verification) error
	ConsumeVerification(ctx context.Context, token string) (entity.Verification, error)
}

// Mailer delivers user-facing mail. Delivery runs asynchronously; failures
// are logged, never surfaced to the caller.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error)
}

// Trail receives audit events. Publishing is best effort; failures are
// logged and never block the operation that produced the event.
type Trail interface {
	Publish(ctx context.Context, event entity.AuditEvent) error
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Users         UserStore
	Sessions      SessionStore
	Verifications VerificationStore
	Mailer        Mailer
	Runner        Runner
	Clock         Clock
	Trail         Trail
	Token         pkguid.StringID
	UserID        pkguid.NumberID
	EventID       pkguid.StringID
	RootCtx       context.Context

	SessionTTL time.Duration
	ResetTTL   time.Duration
	BcryptCost int
}

type Usecase struct {
	users         UserStore
	sessions      SessionStore
	verifications VerificationStore
	mailer        Mailer
	runner        Runner
	clock         Clock
	trail         Trail
	token         pkguid.StringID
	userID        pkguid.NumberID
	eventID       pkguid.StringID
	rootCtx       context.Context

	sessionTTL time.Duration
	resetTTL   time.Duration
	bcryptCost int
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	mailer := dep.Mailer
	if mailer == nil {
		mailer = logMailer{}
	}

	sessionTTL := dep.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}

	resetTTL := dep.ResetTTL
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}

	cost := dep.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	eventID := dep.EventID
	if eventID == nil {
		eventID = pkguid.NewUUID()
	}

	return &Usecase{
		users:         dep.Users,
		sessions:      dep.Sessions,
		verifications: dep.Verifications,
		mailer:        mailer,
		runner:        dep.Runner,
		clock:         clock,
		trail:         dep.Trail,
		token:         dep.Token,
		userID:        dep.UserID,
		eventID:       eventID,
		rootCtx:       root,
		sessionTTL:    sessionTTL,
		resetTTL:      resetTTL,
		bcryptCost:    cost,
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// logMailer is the development fallback: reset tokens land in the service
// log instead of an inbox.
type logMailer struct{}

func (logMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	slog.InfoContext(ctx, "password reset requested", "email", email, "token", token)
	return nil
}

// SessionTTL exposes the configured session lifetime for cookie MaxAge.
func (u *Usecase) SessionTTL() time.Duration {
	return u.sessionTTL
}

func (u *Usecase) publish(ctx context.Context, kind string, userID int64, ip string) {
	if u.trail == nil {
		return
	}

	err := u.trail.Publish(ctx, entity.AuditEvent{
		EventID:   u.eventID.Generate(),
		Kind:      kind,
		UserID:    userID,
		IPAddress: ip,
		At:        u.clock.Now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish audit event", "kind", kind, "error", err)
	}
}

var errInvalidCredentials = pkgerror.NewUnauthorized("invalid email or password")

func mapUserErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewBusiness("user not found", pkgerror.CodeNotFound)
	}
	return normalizeErr(err)
}

func mapSessionErr(err error) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewUnauthorized("session not found or expired")
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
