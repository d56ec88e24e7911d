package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// Postgres is the production primary store. Schema errors (for example a
// missed migration) are passed through unwrapped so the dispatch error
// classifier can recognize the driver's "relation ... does not exist"
// wording and log a migration hint.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) CreateUser(ctx context.Context, user entity.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auth_users (id, email, name, password_hash, email_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.EmailVerified, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return pkgerror.NewConflict("an account with this email already exists")
	}

	return err
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (entity.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, email_verified, created_at, updated_at
		 FROM auth_users WHERE id = $1`, id,
	))
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (entity.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, email_verified, created_at, updated_at
		 FROM auth_users WHERE email = $1`, email,
	))
}

func (s *Postgres) scanUser(row pgx.Row) (entity.User, error) {
	var user entity.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&user.EmailVerified, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.User{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.User{}, err
	}

	return user, nil
}

func (s *Postgres) UpdatePassword(ctx context.Context, id int64, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auth_users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pkgerror.ErrNotFound
	}

	return nil
}

func (s *Postgres) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pkgerror.ErrNotFound
	}

	return nil
}

func (s *Postgres) CreateSession(ctx context.Context, session entity.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auth_sessions (token, user_id, expires_at, created_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.Token, session.UserID, session.ExpiresAt, session.CreatedAt,
		session.IPAddress, session.UserAgent,
	)

	return err
}

func (s *Postgres) GetSession(ctx context.Context, token string) (entity.Session, error) {
	var session entity.Session
	err := s.pool.QueryRow(ctx,
		`SELECT token, user_id, expires_at, created_at, ip_address, user_agent
		 FROM auth_sessions WHERE token = $1`, token,
	).Scan(&session.Token, &session.UserID, &session.ExpiresAt,
		&session.CreatedAt, &session.IPAddress, &session.UserAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Session{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Session{}, err
	}

	return session, nil
}

func (s *Postgres) RefreshSession(ctx context.Context, token string, session entity.Session) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auth_sessions SET expires_at = $2 WHERE token = $1`, token, session.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pkgerror.ErrNotFound
	}

	return nil
}

func (s *Postgres) DeleteSession(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pkgerror.ErrNotFound
	}

	return nil
}

func (s *Postgres) DeleteUserSessions(ctx context.Context, userID int64, exceptToken string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM auth_sessions WHERE user_id = $1 AND token <> $2`, userID, exceptToken)

	return err
}

func (s *Postgres) ListUserSessions(ctx context.Context, userID int64) ([]entity.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT token, user_id, expires_at, created_at, ip_address, user_agent
		 FROM auth_sessions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []entity.Session
	for rows.Next() {
		var session entity.Session
		if err := rows.Scan(&session.Token, &session.UserID, &session.ExpiresAt,
			&session.CreatedAt, &session.IPAddress, &session.UserAgent); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (s *Postgres) CreateVerification(ctx context.Context, v entity.Verification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auth_verifications (token, user_id, purpose, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.Token, v.UserID, v.Purpose, v.ExpiresAt, v.CreatedAt,
	)

	return err
}

func (s *Postgres) ConsumeVerification(ctx context.Context, token string) (entity.Verification, error) {
	var v entity.Verification
	err := s.pool.QueryRow(ctx,
		`DELETE FROM auth_verifications WHERE token = $1
		 RETURNING token, user_id, purpose, expires_at, created_at`, token,
	).Scan(&v.Token, &v.UserID, &v.Purpose, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Verification{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Verification{}, err
	}

	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
