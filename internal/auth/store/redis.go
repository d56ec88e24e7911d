package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

const (
	sessionKeyPrefix      = "auth:session:"
	userSessionsKeyPrefix = "auth:user_sessions:"
	verificationKeyPrefix = "auth:verification:"
)

// Redis is the secondary session storage: sessions and verification tokens
// live in Redis with native TTLs, while user records stay in the primary
// store. A set per user indexes that user's session tokens for listing and
// bulk revocation.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Close releases the underlying client connection pool.
func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) CreateSession(ctx context.Context, session entity.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return pkgerror.NewServer(err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return pkgerror.NewServer(errors.New("session already expired"))
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.Token, raw, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), session.Token)
	pipe.ExpireGT(ctx, userSessionsKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerror.NewServer(err)
	}

	return nil
}

func (s *Redis) GetSession(ctx context.Context, token string) (entity.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.Session{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Session{}, pkgerror.NewServer(err)
	}

	var session entity.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return entity.Session{}, pkgerror.NewServer(err)
	}

	return session, nil
}

func (s *Redis) RefreshSession(ctx context.Context, token string, session entity.Session) error {
	if _, err := s.GetSession(ctx, token); err != nil {
		return err
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return pkgerror.NewServer(err)
	}

	ttl := time.Until(session.ExpiresAt)
	if err := s.client.Set(ctx, sessionKeyPrefix+token, raw, ttl).Err(); err != nil {
		return pkgerror.NewServer(err)
	}

	return nil
}

func (s *Redis) DeleteSession(ctx context.Context, token string) error {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+token)
	pipe.SRem(ctx, userSessionsKey(session.UserID), token)
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerror.NewServer(err)
	}

	return nil
}

func (s *Redis) DeleteUserSessions(ctx context.Context, userID int64, exceptToken string) error {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return pkgerror.NewServer(err)
	}

	pipe := s.client.TxPipeline()
	for _, token := range tokens {
		if token == exceptToken {
			continue
		}
		pipe.Del(ctx, sessionKeyPrefix+token)
		pipe.SRem(ctx, userSessionsKey(userID), token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return pkgerror.NewServer(err)
	}

	return nil
}

func (s *Redis) ListUserSessions(ctx context.Context, userID int64) ([]entity.Session, error) {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, pkgerror.NewServer(err)
	}

	var sessions []entity.Session
	for _, token := range tokens {
		session, err := s.GetSession(ctx, token)
		if errors.Is(err, pkgerror.ErrNotFound) {
			// Session key expired but the index entry lingered; clean it up.
			s.client.SRem(ctx, userSessionsKey(userID), token)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (s *Redis) CreateVerification(ctx context.Context, v entity.Verification) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return pkgerror.NewServer(err)
	}

	ttl := time.Until(v.ExpiresAt)
	if ttl <= 0 {
		return pkgerror.NewServer(errors.New("verification already expired"))
	}

	if err := s.client.Set(ctx, verificationKeyPrefix+v.Token, raw, ttl).Err(); err != nil {
		return pkgerror.NewServer(err)
	}

	return nil
}

func (s *Redis) ConsumeVerification(ctx context.Context, token string) (entity.Verification, error) {
	raw, err := s.client.GetDel(ctx, verificationKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.Verification{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Verification{}, pkgerror.NewServer(err)
	}

	var v entity.Verification
	if err := json.Unmarshal(raw, &v); err != nil {
		return entity.Verification{}, pkgerror.NewServer(err)
	}

	return v, nil
}

func userSessionsKey(userID int64) string {
	return userSessionsKeyPrefix + formatID(userID)
}
