package store

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/nalonix/better-auth/internal/auth/entity"
)

// SessionReader is the subset of session storage the cache decorates.
type SessionReader interface {
	CreateSession(ctx context.Context, session entity.Session) error
	GetSession(ctx context.Context, token string) (entity.Session, error)
	RefreshSession(ctx context.Context, token string, session entity.Session) error
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID int64, exceptToken string) error
	ListUserSessions(ctx context.Context, userID int64) ([]entity.Session, error)
}

// SessionCache is a read-through cache in front of a session store. Session
// lookups happen on every authenticated request, so hits skip the backing
// store entirely; every write or revocation invalidates the affected tokens.
type SessionCache struct {
	inner SessionReader
	cache *ristretto.Cache[string, entity.Session]
}

func NewSessionCache(inner SessionReader, maxSessions int64) (*SessionCache, error) {
	if maxSessions <= 0 {
		maxSessions = 10_000
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, entity.Session]{
		NumCounters: maxSessions * 10,
		MaxCost:     maxSessions,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &SessionCache{inner: inner, cache: cache}, nil
}

// Close releases the cache's internal goroutines.
func (s *SessionCache) Close() error {
	s.cache.Close()
	return nil
}

func (s *SessionCache) CreateSession(ctx context.Context, session entity.Session) error {
	if err := s.inner.CreateSession(ctx, session); err != nil {
		return err
	}

	s.cache.SetWithTTL(session.Token, session, 1, time.Until(session.ExpiresAt))

	return nil
}

func (s *SessionCache) GetSession(ctx context.Context, token string) (entity.Session, error) {
	if session, ok := s.cache.Get(token); ok {
		return session, nil
	}

	session, err := s.inner.GetSession(ctx, token)
	if err != nil {
		return entity.Session{}, err
	}

	s.cache.SetWithTTL(token, session, 1, time.Until(session.ExpiresAt))

	return session, nil
}

func (s *SessionCache) RefreshSession(ctx context.Context, token string, session entity.Session) error {
	if err := s.inner.RefreshSession(ctx, token, session); err != nil {
		return err
	}

	s.cache.SetWithTTL(token, session, 1, time.Until(session.ExpiresAt))

	return nil
}

func (s *SessionCache) DeleteSession(ctx context.Context, token string) error {
	err := s.inner.DeleteSession(ctx, token)
	s.cache.Del(token)

	return err
}

func (s *SessionCache) DeleteUserSessions(ctx context.Context, userID int64, exceptToken string) error {
	// Collect the tokens before the backing store forgets them, so the
	// cache can drop exactly the affected entries.
	sessions, listErr := s.inner.ListUserSessions(ctx, userID)

	if err := s.inner.DeleteUserSessions(ctx, userID, exceptToken); err != nil {
		return err
	}

	if listErr == nil {
		for _, session := range sessions {
			if session.Token != exceptToken {
				s.cache.Del(session.Token)
			}
		}
	}

	return nil
}

func (s *SessionCache) ListUserSessions(ctx context.Context, userID int64) ([]entity.Session, error) {
	return s.inner.ListUserSessions(ctx, userID)
}
