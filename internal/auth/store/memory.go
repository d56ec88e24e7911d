package store

import (
	"context"
	"sync"

	"github.com/nalonix/better-auth/internal/auth/entity"
	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// Memory keeps users, sessions and verification tokens in process memory.
// It is the default driver for development and the reference implementation
// the other drivers are tested against.
type Memory struct {
	mu            sync.RWMutex
	users         map[int64]entity.User
	usersByEmail  map[string]int64
	sessions      map[string]entity.Session
	verifications map[string]entity.Verification
}

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[int64]entity.User),
		usersByEmail:  make(map[string]int64),
		sessions:      make(map[string]entity.Session),
		verifications: make(map[string]entity.Verification),
	}
}

func (s *Memory) CreateUser(ctx context.Context, user entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return pkgerror.NewConflict("an account with this email already exists")
	}

	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user.ID

	return nil
}

func (s *Memory) GetUser(ctx context.Context, id int64) (entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return entity.User{}, pkgerror.ErrNotFound
	}

	return user, nil
}

func (s *Memory) GetUserByEmail(ctx context.Context, email string) (entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return entity.User{}, pkgerror.ErrNotFound
	}

	return s.users[id], nil
}

func (s *Memory) UpdatePassword(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return pkgerror.ErrNotFound
	}

	user.PasswordHash = hash
	s.users[id] = user

	return nil
}

func (s *Memory) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return pkgerror.ErrNotFound
	}

	delete(s.usersByEmail, user.Email)
	delete(s.users, id)

	return nil
}

func (s *Memory) CreateSession(ctx context.Context, session entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = session

	return nil
}

func (s *Memory) GetSession(ctx context.Context, token string) (entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return entity.Session{}, pkgerror.ErrNotFound
	}

	return session, nil
}

func (s *Memory) RefreshSession(ctx context.Context, token string, session entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return pkgerror.ErrNotFound
	}

	s.sessions[token] = session

	return nil
}

func (s *Memory) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return pkgerror.ErrNotFound
	}

	delete(s.sessions, token)

	return nil
}

func (s *Memory) DeleteUserSessions(ctx context.Context, userID int64, exceptToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if session.UserID == userID && token != exceptToken {
			delete(s.sessions, token)
		}
	}

	return nil
}

func (s *Memory) ListUserSessions(ctx context.Context, userID int64) ([]entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []entity.Session
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}

	return sessions, nil
}

func (s *Memory) CreateVerification(ctx context.Context, v entity.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.verifications[v.Token] = v

	return nil
}

func (s *Memory) ConsumeVerification(ctx context.Context, token string) (entity.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[token]
	if !ok {
		return entity.Verification{}, pkgerror.ErrNotFound
	}

	delete(s.verifications, token)

	return v, nil
}
