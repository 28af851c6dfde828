package memory

import (
	"context"
	"sync"
	"time"

	"libraryconnect.chat/internal/repository"
)

type session struct {
	info      repository.SessionInfo
	expiresAt time.Time
}

type userPlatform struct {
	userID   int64
	platform string
}

// SessionStore mirrors repository.TokenRepository without Redis.
type SessionStore struct {
	mu      sync.Mutex
	byToken map[string]session
	byUser  map[userPlatform]string
	now     func() time.Time
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken: make(map[string]session),
		byUser:  make(map[userPlatform]string),
		now:     time.Now,
	}
}

func (s *SessionStore) Save(_ context.Context, info *repository.SessionInfo, accessToken string, ttl time.Duration) error {
	key := userPlatform{info.UserID, info.Platform}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[key]; ok && old != accessToken {
		delete(s.byToken, old)
	}
	s.byUser[key] = accessToken
	s.byToken[accessToken] = session{info: *info, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *SessionStore) Get(_ context.Context, accessToken string) (*repository.SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[accessToken]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(sess.expiresAt) {
		delete(s.byToken, accessToken)
		return nil, nil
	}
	info := sess.info
	return &info, nil
}

func (s *SessionStore) Delete(_ context.Context, userID int64, platform, accessToken string) error {
	key := userPlatform{userID, platform}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byToken, accessToken)
	if s.byUser[key] == accessToken {
		delete(s.byUser, key)
	}
	return nil
}
