package memory

import (
	"context"
	"strings"
	"sync"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/repository"
)

// UserStore keeps users in process memory. Suitable for local runs and tests.
type UserStore struct {
	mu      sync.RWMutex
	users   map[int64]model.User
	byEmail map[string]int64
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[int64]model.User),
		byEmail: make(map[string]int64),
	}
}

// Create rejects an email already taken, ignoring case.
func (s *UserStore) Create(_ context.Context, user *model.User) error {
	email := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return repository.ErrEmailExists
	}
	s.users[user.ID] = *user
	s.byEmail[email] = user.ID
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *UserStore) GetByIDs(_ context.Context, ids []int64) (map[int64]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = &u
		}
	}
	return out, nil
}

// Delete removes a user. Their messages stay behind, as they would in the database.
func (s *UserStore) Delete(_ context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		delete(s.byEmail, strings.ToLower(u.Email))
		delete(s.users, id)
	}
}
