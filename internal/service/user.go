package service

import (
	"context"
	"errors"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/repository"
	appErrors "libraryconnect.chat/pkg/errors"
)

// UserService reads profiles.
type UserService struct {
	users UserStore
}

// NewUserService creates a user service.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// Me returns the caller's own account, email and phone included.
func (s *UserService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return user, nil
}

// Profile returns what any signed-in user may see about userID.
func (s *UserService) Profile(ctx context.Context, userID int64) (*model.PublicProfile, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	return &profile, nil
}
