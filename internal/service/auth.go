package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/repository"
	appErrors "libraryconnect.chat/pkg/errors"
	"libraryconnect.chat/pkg/jwt"
)

// RegisterRequest is the body of POST /api/users/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// LoginRequest is the body of POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"deviceId"`
	Platform string `json:"platform"`
}

// LoginResponse carries the account and a fresh token pair.
type LoginResponse struct {
	User  *model.User    `json:"user"`
	Token *jwt.TokenPair `json:"token"`
}

// AuthService handles accounts and sessions.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	tokens   *jwt.Service
	ids      IDGenerator
	cost     int
	now      func() time.Time
}

// NewAuthService creates an auth service.
func NewAuthService(users UserStore, sessions SessionStore, tokens *jwt.Service, ids IDGenerator) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		ids:      ids,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Register creates an account. Name must be 2 to 15 characters and password at least 6.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 15 {
		return nil, appErrors.ErrInvalidParams.WithMessage("name must be between 2 and 15 characters")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, appErrors.ErrInvalidParams.WithMessage("email is not valid")
	}
	if len(req.Password) < 6 {
		return nil, appErrors.ErrInvalidParams.WithMessage("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, appErrors.ErrServerError.Wrap(err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	user := &model.User{
		ID:           s.ids.Generate().Int64(),
		Name:         name,
		Email:        strings.ToLower(addr.Address),
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(req.Phone),
		Location:     strings.TrimSpace(req.Location),
		Avatar:       model.DefaultAvatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, appErrors.ErrEmailExists
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return user, nil
}

// Login checks credentials and opens a session for the device.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	pair, err := s.openSession(ctx, user, deviceID, jwt.ParsePlatform(req.Platform))
	if err != nil {
		return nil, err
	}
	return &LoginResponse{User: user, Token: pair}, nil
}

// Refresh exchanges a refresh token for a new pair on the same device.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErrors.ErrTokenInvalid
		}
		return nil, appErrors.ErrDBError.Wrap(err)
	}
	return s.openSession(ctx, user, claims.DeviceID, claims.Platform)
}

// Authenticate validates an access token and checks it was not revoked.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, tokenError(err)
	}
	info, err := s.sessions.Get(ctx, accessToken)
	if err != nil {
		return nil, appErrors.ErrServerError.Wrap(err)
	}
	if info == nil || info.UserID != claims.UserID {
		return nil, appErrors.ErrTokenInvalid
	}
	return claims, nil
}

// Logout revokes the access token.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims, accessToken string) error {
	if err := s.sessions.Delete(ctx, claims.UserID, string(claims.Platform), accessToken); err != nil {
		return appErrors.ErrServerError.Wrap(err)
	}
	return nil
}

func (s *AuthService) openSession(ctx context.Context, user *model.User, deviceID string, platform jwt.Platform) (*jwt.TokenPair, error) {
	pair, err := s.tokens.GenerateTokenPair(user.ID, deviceID, platform)
	if err != nil {
		return nil, appErrors.ErrServerError.Wrap(err)
	}
	info := &repository.SessionInfo{
		UserID:   user.ID,
		Name:     user.Name,
		DeviceID: deviceID,
		Platform: string(platform),
	}
	if err := s.sessions.Save(ctx, info, pair.AccessToken, s.tokens.AccessExpire()); err != nil {
		return nil, appErrors.ErrServerError.Wrap(err)
	}
	return pair, nil
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return appErrors.ErrTokenExpired
	}
	return appErrors.ErrTokenInvalid
}
