package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"libraryconnect.chat/internal/repository/memory"
	appErrors "libraryconnect.chat/pkg/errors"
	"libraryconnect.chat/pkg/jwt"
	"libraryconnect.chat/pkg/snowflake"
)

func newAuthService(t *testing.T) (*AuthService, *memory.UserStore) {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	users := memory.NewUserStore()
	svc := NewAuthService(users, memory.NewSessionStore(), jwt.NewService("test-secret", time.Hour, 24*time.Hour), node)
	svc.cost = bcrypt.MinCost
	return svc, users
}

func TestRegister(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{
		Name:     " Maya ",
		Email:    "Maya@Example.com",
		Password: "hunter22",
		Location: "Lisbon",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Maya", user.Name)
	assert.Equal(t, "maya@example.com", user.Email)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	_, err = svc.Register(ctx, &RegisterRequest{Name: "Maya Two", Email: "maya@example.com", Password: "hunter22"})
	assert.True(t, appErrors.Is(err, appErrors.ErrEmailExists))
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newAuthService(t)

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"short name", RegisterRequest{Name: "a", Email: "a@example.com", Password: "secret1"}},
		{"long name", RegisterRequest{Name: "abcdefghijklmnop", Email: "a@example.com", Password: "secret1"}},
		{"bad email", RegisterRequest{Name: "abc", Email: "not-an-email", Password: "secret1"}},
		{"short password", RegisterRequest{Name: "abc", Email: "a@example.com", Password: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &tt.req)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidParams), "got %v", err)
		})
	}
}

func TestLoginAuthenticateLogout(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Name: "Noor", Email: "noor@example.com", Password: "pa55word"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &LoginRequest{Email: "noor@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
	_, err = svc.Login(ctx, &LoginRequest{Email: "ghost@example.com", Password: "pa55word"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	resp, err := svc.Login(ctx, &LoginRequest{Email: "noor@example.com", Password: "pa55word", Platform: "terminal"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)

	claims, err := svc.Authenticate(ctx, resp.Token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, jwt.PlatformTerminal, claims.Platform)
	assert.NotEmpty(t, claims.DeviceID, "device id is generated when absent")

	require.NoError(t, svc.Logout(ctx, claims, resp.Token.AccessToken))
	_, err = svc.Authenticate(ctx, resp.Token.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid), "revoked token is rejected")
}

func TestRefresh(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Name: "Ola", Email: "ola@example.com", Password: "pa55word"})
	require.NoError(t, err)
	resp, err := svc.Login(ctx, &LoginRequest{Email: "ola@example.com", Password: "pa55word", DeviceID: "laptop"})
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, resp.Token.RefreshToken)
	require.NoError(t, err)

	claims, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "laptop", claims.DeviceID)

	_, err = svc.Refresh(ctx, resp.Token.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenInvalid))
}

func TestUserService(t *testing.T) {
	authSvc, users := newAuthService(t)
	ctx := context.Background()
	user, err := authSvc.Register(ctx, &RegisterRequest{Name: "Pia", Email: "pia@example.com", Password: "pa55word", Phone: "123"})
	require.NoError(t, err)

	svc := NewUserService(users)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "123", me.Phone)

	profile, err := svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pia", profile.Name)

	_, err = svc.Profile(ctx, 1)
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotFound))
}
