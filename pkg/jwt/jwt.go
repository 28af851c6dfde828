package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "libraryconnect-chat"

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Platform identifies the kind of client a session belongs to.
type Platform string

const (
	PlatformUnknown  Platform = "unknown"
	PlatformWeb      Platform = "web"
	PlatformMobile   Platform = "mobile"
	PlatformTerminal Platform = "terminal"
)

// ParsePlatform maps free-form input onto a known Platform.
func ParsePlatform(s string) Platform {
	switch Platform(s) {
	case PlatformWeb, PlatformMobile, PlatformTerminal:
		return Platform(s)
	default:
		return PlatformUnknown
	}
}

type Claims struct {
	UserID    int64     `json:"uid"`
	DeviceID  string    `json:"did"`
	Platform  Platform  `json:"plt"`
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Service signs and verifies HS256 tokens.
type Service struct {
	secret        []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
	now           func() time.Time
}

func NewService(secret string, accessExpire, refreshExpire time.Duration) *Service {
	return &Service{
		secret:        []byte(secret),
		accessExpire:  accessExpire,
		refreshExpire: refreshExpire,
		now:           time.Now,
	}
}

// GenerateTokenPair issues an access and a refresh token for one device session.
func (s *Service) GenerateTokenPair(userID int64, deviceID string, platform Platform) (*TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.accessExpire)

	access, err := s.sign(userID, deviceID, platform, AccessToken, now, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, deviceID, platform, RefreshToken, now, now.Add(s.refreshExpire))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExp.Unix(),
	}, nil
}

func (s *Service) sign(userID int64, deviceID string, platform Platform, typ TokenType, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID:    userID,
		DeviceID:  deviceID,
		Platform:  platform,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.validate(token, AccessToken)
}

func (s *Service) ValidateRefreshToken(token string) (*Claims, error) {
	return s.validate(token, RefreshToken)
}

// AccessExpire is the lifetime of access tokens; the session store uses it as TTL.
func (s *Service) AccessExpire() time.Duration {
	return s.accessExpire
}

func (s *Service) validate(tokenString string, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != expected {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
