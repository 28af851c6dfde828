package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"libraryconnect.chat/pkg/jwt"
	"libraryconnect.chat/pkg/response"
)

const (
	ctxUserID   = "user_id"
	ctxDeviceID = "device_id"
	ctxClaims   = "claims"
	ctxToken    = "access_token"
)

// Authenticator resolves an access token to its claims. Implemented by service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*jwt.Claims, error)
}

// TokenAuth requires a valid "Authorization: Bearer <token>" header.
func TokenAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, auth, extractToken(c.GetHeader("Authorization")))
	}
}

// WebSocketAuth also accepts the token as ?token=, since browsers cannot set headers on upgrade requests.
func WebSocketAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		authenticate(c, auth, token)
	}
}

func authenticate(c *gin.Context, auth Authenticator, token string) {
	if token == "" {
		response.Unauthorized(c)
		return
	}

	claims, err := auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		response.ErrorFromAppError(c, err)
		c.Abort()
		return
	}

	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxDeviceID, claims.DeviceID)
	c.Set(ctxClaims, claims)
	c.Set(ctxToken, token)
	c.Next()
}

func extractToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

func GetDeviceID(c *gin.Context) string {
	return c.GetString(ctxDeviceID)
}

func GetClaims(c *gin.Context) *jwt.Claims {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*jwt.Claims)
	return claims
}

func GetAccessToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}
