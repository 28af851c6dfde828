package handler

import (
	"github.com/gin-gonic/gin"

	"libraryconnect.chat/internal/middleware"
	"libraryconnect.chat/internal/service"
	appErrors "libraryconnect.chat/pkg/errors"
	"libraryconnect.chat/pkg/response"
)

// AuthHandler serves registration and sessions.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RefreshRequest is the body of POST /api/users/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register creates an account.
// @Summary      Register
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body service.RegisterRequest true "account details"
// @Success      201  {object}  response.Response{data=model.User}
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /users/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.ErrInvalidParams, err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, user)
}

// Login exchanges credentials for a token pair.
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body service.LoginRequest true "credentials"
// @Success      200  {object}  response.Response{data=service.LoginResponse}
// @Failure      401  {object}  response.Response
// @Router       /users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.ErrInvalidParams, err.Error())
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

// Refresh issues a new token pair.
// @Summary      Refresh tokens
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest true "refresh token"
// @Success      200  {object}  response.Response{data=jwt.TokenPair}
// @Failure      401  {object}  response.Response
// @Router       /users/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.ErrInvalidParams, err.Error())
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, pair)
}

// Logout revokes the current access token.
// @Summary      Logout
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /users/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Unauthorized(c)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims, middleware.GetAccessToken(c)); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, nil)
}
