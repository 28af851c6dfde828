package handler

import (
	"github.com/gin-gonic/gin"

	"libraryconnect.chat/internal/middleware"
	"libraryconnect.chat/internal/service"
	"libraryconnect.chat/pkg/response"
)

// UserHandler serves profile routes.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a user handler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me returns the caller's account.
// @Summary      Own profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.User}
// @Router       /users/profile [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, user)
}

// Profile returns another user's public profile.
// @Summary      Public profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "user id"
// @Success      200  {object}  response.Response{data=model.PublicProfile}
// @Failure      404  {object}  response.Response
// @Router       /users/{id} [get]
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := h.userService.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, profile)
}
