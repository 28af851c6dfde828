package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"libraryconnect.chat/internal/middleware"
	"libraryconnect.chat/internal/model"
	"libraryconnect.chat/internal/service"
	appErrors "libraryconnect.chat/pkg/errors"
	"libraryconnect.chat/pkg/response"
	"libraryconnect.chat/pkg/snowflake"
)

// ChatHandler serves /api/chat.
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ConversationsResponse wraps the conversation list.
type ConversationsResponse struct {
	Conversations []model.Conversation `json:"conversations"`
}

// UnreadCountResponse is the body of the unread-count route.
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

// MarkReadResponse reports how many messages changed.
type MarkReadResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

// Send stores a message for another user.
// @Summary      Send a message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body service.SendMessageRequest true "recipient id and content"
// @Success      201  {object}  response.Response{data=model.MessageWithUsers}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /chat [post]
func (h *ChatHandler) Send(c *gin.Context) {
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.ErrInvalidParams, "request body must be JSON")
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, msg)
}

// History returns the thread with one user and marks their messages as read.
// @Summary      Conversation history
// @Description  Marks every unread message from the partner as read, then returns the thread oldest first.
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path   string  true   "partner id"
// @Param        since   query  string  false  "RFC3339 timestamp, only newer messages are returned"
// @Success      200  {object}  response.Response{data=model.History}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /chat/{userId} [get]
func (h *ChatHandler) History(c *gin.Context) {
	partnerID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.Error(c, appErrors.ErrInvalidCursor)
			return
		}
		since = &t
	}

	history, err := h.chatService.History(c.Request.Context(), middleware.GetUserID(c), partnerID, since)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, history)
}

// Conversations lists the caller's conversations, most recent first.
// @Summary      Conversation list
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=ConversationsResponse}
// @Router       /chat/conversations [get]
func (h *ChatHandler) Conversations(c *gin.Context) {
	convs, err := h.chatService.Conversations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, ConversationsResponse{Conversations: convs})
}

// UnreadCount returns how many messages addressed to the caller are unread.
// @Summary      Unread message count
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=UnreadCountResponse}
// @Router       /chat/notifications/unread-count [get]
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	n, err := h.chatService.UnreadCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, UnreadCountResponse{UnreadCount: n})
}

// MarkRead marks everything a partner sent to the caller as read.
// @Summary      Mark conversation as read
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Param        chatPartnerId  path  string  true  "partner id"
// @Success      200  {object}  response.Response{data=MarkReadResponse}
// @Failure      400  {object}  response.Response
// @Router       /chat/mark-as-read/{chatPartnerId} [put]
func (h *ChatHandler) MarkRead(c *gin.Context) {
	partnerID, ok := pathID(c, "chatPartnerId")
	if !ok {
		return
	}

	updated, err := h.chatService.MarkRead(c.Request.Context(), middleware.GetUserID(c), partnerID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, MarkReadResponse{Message: "Messages marked as read", Updated: updated})
}

// pathID parses a user id path parameter, writing a 400 when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := snowflake.ParseID(c.Param(name))
	if err != nil {
		response.ErrorWithMsg(c, appErrors.ErrInvalidParams, name+" must be a user id")
		return 0, false
	}
	return id.Int64(), true
}

// respondError renders err and records it on the context for the access log.
func respondError(c *gin.Context, err error) {
	if appErrors.GetStatus(err) >= 500 {
		_ = c.Error(err)
	}
	response.ErrorFromAppError(c, err)
}
