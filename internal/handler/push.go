package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"libraryconnect.chat/internal/middleware"
	"libraryconnect.chat/internal/push"
)

// PushHandler upgrades authenticated requests to a push stream.
type PushHandler struct {
	registry *push.Registry
	upgrader websocket.Upgrader
	opts     push.ConnOptions
	logger   *slog.Logger
}

// NewPushHandler accepts websocket upgrades from allowedOrigins ("*" allows any).
func NewPushHandler(registry *push.Registry, allowedOrigins []string, opts push.ConnOptions, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		opts:   opts,
		logger: logger,
	}
}

// Serve upgrades to a websocket that receives chat events for the caller.
// @Summary      Chat event stream
// @Description  Pushes {"type":"message"} and {"type":"read"} events. Clients should still poll.
// @Tags         chat
// @Security     BearerAuth
// @Param        token  query  string  false  "access token when the Authorization header cannot be set"
// @Success      101
// @Router       /chat/ws [get]
func (h *PushHandler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	userID := middleware.GetUserID(c)
	conn := push.NewConn(ws, userID, h.opts, h.logger)
	h.logger.Debug("push connection opened", "user_id", userID, "conn_id", conn.ID())
	conn.Serve(h.registry)
	h.logger.Debug("push connection closed", "user_id", userID, "conn_id", conn.ID())
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
