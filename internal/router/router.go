package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "libraryconnect.chat/docs"
	"libraryconnect.chat/internal/config"
	"libraryconnect.chat/internal/handler"
	"libraryconnect.chat/internal/health"
	"libraryconnect.chat/internal/middleware"
)

// Deps are the collaborators the router wires together. Limiter and Push are optional.
type Deps struct {
	Auth    middleware.Authenticator
	Limiter middleware.Limiter
	Health  http.Handler

	AuthHandler *handler.AuthHandler
	UserHandler *handler.UserHandler
	ChatHandler *handler.ChatHandler
	PushHandler *handler.PushHandler
}

// SetupRouter builds the gin engine and registers every route.
func SetupRouter(cfg *config.Config, deps Deps, logger *slog.Logger) *gin.Engine {
	gin.SetMode(cfg.App.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowCredentials,
	))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ready", gin.WrapF(health.Ready))
	if deps.Health != nil {
		r.GET("/health", gin.WrapH(deps.Health))
	}

	throttle := func(g *gin.RouterGroup) {
		if deps.Limiter != nil && cfg.RateLimit.Enabled {
			g.Use(middleware.RateLimit(deps.Limiter, logger))
		}
	}

	api := r.Group("/api")

	// public
	users := api.Group("/users")
	throttle(users)
	{
		users.POST("/register", deps.AuthHandler.Register)
		users.POST("/login", deps.AuthHandler.Login)
		users.POST("/refresh", deps.AuthHandler.Refresh)
	}

	// authenticated
	authed := api.Group("")
	authed.Use(middleware.TokenAuth(deps.Auth))
	throttle(authed)
	{
		authed.POST("/users/logout", deps.AuthHandler.Logout)
		authed.GET("/users/profile", deps.UserHandler.Me)
		authed.GET("/users/:id", deps.UserHandler.Profile)

		chat := authed.Group("/chat")
		{
			chat.POST("", deps.ChatHandler.Send)
			chat.GET("/conversations", deps.ChatHandler.Conversations)
			chat.GET("/notifications/unread-count", deps.ChatHandler.UnreadCount)
			chat.PUT("/mark-as-read/:chatPartnerId", deps.ChatHandler.MarkRead)
			chat.GET("/:userId", deps.ChatHandler.History)
		}
	}

	if deps.PushHandler != nil {
		api.GET("/chat/ws", middleware.WebSocketAuth(deps.Auth), deps.PushHandler.Serve)
	}

	return r
}
