// @title                       LibraryConnect Chat API
// @version                     1.0
// @description                 Direct messaging between LibraryConnect members.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"libraryconnect.chat/internal/config"
	"libraryconnect.chat/internal/handler"
	"libraryconnect.chat/internal/health"
	"libraryconnect.chat/internal/middleware"
	chatNats "libraryconnect.chat/internal/nats"
	"libraryconnect.chat/internal/push"
	"libraryconnect.chat/internal/repository"
	"libraryconnect.chat/internal/repository/memory"
	"libraryconnect.chat/internal/router"
	"libraryconnect.chat/internal/service"
	"libraryconnect.chat/internal/workerpool"
	"libraryconnect.chat/pkg/jwt"
	"libraryconnect.chat/pkg/snowflake"
)

// stores bundles the storage-dependent collaborators and how to release them.
type stores struct {
	users    service.UserStore
	messages service.MessageStore
	sessions service.SessionStore
	limiter  middleware.Limiter
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sfNode, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create snowflake node", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker(3 * time.Second)

	st, err := openStores(ctx, cfg, checker, logger)
	if err != nil {
		logger.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	// push fan-out
	registry := push.NewRegistry(logger)
	pool := workerpool.New(cfg.Push.Workers, cfg.Push.QueueSize, logger)
	dispatcher := push.NewDispatcher(registry, pool, logger)
	checker.Detail("push_connections", func() any { return registry.Count() })

	var notifier service.Notifier
	if cfg.Push.Enabled {
		notifier = dispatcher
	}

	var natsClient *chatNats.Client
	var subscriber *chatNats.EventSubscriber
	if cfg.NATS.Enabled {
		natsClient, err = chatNats.NewClient(cfg.NATS, cfg.App.Name, logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
		checker.Register("nats", func(context.Context) error { return natsClient.Ping() })

		notifier = chatNats.NewEventPublisher(natsClient.Conn(), logger)
		if cfg.Push.Enabled {
			subscriber = chatNats.NewEventSubscriber(natsClient.Conn(), dispatcher, logger)
			if err := subscriber.Start(); err != nil {
				logger.Error("Failed to start NATS subscriber", "error", err)
				os.Exit(1)
			}
		}
	}

	jwtService := jwt.NewService(cfg.JWT.SecretKey, cfg.JWT.AccessExpire, cfg.JWT.RefreshExpire)

	authService := service.NewAuthService(st.users, st.sessions, jwtService, sfNode)
	userService := service.NewUserService(st.users)
	chatService := service.NewChatService(st.users, st.messages, sfNode, notifier, logger)

	deps := router.Deps{
		Auth:        authService,
		Limiter:     st.limiter,
		Health:      checker,
		AuthHandler: handler.NewAuthHandler(authService),
		UserHandler: handler.NewUserHandler(userService),
		ChatHandler: handler.NewChatHandler(chatService),
	}
	if cfg.Push.Enabled {
		deps.PushHandler = handler.NewPushHandler(registry, cfg.CORS.AllowedOrigins, push.ConnOptions{
			SendBuffer:   cfg.Push.SendBuffer,
			PingInterval: cfg.Push.PingInterval,
			WriteTimeout: cfg.Push.WriteTimeout,
		}, logger)
	}
	r := router.SetupRouter(cfg, deps, logger)

	if cfg.App.HealthPort > 0 {
		go startHealthServer(ctx, cfg.App.HealthPort, checker, logger)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Chat server started", "addr", srv.Addr, "mode", cfg.App.Mode, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	if subscriber != nil {
		subscriber.Stop()
	}
	registry.CloseAll()
	pool.Shutdown()
	if natsClient != nil {
		natsClient.Close()
	}
	logger.Info("Server stopped")
}

// openStores wires either the in-process stores or PostgreSQL plus Redis.
func openStores(ctx context.Context, cfg *config.Config, checker *health.Checker, logger *slog.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return &stores{
			users:    memory.NewUserStore(),
			messages: memory.NewMessageStore(),
			sessions: memory.NewSessionStore(),
		}, nil
	}

	st := &stores{}

	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	st.closers = append(st.closers, db.Close)
	if err := db.Ping(ctx); err != nil {
		st.close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	if cfg.Storage.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			st.close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Database schema applied")
	}

	redisClient := connectRedis(cfg.Redis)
	st.closers = append(st.closers, func() { _ = redisClient.Close() })
	if err := redisClient.Ping(ctx).Err(); err != nil {
		st.close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr())

	checker.Register("database", db.Ping)
	checker.Register("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })

	st.users = repository.NewUserRepository(db)
	st.messages = repository.NewMessageRepository(db)
	st.sessions = repository.NewTokenRepository(redisClient)
	if cfg.RateLimit.Enabled {
		st.limiter = repository.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerMinute, time.Minute)
	}
	return st, nil
}

func startHealthServer(ctx context.Context, port int, checker *health.Checker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", checker)
	mux.HandleFunc("/ready", health.Ready)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Health check server failed", "error", err)
	}
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}
