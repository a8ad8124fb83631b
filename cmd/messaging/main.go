package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"eventsponsor.messaging/internal/config"
	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/handler"
	"eventsponsor.messaging/internal/health"
	"eventsponsor.messaging/internal/middleware"
	imNats "eventsponsor.messaging/internal/nats"
	"eventsponsor.messaging/internal/repository/memory"
	"eventsponsor.messaging/internal/repository/postgres"
	redisRepo "eventsponsor.messaging/internal/repository/redis"
	"eventsponsor.messaging/internal/router"
	"eventsponsor.messaging/internal/service"
	"eventsponsor.messaging/internal/workerpool"
	sharedConfig "eventsponsor.messaging/pkg/config"
	"eventsponsor.messaging/pkg/jwt"
	"eventsponsor.messaging/pkg/snowflake"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(sharedConfig.GetEnv("CONFIG_PATH", "configs/config.yaml"))
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		logger.Warn("Unknown log level, using info", "level", cfg.App.LogLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create id generator", "error", err)
		os.Exit(1)
	}

	deps := service.Deps{IDs: ids}

	// Conversations, messages and presence
	var redisClient *redis.Client
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		redisClient = connectRedis(cfg.Redis)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr(), "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis", "addr", cfg.Redis.Addr())

		deps.Conversations = redisRepo.NewConversationRepo(redisClient)
		deps.Messages = redisRepo.NewMessageRepo(redisClient)
		deps.Presence = redisRepo.NewPresenceRepo(redisClient, cfg.Redis.PresenceTTL)
	default:
		logger.Warn("Using in-memory storage; data is lost on restart")
		deps.Conversations = memory.NewConversationRepo()
		deps.Messages = memory.NewMessageRepo()
		deps.Presence = memory.NewPresenceRepo()
	}

	// Profiles and the message archive
	var db *pgxpool.Pool
	var archiver *service.Archiver
	if cfg.Database.Enabled {
		db, err = connectDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

		deps.Profiles = postgres.NewProfileRepo(db)
		if cfg.Archive.Enabled {
			archiver = service.NewArchiver(postgres.NewMessageArchive(db), service.ArchiverConfig{
				BatchSize:     cfg.Archive.BatchSize,
				FlushInterval: cfg.Archive.FlushInterval,
			})
			archiver.Start(ctx)
			deps.Archive = archiver
		}
	} else {
		logger.Warn("Profile store disabled; every user resolves to the placeholder")
		deps.Profiles = memory.NewProfileRepo()
	}

	// Change feed
	pool := workerpool.New(cfg.Feed.WorkerCount, cfg.Feed.QueueSize, logger)
	var natsClient *imNats.Client
	if cfg.NATS.Enabled {
		natsClient, err = imNats.NewClient(cfg.NATS, cfg.App.Name)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
		deps.Feed = imNats.NewFeed(natsClient.Conn(), pool)
	} else {
		logger.Warn("NATS disabled; live updates stay within this instance")
		deps.Feed = feed.NewLocal()
	}

	hub := handler.NewHub()
	deps.Notifier = hub

	messenger := service.NewMessenger(deps)
	jwtService := jwt.NewService(cfg.JWT.SecretKey, cfg.JWT.AccessExpire)

	var sendLimiter *middleware.LimiterPool
	if cfg.RateLimit.Enabled {
		sendLimiter = middleware.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	engine := router.SetupRouter(cfg, jwtService, router.Handlers{
		Chat:        handler.NewChatHandler(messenger),
		User:        handler.NewUserHandler(messenger.Directory, cfg.App.AdminIDs),
		WS:          handler.NewWSHandler(messenger, hub, cfg.WebSocket, sendLimiter),
		SendLimiter: sendLimiter,
	})

	server := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     engine,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		// WriteTimeout stays unset for long-lived WebSocket connections.
	}

	go func() {
		logger.Info("HTTP server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	healthChecker := health.NewChecker(cfg.App.Name, natsConn(natsClient), universal(redisClient), db, hub)
	healthServer := startHealthServer(cfg.HTTP, healthChecker, logger)

	logger.Info("Messaging service started", "name", cfg.App.Name, "storage", cfg.Storage.Driver)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown failed", "error", err)
	}
	if natsClient != nil {
		natsClient.Close()
	}
	pool.Shutdown()
	if archiver != nil {
		archiver.Stop()
	}
	cancel()
	logger.Info("Messaging service stopped")
}

func startHealthServer(cfg config.HTTPConfig, healthChecker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.Live)
	mux.Handle("/ready", healthChecker)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.HealthAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("Health check server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed", "error", err)
		}
	}()
	return server
}

func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
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

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// universal keeps a nil client a nil interface.
func universal(client *redis.Client) redis.UniversalClient {
	if client == nil {
		return nil
	}
	return client
}

func natsConn(client *imNats.Client) *nats.Conn {
	if client == nil {
		return nil
	}
	return client.Conn()
}
