package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tripmate/server/internal/blobstore"
	"tripmate/server/internal/chat"
	"tripmate/server/internal/config"
	"tripmate/server/internal/database"
	"tripmate/server/internal/docstore"
	"tripmate/server/internal/handlers"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/logging"
	"tripmate/server/internal/push"
	"tripmate/server/internal/routes"
	"tripmate/server/internal/telemetry"
	ws "tripmate/server/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs, local, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}

	gateway, closePush := openPush(ctx, cfg)
	defer closePush()

	hub := ws.NewHub()
	unforward := hub.ForwardNotifications(gateway)
	defer unforward()

	h := handlers.New(handlers.Deps{
		Store: store,
		Blobs: blobs,
		Local: local,
		Push:  gateway,
		Hub:   hub,
		Codec: identity.NewCodec(cfg.IdentitySecret),
		Chat: chat.Options{
			PageSize:         cfg.ChatPageSize,
			TypingDebounce:   cfg.TypingDebounce,
			TypingTTL:        cfg.TypingTTL,
			ReadReceiptDelay: cfg.ReadReceiptDelay,
		},
	})

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Tripmate API v1.0",
		// room for a 5MB image plus multipart framing
		BodyLimit: 8 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
	}))

	routes.SetupRoutes(app, h)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	hub.CloseAll()
	return app.ShutdownWithTimeout(10 * time.Second)
}

func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory document store")
		mem := docstore.NewMemoryStore()
		return mem, func() { mem.Close() }, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	store := docstore.NewPostgresStore(ctx, pool)
	return store, func() {
		store.Close()
		pool.Close()
	}, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, *blobstore.LocalStore, error) {
	if cfg.BlobBackend == "minio" {
		store, err := blobstore.NewMinioStore(blobstore.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.S3Bucket,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	local, err := blobstore.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

// openPush never fails: without a transport notifications are dropped
func openPush(ctx context.Context, cfg *config.Config) (push.Gateway, func()) {
	if !cfg.PushEnabled() {
		slog.Warn("KAFKA_BROKERS not set, push notifications disabled")
		return push.Noop{}, func() {}
	}

	var (
		registry push.TokenRegistry = push.NewMemoryRegistry()
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, keeping push tokens in memory", "addr", cfg.RedisAddr, "error", err)
			rdb.Close()
			rdb = nil
		} else {
			registry = push.NewRedisRegistry(rdb)
		}
	}

	gateway := push.NewKafkaGateway(push.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		// every instance needs every notification for its own connections
		GroupID: cfg.KafkaGroupID + "-" + uuid.NewString(),
	}, registry)
	gateway.Start(ctx)
	return gateway, func() {
		if err := gateway.Close(); err != nil {
			slog.Warn("push gateway close failed", "error", err)
		}
		if rdb != nil {
			rdb.Close()
		}
	}
}

