package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetgrid-backend/application/caching"
	"fleetgrid-backend/application/jobs"
	"fleetgrid-backend/application/ports"
	"fleetgrid-backend/application/services"
	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/infrastructure/config"
	"fleetgrid-backend/infrastructure/persistence/dynamodb"
	"fleetgrid-backend/infrastructure/persistence/memory"
	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/interfaces/http/rest"
	ws "fleetgrid-backend/interfaces/websocket"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const devJWTSecret = "development-secret-change-in-production"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics("fleetgrid")

	// Cache backend. Development runs self-contained on the in-process
	// cache; everything else talks to Redis behind the circuit breaker.
	var (
		kv         cache.Cache
		readyCheck func(ctx context.Context) error
	)
	if cfg.IsDevelopment() {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		kv = memCache
		logger.Info("Using in-memory cache")
	} else {
		redisClient := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisCache(redisClient, logger)
		defer redisCache.Close()
		kv = cache.NewBreakerCache(redisCache, logger)
		readyCheck = redisCache.Ping
		logger.Info("Using redis cache", zap.String("addr", cfg.RedisAddr))
	}

	// Durable store.
	var (
		userRepo   ports.UserRepository
		deviceRepo ports.DeviceRepository
		logRepo    ports.LogRepository
		jobRepo    ports.ExportJobRepository
	)
	if cfg.IsDevelopment() {
		userRepo = memory.NewUserRepository()
		deviceRepo = memory.NewDeviceRepository()
		logRepo = memory.NewLogRepository()
		jobRepo = memory.NewExportJobRepository()
		logger.Info("Using in-memory repositories")
	} else {
		client, err := dynamodb.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Fatal("Failed to create dynamodb client", zap.Error(err))
		}
		userRepo = dynamodb.NewUserRepository(client, cfg.DynamoDBTable, cfg.OwnerIndex, logger)
		deviceRepo = dynamodb.NewDeviceRepository(client, cfg.DynamoDBTable, logger)
		logRepo = dynamodb.NewLogRepository(client, cfg.DynamoDBTable, cfg.OwnerIndex, logger)
		jobRepo = dynamodb.NewExportJobRepository(client, cfg.DynamoDBTable, cfg.OwnerIndex, logger)
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" && cfg.IsDevelopment() {
		jwtSecret = devJWTSecret
		logger.Warn("JWT_SECRET not set, using development secret")
	}

	issuer, err := auth.NewTokenIssuer(jwtSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}
	validator, err := auth.NewTokenValidator(jwtSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Fatal("Failed to create token validator", zap.Error(err))
	}

	sessions := session.NewStore(kv, logger)
	revocations := session.NewRevocationRegistry(kv, logger)
	cacheManager := caching.NewManager(kv, logger, metrics)
	invalidator := caching.NewInvalidator(kv, logger, metrics)

	hub := ws.NewHub(logger)
	go hub.Run()
	wsServer := ws.NewServer(hub, validator, revocations, logger)

	authService := services.NewAuthService(userRepo, issuer, sessions, revocations, logger)
	userService := services.NewUserService(userRepo, cacheManager, invalidator, logger)
	deviceService := services.NewDeviceService(deviceRepo, cacheManager, invalidator, hub, logger)
	analyticsService := services.NewAnalyticsService(deviceRepo, logRepo, cacheManager, invalidator, logger)

	queue := jobs.NewQueue(64)
	dispatcher := jobs.NewDispatcher(queue, jobRepo, logRepo, cfg.ExportDir, cfg.ExportWorkers, metrics, logger)
	if err := dispatcher.Recover(ctx); err != nil {
		logger.Error("Export job recovery failed", zap.Error(err))
	}
	dispatcher.Start(ctx)
	exportService := services.NewExportService(jobRepo, queue, logger)

	router := rest.NewRouter(rest.Deps{
		Auth:        authService,
		Users:       userService,
		Devices:     deviceService,
		Analytics:   analyticsService,
		Exports:     exportService,
		Validator:   validator,
		Revocations: revocations,
		WSServer:    wsServer,
		Metrics:     metrics,
		ReadyCheck:  readyCheck,
		EnableCORS:  cfg.EnableCORS,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	dispatcher.Stop()
	hub.Stop()

	logger.Info("Server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
