package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carvio/listing-service/internal/adapter/authz"
	"github.com/carvio/listing-service/internal/adapter/httpapi"
	natsadapter "github.com/carvio/listing-service/internal/adapter/messaging/nats"
	"github.com/carvio/listing-service/internal/adapter/repository/cache"
	"github.com/carvio/listing-service/internal/adapter/repository/mongodb"
	"github.com/carvio/listing-service/internal/adapter/storage/s3"
	"github.com/carvio/listing-service/internal/config"
	"github.com/carvio/listing-service/internal/listing/domain"
	"github.com/carvio/listing-service/internal/listing/usecase"
	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/carvio/listing-service/internal/platform/metrics"
	"github.com/carvio/listing-service/internal/platform/tracer"
	"github.com/carvio/listing-service/internal/sweeper"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

func main() {
	// Missing .env is fine in production, variables come from the environment.
	_ = godotenv.Load()

	appLogger := logger.NewLogger()
	defer appLogger.Sync()

	cfg, err := config.LoadConfig(appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	tp := tracer.InitTracer(cfg.ServiceName, cfg.OTExporterOTLPEndpoint, appLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		appLogger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	appLogger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			appLogger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	db := mongoClient.Database(cfg.MongoDatabase)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	listingCache := cache.NewListingCache(redisClient, appLogger)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Warn("Redis unreachable, running without cache", zap.Error(err))
		listingCache = nil
	} else {
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))
		defer redisClient.Close()
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATSURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer publisher.Close()

	imageStorage, err := s3.NewStorage(ctx, s3.Config{
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		BucketName:      cfg.S3Bucket,
		UseSSL:          cfg.S3UseSSL,
		DeleteTimeout:   cfg.ImageDeleteTimeout(),
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	listingRepo, err := mongodb.NewListingRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize listing repository", zap.Error(err))
	}
	historyRepo, err := mongodb.NewHistoryRepository(db, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize history repository", zap.Error(err))
	}
	ownerIndexRepo := mongodb.NewOwnerIndexRepository(db, appLogger)
	txRunner := mongodb.NewTxRunner(mongoClient, appLogger)

	metricsManager := metrics.NewManager("listing_service")

	// A nil *ListingCache must become a nil interface, not a non-nil
	// interface wrapping a nil pointer.
	var cacheIface domain.ListingCache
	if listingCache != nil {
		cacheIface = listingCache
	}

	engine := usecase.NewLifecycleEngine(
		listingRepo, historyRepo, ownerIndexRepo, imageStorage, txRunner,
		cacheIface, publisher, metricsManager, appLogger,
	)
	listingUC := usecase.NewListingUsecase(
		listingRepo, ownerIndexRepo, imageStorage,
		cacheIface, publisher, engine, metricsManager, appLogger,
		cfg.RetentionWindow(),
	)
	historyUC := usecase.NewHistoryUsecase(historyRepo, appLogger)
	gate := authz.NewGate(listingRepo, appLogger)

	var scheduler *sweeper.Scheduler
	if cfg.SweepEnabled {
		sw := sweeper.New(listingRepo, engine, metricsManager, appLogger)
		scheduler = sweeper.NewScheduler(sw, appLogger)
		if err := scheduler.Start(cfg.SweepDailyTime); err != nil {
			appLogger.Fatal("Failed to start sweep scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	} else {
		appLogger.Info("Sweep is disabled by configuration")
	}

	handler := httpapi.NewHandler(listingUC, historyUC, gate, scheduler, appLogger)
	router := httpapi.NewRouter(handler, cfg.JWTSecret, appLogger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		appLogger.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := metrics.StartMetricsServer(cfg.PrometheusMetricsPort, appLogger, metricsManager.Registry); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Prometheus metrics server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped gracefully")
}
