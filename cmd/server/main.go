package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aijudge-backend/cache"
	"aijudge-backend/config"
	"aijudge-backend/extractor"
	"aijudge-backend/handlers"
	"aijudge-backend/logger"
	"aijudge-backend/notify"
	"aijudge-backend/repository"
	"aijudge-backend/service"
	"aijudge-backend/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file from project root (relative to cmd/server/)
	foundEnv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	if !foundEnv {
		zapLogger.Warn("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize case store
	caseRepo, err := repository.NewCaseRepository(ctx, repository.StoreType(cfg.StoreType), cfg.DatabaseURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize case store", zap.Error(err))
	}
	defer caseRepo.Close()

	// Initialize storage
	fileStorage, err := storage.NewStorageFromEnv()
	if err != nil {
		zapLogger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	zapLogger.Info("Storage initialized")

	statsCache := initCache(ctx, cfg, zapLogger)

	// Initialize Gemini engine
	engine, err := service.NewGeminiEngine(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize Gemini", zap.Error(err))
	}
	defer engine.Close()

	bus := notify.NewBus(notify.WithLogger(zapLogger))

	// Initialize services
	adjudicationService := service.NewAdjudicationService(
		service.AdjudicationWithEngine(engine),
		service.AdjudicationWithLogger(zapLogger),
	)

	caseService := service.NewCaseService(
		service.WithCaseRepository(caseRepo),
		service.WithAdjudicator(adjudicationService),
		service.WithExtractor(extractor.New(
			extractor.WithLogger(zapLogger),
			// compressed containers may expand; anything past this is rejected
			extractor.WithMaxTextSize(4*cfg.MaxFileSize),
		)),
		service.WithStorage(fileStorage),
		service.WithPublisher(bus),
		service.WithStatsCache(statsCache, cfg.StatsCacheTTL),
		service.WithUploadLimits(cfg.MaxFileSize, cfg.MaxFilesPerUpload),
		service.WithAutoCreateCases(cfg.AutoCreateCases),
		service.WithLogger(zapLogger),
	)

	// Initialize handlers
	caseHandler := handlers.NewCaseHandler(caseService, zapLogger)
	documentHandler := handlers.NewDocumentHandler(caseService, zapLogger)
	eventsHandler := handlers.NewEventsHandler(bus, cfg.FrontendURL, zapLogger)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(handlers.Recover(zapLogger), handlers.RequestLogger(zapLogger), handlers.CORS(cfg.FrontendURL))
	handlers.RegisterRoutes(r, caseHandler, documentHandler, eventsHandler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(eventsHandler.Shutdown)

	go func() {
		zapLogger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreType),
			zap.Bool("engine_configured", engine.Configured()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	zapLogger.Info("Server gracefully stopped")
}

// initCache connects to Redis when REDIS_URL is set and falls back to a
// process-local cache otherwise.
func initCache(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) cache.Cache {
	if cfg.RedisURL == "" {
		zapLogger.Info("REDIS_URL not set; using in-memory statistics cache")
		return cache.NewMemoryCache()
	}
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, "aijudge:")
	if err != nil {
		zapLogger.Warn("Redis unavailable; using in-memory statistics cache", zap.Error(err))
		return cache.NewMemoryCache()
	}
	zapLogger.Info("Redis statistics cache connected")
	return redisCache
}
