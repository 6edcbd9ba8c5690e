package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"aijudge-backend/config"
	"aijudge-backend/logger"
	"aijudge-backend/repository"
	"aijudge-backend/storage"

	"go.uber.org/zap"
)

func main() {
	defaultSource := os.Getenv("STORAGE_LOCAL_PATH")
	if defaultSource == "" {
		defaultSource = "./storage/files"
	}
	sourceDir := flag.String("source", defaultSource, "local directory holding originals to migrate")
	flag.Parse()

	if !config.LoadDotEnv() {
		log.Printf("Warning: No .env file found, using environment variables")
	}
	zapLogger, err := logger.New("development", "info")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := storage.NewLocalStorage(*sourceDir)
	if err != nil {
		zapLogger.Fatal("Failed to open local storage", zap.Error(err))
	}
	target, err := storage.NewStorageFromEnv()
	if err != nil {
		zapLogger.Fatal("Failed to initialize target storage", zap.Error(err))
	}
	if _, ok := target.(*storage.S3Storage); !ok {
		zapLogger.Fatal("STORAGE_TYPE must be s3 to migrate originals")
	}

	repo, err := repository.NewCaseRepositoryFromEnv(ctx, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize case store", zap.Error(err))
	}
	defer repo.Close()

	m := &migrator{repo: repo, source: source, target: target, logger: zapLogger}
	sum, err := m.run(ctx)
	if err != nil {
		zapLogger.Error("Migration stopped", zap.Error(err))
	}

	zapLogger.Info("Migration summary",
		zap.Int("total_documents", sum.Total),
		zap.Int("uploaded", sum.Uploaded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("missing", sum.Missing),
		zap.Int("errors", sum.Errors))
	if err != nil || sum.Errors > 0 {
		// os.Exit skips deferred calls
		repo.Close()
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}
