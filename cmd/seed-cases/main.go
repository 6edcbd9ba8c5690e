package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"aijudge-backend/config"
	"aijudge-backend/logger"
	"aijudge-backend/repository"

	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", filepath.Join("data", "cases"), "directory of case fixtures")
	flag.Parse()

	if !config.LoadDotEnv() {
		log.Printf("Warning: No .env file found, using environment variables")
	}
	zapLogger, err := logger.New("development", "info")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()
	repo, err := repository.NewCaseRepositoryFromEnv(ctx, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize case store", zap.Error(err))
	}
	defer repo.Close()

	files, err := fixtureFiles(*dir)
	if err != nil {
		zapLogger.Fatal("Failed to list fixtures", zap.Error(err))
	}
	zapLogger.Info("Found case files to seed", zap.Int("count", len(files)), zap.String("dir", *dir))

	var seeded, skipped, failed int
	now := time.Now().UTC()
	for _, file := range files {
		c, err := loadFixture(file, now)
		if err != nil {
			zapLogger.Error("Failed to load fixture", zap.String("file", file), zap.Error(err))
			failed++
			continue
		}

		inserted, err := repo.Import(ctx, c)
		switch {
		case err != nil:
			zapLogger.Error("Failed to seed case", zap.String("file", file), zap.String("case_id", c.CaseID), zap.Error(err))
			failed++
		case !inserted:
			zapLogger.Info("Skipping case, already exists", zap.String("case_id", c.CaseID))
			skipped++
		default:
			zapLogger.Info("Seeded case", zap.String("case_id", c.CaseID), zap.String("title", c.Title), zap.String("status", string(c.Status)))
			seeded++
		}
	}

	zapLogger.Info("Seed summary",
		zap.Int("seeded", seeded),
		zap.Int("skipped", skipped),
		zap.Int("errors", failed),
		zap.Int("total_files", len(files)))
}
