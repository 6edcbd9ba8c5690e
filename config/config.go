// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultMaxFileSize       = 10 * 1024 * 1024
	DefaultMaxFilesPerUpload = 10
	DefaultStatsCacheTTL     = 30 * time.Second
	DefaultGeminiModel       = "gemini-2.5-flash"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreType   string
	DatabaseURL string

	GeminiAPIKey string
	GeminiModel  string

	MaxFileSize       int64
	MaxFilesPerUpload int
	AutoCreateCases   bool

	RedisURL      string
	StatsCacheTTL time.Duration

	// FrontendURL is the origin allowed to open the event stream
	FrontendURL string
}

// LoadDotEnv loads .env from the working directory, falling back to the
// project root when run from cmd/<tool>. It reports whether a file was found.
func LoadDotEnv() bool {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			return false
		}
	}
	return true
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		Env:               getenv("APP_ENV", "development"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		StoreType:         getenv("STORE_TYPE", "postgres"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getenv("GEMINI_MODEL", DefaultGeminiModel),
		MaxFileSize:       int64(getenvInt("MAX_FILE_SIZE", DefaultMaxFileSize)),
		MaxFilesPerUpload: getenvInt("MAX_FILES_PER_UPLOAD", DefaultMaxFilesPerUpload),
		AutoCreateCases:   getenvBool("AUTO_CREATE_CASES", true),
		RedisURL:          os.Getenv("REDIS_URL"),
		StatsCacheTTL:     time.Duration(getenvInt("STATS_CACHE_TTL_SEC", int(DefaultStatsCacheTTL/time.Second))) * time.Second,
		FrontendURL:       getenv("FRONTEND_URL", "http://localhost:3000"),
	}

	switch cfg.StoreType {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required when STORE_TYPE=postgres")
		}
	case "memory":
	default:
		return cfg, fmt.Errorf("unknown STORE_TYPE %q", cfg.StoreType)
	}
	if cfg.MaxFileSize <= 0 {
		return cfg, fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if cfg.MaxFilesPerUpload <= 0 {
		return cfg, fmt.Errorf("MAX_FILES_PER_UPLOAD must be positive")
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return out
		}
	}
	return def
}
