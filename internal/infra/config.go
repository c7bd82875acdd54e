package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	PixelLabAPIKey   string
	PixelLabBaseURL  string
	PixelLabTimeout  time.Duration
	WildcardsDir     string
	StoragePath      string
	BatchDelay       time.Duration
	MaxBatchSize     int
	DatabaseURL      string
	LogFile          string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "3001"),
		PixelLabAPIKey:   strings.TrimSpace(os.Getenv("PIXELLAB_API_KEY")),
		PixelLabBaseURL:  getEnv("PIXELLAB_BASE_URL", "https://api.pixellab.ai/v1"),
		PixelLabTimeout:  time.Second * time.Duration(getEnvInt("PIXELLAB_TIMEOUT_SECONDS", 120)),
		WildcardsDir:     getEnv("WILDCARDS_DIR", "./wildcards"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		BatchDelay:       time.Millisecond * time.Duration(getEnvInt("BATCH_DELAY_MS", 2000)),
		MaxBatchSize:     getEnvInt("MAX_BATCH_SIZE", 100),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		LogFile:          os.Getenv("LOG_FILE"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.BatchDelay < 0 {
		return nil, fmt.Errorf("BATCH_DELAY_MS must not be negative")
	}
	if cfg.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("MAX_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

// HistoryEnabled reports whether job history should be written to PostgreSQL.
func (c *Config) HistoryEnabled() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
