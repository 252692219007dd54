package config

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// AppConfig holds reportbridge's environment, mirroring the teacher's
// LoadConfig shape but trimmed to what a report-ingestion sidecar
// actually reads.
type AppConfig struct {
	DatabaseURL        string
	RabbitMQURL        string
	RedisURL           string
	RedisSentinelHosts string
	RedisMasterName    string
	WatchDir           string
	LogLevel           string
	ServiceName        string
}

// LoadConfig reads .env (if present) then the process environment,
// applying the same required-variable checks the teacher's
// LoadConfig enforces, fatally on a missing logger-required field.
func LoadConfig() *AppConfig {
	logger := zap.NewExample().Named("config")

	godotenv.Load()

	cfg := &AppConfig{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisSentinelHosts: os.Getenv("REDIS_SENTINEL_HOSTS"),
		RedisMasterName:    os.Getenv("REDIS_MASTER"),
		WatchDir:           os.Getenv("WATCH_DIR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		ServiceName:        os.Getenv("SERVICE_NAME"),
	}

	if cfg.WatchDir == "" {
		cfg.WatchDir = "output/diffs-summary"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "reportbridge"
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}
	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL environment variable is required")
	}
	if cfg.RedisURL == "" && cfg.RedisSentinelHosts == "" {
		logger.Fatal("either REDIS_URL or REDIS_SENTINEL_HOSTS/REDIS_MASTER is required")
	}

	return cfg
}
