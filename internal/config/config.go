package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level settings.
type Config struct {
	Port             string
	DatabaseURL      string
	KafkaBrokers     []string
	SnapshotInterval time.Duration
	Env              string
}

// Load reads a .env file if present, then the environment, with defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system env variables")
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SnapshotInterval: getDuration("SNAPSHOT_INTERVAL", 30*time.Second),
		Env:              getEnv("ENV", "development"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("Invalid duration in env, using default", "key", key, "value", raw)
		return fallback
	}
	return d
}
