// Package config loads application settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Import        ImportConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type ImportConfig struct {
	// PreviewMaxAge is how long a PREVIEW batch may sit unconfirmed before
	// the cleanup job deletes it.
	PreviewMaxAge time.Duration
	// CleanupSchedule is the cron expression for the cleanup job.
	CleanupSchedule string
	// DisplayCurrency is the ISO code used when rendering amounts.
	DisplayCurrency string
	// MaxUploadBytes caps the size of uploaded statement files.
	MaxUploadBytes int64
}

type ObservabilityConfig struct {
	LogLevel    string
	MetricsPath string
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "coinpurse"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "coinpurse"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Import: ImportConfig{
			PreviewMaxAge:   getEnvDuration("IMPORT_PREVIEW_MAX_AGE", 24*time.Hour),
			CleanupSchedule: getEnv("IMPORT_CLEANUP_SCHEDULE", "0 3 * * *"),
			DisplayCurrency: getEnv("DISPLAY_CURRENCY", "USD"),
			MaxUploadBytes:  int64(getEnvInt("IMPORT_MAX_UPLOAD_BYTES", 20<<20)),
		},
		Observability: ObservabilityConfig{
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			MetricsPath: getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
