package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"roomchat/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Chat     ChatConfig
	Preview  PreviewConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// URL selects the Postgres backend. When empty, DataDir holds JSON files.
	URL     string
	DataDir string
}

type JWTConfig struct {
	Secret    []byte
	ExpiresIn time.Duration
}

type ChatConfig struct {
	DefaultRoom      string
	HistoryLimit     int
	RateLimitCount   int
	RateLimitWindow  time.Duration
	SnapshotInterval time.Duration
	PresenceInterval time.Duration
	IdleAfter        time.Duration
	MaxMessageSize   int64
	BlockedWords     []string
}

type PreviewConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

type LogConfig struct {
	Level string
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found or error loading .env file: %v", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}
	return cfg
}

// FromEnv builds a Config from the process environment and reports every
// invalid or missing value at once.
func FromEnv() (*Config, error) {
	var l loader

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", ":8080"),
			ReadTimeout:     l.getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout:    l.getDurationOrDefault("WRITE_TIMEOUT", "15s"),
			AllowedOrigins:  getListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: l.getDurationOrDefault("SHUTDOWN_TIMEOUT", "15s"),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			DataDir: getEnvOrDefault("DATA_DIR", "data"),
		},
		JWT: JWTConfig{
			Secret:    []byte(l.getEnvOrFail("JWT_SECRET")),
			ExpiresIn: l.getDurationOrDefault("JWT_EXPIRES_IN", "24h"),
		},
		Chat: ChatConfig{
			DefaultRoom:      getEnvOrDefault("DEFAULT_ROOM", "lobby"),
			HistoryLimit:     l.getIntOrDefault("HISTORY_LIMIT", 200),
			RateLimitCount:   l.getIntOrDefault("RATE_LIMIT_COUNT", 5),
			RateLimitWindow:  l.getDurationOrDefault("RATE_LIMIT_WINDOW", "10s"),
			SnapshotInterval: l.getDurationOrDefault("SNAPSHOT_INTERVAL", "5m"),
			PresenceInterval: l.getDurationOrDefault("PRESENCE_INTERVAL", "30s"),
			IdleAfter:        l.getDurationOrDefault("IDLE_AFTER", "5m"),
			MaxMessageSize:   int64(l.getIntOrDefault("MAX_MESSAGE_SIZE", 64*1024)),
			BlockedWords:     getListOrDefault("BLOCKED_WORDS", nil),
		},
		Preview: PreviewConfig{
			Timeout:  l.getDurationOrDefault("PREVIEW_TIMEOUT", "5s"),
			MaxBytes: int64(l.getIntOrDefault("PREVIEW_MAX_BYTES", 1<<20)),
		},
		Log: LogConfig{
			Level: getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	if cfg.Chat.HistoryLimit < 1 {
		l.fail(fmt.Errorf("HISTORY_LIMIT must be positive"))
	}
	if cfg.Chat.RateLimitCount < 1 {
		l.fail(fmt.Errorf("RATE_LIMIT_COUNT must be positive"))
	}
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"RATE_LIMIT_WINDOW", cfg.Chat.RateLimitWindow},
		{"SNAPSHOT_INTERVAL", cfg.Chat.SnapshotInterval},
		{"PRESENCE_INTERVAL", cfg.Chat.PresenceInterval},
	} {
		if d.value <= 0 {
			l.fail(fmt.Errorf("%s must be positive", d.key))
		}
	}

	if err := errors.Join(l.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

type loader struct {
	errs []error
}

func (l *loader) fail(err error) {
	l.errs = append(l.errs, err)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) getEnvOrFail(key string) string {
	value := os.Getenv(key)
	if value == "" {
		l.fail(fmt.Errorf("%s environment variable is required", key))
	}
	return value
}

func (l *loader) getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		l.fail(fmt.Errorf("invalid duration for %s: %w", key, err))
	}
	return duration
}

func (l *loader) getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		l.fail(fmt.Errorf("invalid integer for %s: %w", key, err))
	}
	return intValue
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
