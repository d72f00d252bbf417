package config

import (
	"fmt"
	"strings"
	"time"

	"go-logrelay/internal/pkg/validation"

	"go.uber.org/zap"
)

// AgentConfig holds configuration for the relay agent
type AgentConfig struct {
	AppEnv          string
	CollectorURL    string        `validate:"required,url"`
	ClientID        string        `validate:"required"`
	ClientSecret    string        `validate:"required"`
	Store           string        `validate:"oneof=sqlite memory"`
	DBPath          string        `validate:"required_if=Store sqlite"`
	FlushInterval   time.Duration `validate:"min=100000000"` // at least 100ms
	MaxRetries      int           `validate:"min=1,max=20"`
	MaxStored       int           `validate:"min=1,max=10000"`
	Source          string        `validate:"required,max=50"`
	UserID          string
	HTTPTimeout     time.Duration `validate:"min=1000000000"` // at least 1s
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFilePath     string
	LogMaxSize      int
	LogMaxBackups   int
	LogMaxAge       int
}

// LoadAgentConfig reads agent configuration from environment variables or .env file
func LoadAgentConfig(logger *zap.Logger) (*AgentConfig, error) {
	appEnv := loadEnvFile(logger)

	cfg := &AgentConfig{
		AppEnv:          appEnv,
		CollectorURL:    strings.TrimRight(getEnv("COLLECTOR_URL", "http://localhost:3000"), "/"),
		ClientID:        getEnv("CLIENT_ID", ""),
		ClientSecret:    getEnv("CLIENT_SECRET", ""),
		Store:           strings.ToLower(getEnv("REPORTER_STORE", "sqlite")),
		DBPath:          getEnv("REPORTER_DB_PATH", "./data/agent.db"),
		FlushInterval:   time.Duration(getEnvAsInt("REPORTER_FLUSH_INTERVAL_SECONDS", 5)) * time.Second,
		MaxRetries:      getEnvAsInt("REPORTER_MAX_RETRIES", 3),
		MaxStored:       getEnvAsInt("REPORTER_MAX_STORED", 100),
		Source:          getEnv("REPORTER_SOURCE", "frontend"),
		UserID:          getEnv("REPORTER_USER_ID", ""),
		HTTPTimeout:     time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		ShutdownTimeout: time.Duration(getEnvAsInt("AGENT_SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFilePath:     getEnv("LOG_FILE_PATH", "./logs/agent.log"),
		LogMaxSize:      getEnvAsInt("LOG_MAX_SIZE", 20),
		LogMaxBackups:   getEnvAsInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:       getEnvAsInt("LOG_MAX_AGE", 7),
	}
	cfg.LogLevel = normalizeLogLevel(cfg.LogLevel, logger)

	if errs := validation.ValidateStruct(cfg); errs != nil {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("invalid agent configuration: %s", strings.Join(msgs, " "))
	}
	return cfg, nil
}
