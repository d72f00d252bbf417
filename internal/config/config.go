package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the collector
type Config struct {
	AppEnv                              string
	AppName                             string
	Port                                string
	Prefork                             bool
	CORSAllowOrigins                    string
	CORSAllowMethods                    string
	CORSAllowHeaders                    string
	JWTSecret                           string
	JWTAccessTTL                        time.Duration
	JWTRefreshTTL                       time.Duration
	BootstrapClientID                   string
	BootstrapClientSecret               string
	BootstrapClientName                 string
	OracleConnString                    string // Optional; empty disables the Oracle archive
	OracleMaxPoolOpenConns              int
	OracleMaxPoolIdleConns              int
	OracleMaxPoolConnLifetimeMinutes    int
	OracleMaxPoolConnIdleTimeMinutes    int
	SQLiteDBPath                        string
	LogFilePath                         string
	LogLevel                            string
	LogRotateInterval                   int // Hour
	LogMaxSize                          int // MB
	LogMaxBackups                       int
	LogMaxAge                           int // Days
	LogCompress                         bool
	LogBatchInterval                    time.Duration
	LogProcessorBatchSize               int // Number of rows per transfer to Oracle
	LogProcessorOracleRetryAttempts     int // Max retries for Oracle insert on connection error
	LogProcessorOracleRetryDelaySeconds int // Delay between retries in seconds
	MaxEntryBytes                       int // Request body limit for ingest endpoints
}

// LoadConfig reads collector configuration from environment variables or .env file
func LoadConfig(logger *zap.Logger) (*Config, error) { // logger can be nil here
	appEnv := loadEnvFile(logger)

	cfg := &Config{
		AppEnv:                appEnv,
		AppName:               getEnv("APP_NAME", "logrelay-collector"),
		Port:                  getEnv("PORT", "3000"),
		Prefork:               getEnvAsBool("PREFORK", false),
		JWTSecret:             getEnv("JWT_SECRET", "default-secret"),
		JWTAccessTTL:          time.Duration(getEnvAsInt("JWT_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		JWTRefreshTTL:         time.Duration(getEnvAsInt("JWT_REFRESH_TTL_HOURS", 24*7)) * time.Hour,
		BootstrapClientID:     getEnv("BOOTSTRAP_CLIENT_ID", ""),
		BootstrapClientSecret: getEnv("BOOTSTRAP_CLIENT_SECRET", ""),
		BootstrapClientName:   getEnv("BOOTSTRAP_CLIENT_NAME", "bootstrap"),
		// --- Load Oracle Settings ---
		OracleConnString:                 getEnv("ORACLE_CONN_STRING", ""),
		OracleMaxPoolOpenConns:           getEnvAsInt("ORACLE_MAX_POOL_OPEN_CONNS", 20),
		OracleMaxPoolIdleConns:           getEnvAsInt("ORACLE_MAX_POOL_IDLE_CONNS", 5),
		OracleMaxPoolConnLifetimeMinutes: getEnvAsInt("ORACLE_MAX_POOL_CONN_LIFETIME_MINUTES", 60),
		OracleMaxPoolConnIdleTimeMinutes: getEnvAsInt("ORACLE_MAX_POOL_CONN_IDLE_TIME_MINUTES", 10),
		// --- End Load Oracle Settings ---
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/collector.db"),
		LogFilePath:       getEnv("LOG_FILE_PATH", "./logs/collector.log"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogRotateInterval: getEnvAsInt("LOG_ROTATE_INTERVAL", 24),
		LogMaxSize:        getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups:     getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:         getEnvAsInt("LOG_MAX_AGE", 30),
		LogCompress:       getEnvAsBool("LOG_COMPRESS", false),
		MaxEntryBytes:     getEnvAsInt("MAX_ENTRY_BYTES", 64*1024),

		// Permissive CORS only in local/dev; other environments must set it explicitly
		CORSAllowOrigins: getEnv("CORS_ALLOW_ORIGINS", func() string {
			if appEnv == "local" || appEnv == "development" {
				return "*"
			}
			return ""
		}()),
		CORSAllowMethods: getEnv("CORS_ALLOW_METHODS", "GET,POST,HEAD,OPTIONS"),
		CORSAllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin,Content-Type,Accept,Authorization"),

		// --- Load Log Processor Settings ---
		LogProcessorBatchSize:               getEnvAsInt("LOG_PROCESSOR_BATCH_SIZE", 100),
		LogProcessorOracleRetryAttempts:     getEnvAsInt("LOG_PROCESSOR_ORACLE_RETRY_ATTEMPTS", 3),
		LogProcessorOracleRetryDelaySeconds: getEnvAsInt("LOG_PROCESSOR_ORACLE_RETRY_DELAY_SECONDS", 30),
		// --- End Load Log Processor ---
	}
	cfg.LogLevel = normalizeLogLevel(cfg.LogLevel, logger)
	cfg.LogBatchInterval = time.Duration(getEnvAsInt("LOG_BATCH_INTERVAL_SECONDS", 60)) * time.Second

	if cfg.OracleConnString == "" && logger != nil {
		logger.Warn("ORACLE_CONN_STRING is not set; received entries stay in SQLite")
	}
	if cfg.JWTSecret == "default-secret" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		if logger != nil {
			logger.Warn("JWT_SECRET is using the default value. Please set a strong secret in production.")
		}
	}
	if (cfg.BootstrapClientID == "") != (cfg.BootstrapClientSecret == "") {
		return nil, fmt.Errorf("BOOTSTRAP_CLIENT_ID and BOOTSTRAP_CLIENT_SECRET must be set together")
	}
	if cfg.AppEnv != "local" && cfg.AppEnv != "development" && (cfg.CORSAllowOrigins == "*" || cfg.CORSAllowOrigins == "") {
		if logger != nil {
			logger.Warn("CORS_ALLOW_ORIGINS is set to '*' or is empty in a non-local/dev environment.")
		}
		return nil, fmt.Errorf("CORS_ALLOW_ORIGINS must be set explicitly in production environments")
	}

	return cfg, nil
}
