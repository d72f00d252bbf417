package utils

import (
	"go-logrelay/internal/config"

	"go.uber.org/zap"
)

// TraceConfigDetails logs the effective collector configuration at debug level with secrets masked.
func TraceConfigDetails(logger *zap.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	jwtSecret := MaskSecret(cfg.JWTSecret)
	if cfg.JWTSecret == "default-secret" {
		jwtSecret = "default-secret (!!! WARNING: Using default JWT secret !!!)"
	}
	logger.Debug("Loaded collector configuration details",
		zap.String("AppEnv", cfg.AppEnv),
		zap.String("Port", cfg.Port),
		zap.Bool("Prefork", cfg.Prefork),
		zap.String("JWTSecret", jwtSecret),
		zap.Duration("JWTAccessTTL", cfg.JWTAccessTTL),
		zap.Duration("JWTRefreshTTL", cfg.JWTRefreshTTL),
		zap.String("BootstrapClientID", cfg.BootstrapClientID),
		zap.String("BootstrapClientSecret", MaskSecret(cfg.BootstrapClientSecret)),
		zap.String("OracleConnString", MaskOracleConnString(cfg.OracleConnString)),
		zap.Int("OracleMaxPoolOpenConns", cfg.OracleMaxPoolOpenConns),
		zap.Int("OracleMaxPoolIdleConns", cfg.OracleMaxPoolIdleConns),
		zap.String("SQLiteDBPath", cfg.SQLiteDBPath),
		zap.String("LogFilePath", cfg.LogFilePath),
		zap.String("LogLevel", cfg.LogLevel),
		zap.Int("LogMaxSizeMB", cfg.LogMaxSize),
		zap.Int("LogMaxBackups", cfg.LogMaxBackups),
		zap.Int("LogMaxAgeDays", cfg.LogMaxAge),
		zap.Duration("LogProcessor_BatchInterval", cfg.LogBatchInterval),
		zap.Int("LogProcessor_BatchSize", cfg.LogProcessorBatchSize),
		zap.Int("LogProcessor_OracleRetryAttempts", cfg.LogProcessorOracleRetryAttempts),
		zap.String("CORS_AllowOrigins", cfg.CORSAllowOrigins),
		zap.Int("MaxEntryBytes", cfg.MaxEntryBytes),
	)
}

// TraceAgentConfigDetails logs the effective agent configuration at debug level with secrets masked.
func TraceAgentConfigDetails(logger *zap.Logger, cfg *config.AgentConfig) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Debug("Loaded agent configuration details",
		zap.String("AppEnv", cfg.AppEnv),
		zap.String("CollectorURL", cfg.CollectorURL),
		zap.String("ClientID", cfg.ClientID),
		zap.String("ClientSecret", MaskSecret(cfg.ClientSecret)),
		zap.String("Store", cfg.Store),
		zap.String("DBPath", cfg.DBPath),
		zap.Duration("FlushInterval", cfg.FlushInterval),
		zap.Int("MaxRetries", cfg.MaxRetries),
		zap.Int("MaxStored", cfg.MaxStored),
		zap.String("Source", cfg.Source),
		zap.Duration("HTTPTimeout", cfg.HTTPTimeout),
		zap.Duration("ShutdownTimeout", cfg.ShutdownTimeout),
		zap.String("LogLevel", cfg.LogLevel),
	)
}
