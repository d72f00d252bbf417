package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-logrelay/internal/config"

	_ "github.com/godror/godror" // Oracle Driver
	"go.uber.org/zap"
)

// InitOracle initializes the Oracle database connection pool used as the long-term log archive.
// It returns the pool handle even when the first ping fails; database/sql reconnects lazily.
func InitOracle(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	if cfg.OracleConnString == "" {
		return nil, nil
	}
	logger.Info("Initializing Oracle database connection pool...")

	db, err := sql.Open("godror", cfg.OracleConnString)
	if err != nil {
		logger.Error("Failed to open Oracle connection pool", zap.Error(err))
		return nil, fmt.Errorf("failed to configure oracle connection pool: %w", err)
	}

	db.SetMaxOpenConns(cfg.OracleMaxPoolOpenConns)
	db.SetMaxIdleConns(cfg.OracleMaxPoolIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.OracleMaxPoolConnLifetimeMinutes) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.OracleMaxPoolConnIdleTimeMinutes) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(ctx)
	cancel()

	if err != nil {
		logger.Warn("Initial Oracle DB ping failed, pool created but connection may establish later", zap.Error(err))
		return db, nil
	}

	logger.Info("Oracle database pool initialized and initial ping successful.")
	return db, nil
}
