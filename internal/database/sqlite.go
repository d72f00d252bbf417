package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite Driver
	"go.uber.org/zap"
)

// CollectorSchema holds the collector's staging tables.
const CollectorSchema = `
CREATE TABLE IF NOT EXISTS tbl_log (
id INTEGER PRIMARY KEY AUTOINCREMENT,
received_at TEXT NOT NULL,
kind TEXT NOT NULL,
client_id TEXT NOT NULL,
level TEXT NOT NULL,
message TEXT NOT NULL,
trace_id TEXT,
payload TEXT NOT NULL -- full entry JSON, snake_case
);
CREATE INDEX IF NOT EXISTS idx_tbl_log_client ON tbl_log (client_id, kind);
CREATE TABLE IF NOT EXISTS tbl_api_client (
id INTEGER PRIMARY KEY AUTOINCREMENT,
client_id TEXT NOT NULL UNIQUE,
name TEXT NOT NULL,
secret_hash TEXT NOT NULL,
created_at TEXT NOT NULL
);
`

// AgentSchema holds the agent's queue snapshots, one row per storage key.
const AgentSchema = `
CREATE TABLE IF NOT EXISTS tbl_queue_snapshot (
storage_key TEXT PRIMARY KEY,
payload BLOB NOT NULL, -- zstd compressed JSON array
entry_count INTEGER NOT NULL,
updated_at TEXT NOT NULL
);
`

// InitSQLite opens the SQLite database at dbPath, creating its directory if needed,
// and applies schema.
func InitSQLite(dbPath, schema string, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("Initializing SQLite database...", zap.String("requested_path", dbPath))

	// --- Ensure Directory Exists ---
	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "/" {
		if _, err := os.Stat(dbDir); os.IsNotExist(err) {
			logger.Info("SQLite database directory does not exist, creating...", zap.String("path", dbDir))
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				logger.Error("Failed to create SQLite database directory", zap.String("path", dbDir), zap.Error(err))
				return nil, fmt.Errorf("failed to create sqlite db directory %s: %w", dbDir, err)
			}
		} else if err != nil {
			logger.Error("Failed to check status of SQLite database directory", zap.String("path", dbDir), zap.Error(err))
			return nil, fmt.Errorf("failed to check status of sqlite db directory %s: %w", dbDir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		logger.Error("Failed to open SQLite database", zap.String("path", dbPath), zap.Error(err))
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", dbPath, err)
	}

	// A single connection serializes writers; WAL keeps readers cheap.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		logger.Error("Failed to ping SQLite database after open", zap.Error(err))
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		logger.Error("Failed to apply SQLite schema", zap.Error(err))
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	logger.Debug("SQLite schema verified/created.")

	logger.Info("SQLite database initialized successfully", zap.String("path", dbPath))
	return db, nil
}
