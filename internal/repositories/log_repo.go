package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-logrelay/internal/models"

	"go.uber.org/zap"
)

// ErrOracleConnection is returned when an operation fails due to Oracle connection issues.
var ErrOracleConnection = errors.New("oracle connection error")

// LogRepository defines the interface for received entry storage
type LogRepository interface {
	// SQLite Operations
	InsertSQLiteLog(ctx context.Context, entry models.LogEntry) (int64, error)
	GetSQLiteLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
	DeleteSQLiteLogsByID(ctx context.Context, ids []int64) error
	CountByClient(ctx context.Context, clientID string) (logs, exceptions int64, err error)
	// Oracle Operations
	InsertBatchOracle(ctx context.Context, logs []models.LogEntry) error
	HasOracle() bool
	// SetOracleDB lets the processor swap in a reconnected pool
	SetOracleDB(db *sql.DB)
}

// logRepositoryImpl implements LogRepository for both SQLite and Oracle
type logRepositoryImpl struct {
	sqliteDB *sql.DB
	oracleDB *sql.DB // Can be nil when no archive is configured or the connection failed
	logger   *zap.Logger
	mu       sync.RWMutex // Protects oracleDB
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(sqliteDB *sql.DB, oracleDB *sql.DB, logger *zap.Logger) LogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logRepositoryImpl{
		sqliteDB: sqliteDB,
		oracleDB: oracleDB,
		logger:   logger,
	}
}

// --- SQLite Methods ---

func (r *logRepositoryImpl) InsertSQLiteLog(ctx context.Context, entry models.LogEntry) (int64, error) {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}
	query := `INSERT INTO tbl_log (received_at, kind, client_id, level, message, trace_id, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.sqliteDB.ExecContext(ctx, query,
		entry.ReceivedAt.UTC().Format(time.RFC3339Nano),
		string(entry.Kind),
		entry.ClientID,
		entry.Level,
		entry.Message,
		entry.TraceID,
		entry.Payload,
	)
	if err != nil {
		r.logger.Error("Failed to insert log into SQLite", zap.Error(err))
		return 0, fmt.Errorf("sqlite insert failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite last insert id: %w", err)
	}
	return id, nil
}

func (r *logRepositoryImpl) GetSQLiteLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	query := `SELECT id, received_at, kind, client_id, level, message, trace_id, payload FROM tbl_log ORDER BY id ASC LIMIT ?`
	rows, err := r.sqliteDB.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to query logs from SQLite", zap.Error(err))
		return nil, fmt.Errorf("sqlite query failed: %w", err)
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var receivedAt, kind string
		var traceID sql.NullString
		if err := rows.Scan(&entry.ID, &receivedAt, &kind, &entry.ClientID, &entry.Level, &entry.Message, &traceID, &entry.Payload); err != nil {
			r.logger.Error("Failed to scan log row from SQLite", zap.Error(err))
			continue
		}
		entry.Kind = models.EntryKind(kind)
		entry.TraceID = traceID.String
		entry.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt)
		if err != nil {
			r.logger.Warn("Failed to parse timestamp from SQLite", zap.String("raw_ts", receivedAt), zap.Error(err))
			entry.ReceivedAt = time.Now().UTC()
		}
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Error during iteration over SQLite log rows", zap.Error(err))
		return nil, fmt.Errorf("sqlite row iteration error: %w", err)
	}
	return logs, nil
}

func (r *logRepositoryImpl) DeleteSQLiteLogsByID(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM tbl_log WHERE id IN (%s)`, strings.Join(placeholders, ","))
	result, err := r.sqliteDB.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to delete logs from SQLite", zap.Error(err))
		return fmt.Errorf("sqlite delete failed: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.logger.Debug("Deleted logs from SQLite", zap.Int64("rows_affected", rowsAffected), zap.Int("id_count", len(ids)))
	return nil
}

// CountByClient counts the entries of a client still staged in SQLite.
func (r *logRepositoryImpl) CountByClient(ctx context.Context, clientID string) (int64, int64, error) {
	query := `SELECT kind, COUNT(*) FROM tbl_log WHERE client_id = ? GROUP BY kind`
	rows, err := r.sqliteDB.QueryContext(ctx, query, clientID)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite count failed: %w", err)
	}
	defer rows.Close()

	var logs, exceptions int64
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return 0, 0, fmt.Errorf("sqlite count scan failed: %w", err)
		}
		switch models.EntryKind(kind) {
		case models.KindLog:
			logs = n
		case models.KindException:
			exceptions = n
		}
	}
	return logs, exceptions, rows.Err()
}

// --- Oracle Operations ---

func (r *logRepositoryImpl) HasOracle() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.oracleDB != nil
}

// InsertBatchOracle inserts a slice of LogEntry into Oracle tbl_frontend_log in one transaction
func (r *logRepositoryImpl) InsertBatchOracle(ctx context.Context, logs []models.LogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	r.mu.RLock()
	currentOracleDB := r.oracleDB
	r.mu.RUnlock()

	if currentOracleDB == nil {
		r.logger.Warn("Skipping Oracle insert: Oracle DB handle is currently nil in repository")
		return fmt.Errorf("repository oracle DB handle is nil: %w", ErrOracleConnection)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err := currentOracleDB.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		r.logger.Warn("Oracle ping failed before batch insert", zap.Error(err))
		return fmt.Errorf("oracle ping failed: %w", ErrOracleConnection)
	}

	tx, err := currentOracleDB.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin Oracle transaction", zap.Error(err))
		if isConnectionError(err) {
			return fmt.Errorf("oracle begin tx failed: %w: %w", err, ErrOracleConnection)
		}
		return fmt.Errorf("oracle begin tx failed: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO tbl_frontend_log (received_at, entry_kind, client_id, log_level, log_message, trace_id, payload) VALUES (:1, :2, :3, :4, :5, :6, :7)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to prepare Oracle batch insert statement", zap.Error(err))
		if isConnectionError(err) {
			return fmt.Errorf("oracle prepare failed: %w: %w", err, ErrOracleConnection)
		}
		return fmt.Errorf("oracle prepare statement failed: %w", err)
	}
	defer stmt.Close()

	for _, entry := range logs {
		_, err := stmt.ExecContext(ctx, entry.ReceivedAt, string(entry.Kind), entry.ClientID, entry.Level, entry.Message, entry.TraceID, entry.Payload)
		if err != nil {
			r.logger.Error("Error during Oracle batch insert execution", zap.Error(err), zap.Int64("sqlite_id", entry.ID))
			baseErr := fmt.Errorf("oracle batch exec failed: %w", err)
			if isConnectionError(err) {
				return fmt.Errorf("%w: %w", baseErr, ErrOracleConnection)
			}
			return baseErr
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit Oracle transaction", zap.Error(err))
		if isConnectionError(err) {
			return fmt.Errorf("oracle commit failed: %w: %w", err, ErrOracleConnection)
		}
		return fmt.Errorf("oracle commit failed: %w", err)
	}

	r.logger.Debug("Successfully inserted log batch into Oracle", zap.Int("batch_size", len(logs)))
	return nil
}

// SetOracleDB replaces the Oracle DB handle. It is concurrency-safe.
func (r *logRepositoryImpl) SetOracleDB(db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oracleDB = db
	status := "nil"
	if db != nil {
		status = "set/updated"
	}
	r.logger.Info("LogRepository Oracle DB handle updated", zap.String("status", status))
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, ErrOracleConnection) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "ora-03113") || strings.Contains(errStr, "ora-03114") || strings.Contains(errStr, "ora-125") ||
		strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "network error") || strings.Contains(errStr, "i/o error") ||
		strings.Contains(errStr, "broken pipe") || strings.Contains(errStr, "reset by peer") || strings.Contains(errStr, "timeout") {
		return true
	}
	return false
}
