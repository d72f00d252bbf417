package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-logrelay/internal/models"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// SnapshotRepository keeps reporter queue snapshots in the agent's SQLite file.
// It implements reporter.SnapshotStore.
type SnapshotRepository struct {
	db      *sql.DB
	logger  *zap.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewSnapshotRepository creates a SnapshotRepository over an initialized agent database.
func NewSnapshotRepository(db *sql.DB, logger *zap.Logger) (*SnapshotRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &SnapshotRepository{db: db, logger: logger, encoder: enc, decoder: dec}, nil
}

// Save replaces the snapshot stored under key. An empty snapshot removes the row.
func (r *SnapshotRepository) Save(ctx context.Context, key string, entries []models.StoredEntry) error {
	if len(entries) == 0 {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM tbl_queue_snapshot WHERE storage_key = ?`, key); err != nil {
			return fmt.Errorf("sqlite snapshot delete failed: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	payload := r.encoder.EncodeAll(raw, nil)

	query := `INSERT INTO tbl_queue_snapshot (storage_key, payload, entry_count, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(storage_key) DO UPDATE SET payload = excluded.payload, entry_count = excluded.entry_count, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, payload, len(entries), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("sqlite snapshot upsert failed: %w", err)
	}
	r.logger.Debug("Saved queue snapshot",
		zap.String("storage_key", key),
		zap.Int("entries", len(entries)),
		zap.Int("raw_bytes", len(raw)),
		zap.Int("stored_bytes", len(payload)),
	)
	return nil
}

// Take reads and deletes the snapshot stored under key in one transaction.
func (r *SnapshotRepository) Take(ctx context.Context, key string) ([]models.StoredEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin tx failed: %w", err)
	}
	defer tx.Rollback()

	var payload []byte
	err = tx.QueryRowContext(ctx, `SELECT payload FROM tbl_queue_snapshot WHERE storage_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite snapshot query failed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tbl_queue_snapshot WHERE storage_key = ?`, key); err != nil {
		return nil, fmt.Errorf("sqlite snapshot delete failed: %w", err)
	}

	raw, err := r.decoder.DecodeAll(payload, nil)
	if err != nil {
		// Corrupt rows are discarded.
		if commitErr := tx.Commit(); commitErr != nil {
			r.logger.Warn("Failed to discard corrupt snapshot", zap.String("storage_key", key), zap.Error(commitErr))
		}
		return nil, fmt.Errorf("decompress snapshot %s: %w", key, err)
	}
	var entries []models.StoredEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		if commitErr := tx.Commit(); commitErr != nil {
			r.logger.Warn("Failed to discard corrupt snapshot", zap.String("storage_key", key), zap.Error(commitErr))
		}
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite commit failed: %w", err)
	}
	return entries, nil
}

// Close releases the compression resources.
func (r *SnapshotRepository) Close() error {
	r.decoder.Close()
	return r.encoder.Close()
}
