package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go-logrelay/internal/models"

	"go.uber.org/zap"
)

// ErrClientExists is returned when a client id is already registered.
var ErrClientExists = errors.New("client already exists")

// ClientRepository defines the interface for API client data operations
type ClientRepository interface {
	FindByClientID(ctx context.Context, clientID string) (*models.APIClient, error)
	CreateClient(ctx context.Context, client *models.APIClient) (int64, error) // Returns the new row ID
}

// sqliteClientRepository implements ClientRepository for the collector's SQLite database
type sqliteClientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClientRepository creates a new ClientRepository
func NewClientRepository(db *sql.DB, logger *zap.Logger) ClientRepository {
	return &sqliteClientRepository{db: db, logger: logger}
}

// FindByClientID retrieves a client from tbl_api_client. It returns nil, nil when not found.
func (r *sqliteClientRepository) FindByClientID(ctx context.Context, clientID string) (*models.APIClient, error) {
	query := `SELECT id, client_id, name, secret_hash, created_at FROM tbl_api_client WHERE client_id = ?`
	client := &models.APIClient{}
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, clientID).Scan(
		&client.ID,
		&client.ClientID,
		&client.Name,
		&client.SecretHash,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("Client not found", zap.String("client_id", clientID))
			return nil, nil
		}
		r.logger.Error("Error querying client", zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("error finding client %s: %w", clientID, err)
	}

	if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		client.CreatedAt = ts
	}
	return client, nil
}

// CreateClient inserts a new client row and sets client.ID.
func (r *sqliteClientRepository) CreateClient(ctx context.Context, client *models.APIClient) (int64, error) {
	existing, err := r.FindByClientID(ctx, client.ClientID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, ErrClientExists
	}

	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO tbl_api_client (client_id, name, secret_hash, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, client.ClientID, client.Name, client.SecretHash, client.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		r.logger.Error("Failed to insert client", zap.String("client_id", client.ClientID), zap.Error(err))
		return 0, fmt.Errorf("sqlite insert client failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite last insert id: %w", err)
	}
	client.ID = id
	r.logger.Info("API client created", zap.String("client_id", client.ClientID), zap.Int64("id", id))
	return id, nil
}
