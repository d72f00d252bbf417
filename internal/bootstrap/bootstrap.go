package bootstrap

import (
	"context"
	"database/sql"
	"time"

	"go-logrelay/internal/config"
	"go-logrelay/internal/handlers"
	"go-logrelay/internal/logging"
	"go-logrelay/internal/repositories"
	"go-logrelay/internal/services"

	"go.uber.org/zap"
)

// AppComponents holds the initialized collector components.
type AppComponents struct {
	AuthHandler   *handlers.AuthHandler
	IngestHandler *handlers.IngestHandler
	ClientHandler *handlers.ClientHandler
	AuthService   services.AuthService
	LogProcessor  *logging.LogProcessor
	LogRepo       repositories.LogRepository
	ClientRepo    repositories.ClientRepository

	oracleDB *sql.DB
}

// OracleDB returns the Oracle pool the collector started with, or nil when the archive is disabled.
func (c *AppComponents) OracleDB() *sql.DB { return c.oracleDB }

// InitializeAppComponents wires repositories, services, handlers and the log processor,
// and seeds the bootstrap client.
func InitializeAppComponents(
	cfg *config.Config,
	logger *zap.Logger,
	sqliteDB *sql.DB,
	oracleDB *sql.DB, // nil when ORACLE_CONN_STRING is empty
) (*AppComponents, error) {
	logger.Info("Initializing application components: Repositories, Services, Handlers, Processors...")

	// --- 1. Repositories ---
	logRepo := repositories.NewLogRepository(sqliteDB, oracleDB, logger)
	clientRepo := repositories.NewClientRepository(sqliteDB, logger)
	logger.Info("Repositories initialized.")

	// --- 2. Services ---
	authService := services.NewAuthService(clientRepo, logger, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	ingestService := services.NewIngestService(logRepo, logger)
	clientService := services.NewClientService(clientRepo, logRepo, logger)
	logger.Info("Services initialized.")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := authService.EnsureBootstrapClient(ctx, cfg.BootstrapClientID, cfg.BootstrapClientName, cfg.BootstrapClientSecret); err != nil {
		logger.Error("Failed to seed bootstrap client", zap.String("client_id", cfg.BootstrapClientID), zap.Error(err))
		return nil, err
	}

	// --- 3. Handlers ---
	components := &AppComponents{
		AuthHandler:   handlers.NewAuthHandler(authService),
		IngestHandler: handlers.NewIngestHandler(ingestService),
		ClientHandler: handlers.NewClientHandler(clientService),
		AuthService:   authService,
		LogProcessor:  logging.NewLogProcessor(cfg, logRepo, logger),
		LogRepo:       logRepo,
		ClientRepo:    clientRepo,
		oracleDB:      oracleDB,
	}
	logger.Info("Application components initialization complete.")
	return components, nil
}
