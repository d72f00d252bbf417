package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go-logrelay/internal/bootstrap"
	"go-logrelay/internal/config"
	"go-logrelay/internal/database"
	"go-logrelay/internal/logging"
	"go-logrelay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Run initializes and starts the collector
func Run() {
	initAppStartTime := time.Now()

	// --- 1. Load Configuration ---
	tempConfigLogger, _ := zap.NewProduction(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	defer tempConfigLogger.Sync()

	cfg, err := config.LoadConfig(tempConfigLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- 2. Logger (console + rotating file) ---
	fileSyncer, _, err := newFileSyncer(fileLogSettings{
		Path:           cfg.LogFilePath,
		MaxSizeMB:      cfg.LogMaxSize,
		MaxBackups:     cfg.LogMaxBackups,
		MaxAgeDays:     cfg.LogMaxAge,
		Compress:       cfg.LogCompress,
		RotateInterval: time.Duration(cfg.LogRotateInterval) * time.Hour,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	fileLogger := logging.InitializeLogger(logging.Options{AppEnv: cfg.AppEnv, Level: cfg.LogLevel, LogFilePath: cfg.LogFilePath}, fileSyncer)
	logging.SetGlobalLogger(fileLogger)
	utils.TraceConfigDetails(fileLogger, cfg)

	// --- 3. Databases ---
	sqliteDB, err := database.InitSQLite(cfg.SQLiteDBPath, database.CollectorSchema, fileLogger)
	if err != nil {
		fileLogger.Fatal("Failed to initialize SQLite database", zap.Error(err))
	}
	oracleDB, err := database.InitOracle(cfg, fileLogger)
	if err != nil {
		fileLogger.Error("Error during Oracle DB pool initialization. Entries stay in SQLite until it is fixed.", zap.Error(err))
	}

	// --- 4. Components, server and routes ---
	components, err := bootstrap.InitializeAppComponents(cfg, fileLogger, sqliteDB, oracleDB)
	if err != nil {
		fileLogger.Fatal("Failed to initialize application components", zap.Error(err))
	}
	appFiber := NewServer(cfg, fileLogger, components, sqliteDB)

	// Only the master process moves entries to Oracle when Prefork is on.
	if !fiber.IsChild() {
		components.LogProcessor.Start()
	}

	// --- 5. Start Server & Graceful Shutdown ---
	serverCtx, cancelServerCtx := context.WithCancel(context.Background())
	defer cancelServerCtx()
	serverStopped := make(chan struct{})

	go func() {
		defer close(serverStopped)
		listenAddr := ":" + cfg.Port
		fileLogger.Info(fmt.Sprintf("Completed initialization application in %d ms.", time.Since(initAppStartTime).Milliseconds()))
		fileLogger.Info("Starting Fiber server...",
			zap.String("address", listenAddr),
			zap.Bool("prefork_enabled", appFiber.Config().Prefork),
			zap.Int("pid", os.Getpid()),
			zap.String("app_env", cfg.AppEnv),
		)
		if err := appFiber.Listen(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fileLogger.Error("Server listener failed", zap.String("address", listenAddr), zap.Error(err))
			cancelServerCtx()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case s := <-sig:
		fileLogger.Info("Shutdown signal received.", zap.String("signal", s.String()))
	case <-serverCtx.Done():
		fileLogger.Info("Server context cancelled, initiating shutdown.")
	}

	fileLogger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelShutdown()

	if err := appFiber.ShutdownWithContext(shutdownCtx); err != nil {
		fileLogger.Error("Fiber server shutdown failed", zap.Error(err))
	} else {
		fileLogger.Info("Fiber server gracefully stopped.")
	}
	<-serverStopped

	if !fiber.IsChild() {
		components.LogProcessor.Stop(shutdownCtx)
	}

	syncLogger(fileLogger)
	if errClose := sqliteDB.Close(); errClose != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Error closing SQLite database: %v\n", errClose)
	}
	if oracleDB != nil {
		if errClose := oracleDB.Close(); errClose != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] Error closing Oracle database pool: %v\n", errClose)
		}
	}
	fmt.Println("[INFO] Application shutdown complete.")
}

// syncLogger flushes logger, ignoring the errors stdout gives when it is not a file.
func syncLogger(logger *zap.Logger) {
	if errSync := logger.Sync(); errSync != nil {
		errMsg := errSync.Error()
		if strings.Contains(errMsg, "handle is invalid") || strings.Contains(errMsg, "sync /dev/stdout") || strings.Contains(errMsg, "inappropriate ioctl") {
			return
		}
		fmt.Fprintf(os.Stderr, "[WARN] Error syncing file/console logger: %v\n", errSync)
	}
}
