package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-logrelay/internal/config"
	"go-logrelay/internal/logging"
	"go-logrelay/internal/relay"
	"go-logrelay/internal/utils"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunAgent relays stdin to the collector until EOF or a shutdown signal.
func RunAgent() {
	tempConfigLogger, _ := zap.NewProduction(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	defer tempConfigLogger.Sync()

	cfg, err := config.LoadAgentConfig(tempConfigLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	fileSyncer, _, err := newFileSyncer(fileLogSettings{
		Path:       cfg.LogFilePath,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAge,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	// stdout may be the next stage of a pipeline, so diagnostics go to stderr.
	opts := logging.Options{AppEnv: cfg.AppEnv, Level: cfg.LogLevel, LogFilePath: cfg.LogFilePath, Console: zapcore.Lock(os.Stderr)}
	diagLogger := logging.InitializeLogger(opts, fileSyncer)
	utils.TraceAgentConfigDetails(diagLogger, cfg)

	agent, err := relay.New(cfg, diagLogger)
	if err != nil {
		diagLogger.Fatal("Failed to initialize relay agent", zap.Error(err))
	}

	// The agent's own lifecycle events are relayed as well, tagged with its module name.
	appLogger := diagLogger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, logging.NewRelayCore(zapcore.WarnLevel, agent.Hub(), cfg.HTTPTimeout))
	})).Named("relay-agent")
	logging.SetGlobalLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent.Start(ctx)
	appLogger.Info("Relaying stdin", zap.String("collector", cfg.CollectorURL), zap.String("store", cfg.Store))

	if err := agent.Relay(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Reading input failed", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := agent.Close(shutdownCtx); err != nil {
		diagLogger.Warn("Relay agent closed with errors", zap.Error(err))
	}
	stats := agent.Hub().Stats()
	diagLogger.Info("Relay agent stopped",
		zap.Int("pending_logs", stats.Logs.Pending),
		zap.Int("pending_exceptions", stats.Exceptions.Pending),
		zap.Int64("sent_logs", stats.Logs.Sent),
		zap.Int64("sent_exceptions", stats.Exceptions.Sent),
		zap.Int64("dropped_logs", stats.Logs.Dropped),
		zap.Int64("dropped_exceptions", stats.Exceptions.Dropped),
	)
	syncLogger(diagLogger)
}
