package logging

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go-logrelay/internal/config"
	"go-logrelay/internal/database"
	"go-logrelay/internal/repositories"

	"go.uber.org/zap"
)

var errProcessorStopped = errors.New("processor stopped")

// LogProcessor moves received entries from the SQLite buffer into the Oracle archive.
type LogProcessor struct {
	logRepo     repositories.LogRepository
	logger      *zap.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	connect     func() (*sql.DB, error) // re-opens the Oracle pool after a connection error

	mu        sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewLogProcessor creates a new LogProcessor instance
func NewLogProcessor(cfg *config.Config, logRepo repositories.LogRepository, logger *zap.Logger) *LogProcessor {
	p := &LogProcessor{
		logRepo:     logRepo,
		logger:      logger.Named("log_processor"),
		interval:    cfg.LogBatchInterval,
		batchSize:   cfg.LogProcessorBatchSize,
		maxAttempts: cfg.LogProcessorOracleRetryAttempts,
		retryDelay:  time.Duration(cfg.LogProcessorOracleRetryDelaySeconds) * time.Second,
	}
	p.connect = func() (*sql.DB, error) { return database.InitOracle(cfg, p.logger) }
	if p.interval <= 0 {
		p.interval = time.Minute
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 1
	}
	return p
}

// Start begins the processing loop in a separate goroutine. It does nothing when
// no Oracle archive is configured.
func (p *LogProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		p.logger.Warn("Log processor already running")
		return
	}
	if !p.logRepo.HasOracle() {
		p.logger.Info("Oracle archive not configured; received entries stay in SQLite")
		return
	}
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.isRunning = true
	go p.run(p.stopChan, p.done)
	p.logger.Info("SQLite to Oracle log processor started", zap.Duration("interval", p.interval))
}

// Stop terminates the loop and attempts one last batch within ctx.
func (p *LogProcessor) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	close(p.stopChan)
	done := p.done
	p.mu.Unlock()

	p.logger.Info("Stopping SQLite to Oracle log processor...")
	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("Log processor loop did not exit before shutdown deadline")
		return
	}
	p.logger.Info("Processing final log batch before shutdown...")
	p.processBatch(ctx, nil)
	p.logger.Info("Log processor stopped.")
}

func (p *LogProcessor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(context.Background(), p.interval)
			p.processBatch(tickCtx, stop)
			cancel()
		case <-stop:
			return
		}
	}
}

// processBatch copies one batch to Oracle and deletes it from SQLite only after the
// insert committed. Connection errors trigger a reconnect and a delayed retry.
func (p *LogProcessor) processBatch(ctx context.Context, stop <-chan struct{}) int {
	logs, err := p.logRepo.GetSQLiteLogs(ctx, p.batchSize)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Info("Context cancelled/timed out during SQLite fetch.", zap.Error(err))
		} else {
			p.logger.Error("Failed to get logs from SQLite", zap.Error(err))
		}
		return 0
	}
	if len(logs) == 0 {
		p.logger.Debug("No logs in SQLite to process")
		return 0
	}

	var insertErr error
	success := false
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if insertErr = p.interrupted(ctx, stop); insertErr != nil {
			break
		}
		insertErr = p.logRepo.InsertBatchOracle(ctx, logs)
		if insertErr == nil {
			success = true
			break
		}
		if !errors.Is(insertErr, repositories.ErrOracleConnection) {
			p.logger.Error("Oracle insert failed (non-connection error)", zap.Error(insertErr), zap.Int("attempt", attempt))
			break
		}
		if attempt == p.maxAttempts {
			p.logger.Error("Oracle insert failed after max retries for connection issue", zap.Error(insertErr), zap.Int("attempts", attempt))
			break
		}
		p.logger.Warn("Oracle insert failed (connection issue), reconnecting before retry",
			zap.Error(insertErr), zap.Int("attempt", attempt), zap.Int("max_attempts", p.maxAttempts))
		p.reconnect(ctx)

		select {
		case <-time.After(p.retryDelay):
		case <-ctx.Done():
			insertErr = ctx.Err()
		case <-stop:
			insertErr = errProcessorStopped
		}
		if !errors.Is(insertErr, repositories.ErrOracleConnection) {
			break
		}
	}

	if !success {
		p.logger.Warn("Failed to insert log batch into Oracle; keeping it in SQLite", zap.Error(insertErr), zap.Int("log_count", len(logs)))
		return 0
	}

	logIDs := make([]int64, len(logs))
	for i, log := range logs {
		logIDs[i] = log.ID
	}
	if err := p.logRepo.DeleteSQLiteLogsByID(ctx, logIDs); err != nil {
		p.logger.Error("CRITICAL: Failed to delete logs from SQLite after successful Oracle insert. Logs are duplicated.", zap.Error(err), zap.Int64s("log_ids", logIDs))
		return len(logs)
	}
	p.logger.Info("Processed and transferred log batch", zap.Int("count", len(logs)))
	return len(logs)
}

func (p *LogProcessor) interrupted(ctx context.Context, stop <-chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-stop:
		return errProcessorStopped
	default:
		return nil
	}
}

func (p *LogProcessor) reconnect(ctx context.Context) {
	newDB, err := p.connect()
	if err != nil || newDB == nil {
		p.logger.Warn("Processor could not re-open the Oracle pool", zap.Error(err))
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := newDB.PingContext(pingCtx); err != nil {
		p.logger.Error("Processor opened Oracle pool, but ping failed", zap.Error(err))
		newDB.Close()
		return
	}
	p.logRepo.SetOracleDB(newDB)
	p.logger.Info("Processor re-established the Oracle connection")
}
