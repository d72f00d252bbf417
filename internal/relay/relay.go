package relay

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go-logrelay/internal/apiclient"
	"go-logrelay/internal/config"
	"go-logrelay/internal/database"
	"go-logrelay/internal/reporter"
	"go-logrelay/internal/repositories"

	"go.uber.org/zap"
)

const maxLineBytes = 1 << 20

// Agent reads log lines and relays them to the collector through a reporter.Hub.
type Agent struct {
	hub    *reporter.Hub
	logger *zap.Logger
	db     *sql.DB // nil for the memory store
	repo   *repositories.SnapshotRepository
}

// New builds an Agent from cfg. logger receives the reporters' own diagnostics and
// must not be connected to the hub.
func New(cfg *config.AgentConfig, logger *zap.Logger) (*Agent, error) {
	client := apiclient.New(apiclient.Config{
		BaseURL:      cfg.CollectorURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.HTTPTimeout,
	}, logger.Named("apiclient"))
	return NewWithSender(cfg, apiclient.NewSender(client), logger)
}

// NewWithSender builds an Agent that delivers through sender.
func NewWithSender(cfg *config.AgentConfig, sender reporter.Sender, logger *zap.Logger) (*Agent, error) {
	a := &Agent{logger: logger}

	var store reporter.SnapshotStore
	switch cfg.Store {
	case "memory":
		store = reporter.NewMemoryStore()
	default:
		db, err := database.InitSQLite(cfg.DBPath, database.AgentSchema, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open queue store: %w", err)
		}
		repo, err := repositories.NewSnapshotRepository(db, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.db, a.repo, store = db, repo, repo
	}

	builder := reporter.NewBuilder(cfg.Source, nil)
	builder.SetUserID(cfg.UserID)

	logs := reporter.LogsChannel()
	exceptions := reporter.ExceptionsChannel()
	for _, ch := range []*reporter.ChannelConfig{&logs, &exceptions} {
		ch.FlushInterval = cfg.FlushInterval
		ch.MaxRetries = cfg.MaxRetries
		ch.MaxStored = cfg.MaxStored
	}
	a.hub = reporter.NewHub(builder,
		reporter.New(logs, sender, store, nil, logger.Named("reporter.logs")),
		reporter.New(exceptions, sender, store, nil, logger.Named("reporter.exceptions")),
	)
	return a, nil
}

// Hub returns the agent's reporters.
func (a *Agent) Hub() *reporter.Hub { return a.hub }

// Start restores queued entries from the last run and starts the flush loops.
func (a *Agent) Start(ctx context.Context) {
	if n := a.hub.LoadFromStorage(ctx); n > 0 {
		a.logger.Info("Restored queued entries from previous run", zap.Int("count", n))
	}
	a.hub.Start()
	a.logger.Info("Relay agent started", zap.String("trace_id", a.hub.TraceID()))
}

// HandleLine parses and submits one line.
func (a *Agent) HandleLine(ctx context.Context, line string) error {
	entry, ok := ParseLine(a.hub.Builder(), line)
	if !ok {
		return nil
	}
	return a.hub.Submit(ctx, entry)
}

// Relay submits every line of r until EOF or until ctx is cancelled.
func (a *Agent) Relay(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := a.HandleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

// Close flushes and persists both queues within ctx and releases the store.
func (a *Agent) Close(ctx context.Context) error {
	err := a.hub.Close(ctx)
	if a.repo != nil {
		err = errors.Join(err, a.repo.Close())
	}
	if a.db != nil {
		err = errors.Join(err, a.db.Close())
	}
	return err
}
