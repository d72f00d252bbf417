package reporter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go-logrelay/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxRetries    = 3
	DefaultMaxStored     = 100

	LogsEndpoint       = "/api/v1/logging/frontend/logs"
	ExceptionsEndpoint = "/api/v1/exceptions/frontend"

	storeTimeout = 5 * time.Second
)

// ErrClosed is returned when entries are submitted to a closed Reporter.
var ErrClosed = errors.New("reporter closed")

// Sender delivers a single entry to a collection endpoint.
// Any non-nil error counts as a failed attempt.
type Sender interface {
	Send(ctx context.Context, endpoint string, entry models.Entry) error
}

// ChannelConfig parameterizes one queue: where it sends, where it persists and how hard it retries.
type ChannelConfig struct {
	Name          string
	Endpoint      string
	StorageKey    string
	FlushInterval time.Duration
	MaxRetries    int
	MaxStored     int
	// Immediate makes Report attempt a send before returning.
	Immediate bool
}

// LogsChannel returns the default configuration of the routine log queue.
func LogsChannel() ChannelConfig {
	return ChannelConfig{
		Name:          "logs",
		Endpoint:      LogsEndpoint,
		StorageKey:    LogsStorageKey,
		FlushInterval: DefaultFlushInterval,
		MaxRetries:    DefaultMaxRetries,
		MaxStored:     DefaultMaxStored,
	}
}

// ExceptionsChannel returns the default configuration of the exception queue.
func ExceptionsChannel() ChannelConfig {
	return ChannelConfig{
		Name:          "exceptions",
		Endpoint:      ExceptionsEndpoint,
		StorageKey:    ExceptionsStorageKey,
		FlushInterval: DefaultFlushInterval,
		MaxRetries:    DefaultMaxRetries,
		MaxStored:     DefaultMaxStored,
		Immediate:     true,
	}
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxStored <= 0 {
		c.MaxStored = DefaultMaxStored
	}
	if c.Name == "" {
		c.Name = c.StorageKey
	}
	return c
}

// FlushResult summarizes one Flush call.
type FlushResult struct {
	Attempted int
	Sent      int
	Failed    int // failed but still queued for another attempt
	Dropped   int
	Skipped   bool // another flush was already running
}

// Stats is a point-in-time view of a Reporter.
type Stats struct {
	Pending int   `json:"pending"`
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
}

type queuedEntry struct {
	entry    models.Entry
	retries  int
	inFlight bool
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeRetry
	outcomeDropped
	outcomeGone
)

// Reporter owns one FIFO queue of entries, its snapshot in the store and its flush loop.
type Reporter struct {
	cfg    ChannelConfig
	sender Sender
	store  SnapshotStore
	clock  Clock
	logger *zap.Logger

	mu      sync.Mutex
	queue   []*queuedEntry
	closed  bool
	started bool

	persistMu     sync.Mutex
	persistWG     sync.WaitGroup
	persistQueued atomic.Bool
	flushing      atomic.Bool
	sent          atomic.Int64
	dropped       atomic.Int64

	persistCh chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	runCancel context.CancelFunc
}

// New creates a Reporter. A nil store keeps snapshots in memory, a nil clock uses the system
// clock and a nil logger discards diagnostics. The logger must not feed back into any Reporter.
func New(cfg ChannelConfig, sender Sender, store SnapshotStore, clock Clock, logger *zap.Logger) *Reporter {
	if store == nil {
		store = NewMemoryStore()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Reporter{
		cfg:       cfg,
		sender:    sender,
		store:     store,
		clock:     clock,
		logger:    logger.With(zap.String("channel", cfg.Name)),
		persistCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Len returns the number of queued entries, in-flight ones included.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Stats returns counters for this Reporter.
func (r *Reporter) Stats() Stats {
	return Stats{Pending: r.Len(), Sent: r.sent.Load(), Dropped: r.dropped.Load()}
}

// Pending returns a copy of the queued entries in send order.
func (r *Reporter) Pending() []models.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Entry, len(r.queue))
	for i, q := range r.queue {
		out[i] = q.entry
	}
	return out
}

// Enqueue appends entry to the queue and schedules a snapshot. It never touches the network.
func (r *Reporter) Enqueue(entry models.Entry) error {
	_, err := r.push(entry)
	return err
}

// Report enqueues entry and, on immediate channels, tries to deliver it right away.
// A failed immediate send leaves the entry queued for the next flush and is not an error.
func (r *Reporter) Report(ctx context.Context, entry models.Entry) error {
	q, err := r.push(entry)
	if err != nil || !r.cfg.Immediate {
		return err
	}

	r.mu.Lock()
	if q.inFlight || r.indexLocked(q) < 0 {
		// A flush already picked it up.
		r.mu.Unlock()
		return nil
	}
	q.inFlight = true
	r.mu.Unlock()

	sendErr := r.sender.Send(ctx, r.cfg.Endpoint, q.entry)
	res := r.settle(q, sendErr)
	if res == outcomeSent || res == outcomeDropped {
		r.requestPersist()
	}
	return nil
}

func (r *Reporter) push(entry models.Entry) (*queuedEntry, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("Entry submitted after close, discarding", zap.String("message", entry.Message))
		return nil, ErrClosed
	}
	q := &queuedEntry{entry: entry}
	r.queue = append(r.queue, q)
	r.mu.Unlock()

	r.requestPersist()
	return q, nil
}

// Flush attempts every queued entry that is not already in flight, one send per entry.
// Overlapping calls return immediately with Skipped set.
func (r *Reporter) Flush(ctx context.Context) FlushResult {
	if !r.flushing.CompareAndSwap(false, true) {
		return FlushResult{Skipped: true}
	}
	defer r.flushing.Store(false)

	r.mu.Lock()
	batch := make([]*queuedEntry, 0, len(r.queue))
	for _, q := range r.queue {
		if !q.inFlight {
			q.inFlight = true
			batch = append(batch, q)
		}
	}
	r.mu.Unlock()

	var res FlushResult
	for i, q := range batch {
		if ctx.Err() != nil {
			r.release(batch[i:])
			break
		}
		res.Attempted++
		switch r.settle(q, r.sender.Send(ctx, r.cfg.Endpoint, q.entry)) {
		case outcomeSent:
			res.Sent++
		case outcomeRetry:
			res.Failed++
		case outcomeDropped:
			res.Dropped++
		}
	}

	if res.Attempted > 0 {
		r.logger.Debug("Flush completed",
			zap.Int("attempted", res.Attempted),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("dropped", res.Dropped),
		)
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		if err := r.Persist(persistCtx); err != nil {
			r.logger.Warn("Failed to persist queue snapshot after flush", zap.Error(err))
		}
		cancel()
	}
	return res
}

// settle records the result of one send attempt for q.
func (r *Reporter) settle(q *queuedEntry, err error) outcome {
	r.mu.Lock()
	q.inFlight = false
	idx := r.indexLocked(q)
	if idx < 0 {
		r.mu.Unlock()
		return outcomeGone
	}
	if err == nil {
		r.removeLocked(idx)
		r.mu.Unlock()
		r.sent.Add(1)
		return outcomeSent
	}
	q.retries++
	retries := q.retries
	if retries < r.cfg.MaxRetries {
		r.mu.Unlock()
		r.logger.Debug("Send failed, will retry", zap.Int("retries", retries), zap.Error(err))
		return outcomeRetry
	}
	r.removeLocked(idx)
	r.mu.Unlock()
	r.dropped.Add(1)
	r.logger.Warn("Dropping entry after max retries",
		zap.Int("retries", retries),
		zap.String("level", string(q.entry.Level)),
		zap.String("message", q.entry.Message),
		zap.Error(err),
	)
	return outcomeDropped
}

func (r *Reporter) release(batch []*queuedEntry) {
	r.mu.Lock()
	for _, q := range batch {
		q.inFlight = false
	}
	r.mu.Unlock()
}

func (r *Reporter) indexLocked(q *queuedEntry) int {
	for i, cur := range r.queue {
		if cur == q {
			return i
		}
	}
	return -1
}

func (r *Reporter) removeLocked(idx int) {
	r.queue = append(r.queue[:idx], r.queue[idx+1:]...)
}

// Persist writes the newest MaxStored queued entries to the store.
func (r *Reporter) Persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	return r.persistLocked(ctx)
}

func (r *Reporter) persistLocked(ctx context.Context) error {
	r.mu.Lock()
	start := 0
	if len(r.queue) > r.cfg.MaxStored {
		start = len(r.queue) - r.cfg.MaxStored
	}
	snapshot := make([]models.StoredEntry, 0, len(r.queue)-start)
	for _, q := range r.queue[start:] {
		snapshot = append(snapshot, models.StoredEntry{Entry: q.entry, Retries: q.retries})
	}
	r.mu.Unlock()

	return r.store.Save(ctx, r.cfg.StorageKey, snapshot)
}

// LoadFromStorage takes the persisted snapshot and puts its entries ahead of the live queue.
// It returns how many entries were restored. Storage errors are logged, never returned.
func (r *Reporter) LoadFromStorage(ctx context.Context) int {
	stored, err := r.store.Take(ctx, r.cfg.StorageKey)
	if err != nil {
		r.logger.Warn("Failed to load queue snapshot, continuing in memory", zap.Error(err))
		return 0
	}
	if len(stored) == 0 {
		return 0
	}

	restored := make([]*queuedEntry, 0, len(stored))
	for _, s := range stored {
		if s.Retries >= r.cfg.MaxRetries {
			continue
		}
		restored = append(restored, &queuedEntry{entry: s.Entry, retries: s.Retries})
	}
	if skipped := len(stored) - len(restored); skipped > 0 {
		r.dropped.Add(int64(skipped))
		r.logger.Warn("Dropping restored entries that already reached max retries", zap.Int("count", skipped))
	}

	r.mu.Lock()
	r.queue = append(restored, r.queue...)
	r.mu.Unlock()

	r.logger.Info("Restored queued entries from storage", zap.Int("count", len(restored)))
	return len(restored)
}

// requestPersist schedules a snapshot on the loop goroutine, or on a background goroutine
// when the loop is not running. It never waits for the store. Failures are logged only.
func (r *Reporter) requestPersist() {
	r.mu.Lock()
	switch {
	case r.started && !r.closed:
		r.mu.Unlock()
		select {
		case r.persistCh <- struct{}{}:
		default:
		}
		return
	case r.closed:
		// An immediate send settled after Close took its snapshot.
		r.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.Persist(ctx); err != nil {
			r.logger.Warn("Failed to persist queue snapshot", zap.Error(err))
		}
		return
	}
	if !r.persistQueued.CompareAndSwap(false, true) {
		r.mu.Unlock()
		return
	}
	r.persistWG.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.persistWG.Done()
		r.persistMu.Lock()
		defer r.persistMu.Unlock()
		// Requests arriving from here on need a newer snapshot than this one.
		r.persistQueued.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.persistLocked(ctx); err != nil {
			r.logger.Warn("Failed to persist queue snapshot", zap.Error(err))
		}
	}()
}

// Start launches the flush loop. Calling it twice is a no-op.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		return
	}
	r.started = true
	runCtx, cancel := context.WithCancel(context.Background())
	r.runCancel = cancel
	r.mu.Unlock()

	ticker := r.clock.NewTicker(r.cfg.FlushInterval)
	go r.run(runCtx, ticker)
	r.logger.Info("Reporter flush loop started", zap.Duration("interval", r.cfg.FlushInterval))
}

func (r *Reporter) run(ctx context.Context, ticker Ticker) {
	defer close(r.doneCh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			r.Flush(ctx)
		case <-r.persistCh:
			persistCtx, cancel := context.WithTimeout(ctx, storeTimeout)
			if err := r.Persist(persistCtx); err != nil {
				r.logger.Warn("Failed to persist queue snapshot", zap.Error(err))
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the flush loop, makes a final flush bounded by ctx and writes a final snapshot.
// Entries submitted after Close are rejected with ErrClosed.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	if started {
		close(r.stopCh)
		r.runCancel()
		<-r.doneCh
	}
	r.persistWG.Wait()

	res := r.Flush(ctx)
	r.logger.Info("Reporter closed",
		zap.Int("final_sent", res.Sent),
		zap.Int("left_queued", r.Len()),
	)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	return r.Persist(persistCtx)
}
