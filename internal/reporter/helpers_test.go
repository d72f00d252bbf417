package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-logrelay/internal/models"
)

var errNetwork = errors.New("network down")

// fakeSender records deliveries. failures[message] makes that many sends of an entry fail first.
type fakeSender struct {
	mu       sync.Mutex
	failAll  bool
	failures map[string]int // message -> remaining failures
	sent     []models.Entry
	calls    int

	// When set, each Send signals entered and waits on release.
	entered chan struct{}
	release chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: make(map[string]int)}
}

func (s *fakeSender) Send(ctx context.Context, _ string, entry models.Entry) error {
	if s.entered != nil {
		s.entered <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAll {
		return errNetwork
	}
	if n := s.failures[entry.Message]; n > 0 {
		s.failures[entry.Message] = n - 1
		return errNetwork
	}
	s.sent = append(s.sent, entry)
	return nil
}

func (s *fakeSender) setFailAll(v bool) {
	s.mu.Lock()
	s.failAll = v
	s.mu.Unlock()
}

func (s *fakeSender) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, e := range s.sent {
		out[i] = e.Message
	}
	return out
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// failingStore rejects every write and read.
type failingStore struct{}

func (failingStore) Save(context.Context, string, []models.StoredEntry) error {
	return errors.New("quota exceeded")
}

func (failingStore) Take(context.Context, string) ([]models.StoredEntry, error) {
	return nil, errors.New("storage unavailable")
}

// blockingStore holds every Save until release is closed, like a locked database.
type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	last    int
}

func (s *blockingStore) Save(ctx context.Context, _ string, entries []models.StoredEntry) error {
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.last = len(entries)
	s.mu.Unlock()
	return nil
}

func (s *blockingStore) Take(context.Context, string) ([]models.StoredEntry, error) {
	return nil, nil
}

func (s *blockingStore) lastCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.once.Do(func() { close(m.stopped) }) }

// manualClock hands out tickers that only fire when Tick is called.
type manualClock struct {
	now    time.Time
	mu     sync.Mutex
	ticker *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticker = &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	return c.ticker
}

func (c *manualClock) Tick() {
	c.mu.Lock()
	t := c.ticker
	c.mu.Unlock()
	t.ch <- c.now
}

func testEntries(n int) []models.Entry {
	b := NewBuilder("", newManualClock())
	out := make([]models.Entry, n)
	for i := range out {
		out[i] = b.Log(models.LevelInfo, fmt.Sprintf("entry-%d", i), models.EntryContext{Module: "test"})
	}
	return out
}

func entryJSON(t *testing.T, e models.Entry) string {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	return string(b)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
