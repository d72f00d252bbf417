package reporter

import (
	"context"
	"encoding/json"
	"sync"

	"go-logrelay/internal/models"
)

// Storage keys used by the two standard channels.
const (
	LogsStorageKey       = "app_logs_queue"
	ExceptionsStorageKey = "app_exceptions_queue"
)

// SnapshotStore persists queue snapshots between process runs.
type SnapshotStore interface {
	// Save replaces the snapshot stored under key.
	Save(ctx context.Context, key string, entries []models.StoredEntry) error
	// Take returns the snapshot stored under key and clears it.
	Take(ctx context.Context, key string) ([]models.StoredEntry, error)
}

// MemoryStore is a SnapshotStore that lives for the lifetime of the process.
// Snapshots are kept JSON-encoded so callers never share slices with the store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, key string, entries []models.StoredEntry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) ([]models.StoredEntry, error) {
	m.mu.Lock()
	b, ok := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var entries []models.StoredEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Peek returns the snapshot under key without clearing it.
func (m *MemoryStore) Peek(key string) []models.StoredEntry {
	m.mu.Lock()
	b, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	var entries []models.StoredEntry
	_ = json.Unmarshal(b, &entries)
	return entries
}
