// Package datastore persists the engine's local state as format-agnostic
// key/value blobs: favorites, the unlock ledger, and per-category catalog
// entries each occupy one logical record.
package datastore

import (
	"sync"
	"time"

	"github.com/fieldguide/fieldguide-go/internal/errors"
)

// ErrKeyNotFound is returned by Get when no blob exists under the key.
var ErrKeyNotFound = errors.Newf("key not found").
	Category(errors.CategoryNotFound).
	Component("datastore").
	Build()

// Interface abstracts blob persistence so stores can run against SQLite in
// the application and an in-memory map in tests.
type Interface interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Blob is the persisted record, one row per logical store.
type Blob struct {
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte
	UpdatedAt time.Time
}

// MemoryStore is an in-memory Interface implementation for tests and
// ephemeral sessions.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
