package core

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Entries expire lazily on access; a bounded store additionally purges
// expired entries when it hits its size cap.
type MemoryStore struct {
	mu      sync.RWMutex
	store   map[string]memoryEntry
	maxSize int
	logger  Logger
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates a new unbounded in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		store:  make(map[string]memoryEntry),
		logger: &NoOpLogger{},
	}
}

// NewMemoryStoreWithConfig creates an in-memory store honoring MaxSize.
func NewMemoryStoreWithConfig(cfg StoreConfig) *MemoryStore {
	s := NewMemoryStore()
	s.maxSize = cfg.MaxSize
	return s
}

// SetLogger configures the logger for this store.
func (m *MemoryStore) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Get retrieves a value. Missing and expired keys both return "" with no error.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.store[key]
	if !exists {
		m.logger.Debug("Store miss", map[string]interface{}{
			"operation": "store_get",
			"key":       key,
			"result":    "miss",
		})
		return "", nil
	}

	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.logger.Debug("Store entry expired", map[string]interface{}{
			"operation":  "store_get",
			"key":        key,
			"result":     "expired",
			"expired_at": entry.expiresAt.Format(time.RFC3339),
		})
		return "", nil
	}

	return entry.value, nil
}

// Set stores a value with optional TTL. A ttl of 0 means no expiry.
func (m *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSize > 0 && len(m.store) >= m.maxSize {
		if _, exists := m.store[key]; !exists {
			m.evictLocked()
		}
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.store[key] = entry

	m.logger.Debug("Store set", map[string]interface{}{
		"operation":  "store_set",
		"key":        key,
		"value_size": len(value),
		"has_ttl":    ttl > 0,
	})
	return nil
}

// evictLocked frees room for one new entry: expired entries first, then
// the entry closest to expiry. Callers must hold the write lock.
func (m *MemoryStore) evictLocked() {
	now := time.Now()
	victim := ""
	var victimExpiry time.Time
	for k, e := range m.store {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.store, k)
			return
		}
		if victim == "" || (!e.expiresAt.IsZero() && (victimExpiry.IsZero() || e.expiresAt.Before(victimExpiry))) {
			victim = k
			victimExpiry = e.expiresAt
		}
	}
	if victim != "" {
		delete(m.store, victim)
	}
}

// Delete removes a value.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.store[key]
	delete(m.store, key)

	m.logger.Debug("Store delete", map[string]interface{}{
		"operation": "store_delete",
		"key":       key,
		"existed":   existed,
	})
	return nil
}

// Exists checks if a key exists and has not expired.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.store[key]
	if !exists {
		return false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Len reports the number of stored entries including expired ones that
// have not been purged yet.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
