package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Test NewMemoryStore creation
func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.store == nil {
		t.Error("MemoryStore map should be initialized")
	}
}

// Test Get operation
func TestMemoryStore_Get(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Missing key is not an error
	value, err := store.Get(ctx, "non-existent")
	if err != nil {
		t.Errorf("Get() returned unexpected error: %v", err)
	}
	if value != "" {
		t.Errorf("Get() for non-existent key = %v, want empty string", value)
	}

	if err := store.Set(ctx, "key1", "value1", 0); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	value, err = store.Get(ctx, "key1")
	if err != nil {
		t.Errorf("Get() returned unexpected error: %v", err)
	}
	if value != "value1" {
		t.Errorf("Get() = %v, want value1", value)
	}
}

// Test Set operation
func TestMemoryStore_Set(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
		ttl   time.Duration
	}{
		{name: "set simple value", key: "key1", value: "value1", ttl: 0},
		{name: "set with TTL", key: "key2", value: "value2", ttl: time.Hour},
		{name: "overwrite existing", key: "key1", value: "new_value", ttl: 0},
		{name: "empty value", key: "empty_val", value: "", ttl: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Set(ctx, tt.key, tt.value, tt.ttl); err != nil {
				t.Errorf("Set() error = %v", err)
			}

			gotValue, err := store.Get(ctx, tt.key)
			if err != nil {
				t.Errorf("Get() after Set() error = %v", err)
			}
			if gotValue != tt.value {
				t.Errorf("After Set(), Get() = %v, want %v", gotValue, tt.value)
			}
		})
	}
}

// Test TTL expiry
func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "key", "value", 30*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, _ := store.Get(ctx, "key")
	if value != "value" {
		t.Errorf("Get() before expiry = %v, want value", value)
	}

	exists, _ := store.Exists(ctx, "key")
	if !exists {
		t.Error("Exists() before expiry = false, want true")
	}

	time.Sleep(50 * time.Millisecond)

	value, err := store.Get(ctx, "key")
	if err != nil {
		t.Errorf("Get() after expiry error = %v", err)
	}
	if value != "" {
		t.Errorf("Get() after expiry = %v, want empty string", value)
	}

	exists, _ = store.Exists(ctx, "key")
	if exists {
		t.Error("Exists() after expiry = true, want false")
	}
}

// Test Delete operation
func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "key1", "value1", 0)
	_ = store.Set(ctx, "key2", "value2", 0)

	if err := store.Delete(ctx, "key1"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	value, _ := store.Get(ctx, "key1")
	if value != "" {
		t.Errorf("After Delete(), Get() = %v, want empty string", value)
	}

	value, _ = store.Get(ctx, "key2")
	if value != "value2" {
		t.Errorf("Get() = %v, want value2", value)
	}

	// Deleting a missing key is not an error
	if err := store.Delete(ctx, "non-existent"); err != nil {
		t.Errorf("Delete() non-existent key error = %v", err)
	}
}

// Test Exists operation
func TestMemoryStore_Exists(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	exists, err := store.Exists(ctx, "key1")
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true for non-existent key, want false")
	}

	_ = store.Set(ctx, "key1", "value1", 0)

	exists, _ = store.Exists(ctx, "key1")
	if !exists {
		t.Error("Exists() = false for existing key, want true")
	}

	// Empty values still exist
	_ = store.Set(ctx, "empty", "", 0)
	exists, _ = store.Exists(ctx, "empty")
	if !exists {
		t.Error("Exists() = false for key with empty value, want true")
	}
}

// Test size-capped eviction
func TestMemoryStore_Eviction(t *testing.T) {
	store := NewMemoryStoreWithConfig(StoreConfig{MaxSize: 3})
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1", time.Hour)
	_ = store.Set(ctx, "b", "2", 10*time.Millisecond)
	_ = store.Set(ctx, "c", "3", time.Hour)

	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}

	// Let "b" expire; the next insert should evict it rather than a live key
	time.Sleep(20 * time.Millisecond)
	_ = store.Set(ctx, "d", "4", time.Hour)

	if store.Len() != 3 {
		t.Errorf("Len() after eviction = %d, want 3", store.Len())
	}
	if v, _ := store.Get(ctx, "a"); v != "1" {
		t.Errorf("live key a evicted, Get() = %q", v)
	}
	if v, _ := store.Get(ctx, "d"); v != "4" {
		t.Errorf("new key d missing, Get() = %q", v)
	}

	// Overwriting an existing key at capacity does not evict
	_ = store.Set(ctx, "a", "1b", 0)
	if store.Len() != 3 {
		t.Errorf("Len() after overwrite = %d, want 3", store.Len())
	}
}

// Test concurrent access
func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	numOps := 100

	wg.Add(numOps * 2)
	for i := 0; i < numOps; i++ {
		go func(idx int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", idx%10)
			_ = store.Set(ctx, key, fmt.Sprintf("value%d", idx), 0)
		}(i)
		go func(idx int) {
			defer wg.Done()
			key := fmt.Sprintf("key%d", idx%10)
			_, _ = store.Get(ctx, key)
		}(i)
	}

	wg.Wait()
}
