package anilist

import (
	"context"
	"testing"
	"time"

	"github.com/ateliersoft/anisync/core"
)

const searchQuery = `query ($search: String) { Page { media(search: $search) { id } } }`

func TestCacheKey(t *testing.T) {
	vars := map[string]interface{}{"search": "one piece", "page": 1}

	if CacheKey(searchQuery, vars) != CacheKey(searchQuery, vars) {
		t.Error("same query and variables must hash to the same key")
	}

	// encoding/json sorts map keys, so insertion order must not matter
	reordered := map[string]interface{}{"page": 1, "search": "one piece"}
	if CacheKey(searchQuery, vars) != CacheKey(searchQuery, reordered) {
		t.Error("variable insertion order changed the key")
	}

	other := map[string]interface{}{"search": "one piece", "page": 2}
	if CacheKey(searchQuery, vars) == CacheKey(searchQuery, other) {
		t.Error("different variables must not collide")
	}
	if CacheKey(searchQuery, vars) == CacheKey("query { Viewer { id } }", vars) {
		t.Error("different queries must not collide")
	}
}

func TestSearchCache_GetPut(t *testing.T) {
	cache := NewSearchCache(time.Minute, nil)
	vars := map[string]interface{}{"search": "berserk", "page": 1}

	if _, ok := cache.Get(searchQuery, vars); ok {
		t.Error("empty cache reported a hit")
	}

	cache.Put(searchQuery, vars, []byte(`{"data":{}}`))

	body, ok := cache.Get(searchQuery, vars)
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if string(body) != `{"data":{}}` {
		t.Errorf("body = %q", body)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestSearchCache_Expiry(t *testing.T) {
	cache := NewSearchCache(30*time.Minute, nil)
	now := time.Now()
	cache.now = func() time.Time { return now }

	vars := map[string]interface{}{"search": "berserk"}
	cache.Put(searchQuery, vars, []byte("fresh"))

	// Just inside the TTL still hits.
	now = now.Add(30 * time.Minute)
	if _, ok := cache.Get(searchQuery, vars); !ok {
		t.Error("entry at exactly the TTL boundary should still hit")
	}

	now = now.Add(time.Second)
	if _, ok := cache.Get(searchQuery, vars); ok {
		t.Error("entry past the TTL should miss")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not removed, Len() = %d", cache.Len())
	}
}

func TestSearchCache_InvalidateTerm(t *testing.T) {
	cache := NewSearchCache(time.Minute, nil)

	pageOne := map[string]interface{}{"search": "One Piece", "page": 1}
	pageTwo := map[string]interface{}{"search": "one piece", "page": 2}
	other := map[string]interface{}{"search": "naruto", "page": 1}

	cache.Put(searchQuery, pageOne, []byte("p1"))
	cache.Put(searchQuery, pageTwo, []byte("p2"))
	cache.Put(searchQuery, other, []byte("n1"))

	// Term matching is case- and whitespace-insensitive.
	cache.InvalidateTerm("  ONE PIECE ")

	if _, ok := cache.Get(searchQuery, pageOne); ok {
		t.Error("page 1 of the invalidated term survived")
	}
	if _, ok := cache.Get(searchQuery, pageTwo); ok {
		t.Error("page 2 of the invalidated term survived")
	}
	if _, ok := cache.Get(searchQuery, other); !ok {
		t.Error("unrelated term was invalidated")
	}
}

func TestSearchCache_InvalidateEmptyTermClearsAll(t *testing.T) {
	cache := NewSearchCache(time.Minute, nil)
	cache.Put(searchQuery, map[string]interface{}{"search": "a"}, []byte("1"))
	cache.Put(searchQuery, map[string]interface{}{"search": "b"}, []byte("2"))

	cache.InvalidateTerm("   ")

	if cache.Len() != 0 {
		t.Errorf("Len() = %d after empty-term invalidation, want 0", cache.Len())
	}
}

func TestSearchCache_SnapshotRestore(t *testing.T) {
	cache := NewSearchCache(30*time.Minute, nil)
	now := time.Now()
	cache.now = func() time.Time { return now }

	fresh := map[string]interface{}{"search": "vinland saga"}
	stale := map[string]interface{}{"search": "dorohedoro"}
	cache.Put(searchQuery, stale, []byte("old"))

	now = now.Add(31 * time.Minute)
	cache.Put(searchQuery, fresh, []byte("new"))

	data, err := cache.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}

	restored := NewSearchCache(30*time.Minute, nil)
	restored.now = func() time.Time { return now }
	if err := restored.Restore(data); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}

	if _, ok := restored.Get(searchQuery, fresh); !ok {
		t.Error("fresh entry lost across snapshot/restore")
	}
	if _, ok := restored.Get(searchQuery, stale); ok {
		t.Error("expired entry survived snapshot/restore")
	}

	// The term index must be rebuilt, not just the entries.
	restored.InvalidateTerm("vinland saga")
	if restored.Len() != 0 {
		t.Error("term invalidation broken after restore")
	}
}

func TestSearchCache_RestoreRejectsGarbage(t *testing.T) {
	cache := NewSearchCache(time.Minute, nil)
	if err := cache.Restore([]byte("{not json")); err == nil {
		t.Error("expected an error restoring malformed data")
	}
}

func TestSearchCache_StorePersistence(t *testing.T) {
	ctx := context.Background()
	store := core.NewMemoryStore()

	cache := NewSearchCache(time.Minute, nil)
	vars := map[string]interface{}{"search": "pluto"}
	cache.Put(searchQuery, vars, []byte("persisted"))

	if err := cache.SaveTo(ctx, store); err != nil {
		t.Fatalf("SaveTo() error: %v", err)
	}

	loaded := NewSearchCache(time.Minute, nil)
	if err := loaded.LoadFrom(ctx, store); err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	body, ok := loaded.Get(searchQuery, vars)
	if !ok || string(body) != "persisted" {
		t.Errorf("loaded cache returned %q, %v", body, ok)
	}
}

func TestSearchCache_LoadFromEmptyStore(t *testing.T) {
	cache := NewSearchCache(time.Minute, nil)
	if err := cache.LoadFrom(context.Background(), core.NewMemoryStore()); err != nil {
		t.Errorf("missing snapshot should not be an error, got %v", err)
	}
}
