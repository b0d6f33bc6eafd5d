package anilist

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ateliersoft/anisync/core"
)

// SearchCache holds raw response bytes for read-shaped queries. Entries
// expire a fixed TTL after insertion. An auxiliary term index maps the
// normalized search term to the cache keys it produced, so a single
// term can be invalidated without wiping unrelated searches.
type SearchCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*cacheEntry
	terms   map[string]map[string]struct{}
	logger  core.Logger
	now     func() time.Time
}

type cacheEntry struct {
	Body     []byte    `json:"body"`
	StoredAt time.Time `json:"storedAt"`
	Term     string    `json:"term,omitempty"`
}

// NewSearchCache creates a cache with the given TTL. A zero ttl falls
// back to the default 30 minutes.
func NewSearchCache(ttl time.Duration, logger core.Logger) *SearchCache {
	if ttl <= 0 {
		ttl = core.DefaultSearchCacheTTL
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &SearchCache{
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
		terms:   make(map[string]map[string]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// CacheKey derives the stable key for one query + variables pair:
// sha1 over the query text concatenated with the canonical JSON of the
// variables. encoding/json marshals map keys in sorted order, which is
// exactly the canonical form needed for stable hashing.
func CacheKey(query string, vars map[string]interface{}) string {
	canonical, err := json.Marshal(vars)
	if err != nil {
		// Variables are plain JSON values; a failed marshal still needs
		// a distinct key.
		canonical = []byte(fmt.Sprintf("%v", vars))
	}
	sum := sha1.Sum(append([]byte(query), canonical...))
	return hex.EncodeToString(sum[:])
}

// normalizeTerm canonicalizes a search term for the invalidation index.
func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Get returns the cached response bytes for the query, if still fresh.
func (c *SearchCache) Get(query string, vars map[string]interface{}) ([]byte, bool) {
	key := CacheKey(query, vars)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.StoredAt) > c.ttl {
		c.removeLocked(key, entry)
		c.logger.Debug("Search cache entry expired", map[string]interface{}{
			"operation": "cache_get",
			"key":       key,
			"term":      entry.Term,
		})
		return nil, false
	}
	return entry.Body, true
}

// Put stores response bytes for the query and indexes them under the
// normalized search term found in the variables.
func (c *SearchCache) Put(query string, vars map[string]interface{}, body []byte) {
	key := CacheKey(query, vars)
	term := ""
	if raw, ok := vars["search"]; ok {
		if s, ok := raw.(string); ok {
			term = normalizeTerm(s)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		Body:     body,
		StoredAt: c.now(),
		Term:     term,
	}
	if term != "" {
		if c.terms[term] == nil {
			c.terms[term] = make(map[string]struct{})
		}
		c.terms[term][key] = struct{}{}
	}
}

// InvalidateTerm removes every entry produced by searches for term.
// An empty term clears the whole cache.
func (c *SearchCache) InvalidateTerm(term string) {
	normalized := normalizeTerm(term)
	if normalized == "" {
		c.Clear()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.terms[normalized]
	for key := range keys {
		delete(c.entries, key)
	}
	delete(c.terms, normalized)

	c.logger.Debug("Search cache term invalidated", map[string]interface{}{
		"operation": "cache_invalidate",
		"term":      normalized,
		"removed":   len(keys),
	})
}

// Clear wipes the cache and the term index.
func (c *SearchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.terms = make(map[string]map[string]struct{})
}

// Len reports the number of live entries, counting expired ones that
// have not been touched since expiring.
func (c *SearchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// removeLocked deletes an entry and its term index reference.
// Callers must hold the mutex.
func (c *SearchCache) removeLocked(key string, entry *cacheEntry) {
	delete(c.entries, key)
	if entry.Term != "" {
		if keys, ok := c.terms[entry.Term]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.terms, entry.Term)
			}
		}
	}
}

// Snapshot serializes the live entries for persistence across runs.
// Expired entries are dropped rather than serialized.
func (c *SearchCache) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	fresh := make(map[string]*cacheEntry, len(c.entries))
	for key, entry := range c.entries {
		if now.Sub(entry.StoredAt) <= c.ttl {
			fresh[key] = entry
		}
	}
	return json.Marshal(fresh)
}

// Restore replaces the cache contents from a Snapshot, rebuilding the
// term index and dropping anything that expired while persisted.
func (c *SearchCache) Restore(data []byte) error {
	var entries map[string]*cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("restore search cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries = make(map[string]*cacheEntry, len(entries))
	c.terms = make(map[string]map[string]struct{})
	for key, entry := range entries {
		if now.Sub(entry.StoredAt) > c.ttl {
			continue
		}
		c.entries[key] = entry
		if entry.Term != "" {
			if c.terms[entry.Term] == nil {
				c.terms[entry.Term] = make(map[string]struct{})
			}
			c.terms[entry.Term][key] = struct{}{}
		}
	}
	return nil
}

// SaveTo persists a snapshot into the store under the cache key.
func (c *SearchCache) SaveTo(ctx context.Context, store core.Store) error {
	data, err := c.Snapshot()
	if err != nil {
		return err
	}
	return store.Set(ctx, core.SearchCacheStoreKey, string(data), c.ttl)
}

// LoadFrom restores a previously persisted snapshot. A missing snapshot
// is not an error.
func (c *SearchCache) LoadFrom(ctx context.Context, store core.Store) error {
	data, err := store.Get(ctx, core.SearchCacheStoreKey)
	if err != nil {
		return err
	}
	if data == "" {
		return nil
	}
	return c.Restore([]byte(data))
}
