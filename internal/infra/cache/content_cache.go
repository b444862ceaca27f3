// Package cache is a two-tier (in-memory + on-disk) TTL cache for generated
// message content. The memory index is authoritative for hits and bounded in
// size; the disk mirror repopulates it across restarts. Entries are never
// required for correctness: a miss simply re-triggers generation, and disk
// failures degrade to memory-only operation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/config"
	"telegram-bulk-ops/internal/infra/metrics"
)

// Entry is one cached payload, mirrored verbatim to disk as JSON.
type Entry struct {
	Key       string    `json:"key"`
	Operation string    `json:"operation"`
	Payload   string    `json:"payload"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// strippedParams must not affect cache identity.
var strippedParams = map[string]struct{}{
	"id":        {},
	"ids":       {},
	"chat_id":   {},
	"user_id":   {},
	"job_id":    {},
	"timestamp": {},
	"ts":        {},
}

type ContentCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string // insertion order for evict-oldest
	cfg     config.CacheConfig
	log     *zerolog.Logger

	now func() time.Time
}

func New(cfg config.CacheConfig, logger *zerolog.Logger) *ContentCache {
	cacheLog := logger.With().Str("component", "ContentCache").Logger()
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		cacheLog.Warn().Err(err).Str("dir", cfg.Dir).Msg("cache dir unavailable, running memory-only")
	}
	return &ContentCache{
		entries: make(map[string]*Entry),
		cfg:     cfg,
		log:     &cacheLog,
		now:     time.Now,
	}
}

// Get returns the cached payload for (operation, params), or ok=false on
// miss. A stale entry counts as a miss and is removed lazily. Memory is
// consulted first; a disk hit repopulates memory.
func (c *ContentCache) Get(operation string, params map[string]string) (string, bool) {
	key := Key(operation, params)
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.Before(e.ExpiresAt) {
			c.mu.Unlock()
			metrics.IncCacheHit(operation, "memory")
			return e.Payload, true
		}
		c.removeLocked(key)
	}
	c.mu.Unlock()

	if e := c.readDisk(key); e != nil {
		if now.Before(e.ExpiresAt) {
			c.mu.Lock()
			c.insertLocked(e)
			c.mu.Unlock()
			metrics.IncCacheHit(operation, "disk")
			return e.Payload, true
		}
		c.deleteDisk(key)
	}

	metrics.IncCacheMiss(operation)
	return "", false
}

// Set stores a freshly generated payload in both tiers. The entry's TTL
// comes from the per-operation table, falling back to the default.
func (c *ContentCache) Set(operation string, params map[string]string, payload string) {
	now := c.now()
	e := &Entry{
		Key:       Key(operation, params),
		Operation: operation,
		Payload:   payload,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl(operation)),
	}

	c.mu.Lock()
	c.insertLocked(e)
	c.mu.Unlock()

	c.writeDisk(e)
}

// Sweep purges expired entries from both tiers and returns how many were
// removed. Run periodically so disk usage does not grow unbounded.
func (c *ContentCache) Sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			c.removeLocked(key)
			removed++
		}
	}
	c.mu.Unlock()

	files, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return removed
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(f.Name(), ".json")
		e := c.readDisk(key)
		if e == nil || !now.Before(e.ExpiresAt) {
			c.deleteDisk(key)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug().Int("removed", removed).Msg("swept expired cache entries")
	}
	return removed
}

func (c *ContentCache) ttl(operation string) time.Duration {
	if ttl, ok := c.cfg.TTLs[operation]; ok && ttl > 0 {
		return ttl
	}
	return c.cfg.DefaultTTL
}

func (c *ContentCache) insertLocked(e *Entry) {
	if _, exists := c.entries[e.Key]; !exists {
		for len(c.order) >= c.cfg.MaxEntries {
			oldest := c.order[0]
			c.removeLocked(oldest)
			metrics.IncCacheEviction()
		}
		c.order = append(c.order, e.Key)
	}
	c.entries[e.Key] = e
}

func (c *ContentCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *ContentCache) path(key string) string {
	return filepath.Join(c.cfg.Dir, key+".json")
}

func (c *ContentCache) readDisk(key string) *Entry {
	b, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// corrupt entry: treat as miss and clean up
		c.log.Debug().Err(err).Str("key", key).Msg("corrupt cache file, removing")
		c.deleteDisk(key)
		return nil
	}
	return &e
}

// writeDisk uses a temp file + rename so readers never observe a truncated
// entry. Failures degrade to memory-only.
func (c *ContentCache) writeDisk(e *Entry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	tmp := c.path(e.Key) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		c.log.Debug().Err(err).Msg("cache disk write failed, keeping memory-only")
		return
	}
	if err := os.Rename(tmp, c.path(e.Key)); err != nil {
		c.log.Debug().Err(err).Msg("cache disk rename failed, keeping memory-only")
		_ = os.Remove(tmp)
	}
}

func (c *ContentCache) deleteDisk(key string) {
	_ = os.Remove(c.path(key))
}

// Key hashes (operation, normalized params) into a stable identifier.
// Normalization lower-cases and trims both keys and values and strips
// fields that must not affect cache identity.
func Key(operation string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		norm := strings.ToLower(strings.TrimSpace(k))
		if _, skip := strippedParams[norm]; skip {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(strings.TrimSpace(keys[i])) < strings.ToLower(strings.TrimSpace(keys[j]))
	})

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(operation))))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(k))))
		h.Write([]byte{1})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(params[k]))))
	}
	return hex.EncodeToString(h.Sum(nil))
}
