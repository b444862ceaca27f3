package cache

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/config"
)

func newTestCache(t *testing.T, maxEntries int, ttls map[string]time.Duration) (*ContentCache, *time.Time) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	c := New(config.CacheConfig{
		Dir:        t.TempDir(),
		MaxEntries: maxEntries,
		DefaultTTL: time.Hour,
		TTLs:       ttls,
	}, &logger)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestContentCache_NormalizedHit(t *testing.T) {
	c, _ := newTestCache(t, 10, nil)

	c.Set("generateGroupPost", map[string]string{"theme": "X"}, "payloadA")

	got, ok := c.Get("generateGroupPost", map[string]string{"theme": " x "})
	if !ok || got != "payloadA" {
		t.Fatalf("expected normalized hit with payloadA, got (%q, %v)", got, ok)
	}
}

func TestContentCache_StrippedParamsDoNotAffectIdentity(t *testing.T) {
	c, _ := newTestCache(t, 10, nil)

	c.Set("generateGroupPost", map[string]string{"theme": "x", "chat_id": "123"}, "payloadA")

	got, ok := c.Get("generateGroupPost", map[string]string{"theme": "x", "chat_id": "999", "timestamp": "555"})
	if !ok || got != "payloadA" {
		t.Fatalf("stripped fields must not change the key, got (%q, %v)", got, ok)
	}
}

func TestContentCache_DifferentParamsMiss(t *testing.T) {
	c, _ := newTestCache(t, 10, nil)

	c.Set("generateGroupPost", map[string]string{"theme": "x"}, "payloadA")

	if _, ok := c.Get("generateGroupPost", map[string]string{"theme": "y"}); ok {
		t.Fatal("different theme must miss")
	}
	if _, ok := c.Get("generateWelcome", map[string]string{"theme": "x"}); ok {
		t.Fatal("different operation must miss")
	}
}

func TestContentCache_TTLExpiry(t *testing.T) {
	c, now := newTestCache(t, 10, map[string]time.Duration{"generateGroupPost": 10 * time.Minute})

	c.Set("generateGroupPost", map[string]string{"theme": "x"}, "payloadA")

	*now = now.Add(9 * time.Minute)
	if _, ok := c.Get("generateGroupPost", map[string]string{"theme": "x"}); !ok {
		t.Fatal("entry should still be fresh")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.Get("generateGroupPost", map[string]string{"theme": "x"}); ok {
		t.Fatal("entry past its TTL must be a miss")
	}
}

func TestContentCache_DiskRepopulatesMemory(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()
	cfg := config.CacheConfig{Dir: dir, MaxEntries: 10, DefaultTTL: time.Hour}

	warm := New(cfg, &logger)
	warm.Set("generateGroupPost", map[string]string{"theme": "x"}, "payloadA")

	// fresh instance, cold memory, same disk mirror
	cold := New(cfg, &logger)
	got, ok := cold.Get("generateGroupPost", map[string]string{"theme": "x"})
	if !ok || got != "payloadA" {
		t.Fatalf("expected disk repopulation hit, got (%q, %v)", got, ok)
	}
}

func TestContentCache_EvictsOldestWhenFull(t *testing.T) {
	c, _ := newTestCache(t, 2, nil)

	c.Set("op", map[string]string{"k": "1"}, "one")
	c.Set("op", map[string]string{"k": "2"}, "two")
	c.Set("op", map[string]string{"k": "3"}, "three")

	if _, ok := c.Get("op", map[string]string{"k": "2"}); !ok {
		t.Fatal("second entry should survive")
	}
	if _, ok := c.Get("op", map[string]string{"k": "3"}); !ok {
		t.Fatal("third entry should survive")
	}
	// oldest was evicted from memory; its disk copy still exists but memory
	// stays bounded
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	if n > 2 {
		t.Fatalf("memory index exceeded bound: %d entries", n)
	}
}

func TestContentCache_SweepPurgesBothTiers(t *testing.T) {
	c, now := newTestCache(t, 10, nil)

	c.Set("op", map[string]string{"k": "1"}, "one")
	key := Key("op", map[string]string{"k": "1"})

	*now = now.Add(2 * time.Hour)
	removed := c.Sweep()
	if removed == 0 {
		t.Fatal("sweep should remove the expired entry")
	}
	if _, err := os.Stat(filepath.Join(c.cfg.Dir, key+".json")); !os.IsNotExist(err) {
		t.Fatal("sweep must remove the disk mirror too")
	}
	if _, ok := c.Get("op", map[string]string{"k": "1"}); ok {
		t.Fatal("swept entry must be a miss")
	}
}

func TestContentCache_CorruptDiskEntryIsMiss(t *testing.T) {
	c, _ := newTestCache(t, 10, nil)
	key := Key("op", map[string]string{"k": "1"})
	if err := os.WriteFile(filepath.Join(c.cfg.Dir, key+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("op", map[string]string{"k": "1"}); ok {
		t.Fatal("corrupt entry must degrade to a miss, not an error")
	}
	if _, err := os.Stat(filepath.Join(c.cfg.Dir, key+".json")); !os.IsNotExist(err) {
		t.Fatal("corrupt entry should be cleaned up")
	}
}
