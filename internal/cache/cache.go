// Package cache implements the build cache of SPEC_FULL.md §4.14: a
// content-addressed store, keyed by a hash of the exact source bytes
// the CLI was asked to compile, that lets an unchanged input skip the
// whole lex/parse/analyze/layout/emit pipeline and reuse the IR text
// (or the semantic error message) produced last time. Grounded on the
// teacher's internal/compiler/cache.go index-file-plus-content-dir
// design, with the hash swapped from sha256 to blake2b-256 and the
// index codec swapped from encoding/json to segmentio/encoding/json —
// both to exercise dependencies the teacher's go.mod already carries —
// and the bytecode-specific LRU/dependency-tracking machinery trimmed
// to what a single-artifact-per-entry cache actually needs.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"golang.org/x/crypto/blake2b"
)

// Version is bumped whenever Entry's shape changes incompatibly; a
// mismatched index is discarded rather than partially trusted.
const Version = "1"

// DefaultDir is the cache directory name; the CLI creates it in the
// first input's directory, or in the current directory when there is no
// input.
const DefaultDir = ".languageo-cache"

// MaxEntries bounds how many compiled artifacts the cache retains;
// the least recently used are evicted once the count is exceeded.
const MaxEntries = 500

// Entry is one cached compile result.
type Entry struct {
	Hash       string    `json:"hash"`
	IRText     string    `json:"ir_text,omitempty"`
	ErrMessage string    `json:"err_message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Index is the on-disk manifest of cache entries, keyed by hash.
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// Cache guards one Index loaded from dir/index.json. The mutex protects
// both the in-memory index map and the index file on disk against
// concurrent invocations of this CLI against the same cache directory
// (e.g. a `make -j` style build).
type Cache struct {
	mu      sync.RWMutex
	dir     string
	index   *Index
	enabled bool
}

// Hash returns the hex-encoded blake2b-256 digest of source, the key
// every Get/Put call below addresses entries by.
func Hash(source []byte) string {
	sum := blake2b.Sum256(source)
	return fmt.Sprintf("%x", sum)
}

// Open loads or creates the index file under dir. A missing or
// version-mismatched index starts fresh rather than failing — cache
// corruption is always a miss, never a fatal error, per SPEC_FULL.md.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	c := &Cache{dir: dir, enabled: true}
	if err := c.loadIndex(); err != nil || c.index.Version != Version {
		c.index = &Index{Version: Version, Entries: make(map[string]*Entry)}
	}
	return c, nil
}

// Disable turns every Get into a miss and every Put into a no-op,
// wired to the CLI's -no-cache flag and languageo.toml's `cache = false`.
func (c *Cache) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Get returns the cached IR text or error message for hash, if present.
// ok is false on a cache miss (disabled, absent, or corrupt entry).
func (c *Cache) Get(hash string) (entry Entry, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return Entry{}, false
	}
	e, found := c.index.Entries[hash]
	if !found {
		return Entry{}, false
	}
	e.AccessedAt = time.Now()
	return *e, true
}

// PutSuccess records a successful compile's IR text under hash.
func (c *Cache) PutSuccess(hash, irText string) error {
	return c.put(&Entry{Hash: hash, IRText: irText})
}

// PutFailure records a semantic/parse failure's message under hash, so
// recompiling an unchanged broken file doesn't re-run the pipeline just
// to reach the same error.
func (c *Cache) PutFailure(hash, message string) error {
	return c.put(&Entry{Hash: hash, ErrMessage: message})
}

func (c *Cache) put(e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil
	}
	now := time.Now()
	e.CreatedAt = now
	e.AccessedAt = now
	c.index.Entries[e.Hash] = e
	c.evictIfNeeded()
	return c.saveIndex()
}

// evictIfNeeded assumes c.mu is already held by the caller.
func (c *Cache) evictIfNeeded() {
	if len(c.index.Entries) <= MaxEntries {
		return
	}
	entries := make([]*Entry, 0, len(c.index.Entries))
	for _, e := range c.index.Entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccessedAt.Before(entries[j].AccessedAt)
	})
	excess := len(entries) - MaxEntries
	for i := 0; i < excess; i++ {
		delete(c.index.Entries, entries[i].Hash)
	}
}

// Clear discards every cached entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = &Index{Version: Version, Entries: make(map[string]*Entry)}
	return c.saveIndex()
}

func (c *Cache) indexPath() string { return filepath.Join(c.dir, "index.json") }

// loadIndex and saveIndex assume c.mu is already held by the caller.
func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		return err
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return err
	}
	c.index = idx
	return nil
}

func (c *Cache) saveIndex() error {
	data, err := json.Marshal(c.index)
	if err != nil {
		return fmt.Errorf("cache: marshal index: %w", err)
	}
	return os.WriteFile(c.indexPath(), data, 0644)
}
