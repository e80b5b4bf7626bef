package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/encoding/json"
)

// A fresh directory starts with a clean miss.
func TestGetMissOnEmptyCache(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := c.Get(Hash([]byte("class Main is end"))); ok {
		t.Error("expected a miss on an empty cache")
	}
}

// PutSuccess followed by Get against the same hash is a hit carrying
// the IR text back.
func TestPutSuccessThenGetHits(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	hash := Hash([]byte("class Main is end"))
	if err := c.PutSuccess(hash, "; ir text"); err != nil {
		t.Fatalf("PutSuccess: %v", err)
	}

	entry, ok := c.Get(hash)
	if !ok {
		t.Fatal("expected a hit after PutSuccess")
	}
	if entry.IRText != "; ir text" {
		t.Errorf("expected cached IRText %q, got %q", "; ir text", entry.IRText)
	}
	if entry.ErrMessage != "" {
		t.Errorf("expected no ErrMessage on a success entry, got %q", entry.ErrMessage)
	}
}

// PutFailure caches the plain failure line, not an IR body.
func TestPutFailureThenGetHits(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	hash := Hash([]byte("class Main is var"))
	if err := c.PutFailure(hash, "Parse failed"); err != nil {
		t.Fatalf("PutFailure: %v", err)
	}

	entry, ok := c.Get(hash)
	if !ok {
		t.Fatal("expected a hit after PutFailure")
	}
	if entry.ErrMessage != "Parse failed" {
		t.Errorf("expected cached ErrMessage %q, got %q", "Parse failed", entry.ErrMessage)
	}
	if entry.IRText != "" {
		t.Errorf("expected no IRText on a failure entry, got %q", entry.IRText)
	}
}

// Disable turns every Get into a miss and every Put into a no-op, even
// against a hash already populated before Disable was called.
func TestDisableShortCircuitsGetAndPut(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	hash := Hash([]byte("class Main is end"))
	if err := c.PutSuccess(hash, "; ir text"); err != nil {
		t.Fatalf("PutSuccess: %v", err)
	}

	c.Disable()
	if _, ok := c.Get(hash); ok {
		t.Error("expected Get to miss once the cache is disabled")
	}

	other := Hash([]byte("class Other is end"))
	if err := c.PutSuccess(other, "; other ir"); err != nil {
		t.Fatalf("PutSuccess while disabled: %v", err)
	}
	if _, ok := c.Get(other); ok {
		t.Error("expected the disabled Put to be a no-op")
	}
}

// A version-mismatched index on disk is discarded rather than trusted.
func TestOpenDiscardsVersionMismatchedIndex(t *testing.T) {
	dir := t.TempDir()
	stale := Index{Version: "0", Entries: map[string]*Entry{
		"deadbeef": {Hash: "deadbeef", IRText: "; stale"},
	}}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal stale index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), data, 0644); err != nil {
		t.Fatalf("write stale index: %v", err)
	}

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := c.Get("deadbeef"); ok {
		t.Error("expected a version-mismatched index to be discarded, not carried over")
	}
	if c.index.Version != Version {
		t.Errorf("expected the in-memory index to reset to the current version, got %q", c.index.Version)
	}
}

// Corrupt JSON on disk is also just a miss, not a fatal Open error.
func TestOpenToleratesCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt index: %v", err)
	}

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("expected Open to tolerate a corrupt index, got error: %v", err)
	}
	if _, ok := c.Get(Hash([]byte("anything"))); ok {
		t.Error("expected a miss against a freshly reset index")
	}
}

// A Cache reopened from the same directory sees entries written by a
// prior Cache instance — the index genuinely round-trips through disk.
func TestReopenSeesPriorEntries(t *testing.T) {
	dir := t.TempDir()
	hash := Hash([]byte("class Main is end"))

	first, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.PutSuccess(hash, "; ir text"); err != nil {
		t.Fatalf("PutSuccess: %v", err)
	}

	second, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entry, ok := second.Get(hash)
	if !ok {
		t.Fatal("expected the reopened cache to see the first instance's entry")
	}
	if entry.IRText != "; ir text" {
		t.Errorf("expected IRText %q, got %q", "; ir text", entry.IRText)
	}
}

// Eviction keeps the cache at MaxEntries by dropping the least recently
// accessed entry first.
func TestEvictionDropsLeastRecentlyAccessed(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hashes := make([]string, 0, MaxEntries+1)
	for i := 0; i < MaxEntries+1; i++ {
		h := Hash([]byte{byte(i), byte(i >> 8)})
		hashes = append(hashes, h)
		if err := c.PutSuccess(h, "; ir"); err != nil {
			t.Fatalf("PutSuccess[%d]: %v", i, err)
		}
	}

	if len(c.index.Entries) != MaxEntries {
		t.Fatalf("expected eviction to cap the index at %d entries, got %d", MaxEntries, len(c.index.Entries))
	}
	if _, ok := c.Get(hashes[0]); ok {
		t.Error("expected the oldest entry to have been evicted")
	}
	if _, ok := c.Get(hashes[len(hashes)-1]); !ok {
		t.Error("expected the newest entry to have survived eviction")
	}
}

// Clear discards every entry, including ones written before the call.
func TestClearDiscardsAllEntries(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	hash := Hash([]byte("class Main is end"))
	if err := c.PutSuccess(hash, "; ir text"); err != nil {
		t.Fatalf("PutSuccess: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.Get(hash); ok {
		t.Error("expected Clear to remove previously cached entries")
	}
}
