package vault

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CacheEntry is the persisted {mtime, size} pair §4.6 uses to short-circuit
// UpsertIfChanged.
type CacheEntry struct {
	MTime int64 `yaml:"mtime"`
	Size  int64 `yaml:"size"`
}

// FileCache is the serializable `{id -> {mtime, size}}` blob the indexer
// persists between process runs (§4.6's persistence hook).
type FileCache struct {
	entries map[string]CacheEntry
}

// NewFileCache returns an empty cache.
func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[string]CacheEntry)}
}

// Get reports the cached entry for id, if any.
func (c *FileCache) Get(id string) (CacheEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Put records the current {mtime, size} for id.
func (c *FileCache) Put(id string, e CacheEntry) {
	c.entries[id] = e
}

// Delete removes id from the cache.
func (c *FileCache) Delete(id string) {
	delete(c.entries, id)
}

// Len reports how many entries are cached.
func (c *FileCache) Len() int { return len(c.entries) }

// LoadFileCache reads a previously-saved cache from path. A missing file is
// not an error; it yields an empty cache, matching a first-run vault.
func LoadFileCache(path string) (*FileCache, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewFileCache(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: reading file cache %s: %w", path, err)
	}

	entries := make(map[string]CacheEntry)
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("vault: decoding file cache %s: %w", path, err)
	}
	return &FileCache{entries: entries}, nil
}

// Save writes the cache to path as YAML.
func (c *FileCache) Save(path string) error {
	raw, err := yaml.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("vault: encoding file cache: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("vault: writing file cache %s: %w", path, err)
	}
	return nil
}
