package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// cacheEntry is one on-disk cache record: a cached response plus enough
// bookkeeping to decide whether it is still fresh.
type cacheEntry struct {
	StoredAt time.Time       `json:"stored_at"`
	Listing  *Listing        `json:"listing,omitempty"`
	Metadata *PackageMetadata `json:"metadata,omitempty"`
}

// Cache is an on-disk cache keyed the way spec.md requires: listings by
// (index URL, canonical name), metadata by (file URL, content hash when
// known). Both key shapes collapse to a single content-addressed filename,
// the same atomic-write discipline pipg's internal/cache.Manager uses for
// wheel files.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// NewCache creates a cache rooted at dir, creating it if necessary.
func NewCache(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

func listingKey(indexURL, canonicalName string) string {
	return hashKey("listing", indexURL, canonicalName)
}

func metadataKey(fileURL, contentHash string) string {
	return hashKey("metadata", fileURL, contentHash)
}

func hashKey(kind string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(key string) string { return filepath.Join(c.dir, key+".json") }

// GetListing returns a cached listing for (indexURL, canonicalName), if
// present. maxAge of zero means "never stale."
func (c *Cache) GetListing(indexURL, canonicalName string, maxAge time.Duration) (Listing, bool) {
	entry, ok := c.read(listingKey(indexURL, canonicalName), maxAge)
	if !ok || entry.Listing == nil {
		return Listing{}, false
	}
	return *entry.Listing, true
}

// PutListing stores a listing under (indexURL, canonicalName).
func (c *Cache) PutListing(indexURL, canonicalName string, l Listing) {
	c.write(listingKey(indexURL, canonicalName), cacheEntry{StoredAt: time.Now(), Listing: &l})
}

// GetMetadata returns cached metadata for (fileURL, contentHash).
func (c *Cache) GetMetadata(fileURL, contentHash string) (PackageMetadata, bool) {
	entry, ok := c.read(metadataKey(fileURL, contentHash), 0)
	if !ok || entry.Metadata == nil {
		return PackageMetadata{}, false
	}
	return *entry.Metadata, true
}

// PutMetadata stores metadata under (fileURL, contentHash). Metadata is
// content-addressed when the hash is known, so it never goes stale on its
// own; it is simply keyed differently (or re-keyed) if re-fetched under a
// different hash.
func (c *Cache) PutMetadata(fileURL, contentHash string, m PackageMetadata) {
	c.write(metadataKey(fileURL, contentHash), cacheEntry{StoredAt: time.Now(), Metadata: &m})
}

// Invalidate forces the next GetListing for canonicalName to miss,
// implementing the caller-triggered revalidation spec.md requires.
func (c *Cache) Invalidate(indexURL, canonicalName string) {
	_ = os.Remove(c.path(listingKey(indexURL, canonicalName)))
}

func (c *Cache) read(key string, maxAge time.Duration) (cacheEntry, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Debug("cache entry corrupt, ignoring", slog.String("key", key), slog.String("error", err.Error()))
		return cacheEntry{}, false
	}
	if maxAge > 0 && time.Since(entry.StoredAt) > maxAge {
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *Cache) write(key string, entry cacheEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Debug("cache marshal failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	dst := c.path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.Debug("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		c.logger.Debug("cache rename failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
