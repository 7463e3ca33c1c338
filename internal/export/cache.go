package export

import (
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"turntable/internal/phase"
	"turntable/internal/sheet"
)

// TileCache serves the tiles of an export directory, decoding each one on
// first request. It is safe for concurrent use and satisfies
// viewer.FrameSource.
type TileCache struct {
	dir   string
	rings []RingEntry

	mu    sync.RWMutex
	items map[tileKey]*cacheEntry
}

type tileKey struct{ ring, index int }

type cacheEntry struct {
	img *image.NRGBA // nil if the tile is missing or failed to decode
}

// NewTileCache creates a cache over the tiles listed in m.
func NewTileCache(dir string, m *Manifest) *TileCache {
	return &TileCache{
		dir:   dir,
		rings: m.Rings,
		items: make(map[tileKey]*cacheEntry),
	}
}

// Rings returns the ring layout from the manifest.
func (c *TileCache) Rings() []phase.RingConfig {
	out := make([]phase.RingConfig, len(c.rings))
	for i, r := range c.rings {
		out[i] = phase.RingConfig{Pitch: r.Pitch, FrameCount: len(r.Frames)}
	}
	return out
}

// Frame loads and caches one tile. Failures are cached too, so a broken
// tile is only read once.
func (c *TileCache) Frame(ring, index int) (*image.NRGBA, bool) {
	if ring < 0 || ring >= len(c.rings) || index < 0 || index >= len(c.rings[ring].Frames) {
		return nil, false
	}
	key := tileKey{ring, index}

	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[key]; exists {
		c.mu.RUnlock()
		return entry.img, entry.img != nil
	}
	c.mu.RUnlock()

	// Slow path: load from disk
	var img *image.NRGBA
	if rel := c.rings[ring].Frames[index]; rel != "" {
		var err error
		img, err = sheet.Load(filepath.Join(c.dir, filepath.FromSlash(rel)))
		if err != nil {
			slog.Warn("export: tile unreadable", "ring", ring, "frame", index, "error", err)
		}
	}

	// Write lock with double-check
	c.mu.Lock()
	if entry, exists := c.items[key]; exists {
		c.mu.Unlock()
		return entry.img, entry.img != nil
	}
	c.items[key] = &cacheEntry{img: img}
	c.mu.Unlock()

	return img, img != nil
}

// Len returns the number of tiles decoded or attempted so far.
func (c *TileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
