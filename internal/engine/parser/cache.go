package parser

import (
	"os"
	"path/filepath"

	"reachgraph/internal/core/errors"
)

// DefaultCacheSize bounds the number of syntax trees kept alive.
const DefaultCacheSize = 512

// Cache memoises parsed sources by absolute path. A cached source is reused
// while the file's size and modification time are unchanged, so every pass
// of a run and every run of a watch session share one parse per file.
type Cache struct {
	pool *ParserPool
	lru  *LRUCache[string, *Source]
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		pool: NewParserPool(Python()),
		lru: NewLRUCache[string, *Source](capacity, func(_ string, src *Source) {
			src.retire()
		}),
	}
}

// Acquire returns the parsed source of path with one reference held for the
// caller, who must Release it.
func (c *Cache) Acquire(path string) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "resolve source path")
	}

	if src, ok := c.lru.Get(abs); ok {
		info, statErr := os.Stat(abs)
		if statErr == nil && info.Size() == src.Size && info.ModTime().Equal(src.ModTime) {
			src.acquire()
			return src, nil
		}
	}

	src, err := ParseFile(c.pool, abs)
	if err != nil {
		c.lru.Evict(abs)
		return nil, err
	}
	src.acquire()
	c.lru.Put(abs, src)
	return src, nil
}

// Invalidate drops the given paths so the next Acquire parses them again.
func (c *Cache) Invalidate(paths ...string) {
	for _, path := range paths {
		if abs, err := filepath.Abs(path); err == nil {
			c.lru.Evict(abs)
		}
	}
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

// Close retires every cached source. Sources still held are closed on their
// last Release.
func (c *Cache) Close() {
	c.lru.Clear()
}
