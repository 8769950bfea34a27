// Package cache provides a bounded LRU cache of raw source bytes keyed
// by asset path. It sits between the asset manager and the filesystem so
// repeated imports and prefetch warm-ups avoid redundant reads. Eviction
// is purely a performance concern and never affects lifecycle state.
package cache

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	assetruntime "github.com/veldt-engine/asset-runtime"
)

// Content caches file bytes in front of another SourceReader.
// Safe for concurrent use.
type Content struct {
	entries *lru.Cache[string, []byte]
	next    assetruntime.SourceReader
}

// NewContent creates a cache holding at most size entries in front of
// next.
func NewContent(size int, next assetruntime.SourceReader) (*Content, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Content{entries: entries, next: next}, nil
}

// ReadSource returns the cached bytes for path, reading through on miss.
// Callers must not mutate the returned slice.
func (c *Content) ReadSource(path string) ([]byte, error) {
	if data, ok := c.entries.Get(path); ok {
		return data, nil
	}
	data, err := c.next.ReadSource(path)
	if err != nil {
		return nil, err
	}
	c.entries.Add(path, data)
	return data, nil
}

// Invalidate drops the cached bytes for path, forcing the next read
// through to the underlying source. Used on hot reload.
func (c *Content) Invalidate(path string) {
	c.entries.Remove(path)
}

// Purge drops every cached entry.
func (c *Content) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *Content) Len() int {
	return c.entries.Len()
}

// Dir returns a SourceReader resolving slash-separated paths against a
// base directory.
func Dir(base string) assetruntime.SourceReader {
	return dirReader(base)
}

type dirReader string

func (d dirReader) ReadSource(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), filepath.FromSlash(path)))
}
