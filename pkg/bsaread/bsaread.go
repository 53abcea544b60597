// Package bsaread caches archive-read handles so every read-archive
// location is opened exactly once regardless of how many workers request
// it concurrently (C8, §4.6).
package bsaread

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ttw-community/mpi-installer/pkg/archive"
)

// Cache maps canonical archive paths to open codec handles. It is safe
// for concurrent use; concurrent requests for the same path share a
// single open.
type Cache struct {
	codec archive.Codec

	group singleflight.Group

	mu      sync.Mutex
	handles map[string]archive.Handle
	closed  bool
}

// New creates an empty cache backed by codec.
func New(codec archive.Codec) *Cache {
	return &Cache{codec: codec, handles: make(map[string]archive.Handle)}
}

// GetHandle canonicalizes path and returns its open handle, opening it if
// this is the first request. Concurrent callers for the same path block
// on the same open rather than each opening their own handle.
func (c *Cache) GetHandle(path string) (archive.Handle, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	key = filepath.Clean(key)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, fmt.Errorf("bsaread: cache is disposed")
	}
	if h, ok := c.handles[key]; ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		if h, ok := c.handles[key]; ok {
			c.mu.Unlock()
			return h, nil
		}
		c.mu.Unlock()

		h, err := c.codec.OpenArchive(key)
		if err != nil {
			return archive.Handle(0), fmt.Errorf("bsaread: open %s: %w", key, err)
		}

		c.mu.Lock()
		c.handles[key] = h
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(archive.Handle), nil
}

// ExtractFile reads entryPath from path's archive, opening it on first
// use. The underlying codec must support concurrent ExtractFile calls on
// one handle (§4.6).
func (c *Cache) ExtractFile(path, entryPath string) ([]byte, error) {
	h, err := c.GetHandle(path)
	if err != nil {
		return nil, err
	}
	data, err := c.codec.ExtractFile(h, entryPath)
	if err != nil {
		return nil, fmt.Errorf("bsaread: extract %s from %s: %w", entryPath, path, err)
	}
	return data, nil
}

// FileExists reports whether entryPath exists in path's archive, opening
// it on first use.
func (c *Cache) FileExists(path, entryPath string) (bool, error) {
	h, err := c.GetHandle(path)
	if err != nil {
		return false, err
	}
	return c.codec.FileExists(h, entryPath), nil
}

// CloseAll closes every cached handle exactly once and marks the cache
// disposed; subsequent GetHandle calls fail.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]archive.Handle)
	c.closed = true
	c.mu.Unlock()

	for _, h := range handles {
		c.codec.CloseArchive(h)
	}
}
