// Package cache provides JSON-file backed key/value caches that are loaded
// once at construction and written through on every update.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// WriteError reports a failure to persist a cache file. It is the only cache
// failure callers are expected to treat as fatal.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "cache: write " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError reports whether err (or any error in its chain) is a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// File is a string-keyed cache persisted as a single JSON object.
// All writes go through one mutex and rewrite the whole file, so a File must
// be the only writer of its path within the process.
type File[V any] struct {
	path    string
	mu      sync.RWMutex
	entries map[string]V
}

// Open loads the cache at path, creating the file and its directory when
// they do not exist yet.
func Open[V any](path string) (*File[V], error) {
	c := &File[V]{
		path:    path,
		entries: make(map[string]V),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := c.Flush(); err != nil {
			return nil, err
		}
		return c, nil
	case err != nil:
		return nil, eris.Wrapf(err, "cache: read %s", path)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, eris.Wrapf(err, "cache: decode %s", path)
		}
	}
	return c, nil
}

// Path returns the backing file path.
func (c *File[V]) Path() string {
	return c.path
}

// Get returns the cached value for key.
func (c *File[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Len returns the number of cached entries.
func (c *File[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Put stores value under key and persists the whole cache.
func (c *File[V]) Put(key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return c.flushLocked()
}

// Flush persists the current cache contents.
func (c *File[V]) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

// flushLocked writes a temp file next to the target and renames it over the
// target. encoding/json emits map keys in sorted order.
func (c *File[V]) flushLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return &WriteError{Path: c.path, Err: err}
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: c.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: c.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: c.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: c.path, Err: err}
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: c.path, Err: err}
	}
	return nil
}
