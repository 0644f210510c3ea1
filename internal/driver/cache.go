package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"loxvm/internal/image"
)

// Current schema version - increment when CachePayload format changes
const cacheSchemaVersion uint16 = 1

// CompileCache хранит скомпилированные образы на диске по SHA-256 исходника.
// Thread-safe for concurrent access.
type CompileCache struct {
	mu  sync.RWMutex
	dir string
}

// CachePayload is one cached compilation.
type CachePayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16
	Path   string
	// Created is informational only
	Created time.Time
	Program *image.Program
}

// OpenCompileCache initializes a cache under $XDG_CACHE_HOME/<app>, falling
// back to ~/.cache/<app>.
func OpenCompileCache(app string) (*CompileCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenCompileCacheAt(filepath.Join(base, app))
}

// OpenCompileCacheAt initializes a cache rooted at dir.
func OpenCompileCacheAt(dir string) (*CompileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CompileCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *CompileCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *CompileCache) pathFor(key [32]byte) string {
	// подкаталог "images", чтобы DropAll не трогал соседей
	return filepath.Join(c.dir, "images", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes a payload to the cache.
func (c *CompileCache) Put(key [32]byte, payload *CachePayload) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	payload.Schema = cacheSchemaVersion
	if err = msgpack.NewEncoder(f).Encode(payload); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads a payload. A missing entry or one written with another schema is
// a miss, not an error.
func (c *CompileCache) Get(key [32]byte, out *CachePayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != cacheSchemaVersion || out.Program == nil {
		return false, nil
	}
	return true, nil
}

// DropAll removes every cached entry.
func (c *CompileCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
