// Package cache provides optional persistent caching of full-content digests.
//
// Caching is strictly opt-in: without a cache file every scan is stateless
// and independent of prior runs. When enabled, the cache is self-cleaning:
// each run reads the previous database and writes a fresh one, so only
// entries that are still referenced survive, and the new file atomically
// replaces the old one on Close.
package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/mediadupes/internal/types"
)

const (
	bucketName = "digests"
	valueSize  = 8
)

// Cache stores 64-bit full-content digests in BoltDB, keyed by file identity
// (path, size, mtime). A nil or disabled Cache is a valid no-op.
type Cache struct {
	readDB  *bolt.DB // Previous run's cache (read-only)
	writeDB *bolt.DB // This run's cache - BoltDB locks this file
	path    string   // Final path (for atomic swap)
	enabled bool
}

// Open opens the existing cache for reading and creates a new one for
// writing. BoltDB's file lock on the .new file prevents concurrent
// instances. Returns a disabled cache if path is empty.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}
	var err error

	if _, statErr := os.Stat(path); statErr == nil {
		c.readDB, err = bolt.Open(path, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err != nil {
			// Unreadable previous cache: continue without it.
			c.readDB = nil
		}
	}

	c.writeDB, err = bolt.Open(path+".new", 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces old with new.
// The swap only happens when the write database closed cleanly.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else if err := os.Rename(c.path+".new", c.path); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const keyVersion byte = 1 // Increment when the key format changes

// makeKey builds the deterministic BoltDB key.
// Key = ver(1) + path + NUL + size(8) + mtime(8). Any change to the file's
// size or mtime therefore invalidates its cached digest.
func makeKey(rec *types.FileRecord) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(rec.Path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, rec.Size)
	_ = binary.Write(buf, binary.BigEndian, rec.ModTime.UnixNano())
	return buf.Bytes()
}

// Lookup retrieves a cached digest. On a hit the entry is copied forward to
// the write database, which is what keeps the cache self-cleaning.
func (c *Cache) Lookup(rec *types.FileRecord) (uint64, bool) {
	if c == nil || !c.enabled || c.readDB == nil {
		return 0, false
	}

	key := makeKey(rec)
	var digest uint64
	var found bool

	err := c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if data := b.Get(key); len(data) == valueSize {
			digest = binary.BigEndian.Uint64(data)
			found = true
		}
		return nil
	})
	if err != nil || !found {
		return 0, false
	}

	c.Store(rec, digest)
	return digest, true
}

// Store saves a digest to the new database. Errors are swallowed: a failed
// cache write only costs a rehash on the next run.
func (c *Cache) Store(rec *types.FileRecord, digest uint64) {
	if c == nil || !c.enabled || c.writeDB == nil {
		return
	}
	var val [valueSize]byte
	binary.BigEndian.PutUint64(val[:], digest)
	_ = c.writeDB.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(makeKey(rec), val[:])
	})
}
