package session

import (
	"encoding/binary"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rtftp/rtftpd/internal/logger"
)

// statCache is a small embedded, TTL-backed cache of (url, path) → file
// size, avoiding a redundant libguestfs round-trip for every repeated PXE
// boot file request (the same kernel/initrd gets stat'd by every booting
// client). Badger enforces the TTL itself via value-log GC, so no eviction
// loop is needed here.
type statCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewStatCache opens (or creates) a badger database at path. Pass a nil
// *statCache to NewRegistry to disable the cache entirely.
func NewStatCache(path string, ttl time.Duration) (*statCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &statCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying badger database.
func (c *statCache) Close() error {
	return c.db.Close()
}

func cacheKey(url, path string) []byte {
	return []byte(url + "\x00" + path)
}

func (c *statCache) get(url, path string) (int64, bool) {
	var size int64
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(url, path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return badger.ErrKeyNotFound
			}
			size = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, false
	}
	return size, true
}

func (c *statCache) put(url, path string, size int64) {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(size))

	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(url, path), val).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logger.Warn("stat cache write failed", logger.Err(err))
	}
}
