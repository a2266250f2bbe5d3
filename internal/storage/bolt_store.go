package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	digestBucket     = "digests"
	expiryValueBytes = 8
)

// boltStore keeps digests in BoltDB. Each value is an 8 byte big-endian
// expiry followed by the digest text.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	ttl             time.Duration
	cleanupInterval time.Duration
}

func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(digestBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) Changed(id, digest string) (bool, error) {
	if b == nil || b.db == nil {
		return true, nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}

	changed := true
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(digestBucket))
		if bucket == nil {
			return fmt.Errorf("digest bucket missing")
		}
		stored, expiry, ok := decodeValue(bucket.Get([]byte(id)))
		if ok && expiry.After(now) && stored == digest {
			changed = false
		}
		return nil
	})
	return changed, err
}

func (b *boltStore) Remember(id, digest string) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(digestBucket))
		if bucket == nil {
			return fmt.Errorf("digest bucket missing")
		}
		return bucket.Put([]byte(id), encodeValue(now.Add(b.ttl), digest))
	})
}

// maybeCleanupExpired sweeps expired digests on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(digestBucket))
		if bucket == nil {
			return fmt.Errorf("digest bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			_, expiry, ok := decodeValue(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func encodeValue(expiry time.Time, digest string) []byte {
	buf := make([]byte, expiryValueBytes+len(digest))
	binary.BigEndian.PutUint64(buf, uint64(expiry.Unix()))
	copy(buf[expiryValueBytes:], digest)
	return buf
}

func decodeValue(value []byte) (string, time.Time, bool) {
	if len(value) < expiryValueBytes {
		return "", time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return "", time.Time{}, false
	}
	return string(value[expiryValueBytes:]), time.Unix(unix, 0), true
}
