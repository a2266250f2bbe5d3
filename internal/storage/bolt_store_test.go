package storage

import (
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func TestBoltStoreTracksDigestChanges(t *testing.T) {
	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "nested", "digests.db"), normalizeOptions(Options{}))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	changed, err := store.Changed("req1", "d1")
	if err != nil || !changed {
		t.Fatalf("unknown id must be reported as changed, changed=%v err=%v", changed, err)
	}

	if err := store.Remember("req1", "d1"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if changed, err = store.Changed("req1", "d1"); err != nil || changed {
		t.Fatalf("same digest must not be changed, changed=%v err=%v", changed, err)
	}
	if changed, err = store.Changed("req1", "d2"); err != nil || !changed {
		t.Fatalf("new digest must be changed, changed=%v err=%v", changed, err)
	}
}

func TestBoltStoreExpiresDigests(t *testing.T) {
	opts := Options{TTL: time.Second, CleanupInterval: time.Second}
	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "digests.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	if err := store.Remember("req1", "d1"); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	// Fast-forward cleanup cadence and trigger expiry.
	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	changed, err := store.Changed("req1", "d1")
	if err != nil {
		t.Fatalf("Changed after expiry: %v", err)
	}
	if !changed {
		t.Fatalf("expired digest must count as changed")
	}

	err = store.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(digestBucket)).Get([]byte("req1")); v != nil {
			t.Fatalf("expired entry was not swept")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestNewStoreVariants(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if changed, _ := store.Changed("x", "y"); !changed {
		t.Fatalf("noop store must always report changes")
	}
	if err := store.Remember("x", "y"); err != nil {
		t.Fatalf("noop store Remember: %v", err)
	}

	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for bbolt without path")
	}
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestDigestIsStable(t *testing.T) {
	if Digest([]byte("pong")) != Digest([]byte("pong")) {
		t.Fatalf("digest not deterministic")
	}
	if Digest([]byte("pong")) == Digest([]byte("ping")) {
		t.Fatalf("different bodies share a digest")
	}
	if len(Digest(nil)) != 40 {
		t.Fatalf("unexpected digest length")
	}
}
