package storage

import (
	"crypto/sha1" //nolint:gosec // change detection, not security
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Store remembers the last delivered response digest per request id.
type Store interface {
	Close() error
	// Changed reports whether digest differs from the one remembered for id.
	Changed(id, digest string) (bool, error)
	Remember(id, digest string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// Digest fingerprints a response body.
func Digest(body []byte) string {
	sum := sha1.Sum(body)
	return hex.EncodeToString(sum[:])
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                         { return nil }
func (noopStore) Changed(string, string) (bool, error) { return true, nil }
func (noopStore) Remember(string, string) error        { return nil }
