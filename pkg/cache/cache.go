// Package cache provides a TTL-based cache store abstraction with in-memory
// and Redis-backed implementations. Values are opaque byte slices; callers
// marshal structured data through the JSON helpers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/revdiff/pkg/utils/json"
)

// ErrNotFound is returned when a key is absent or its entry has expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the cache backend contract. Implementations must be safe for
// concurrent use. A zero or negative TTL means the entry never expires.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value under key, replacing any existing entry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes the entry for key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// RemoveByPrefix deletes every entry whose key starts with prefix and
	// returns the number of entries removed.
	RemoveByPrefix(ctx context.Context, prefix string) (int64, error)

	// Len returns the number of live entries.
	Len(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashKey returns a hex-encoded SHA-256 digest of the joined parts.
// Used for keys derived from unbounded inputs such as extracted content.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// GetJSON reads the entry for key and unmarshals it into v.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SetJSON marshals v and stores it under key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SetWithTTL(ctx, key, data, ttl)
}
