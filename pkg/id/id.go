// Package id provides lexicographically sortable identifier generation.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyOnce sync.Once
	entropy     *ulid.MonotonicEntropy
	entropyMu   sync.Mutex
)

func monotonicEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		entropy = ulid.Monotonic(rand.Reader, 0)
	})
	return entropy
}

// NewULID returns a new ULID string. Identifiers generated within the same
// millisecond remain strictly increasing.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), monotonicEntropy()).String()
}

// ParseULID parses a ULID string.
func ParseULID(s string) (ulid.ULID, error) {
	return ulid.ParseStrict(s)
}

// IsValidULID reports whether s is a well-formed ULID.
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// ULIDTime returns the embedded timestamp of a ULID.
func ULIDTime(u ulid.ULID) time.Time {
	return ulid.Time(u.Time())
}
