package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is a thread-safe in-memory Store. Expired entries are dropped
// lazily on access and swept periodically by a background janitor.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a MemoryStore. sweepInterval controls how often the
// janitor scans for expired entries; zero disables the janitor and relies on
// lazy expiry only.
func NewMemoryStore(sweepInterval time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if sweepInterval > 0 {
		go s.janitor(sweepInterval)
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(s.now()) {
		s.mu.Lock()
		// Re-check under write lock in case a concurrent Set refreshed it.
		if cur, exists := s.data[key]; exists && cur.expired(s.now()) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate the cached value.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// SetWithTTL implements Store.
func (s *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = entry
	s.mu.Unlock()
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// RemoveByPrefix implements Store.
func (s *MemoryStore) RemoveByPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

// Len implements Store. Expired but not yet swept entries are excluded.
func (s *MemoryStore) Len(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, entry := range s.data {
		if !entry.expired(now) {
			n++
		}
	}
	return n, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
