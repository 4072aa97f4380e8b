package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T, namespace string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, namespace), mr
}

func TestRedisStoreSetGet(t *testing.T) {
	s, _ := newRedisTestStore(t, "test")
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "a", []byte("one"), time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "one" {
		t.Fatalf("got %q, want %q", got, "one")
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	s, mr := newRedisTestStore(t, "test")
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "a", []byte("one"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWithTTL(ctx, "b", []byte("two"), 0); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry, got %v", err)
	}
	if _, err := s.Get(ctx, "b"); err != nil {
		t.Fatalf("entry without TTL should survive, got %v", err)
	}
}

func TestRedisStoreNamespaceIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewRedisStore(client, "svc-a")
	b := NewRedisStore(client, "svc-b")
	ctx := context.Background()

	if err := a.SetWithTTL(ctx, "k", []byte("from-a"), 0); err != nil {
		t.Fatal(err)
	}
	if err := b.SetWithTTL(ctx, "k", []byte("from-b"), 0); err != nil {
		t.Fatal(err)
	}

	got, err := a.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "from-a" {
		t.Fatalf("namespace a read %q", got)
	}

	n, err := a.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestRedisStoreRemoveByPrefix(t *testing.T) {
	s, _ := newRedisTestStore(t, "test")
	ctx := context.Background()

	// More keys than one SCAN/DEL batch so the iterator path is exercised.
	for i := 0; i < 250; i++ {
		if err := s.SetWithTTL(ctx, fmt.Sprintf("cmp:%d", i), []byte("x"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetWithTTL(ctx, "usage:1", []byte("x"), 0); err != nil {
		t.Fatal(err)
	}

	removed, err := s.RemoveByPrefix(ctx, "cmp:")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 250 {
		t.Fatalf("removed = %d, want 250", removed)
	}

	if _, err := s.Get(ctx, "usage:1"); err != nil {
		t.Fatalf("unrelated key removed: %v", err)
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestRedisStoreRemove(t *testing.T) {
	s, _ := newRedisTestStore(t, "")
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}

	// Removing an absent key is not an error.
	if err := s.Remove(ctx, "absent"); err != nil {
		t.Fatal(err)
	}
}
