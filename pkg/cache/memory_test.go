package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore(0)
	defer func() { _ = s.Close() }()
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

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(0, WithClock(clock))
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "a", []byte("one"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWithTTL(ctx, "b", []byte("two"), 0); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)

	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry, got %v", err)
	}
	if _, err := s.Get(ctx, "b"); err != nil {
		t.Fatalf("entry without TTL should survive, got %v", err)
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestMemoryStoreRemoveByPrefix(t *testing.T) {
	s := NewMemoryStore(0)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	for _, key := range []string{"cmp:1", "cmp:2", "usage:1"} {
		if err := s.SetWithTTL(ctx, key, []byte("x"), 0); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.RemoveByPrefix(ctx, "cmp:")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	if _, err := s.Get(ctx, "usage:1"); err != nil {
		t.Fatalf("unrelated key removed: %v", err)
	}
}

func TestMemoryStoreValueCopy(t *testing.T) {
	s := NewMemoryStore(0)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	original := []byte("abc")
	if err := s.SetWithTTL(ctx, "k", original, 0); err != nil {
		t.Fatal(err)
	}
	original[0] = 'x'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abc" {
		t.Fatalf("cached value mutated: %q", got)
	}

	got[0] = 'y'
	again, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != "abc" {
		t.Fatalf("returned slice aliased cache storage: %q", again)
	}
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemoryStore(0)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	in := payload{Name: "summary", Count: 3}
	if err := SetJSON(ctx, s, "p", in, time.Minute); err != nil {
		t.Fatal(err)
	}

	var out payload
	if err := GetJSON(ctx, s, "p", &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	a := HashKey("gpt-4o-mini", "left", "right")
	b := HashKey("gpt-4o-mini", "left", "right")
	if a != b {
		t.Fatal("hash key not deterministic")
	}
	if a == HashKey("gpt-4o-mini", "right", "left") {
		t.Fatal("argument order should change the digest")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}
