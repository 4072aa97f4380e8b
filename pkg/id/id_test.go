package id

import (
	"testing"
	"time"
)

func TestNewULID(t *testing.T) {
	u := NewULID()
	if len(u) != 26 {
		t.Fatalf("expected 26 characters, got %d (%q)", len(u), u)
	}
	if !IsValidULID(u) {
		t.Fatalf("generated ULID %q does not parse", u)
	}
}

func TestNewULIDMonotonic(t *testing.T) {
	prev := NewULID()
	for i := 0; i < 1000; i++ {
		next := NewULID()
		if next <= prev {
			t.Fatalf("ULIDs not strictly increasing: %q then %q", prev, next)
		}
		prev = next
	}
}

func TestULIDTime(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	u, err := ParseULID(NewULID())
	if err != nil {
		t.Fatal(err)
	}
	after := time.Now()

	ts := ULIDTime(u)
	if ts.Before(before) || ts.After(after) {
		t.Fatalf("embedded timestamp %v outside [%v, %v]", ts, before, after)
	}
}

func TestIsValidULID(t *testing.T) {
	if IsValidULID("not-a-ulid") {
		t.Fatal("expected malformed string to be rejected")
	}
	if IsValidULID("") {
		t.Fatal("expected empty string to be rejected")
	}
}
