package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreGetSetDel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q", got)
	}

	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after delete = %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired key err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListOrderingAndTrim(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		if err := s.ListPush(ctx, "l", []byte(v)); err != nil {
			t.Fatalf("ListPush: %v", err)
		}
	}

	// Push prepends, so range reads newest first.
	got, err := s.ListRange(ctx, "l", 0, -1)
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(got) != 3 || string(got[0]) != "c" || string(got[2]) != "a" {
		t.Fatalf("range = %q", got)
	}

	if err := s.ListTrim(ctx, "l", 0, 1); err != nil {
		t.Fatalf("ListTrim: %v", err)
	}
	if n, _ := s.ListLen(ctx, "l"); n != 2 {
		t.Fatalf("len after trim = %d", n)
	}
	got, _ = s.ListRange(ctx, "l", 0, -1)
	if string(got[0]) != "c" || string(got[1]) != "b" {
		t.Fatalf("trim kept %q", got)
	}
}

func TestMemoryStoreListRangeBounds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.ListRange(ctx, "empty", 0, 10)
	if err != nil || got != nil {
		t.Fatalf("empty list range = %q, err %v", got, err)
	}

	for _, v := range []string{"a", "b", "c", "d"} {
		_ = s.ListPush(ctx, "l", []byte(v))
	}
	got, _ = s.ListRange(ctx, "l", 1, 2)
	if len(got) != 2 || string(got[0]) != "c" {
		t.Fatalf("mid range = %q", got)
	}
	got, _ = s.ListRange(ctx, "l", -2, -1)
	if len(got) != 2 || string(got[1]) != "a" {
		t.Fatalf("negative range = %q", got)
	}
	got, _ = s.ListRange(ctx, "l", 0, 100)
	if len(got) != 4 {
		t.Fatalf("overshoot range = %d entries", len(got))
	}
	got, _ = s.ListRange(ctx, "l", 10, 20)
	if got != nil {
		t.Fatalf("out-of-range start = %q", got)
	}
}

func TestMemoryStoreSets(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.SetAdd(ctx, "s", "a")
	_ = s.SetAdd(ctx, "s", "b")
	_ = s.SetAdd(ctx, "s", "a")

	members, err := s.SetMembers(ctx, "s")
	if err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %v", members)
	}
}
