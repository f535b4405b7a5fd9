package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute, time.Minute)
	defer func() { _ = s.Close() }()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Expected ErrCacheMiss, got %v", err)
	}

	value := []byte("hello")
	if err := s.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'j'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Expected stored copy %q, got %q", "hello", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected miss after delete, got %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute, time.Minute)

	_ = s.Set(ctx, "k", []byte("v"), 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
}

func TestMemoryStore_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute, time.Minute)

	_ = s.Set(ctx, "a:1", []byte("1"), time.Minute)
	_ = s.Set(ctx, "a:2", []byte("2"), time.Minute)
	_ = s.Set(ctx, "b:1", []byte("3"), time.Minute)

	if err := s.DeleteByPrefix(ctx, "a:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if _, err := s.Get(ctx, "a:1"); !errors.Is(err, ErrCacheMiss) {
		t.Error("Expected a:1 to be deleted")
	}
	if _, err := s.Get(ctx, "b:1"); err != nil {
		t.Errorf("Expected b:1 to survive, got %v", err)
	}
}
