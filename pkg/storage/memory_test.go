package storage

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()

	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		if err := s.Set(ctx, "foo", []byte("bar"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := s.Get(ctx, "foo", 0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "bar" {
			t.Errorf("Get returned %q, want %q", got, "bar")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := s.Get(ctx, "nope", 0)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("Get returned %q for missing key", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := s.Set(ctx, "foo", []byte("baz"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, _ := s.Get(ctx, "foo", 0)
		if string(got) != "baz" {
			t.Errorf("Get returned %q after overwrite, want %q", got, "baz")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete(ctx, "foo"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, _ := s.Get(ctx, "foo", 0)
		if got != nil {
			t.Error("key still present after Delete")
		}
		// Deleting a missing key is a no-op.
		if err := s.Delete(ctx, "foo"); err != nil {
			t.Fatalf("Delete of missing key failed: %v", err)
		}
	})

	t.Run("DeleteAll", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_ = s.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v"), 0)
		}
		if err := s.DeleteAll(ctx); err != nil {
			t.Fatalf("DeleteAll failed: %v", err)
		}
		if n := s.Count(); n != 0 {
			t.Errorf("Count = %d after DeleteAll, want 0", n)
		}
	})
}

func TestMemoryStorageExpiry(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()

	ctx := context.Background()

	if err := s.Set(ctx, "foo", []byte("bar"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ok, err := s.Exists(ctx, "foo")
	if err != nil || !ok {
		t.Fatalf("Exists = (%v, %v) before expiry, want (true, nil)", ok, err)
	}

	time.Sleep(30 * time.Millisecond)

	got, err := s.Get(ctx, "foo", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get returned %q for expired key", got)
	}

	ok, err = s.Exists(ctx, "foo")
	if err != nil || ok {
		t.Errorf("Exists = (%v, %v) after expiry, want (false, nil)", ok, err)
	}
}

func TestMemoryStorageRenewal(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()

	ctx := context.Background()

	t.Run("renewal slides the window", func(t *testing.T) {
		if err := s.Set(ctx, "sliding", []byte("v"), 1*time.Second); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		if _, err := s.Get(ctx, "sliding", 10*time.Second); err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		d, has, err := s.ExpiresIn(ctx, "sliding")
		if err != nil {
			t.Fatalf("ExpiresIn failed: %v", err)
		}
		if !has {
			t.Fatal("ExpiresIn reported no expiry after renewal")
		}
		if d < 9*time.Second || d > 10*time.Second {
			t.Errorf("ExpiresIn = %v after renewal, want ~10s", d)
		}
	})

	t.Run("no expiry is never renewed", func(t *testing.T) {
		if err := s.Set(ctx, "forever", []byte("v"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		if _, err := s.Get(ctx, "forever", 10*time.Second); err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		_, has, err := s.ExpiresIn(ctx, "forever")
		if err != nil {
			t.Fatalf("ExpiresIn failed: %v", err)
		}
		if has {
			t.Error("renewal added an expiry to a value stored without one")
		}
	})
}

func TestMemoryStorageCleanupLoop(t *testing.T) {
	s := NewMemoryStorage(WithCleanupInterval(10 * time.Millisecond))
	defer s.Close()

	ctx := context.Background()
	_ = s.Set(ctx, "short", []byte("v"), 5*time.Millisecond)
	_ = s.Set(ctx, "long", []byte("v"), time.Hour)

	time.Sleep(40 * time.Millisecond)

	if n := s.Count(); n != 1 {
		t.Errorf("Count = %d after sweep, want 1", n)
	}
}

func TestMemoryStorageClosed(t *testing.T) {
	s := NewMemoryStorage()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v"), 0); err != ErrClosed {
		t.Errorf("Set on closed storage = %v, want ErrClosed", err)
	}
	if _, err := s.Get(ctx, "k", 0); err != ErrClosed {
		t.Errorf("Get on closed storage = %v, want ErrClosed", err)
	}
}

func TestMemoryStorageConcurrency(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()

	ctx := context.Background()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("key-%d", id)
			for j := 0; j < 100; j++ {
				_ = s.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = s.Get(ctx, key, time.Minute)
				_, _, _ = s.ExpiresIn(ctx, key)
				_, _ = s.Exists(ctx, key)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
