package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation. It is the default
// backend and suitable for single-process deployments. Expired entries are
// evicted lazily on read; an optional cleanup loop sweeps them in the
// background.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]Envelope
	closed  bool
	done    chan struct{}
}

// MemoryOption configures MemoryStorage behavior.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval enables a background sweep of expired entries at the
// given interval. By default no sweep runs and eviction is purely lazy.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		c.cleanupInterval = d
	}
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	cfg := &memoryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &MemoryStorage{
		entries: make(map[string]Envelope),
		done:    make(chan struct{}),
	}

	if cfg.cleanupInterval > 0 {
		go s.cleanupLoop(cfg.cleanupInterval)
	}
	return s
}

// Set stores value under key with an optional TTL.
func (s *MemoryStorage) Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	// Copy to prevent caller mutations from leaking into the store.
	data := make([]byte, len(value))
	copy(data, value)

	s.entries[key] = NewEnvelope(data, expiresIn)
	return nil
}

// Get returns the value for key, renewing its expiry when requested.
func (s *MemoryStorage) Get(ctx context.Context, key string, renewFor time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	env, ok := s.entries[key]
	if !ok {
		return nil, nil
	}

	now := time.Now()
	if env.Expired(now) {
		delete(s.entries, key)
		return nil, nil
	}

	if renewFor > 0 && env.ExpiresAt != nil {
		env.Renew(now, renewFor)
		s.entries[key] = env
	}

	data := make([]byte, len(env.Data))
	copy(data, env.Data)
	return data, nil
}

// Delete removes key from the store.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.entries, key)
	return nil
}

// DeleteAll removes every entry.
func (s *MemoryStorage) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.entries = make(map[string]Envelope)
	return nil
}

// Exists reports whether key exists and has not expired.
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}

	env, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	return !env.Expired(time.Now()), nil
}

// ExpiresIn returns the remaining lifetime of key.
func (s *MemoryStorage) ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, false, ErrClosed
	}

	env, ok := s.entries[key]
	if !ok || env.Expired(time.Now()) {
		return 0, false, nil
	}
	d, has := env.ExpiresIn(time.Now())
	return d, has, nil
}

// Close shuts down the backend and releases resources.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	close(s.done)
	s.entries = nil
	return nil
}

// Count returns the number of entries currently held, for monitoring and
// tests.
func (s *MemoryStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStorage) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStorage) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := time.Now()
	for key, env := range s.entries {
		if env.Expired(now) {
			delete(s.entries, key)
		}
	}
}
