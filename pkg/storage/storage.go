package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all backends.
var (
	// ErrClosed is returned when an operation is attempted on a closed
	// storage backend.
	ErrClosed = errors.New("storage: closed")
)

// Storage is a thread and process safe asynchronous key/value store.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Set associates value with key. A positive expiresIn is converted to
	// an absolute UTC expiry timestamp stored alongside the payload; zero
	// means the value never expires.
	Set(ctx context.Context, key string, value []byte, expiresIn time.Duration) error

	// Get returns the value associated with key, or (nil, nil) if the key
	// does not exist or has expired. If renewFor is positive and the value
	// was stored with an expiry, the expiry is slid forward by renewFor;
	// values without an expiry are never renewed.
	Get(ctx context.Context, key string, renewFor time.Duration) ([]byte, error)

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// DeleteAll removes all values held by this backend.
	DeleteAll(ctx context.Context) error

	// Exists reports whether key exists and has not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// ExpiresIn returns the remaining lifetime of key. The boolean is false
	// when the key does not exist or was stored without an expiry.
	ExpiresIn(ctx context.Context, key string) (time.Duration, bool, error)
}
