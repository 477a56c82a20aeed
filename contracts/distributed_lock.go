package contracts

import (
	"context"
	"time"
)

// LockStore is an expiring key/value store used as a per-queue mutex.
//
// A key observed as present means its holder was alive within ttl; a key
// older than its ttl is treated as absent by every method.
type LockStore interface {
	// TryAcquire sets key to token when the key is absent, expired, or already
	// held by token (which refreshes its expiry). It reports whether token
	// holds the lock afterwards.
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Read returns the current holder's token, or "" when no valid lock exists.
	Read(ctx context.Context, key string) (string, error)
	// Release deletes key only while token holds it; otherwise it is a no-op.
	Release(ctx context.Context, key, token string) error
}
