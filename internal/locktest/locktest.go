// Package locktest builds each lock store backing for package tests.
package locktest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/lockstore"
	"github.com/soroosh-tanzadeh/bgqueue/sqlqueue"
	"github.com/stretchr/testify/require"
)

var Backends = []string{"redis", "file", "sqlite"}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// New returns the named backing together with a function moving its notion
// of time forward.
func New(t testing.TB, backend string) (contracts.LockStore, func(time.Duration)) {
	t.Helper()
	c := &clock{now: time.Now()}

	switch backend {
	case "redis":
		server := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return lockstore.NewRedisLockStore(client, ""), server.FastForward
	case "file":
		store, err := lockstore.NewFileLockStore(filepath.Join(t.TempDir(), "locks"), lockstore.WithClock(c.Now))
		require.NoError(t, err)
		return store, c.Advance
	case "sqlite":
		db, err := sqlqueue.Open(filepath.Join(t.TempDir(), "locks.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		store, err := lockstore.NewSQLLockStore(context.Background(), db.DB(), lockstore.WithClock(c.Now))
		require.NoError(t, err)
		return store, c.Advance
	}
	t.Fatalf("unknown lock backend %q", backend)
	return nil, nil
}
