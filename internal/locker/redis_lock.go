package locker

import (
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

type LockOptions struct {
	Expiry time.Duration
	// Value is the token identifying the holder. It is written on acquire and
	// only a mutex created with the same value can extend the key.
	Value string
}

type RedisMutexLocker struct {
	pool redsyncredis.Pool
	rs   *redsync.Redsync
}

func NewRedisMutexLocker(client *redis.Client) *RedisMutexLocker {
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	return &RedisMutexLocker{
		pool: pool,
		rs:   rs,
	}
}

// CreateMutexLock returns a single attempt mutex. Callers use TryLockContext,
// so retry options would never apply.
func (r *RedisMutexLocker) CreateMutexLock(name string, lockOptions LockOptions) *redsync.Mutex {
	options := []redsync.Option{redsync.WithTries(1)}

	if lockOptions.Expiry > 0 {
		options = append(options, redsync.WithExpiry(lockOptions.Expiry))
	}

	if len(lockOptions.Value) > 0 {
		value := lockOptions.Value
		// WithValue only covers extend and unlock, acquire writes genValueFunc()
		options = append(options,
			redsync.WithValue(value),
			redsync.WithGenValueFunc(func() (string, error) { return value, nil }),
		)
	}

	return r.rs.NewMutex(name, options...)
}
