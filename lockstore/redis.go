package lockstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/internal/locker"
)

const defaultRedisPrefix = "bgqueue:lock:"

var atomicRelease = redis.NewScript(`
local key = KEYS[1]
local token = ARGV[1]

if (redis.call('GET', key) == token) then
  redis.call('DEL', key)
  return 1
else
  return 0
end
`)

type RedisLockStore struct {
	client *redis.Client
	locker *locker.RedisMutexLocker
	prefix string
}

func NewRedisLockStore(client *redis.Client, prefix string) *RedisLockStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLockStore{
		client: client,
		locker: locker.NewRedisMutexLocker(client),
		prefix: prefix,
	}
}

func (s *RedisLockStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	name := s.prefix + key
	mutex := s.locker.CreateMutexLock(name, locker.LockOptions{
		Expiry: ttl,
		Value:  token,
	})

	if err := mutex.TryLockContext(ctx); err == nil {
		return true, nil
	}

	// Either someone holds the key or we do and this is a refresh
	holder, err := s.client.Get(ctx, name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if holder != token {
		return false, nil
	}

	extended, err := mutex.ExtendContext(ctx)
	if err != nil {
		log.WithError(err).WithField("lock", name).Debug("lock refresh failed")
		return false, nil
	}
	return extended, nil
}

func (s *RedisLockStore) Read(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

func (s *RedisLockStore) Release(ctx context.Context, key, token string) error {
	return atomicRelease.Run(ctx, s.client, []string{s.prefix + key}, token).Err()
}

var _ contracts.LockStore = (*RedisLockStore)(nil)
