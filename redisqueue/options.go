package redisqueue

type Option func(*RedisQueueStore)

// WithPrefix sets the namespace every key of the store lives under.
func WithPrefix(prefix string) Option {
	return func(r *RedisQueueStore) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}
