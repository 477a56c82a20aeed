package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

const defaultPrefix = "bgqueue"

// RedisQueueStore keeps queued items in redis.
//
// Every queue is a sorted set of item ids scored by a global insertion
// sequence, so ZRANGE yields insertion order. Items are hashes keyed by id,
// and a per-queue hash maps subject ids to pending item ids for de-duplication.
type RedisQueueStore struct {
	client *redis.Client
	prefix string
}

// NewRedisQueueStore creates a store with the "bgqueue" prefix unless overridden.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := NewRedisQueueStore(client, WithPrefix("media"))
func NewRedisQueueStore(client *redis.Client, options ...Option) *RedisQueueStore {
	store := &RedisQueueStore{
		client: client,
		prefix: defaultPrefix,
	}
	for _, option := range options {
		option(store)
	}
	return store
}

func (r *RedisQueueStore) queueKey(queue string) string {
	return r.prefix + ":queue:" + queue
}

func (r *RedisQueueStore) subjectsKey(queue string) string {
	return r.prefix + ":subjects:" + queue
}

func (r *RedisQueueStore) itemKey(id string) string {
	return r.prefix + ":item:" + id
}

func (r *RedisQueueStore) namesKey() string {
	return r.prefix + ":queues"
}

func (r *RedisQueueStore) seqKey() string {
	return r.prefix + ":seq"
}

// Push adds an item to the tail of queue and returns its id.
func (r *RedisQueueStore) Push(ctx context.Context, queue, subjectID string, payload contracts.Payload) (string, error) {
	encoded, err := payload.Encode()
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	id := uuid.NewString()
	keys := []string{r.subjectsKey(queue), r.queueKey(queue), r.seqKey(), r.itemKey(id), r.namesKey()}
	created, err := pushScript.Run(ctx, r.client, keys, id, subjectID, queue, encoded).Int()
	if err != nil {
		return "", err
	}
	if created == 0 {
		return "", contracts.ErrDuplicateItem
	}

	return id, nil
}

// PeekBatch returns the oldest limit items of queue without removing them.
func (r *RedisQueueStore) PeekBatch(ctx context.Context, queue string, limit int) ([]contracts.QueueItem, error) {
	if limit <= 0 {
		return []contracts.QueueItem{}, nil
	}

	ids, err := r.client.ZRange(ctx, r.queueKey(queue), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []contracts.QueueItem{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, r.itemKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]contracts.QueueItem, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// Item hash vanished between ZRANGE and HGETALL
			continue
		}

		item, err := decodeItem(id, fields)
		if err != nil {
			log.WithError(err).WithField("item_id", id).Error("can not decode queued item")
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func decodeItem(id string, fields map[string]string) (contracts.QueueItem, error) {
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return contracts.QueueItem{}, fmt.Errorf("parse attempts: %w", err)
	}
	payload, err := contracts.DecodePayload(fields["payload"])
	if err != nil {
		return contracts.QueueItem{}, fmt.Errorf("decode payload: %w", err)
	}

	return contracts.QueueItem{
		ID:        id,
		Queue:     fields["queue"],
		SubjectID: fields["subject"],
		Attempts:  attempts,
		Payload:   payload,
	}, nil
}

func (r *RedisQueueStore) MarkAttempt(ctx context.Context, id string) error {
	attempts, err := markAttemptScript.Run(ctx, r.client, []string{r.itemKey(id)}).Int()
	if err != nil {
		return err
	}
	if attempts < 0 {
		return contracts.ErrItemNotFound
	}
	return nil
}

func (r *RedisQueueStore) UpdatePayload(ctx context.Context, id string, payload contracts.Payload) error {
	encoded, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	updated, err := updatePayloadScript.Run(ctx, r.client, []string{r.itemKey(id)}, encoded).Int()
	if err != nil {
		return err
	}
	if updated == 0 {
		return contracts.ErrItemNotFound
	}
	return nil
}

func (r *RedisQueueStore) Delete(ctx context.Context, id string) error {
	deleted, err := deleteScript.Run(ctx, r.client, []string{r.itemKey(id)}, id, r.prefix).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return contracts.ErrItemNotFound
	}
	return nil
}

// Count returns the number of items waiting in queue.
func (r *RedisQueueStore) Count(ctx context.Context, queue string) (int64, error) {
	return r.client.ZCard(ctx, r.queueKey(queue)).Result()
}

// DeleteQueue purges queue.
func (r *RedisQueueStore) DeleteQueue(ctx context.Context, queue string) (int64, error) {
	ids, err := r.client.ZRange(ctx, r.queueKey(queue), 0, -1).Result()
	if err != nil {
		return 0, err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.Del(ctx, r.itemKey(id))
		}
		p.Del(ctx, r.queueKey(queue), r.subjectsKey(queue))
		p.SRem(ctx, r.namesKey(), queue)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return int64(len(ids)), nil
}

func (r *RedisQueueStore) Queues(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.namesKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

var _ contracts.QueueStore = (*RedisQueueStore)(nil)
