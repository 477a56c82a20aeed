package redisqueue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *redis.Client {
	redisServer := miniredis.RunT(t)

	return redis.NewClient(&redis.Options{
		Addr: redisServer.Addr(),
	})
}

func TestRedisQueueStore(t *testing.T) {
	ctx := context.Background()
	store := NewRedisQueueStore(setupClient(t), WithPrefix("test"))

	t.Run("Push_ShouldReturnID", func(t *testing.T) {
		id, err := store.Push(ctx, "media", "10", contracts.Payload{"new_upload": "true"})
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("Push_ShouldRejectDuplicateSubject", func(t *testing.T) {
		_, err := store.Push(ctx, "media", "10", nil)
		assert.ErrorIs(t, err, contracts.ErrDuplicateItem)

		// Same subject on another queue is independent
		_, err = store.Push(ctx, "metadata", "10", nil)
		assert.NoError(t, err)
	})

	t.Run("PeekBatch_ShouldReturnOldestFirst", func(t *testing.T) {
		_, err := store.Push(ctx, "media", "11", nil)
		require.NoError(t, err)
		_, err = store.Push(ctx, "media", "12", nil)
		require.NoError(t, err)

		items, err := store.PeekBatch(ctx, "media", 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "10", items[0].SubjectID)
		assert.Equal(t, "11", items[1].SubjectID)
		assert.Equal(t, "media", items[0].Queue)
		assert.True(t, items[0].Payload.Bool("new_upload"))
		assert.Equal(t, 0, items[0].Attempts)
	})

	t.Run("Count", func(t *testing.T) {
		count, err := store.Count(ctx, "media")
		assert.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = store.Count(ctx, "unknown")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("MarkAttempt_ShouldIncrementAttempts", func(t *testing.T) {
		items, err := store.PeekBatch(ctx, "media", 1)
		require.NoError(t, err)

		require.NoError(t, store.MarkAttempt(ctx, items[0].ID))
		require.NoError(t, store.MarkAttempt(ctx, items[0].ID))

		items, err = store.PeekBatch(ctx, "media", 1)
		require.NoError(t, err)
		assert.Equal(t, 2, items[0].Attempts)

		assert.ErrorIs(t, store.MarkAttempt(ctx, "missing"), contracts.ErrItemNotFound)
	})

	t.Run("UpdatePayload", func(t *testing.T) {
		items, err := store.PeekBatch(ctx, "media", 1)
		require.NoError(t, err)

		require.NoError(t, store.UpdatePayload(ctx, items[0].ID, contracts.Payload{"force": "1"}))

		items, err = store.PeekBatch(ctx, "media", 1)
		require.NoError(t, err)
		assert.True(t, items[0].Payload.Bool("force"))
		assert.False(t, items[0].Payload.Bool("new_upload"))

		assert.ErrorIs(t, store.UpdatePayload(ctx, "missing", nil), contracts.ErrItemNotFound)
	})

	t.Run("Delete_ShouldAllowSubjectToBeQueuedAgain", func(t *testing.T) {
		items, err := store.PeekBatch(ctx, "media", 1)
		require.NoError(t, err)
		require.Equal(t, "10", items[0].SubjectID)

		require.NoError(t, store.Delete(ctx, items[0].ID))
		assert.ErrorIs(t, store.Delete(ctx, items[0].ID), contracts.ErrItemNotFound)

		items, err = store.PeekBatch(ctx, "media", 10)
		require.NoError(t, err)
		for _, item := range items {
			assert.NotEqual(t, "10", item.SubjectID)
		}

		_, err = store.Push(ctx, "media", "10", nil)
		assert.NoError(t, err)
	})

	t.Run("Queues", func(t *testing.T) {
		names, err := store.Queues(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"media", "metadata"}, names)
	})

	t.Run("DeleteQueue", func(t *testing.T) {
		removed, err := store.DeleteQueue(ctx, "media")
		assert.NoError(t, err)
		assert.Equal(t, int64(3), removed)

		count, err := store.Count(ctx, "media")
		assert.NoError(t, err)
		assert.Zero(t, count)

		names, err := store.Queues(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"metadata"}, names)

		_, err = store.Push(ctx, "media", "11", nil)
		assert.NoError(t, err)
	})
}

func TestRedisQueueStore_DeletingLastItemShouldForgetQueue(t *testing.T) {
	ctx := context.Background()
	store := NewRedisQueueStore(setupClient(t))

	id, err := store.Push(ctx, "gallery", "a.jpg", nil)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, id))

	names, err := store.Queues(ctx)
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestRedisQueueStore_PeekBatchShouldRespectLimit(t *testing.T) {
	ctx := context.Background()
	store := NewRedisQueueStore(setupClient(t))

	for _, subject := range []string{"1", "2", "3", "4", "5"} {
		_, err := store.Push(ctx, "media", subject, nil)
		require.NoError(t, err)
	}

	items, err := store.PeekBatch(ctx, "media", 3)
	assert.NoError(t, err)
	assert.Len(t, items, 3)

	items, err = store.PeekBatch(ctx, "media", 0)
	assert.NoError(t, err)
	assert.Empty(t, items)
}
