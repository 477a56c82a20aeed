package contracts

import "context"

// QueueStore persists queued items for any number of named queues.
//
// Row level mutations only need to be atomic per item: the runner holding a
// queue's lock is the only writer for that queue's rows.
type QueueStore interface {
	// Push inserts a new item and returns its id. It returns ErrDuplicateItem
	// when an item for the same queue and subject is still pending.
	Push(ctx context.Context, queue, subjectID string, payload Payload) (string, error)
	// PeekBatch returns up to limit items of queue, oldest first.
	PeekBatch(ctx context.Context, queue string, limit int) ([]QueueItem, error)
	MarkAttempt(ctx context.Context, id string) error
	UpdatePayload(ctx context.Context, id string, payload Payload) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, queue string) (int64, error)
	// DeleteQueue removes every item of queue and returns how many were removed.
	DeleteQueue(ctx context.Context, queue string) (int64, error)
	// Queues lists the names of queues holding at least one item.
	Queues(ctx context.Context) ([]string, error)
}
