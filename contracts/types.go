package contracts

import (
	"context"
	"time"
)

type Status int

const (
	StatusCompleted Status = iota
	StatusRetry
)

func (s Status) String() string {
	if s == StatusCompleted {
		return "completed"
	}
	return "retry"
}

// Result is what a TaskHandler reports for one item.
type Result struct {
	Status Status
	// Payload replaces the stored payload on retry when non-nil.
	Payload Payload
}

func Completed() Result {
	return Result{Status: StatusCompleted}
}

// Retry leaves the item queued. A non-nil payload is persisted for the next pass.
func Retry(payload Payload) Result {
	return Result{Status: StatusRetry, Payload: payload}
}

// TaskHandler performs the work of one job kind.
//
// Task must be idempotent: delivery is at-least-once. Failure is invoked
// exactly once, after the attempt ceiling is exceeded and before the item is
// purged; it must not re-queue the item.
type TaskHandler interface {
	Task(ctx context.Context, item QueueItem) (Result, error)
	Failure(ctx context.Context, item QueueItem)
}

// Dispatcher triggers an out-of-band runner invocation for queue. lockToken
// is empty for a fresh start and carries the caller's token for a continuation.
type Dispatcher interface {
	Dispatch(ctx context.Context, queue, lockToken string) error
}

// Scheduler owns the periodic health check registrations.
type Scheduler interface {
	Schedule(queue string) error
	Unschedule(queue string) error
	Scheduled(queue string) bool
	NextRun(queue string) (time.Time, bool)
}
