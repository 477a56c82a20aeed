package engine

import (
	"context"
	"fmt"
	"time"
)

type QueueStatus struct {
	Queue      string    `json:"queue"`
	Pending    int64     `json:"pending"`
	Locked     bool      `json:"locked"`
	LockHolder string    `json:"lock_holder,omitempty"`
	Scheduled  bool      `json:"scheduled"`
	NextCheck  time.Time `json:"next_check,omitempty"`
}

func (e *Engine) Status(ctx context.Context, queue string) (QueueStatus, error) {
	status := QueueStatus{Queue: queue}

	pending, err := e.store.Count(ctx, queue)
	if err != nil {
		return status, fmt.Errorf("count items: %w", err)
	}
	status.Pending = pending

	holder, err := e.locks.Read(ctx, queue)
	if err != nil {
		return status, fmt.Errorf("read lock: %w", err)
	}
	status.Locked = holder != ""
	status.LockHolder = holder

	status.Scheduled = e.supervisor.Scheduled(queue)
	if next, ok := e.supervisor.NextRun(queue); ok {
		status.NextCheck = next
	}
	return status, nil
}

// Statuses reports every registered queue.
func (e *Engine) Statuses(ctx context.Context) ([]QueueStatus, error) {
	queues := e.runner.Queues()
	out := make([]QueueStatus, 0, len(queues))
	for _, queue := range queues {
		status, err := e.Status(ctx, queue)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}
