package handlers

import (
	"context"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

// Funcs adapts plain functions to contracts.TaskHandler. A nil FailureFunc is a no-op.
type Funcs struct {
	TaskFunc    func(ctx context.Context, item contracts.QueueItem) (contracts.Result, error)
	FailureFunc func(ctx context.Context, item contracts.QueueItem)
}

func (f Funcs) Task(ctx context.Context, item contracts.QueueItem) (contracts.Result, error) {
	return f.TaskFunc(ctx, item)
}

func (f Funcs) Failure(ctx context.Context, item contracts.QueueItem) {
	if f.FailureFunc != nil {
		f.FailureFunc(ctx, item)
	}
}
