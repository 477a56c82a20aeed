package runner

import (
	"context"
	"errors"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"

	log "github.com/sirupsen/logrus"
)

func itemFields(item contracts.QueueItem) log.Fields {
	return log.Fields{
		"item_id":    item.ID,
		"subject_id": item.SubjectID,
		"attempts":   item.Attempts,
	}
}

func executeTask(ctx context.Context, q *Queue, item contracts.QueueItem) (result contracts.Result, err error) {
	// Handle Panic
	defer func() {
		if r := recover(); r != nil {
			err = NewTaskPanicError(q.Name, r)
			log.WithField("cause", r).WithField("queue", q.Name).WithFields(itemFields(item)).Error("task panic")
		}
	}()
	return q.Handler.Task(ctx, item)
}

func executeFailure(ctx context.Context, q *Queue, item contracts.QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("cause", r).WithField("queue", q.Name).WithFields(itemFields(item)).Error("failure handler panic")
		}
	}()
	q.Handler.Failure(ctx, item)
}

// processBatch runs items in order and reports whether the budget stopped it early.
func (r *Runner) processBatch(ctx context.Context, rc *RunContext, batch []contracts.QueueItem, report *Report) bool {
	q := rc.Queue
	logger := log.WithField("queue", q.Name)

	for _, item := range batch {
		if ctx.Err() != nil {
			return true
		}

		if item.Attempts > q.MaxAttempts {
			logger.WithFields(itemFields(item)).Warn("max attempts exceeded, purging item")
			executeFailure(ctx, q, item)
			if err := r.store.Delete(ctx, item.ID); err != nil && !errors.Is(err, contracts.ErrItemNotFound) {
				logger.WithError(err).Error("can not delete failed item")
			}
			report.Failed++
		} else {
			if err := r.store.MarkAttempt(ctx, item.ID); err != nil {
				if errors.Is(err, contracts.ErrItemNotFound) {
					continue
				}
				// Running without a recorded attempt would break the attempt ceiling.
				logger.WithError(err).Error("can not mark attempt")
				return true
			}
			item.Attempts++

			result, err := executeTask(ctx, q, item)
			if err != nil {
				logger.WithError(err).WithFields(itemFields(item)).Warn("task failed, will retry")
				result = contracts.Retry(nil)
			}
			r.applyResult(ctx, q, item, result, report)
		}
		report.Processed++

		if rc.Exhausted() {
			report.Exhausted = true
			return true
		}
	}
	return false
}

func (r *Runner) applyResult(ctx context.Context, q *Queue, item contracts.QueueItem, result contracts.Result, report *Report) {
	logger := log.WithField("queue", q.Name).WithFields(itemFields(item))

	switch result.Status {
	case contracts.StatusCompleted:
		if err := r.store.Delete(ctx, item.ID); err != nil && !errors.Is(err, contracts.ErrItemNotFound) {
			logger.WithError(err).Error("can not delete completed item")
		}
		report.Completed++
	default:
		if result.Payload != nil {
			if err := r.store.UpdatePayload(ctx, item.ID, result.Payload); err != nil && !errors.Is(err, contracts.ErrItemNotFound) {
				logger.WithError(err).Error("can not update payload")
			}
		}
		report.Retried++
	}
}
