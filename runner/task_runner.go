package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/internal/safemap"

	log "github.com/sirupsen/logrus"
)

// Runner drains one named queue per invocation while holding that queue's lock.
type Runner struct {
	cfg RunnerConfig

	queues *safemap.SafeMap[string, *Queue]

	store      contracts.QueueStore
	locks      contracts.LockStore
	dispatcher contracts.Dispatcher
	scheduler  contracts.Scheduler
}

func NewRunner(cfg RunnerConfig, store contracts.QueueStore, locks contracts.LockStore, dispatcher contracts.Dispatcher, scheduler contracts.Scheduler) *Runner {
	return &Runner{
		cfg:        cfg.withDefaults(),
		queues:     safemap.NewSafeMap[string, *Queue](),
		store:      store,
		locks:      locks,
		dispatcher: dispatcher,
		scheduler:  scheduler,
	}
}

func (r *Runner) Config() RunnerConfig {
	return r.cfg
}

// Run executes one invocation for queue. lockToken is empty for a fresh start
// and carries the dispatching invocation's token for a continuation.
func (r *Runner) Run(ctx context.Context, name, lockToken string) (report Report, err error) {
	report = Report{Queue: name}
	start := r.cfg.Now()
	defer func() {
		report.Duration = r.cfg.Now().Sub(start)
	}()

	q, ok := r.queues.Get(name)
	if !ok {
		report.Outcome = OutcomeUnknownQueue
		return report, ErrQueueNotRegistered
	}
	if lockToken == "" {
		lockToken = uuid.NewString()
	}
	logger := log.WithField("queue", name)

	holder, err := r.locks.Read(ctx, name)
	if err != nil {
		report.Outcome = OutcomeAborted
		return report, fmt.Errorf("read lock: %w", err)
	}
	if holder != "" && holder != lockToken {
		logger.Debug("queue is locked by another runner")
		report.Outcome = OutcomeLocked
		return report, nil
	}

	count, err := r.store.Count(ctx, name)
	if err != nil {
		report.Outcome = OutcomeAborted
		return report, fmt.Errorf("count items: %w", err)
	}
	if count == 0 {
		report.Outcome = OutcomeEmpty
		return report, nil
	}

	rc := r.newRunContext(q, lockToken)
	acquired := false
	for {
		batch, err := r.store.PeekBatch(ctx, name, q.BatchSize)
		if err != nil {
			report.Outcome = OutcomeAborted
			return report, fmt.Errorf("peek batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		// Acquiring with our own token refreshes the expiry for this pass.
		ok, err := r.locks.TryAcquire(ctx, name, lockToken, r.cfg.LockTTL)
		if err != nil {
			report.Outcome = OutcomeAborted
			return report, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			logger.Warn("lock taken over by another runner")
			report.Outcome = OutcomeLockLost
			return report, nil
		}
		acquired = true
		report.Passes++

		if stopped := r.processBatch(ctx, rc, batch, &report); stopped {
			break
		}

		remaining, err := r.store.Count(ctx, name)
		if err != nil {
			report.Outcome = OutcomeAborted
			return report, fmt.Errorf("count items: %w", err)
		}
		if remaining == 0 {
			break
		}
	}

	if !acquired {
		// Drained between the count and the first batch.
		report.Outcome = OutcomeEmpty
		return report, nil
	}

	holder, err = r.locks.Read(ctx, name)
	if err != nil {
		report.Outcome = OutcomeAborted
		return report, fmt.Errorf("read lock: %w", err)
	}
	if holder != lockToken {
		logger.Warn("lock expired during run")
		report.Outcome = OutcomeLockLost
		return report, nil
	}

	remaining, err := r.store.Count(ctx, name)
	if err != nil {
		report.Outcome = OutcomeAborted
		return report, fmt.Errorf("count items: %w", err)
	}

	if remaining > 0 {
		report.Outcome = OutcomeContinued
		logger.WithField("remaining", remaining).WithField("processed", report.Processed).Info("dispatching continuation")
		if err := r.dispatcher.Dispatch(ctx, name, lockToken); err != nil {
			// The lock expires and the supervisor picks the queue up again.
			return report, fmt.Errorf("dispatch continuation: %w", err)
		}
		return report, nil
	}

	report.Outcome = OutcomeCompleted
	if err := r.locks.Release(ctx, name, lockToken); err != nil {
		logger.WithError(err).Error("can not release lock")
	}
	if err := r.scheduler.Unschedule(name); err != nil {
		logger.WithError(err).Error("can not unschedule health check")
	}
	logger.WithField("processed", report.Processed).Info("queue drained")

	r.rearm(ctx, name, logger)
	return report, nil
}

// rearm covers a push that landed after the final count: its dispatch found
// the queue locked and the health check still registered, so both were no-ops.
func (r *Runner) rearm(ctx context.Context, name string, logger *log.Entry) {
	remaining, err := r.store.Count(ctx, name)
	if err != nil {
		logger.WithError(err).Error("can not recount drained queue")
		return
	}
	if remaining == 0 {
		return
	}

	logger.WithField("remaining", remaining).Info("items arrived while releasing, rescheduling")
	if err := r.scheduler.Schedule(name); err != nil {
		logger.WithError(err).Error("can not schedule health check")
	}
	if err := r.dispatcher.Dispatch(ctx, name, ""); err != nil {
		logger.WithError(err).Warn("can not dispatch fresh run, health check will pick it up")
	}
}
