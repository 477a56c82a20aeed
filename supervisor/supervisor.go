package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/internal/safemap"
	"github.com/soroosh-tanzadeh/bgqueue/runner"

	log "github.com/sirupsen/logrus"
)

const jobTagPrefix = "bgqueue:"

type QueueRunner interface {
	Run(ctx context.Context, queue, lockToken string) (runner.Report, error)
}

// Supervisor keeps one periodic health check per active queue. A check that
// finds no valid lock on a non empty queue runs the queue itself, which
// recovers queues whose runner died or whose continuation was lost.
type Supervisor struct {
	scheduler gocron.Scheduler
	store     contracts.QueueStore
	locks     contracts.LockStore
	runner    QueueRunner

	interval            time.Duration
	recoveryConcurrency int
	schedulerOptions    []gocron.SchedulerOption

	mu   sync.Mutex
	jobs *safemap.SafeMap[string, uuid.UUID]
}

func NewSupervisor(store contracts.QueueStore, locks contracts.LockStore, options ...Option) (*Supervisor, error) {
	s := &Supervisor{
		store:               store,
		locks:               locks,
		interval:            DefaultInterval,
		recoveryConcurrency: DefaultRecoveryConcurrency,
		jobs:                safemap.NewSafeMap[string, uuid.UUID](),
	}
	for _, option := range options {
		option(s)
	}

	scheduler, err := gocron.NewScheduler(s.schedulerOptions...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.scheduler = scheduler
	return s, nil
}

// Attach sets the runner invoked by health checks. It must be called before Start.
func (s *Supervisor) Attach(r QueueRunner) {
	s.runner = r
}

func (s *Supervisor) Start() {
	s.scheduler.Start()
}

func (s *Supervisor) Shutdown() error {
	return s.scheduler.Shutdown()
}

func (s *Supervisor) Interval() time.Duration {
	return s.interval
}

// Schedule registers the health check for queue. It is a no-op when one exists.
func (s *Supervisor) Schedule(queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs.Get(queue); ok {
		return nil
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.check, queue),
		gocron.WithName(jobTagPrefix+queue),
		gocron.WithTags(jobTagPrefix+queue),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", queue, err)
	}
	s.jobs.Set(queue, job.ID())
	log.WithField("queue", queue).WithField("interval", s.interval).Debug("health check scheduled")
	return nil
}

func (s *Supervisor) Unschedule(queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs.Pop(queue)
	if !ok {
		return nil
	}
	if err := s.scheduler.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return fmt.Errorf("unschedule %s: %w", queue, err)
	}
	log.WithField("queue", queue).Debug("health check removed")
	return nil
}

func (s *Supervisor) Scheduled(queue string) bool {
	_, ok := s.jobs.Get(queue)
	return ok
}

func (s *Supervisor) ScheduledQueues() []string {
	return s.jobs.Keys()
}

// NextRun reports when the health check of queue fires next.
func (s *Supervisor) NextRun(queue string) (time.Time, bool) {
	id, ok := s.jobs.Get(queue)
	if !ok {
		return time.Time{}, false
	}
	for _, job := range s.scheduler.Jobs() {
		if job.ID() != id {
			continue
		}
		next, err := job.NextRun()
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func (s *Supervisor) check(queue string) {
	report, err := s.Tick(context.Background(), queue)
	if err != nil {
		log.WithError(err).WithField("queue", queue).Error("health check failed")
		return
	}
	switch report.Outcome {
	case runner.OutcomeCompleted, runner.OutcomeContinued:
		log.WithField("queue", queue).WithField("outcome", report.Outcome).Info("health check recovered queue")
	case "":
	default:
		log.WithField("queue", queue).WithField("outcome", report.Outcome).Debug("health check finished")
	}
}

// Tick runs one health check for queue. A queue with a valid lock is left
// alone. An empty unlocked queue loses its schedule. Anything else is run
// synchronously with a fresh lock token.
func (s *Supervisor) Tick(ctx context.Context, queue string) (runner.Report, error) {
	holder, err := s.locks.Read(ctx, queue)
	if err != nil {
		return runner.Report{}, fmt.Errorf("read lock: %w", err)
	}
	if holder != "" {
		return runner.Report{}, nil
	}

	count, err := s.store.Count(ctx, queue)
	if err != nil {
		return runner.Report{}, fmt.Errorf("count items: %w", err)
	}
	if count == 0 {
		return runner.Report{}, s.Unschedule(queue)
	}

	log.WithField("queue", queue).WithField("pending", count).Warn("queue has no active runner, recovering")
	return s.runner.Run(ctx, queue, "")
}

// Recover schedules every queue and runs its health check immediately,
// checking up to the configured number of queues concurrently.
func (s *Supervisor) Recover(ctx context.Context, queues []string) error {
	if len(queues) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	pool, err := ants.NewPoolWithFunc(s.recoveryConcurrency, func(arg interface{}) {
		defer wg.Done()
		queue := arg.(string)
		if _, err := s.Tick(ctx, queue); err != nil {
			log.WithError(err).WithField("queue", queue).Error("recovery failed")
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
		}
	}, ants.WithNonblocking(false))
	if err != nil {
		return err
	}
	defer pool.Release()

	for _, queue := range queues {
		if err := s.Schedule(queue); err != nil {
			return err
		}
		wg.Add(1)
		if err := pool.Invoke(queue); err != nil {
			wg.Done()
			return err
		}
	}
	wg.Wait()
	return firstErr
}
