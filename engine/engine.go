package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/dispatch"
	"github.com/soroosh-tanzadeh/bgqueue/runner"
	"github.com/soroosh-tanzadeh/bgqueue/supervisor"

	log "github.com/sirupsen/logrus"
)

type DispatchConfig struct {
	// BaseURL of the process serving Handler. Empty runs invocations in process.
	BaseURL  string
	Path     string
	Secret   string
	Timeout  time.Duration
	TokenTTL time.Duration
}

type Config struct {
	Runner             runner.RunnerConfig
	SupervisorInterval time.Duration
	Dispatch           DispatchConfig
}

// Engine is the producer facing entry point. It wires the queue store, the
// lock store, the runner, the supervisor and the dispatcher together.
type Engine struct {
	store contracts.QueueStore
	locks contracts.LockStore

	runner     *runner.Runner
	supervisor *supervisor.Supervisor
	dispatcher contracts.Dispatcher
	local      *dispatch.LocalDispatcher
	server     *dispatch.Server

	started atomic.Bool
}

func New(store contracts.QueueStore, locks contracts.LockStore, cfg Config) (*Engine, error) {
	var supervisorOptions []supervisor.Option
	if cfg.SupervisorInterval > 0 {
		supervisorOptions = append(supervisorOptions, supervisor.WithInterval(cfg.SupervisorInterval))
	}
	sup, err := supervisor.NewSupervisor(store, locks, supervisorOptions...)
	if err != nil {
		return nil, err
	}

	e := &Engine{store: store, locks: locks, supervisor: sup}

	var signer *dispatch.TokenSigner
	if cfg.Dispatch.Secret != "" {
		signer, err = dispatch.NewTokenSigner(cfg.Dispatch.Secret, cfg.Dispatch.TokenTTL)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Dispatch.BaseURL != "" {
		if signer == nil {
			return nil, errors.New("dispatch secret is required with a base url")
		}
		options := []dispatch.Option{dispatch.WithScheduler(sup)}
		if cfg.Dispatch.Timeout > 0 {
			options = append(options, dispatch.WithTimeout(cfg.Dispatch.Timeout))
		}
		e.dispatcher = dispatch.NewHTTPDispatcher(cfg.Dispatch.BaseURL, cfg.Dispatch.Path, signer, options...)
	} else {
		e.local = dispatch.NewLocalDispatcher(sup)
		e.dispatcher = e.local
	}

	e.runner = runner.NewRunner(cfg.Runner, store, locks, e.dispatcher, sup)
	sup.Attach(e.runner)
	if e.local != nil {
		e.local.Attach(e.runner)
	}
	if signer != nil {
		e.server = dispatch.NewServer(cfg.Dispatch.Path, signer, e.runner)
	}
	return e, nil
}

func (e *Engine) Register(queue string, handler contracts.TaskHandler, options ...runner.QueueOption) {
	e.runner.Register(queue, handler, options...)
}

func (e *Engine) Runner() *runner.Runner {
	return e.runner
}

func (e *Engine) Supervisor() *supervisor.Supervisor {
	return e.supervisor
}

// Handler serves the dispatch endpoint. It is nil when no secret is configured.
func (e *Engine) Handler() http.Handler {
	if e.server == nil {
		return nil
	}
	return e.server.Handler()
}

// Mount registers the dispatch endpoint on router. It reports false when no
// secret is configured.
func (e *Engine) Mount(router chi.Router) bool {
	if e.server == nil {
		return false
	}
	e.server.Mount(router)
	return true
}

func (e *Engine) Start() {
	if e.started.CompareAndSwap(false, true) {
		e.supervisor.Start()
	}
}

// Shutdown stops health checks and waits for in flight invocations.
func (e *Engine) Shutdown(ctx context.Context) error {
	var err error
	if e.started.CompareAndSwap(true, false) {
		err = e.supervisor.Shutdown()
	}
	if e.server != nil {
		if waitErr := e.server.Wait(ctx); waitErr != nil {
			err = errors.Join(err, waitErr)
		}
	}
	if e.local != nil {
		e.local.Wait()
	}
	return err
}

func (e *Engine) registered(queue string) error {
	if _, ok := e.runner.Queue(queue); !ok {
		return fmt.Errorf("%s: %w", queue, runner.ErrQueueNotRegistered)
	}
	return nil
}

// Push queues subjectID on queue. A subject already pending on that queue is
// left as is.
func (e *Engine) Push(ctx context.Context, queue, subjectID string, payload contracts.Payload) error {
	if err := e.registered(queue); err != nil {
		return err
	}
	_, err := e.store.Push(ctx, queue, subjectID, payload)
	if errors.Is(err, contracts.ErrDuplicateItem) {
		log.WithField("queue", queue).WithField("subject_id", subjectID).Debug("subject already queued")
		return nil
	}
	return err
}

// Dispatch starts a runner for queue and makes sure its health check exists.
func (e *Engine) Dispatch(ctx context.Context, queue string) error {
	if err := e.registered(queue); err != nil {
		return err
	}
	return e.dispatcher.Dispatch(ctx, queue, "")
}

// Cancel drops every pending item of queue, removes its health check and
// releases its lock. It returns the number of dropped items. A runner in the
// middle of a batch finishes its current item and then finds the queue empty.
func (e *Engine) Cancel(ctx context.Context, queue string) (int64, error) {
	if err := e.supervisor.Unschedule(queue); err != nil {
		return 0, err
	}
	removed, err := e.store.DeleteQueue(ctx, queue)
	if err != nil {
		return 0, fmt.Errorf("delete queue: %w", err)
	}
	holder, err := e.locks.Read(ctx, queue)
	if err != nil {
		return removed, fmt.Errorf("read lock: %w", err)
	}
	if holder != "" {
		if err := e.locks.Release(ctx, queue, holder); err != nil {
			return removed, fmt.Errorf("release lock: %w", err)
		}
	}
	log.WithField("queue", queue).WithField("removed", removed).Info("queue cancelled")
	return removed, nil
}

// Restore re-arms the health check of every registered queue that still
// holds items and checks each one immediately. Schedules live in memory, so
// this is needed after a restart.
func (e *Engine) Restore(ctx context.Context) error {
	names, err := e.store.Queues(ctx)
	if err != nil {
		return fmt.Errorf("list queues: %w", err)
	}
	queues := make([]string, 0, len(names))
	for _, name := range names {
		if err := e.registered(name); err != nil {
			log.WithField("queue", name).Warn("skipping queue without handler")
			continue
		}
		queues = append(queues, name)
	}
	return e.supervisor.Recover(ctx, queues)
}
