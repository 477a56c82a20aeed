package runner

import (
	"sort"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

// Queue binds a named queue to the handler of its job kind.
type Queue struct {
	Name    string
	Handler contracts.TaskHandler

	// MaxAttempts overrides RunnerConfig.MaxAttempts when positive. Time
	// sensitive kinds use a lower ceiling.
	MaxAttempts int
	// BatchSize overrides RunnerConfig.BatchSize when positive.
	BatchSize int
}

type QueueOption func(*Queue)

func WithMaxAttempts(n int) QueueOption {
	return func(q *Queue) {
		q.MaxAttempts = n
	}
}

func WithBatchSize(n int) QueueOption {
	return func(q *Queue) {
		q.BatchSize = n
	}
}

// Register binds handler to name. Registering a name twice replaces the handler.
func (r *Runner) Register(name string, handler contracts.TaskHandler, options ...QueueOption) {
	q := &Queue{Name: name, Handler: handler}
	for _, option := range options {
		option(q)
	}
	if q.MaxAttempts <= 0 {
		q.MaxAttempts = r.cfg.MaxAttempts
	}
	if q.BatchSize <= 0 {
		q.BatchSize = r.cfg.BatchSize
	}
	r.queues.Set(name, q)
}

func (r *Runner) Queue(name string) (*Queue, bool) {
	return r.queues.Get(name)
}

// Queues returns the registered queue names, sorted.
func (r *Runner) Queues() []string {
	names := r.queues.Keys()
	sort.Strings(names)
	return names
}
