package runner

import (
	"time"
)

// RunContext carries the per-invocation state through the batch loop.
type RunContext struct {
	Queue     *Queue
	LockToken string
	StartTime time.Time

	timeLimit       time.Duration
	memoryLimit     uint64
	memoryThreshold float64
	memoryUsage     MemoryUsageFunc
	now             func() time.Time
}

func (r *Runner) newRunContext(q *Queue, lockToken string) *RunContext {
	return &RunContext{
		Queue:           q,
		LockToken:       lockToken,
		StartTime:       r.cfg.Now(),
		timeLimit:       r.cfg.TimeLimit,
		memoryLimit:     r.cfg.MemoryLimit,
		memoryThreshold: r.cfg.MemoryThreshold,
		memoryUsage:     r.cfg.MemoryUsage,
		now:             r.cfg.Now,
	}
}

func (rc *RunContext) Elapsed() time.Duration {
	return rc.now().Sub(rc.StartTime)
}

func (rc *RunContext) TimeExceeded() bool {
	return rc.Elapsed() > rc.timeLimit
}

func (rc *RunContext) MemoryExceeded() bool {
	return float64(rc.memoryUsage()) >= float64(rc.memoryLimit)*rc.memoryThreshold
}

func (rc *RunContext) Exhausted() bool {
	return rc.TimeExceeded() || rc.MemoryExceeded()
}
