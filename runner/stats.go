package runner

import "time"

type Outcome string

const (
	OutcomeUnknownQueue Outcome = "unknown_queue"
	// OutcomeLocked means another holder owned the queue lock.
	OutcomeLocked Outcome = "locked"
	OutcomeEmpty  Outcome = "empty"
	// OutcomeContinued means work remained and a continuation was dispatched.
	OutcomeContinued Outcome = "continued"
	// OutcomeCompleted means the queue drained, the lock was released and the schedule removed.
	OutcomeCompleted Outcome = "completed"
	OutcomeLockLost  Outcome = "lock_lost"
	OutcomeAborted   Outcome = "aborted"
)

// Report summarizes one Runner invocation.
type Report struct {
	Queue     string
	Outcome   Outcome
	Passes    int
	Processed int
	Completed int
	Retried   int
	Failed    int
	// Exhausted is set when the time or memory budget ended the batch loop.
	Exhausted bool
	Duration  time.Duration
}
