package runner

type RunnerError string

func (re RunnerError) Error() string {
	return string(re)
}

const (
	ErrQueueNotRegistered = RunnerError("ErrQueueNotRegistered")
)

// TaskPanicError wraps a value recovered from a panicking handler.
type TaskPanicError struct {
	queue string
	cause any
}

func NewTaskPanicError(queue string, cause any) TaskPanicError {
	return TaskPanicError{queue: queue, cause: cause}
}

func (t TaskPanicError) Error() string {
	if err, ok := t.cause.(error); ok {
		return t.queue + ": handler panic: " + err.Error()
	}
	return t.queue + ": handler panic"
}

func (t TaskPanicError) Unwrap() error {
	err, _ := t.cause.(error)
	return err
}

func (t TaskPanicError) Cause() any {
	return t.cause
}
