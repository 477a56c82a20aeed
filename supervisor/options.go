package supervisor

import (
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	DefaultInterval            = 5 * time.Minute
	DefaultRecoveryConcurrency = 4
)

type Option func(*Supervisor)

// WithInterval sets how often a scheduled queue is health checked.
func WithInterval(interval time.Duration) Option {
	return func(s *Supervisor) {
		s.interval = interval
	}
}

// WithRecoveryConcurrency bounds how many queues Recover checks at once.
func WithRecoveryConcurrency(n int) Option {
	return func(s *Supervisor) {
		s.recoveryConcurrency = n
	}
}

func WithSchedulerOptions(options ...gocron.SchedulerOption) Option {
	return func(s *Supervisor) {
		s.schedulerOptions = append(s.schedulerOptions, options...)
	}
}
