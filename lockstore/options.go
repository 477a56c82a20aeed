package lockstore

import "time"

type settings struct {
	now func() time.Time
}

type Option func(*settings)

// WithClock replaces time.Now for the file and sql backings. Redis expiry is
// handled by the server and ignores it.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

func newSettings(options []Option) settings {
	s := settings{now: time.Now}
	for _, option := range options {
		option(&s)
	}
	return s
}
