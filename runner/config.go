package runner

import (
	"math"
	"runtime"
	"runtime/debug"
	"time"
)

const (
	DefaultBatchSize       = 50
	DefaultMaxAttempts     = 15
	DefaultTimeLimit       = 20 * time.Second
	DefaultLockTTL         = 90 * time.Second
	DefaultMemoryThreshold = 0.9
	fallbackMemoryLimit    = 128 << 20
)

type MemoryUsageFunc func() uint64

type RunnerConfig struct {
	// BatchSize is the number of items pulled per pass unless the queue overrides it.
	BatchSize int
	// MaxAttempts is the attempt ceiling unless the queue overrides it.
	MaxAttempts int

	// TimeLimit bounds one invocation's batch loop. It must stay well below LockTTL.
	TimeLimit time.Duration
	LockTTL   time.Duration

	// MemoryLimit in bytes. Zero means GOMEMLIMIT when set, 128MiB otherwise.
	MemoryLimit     uint64
	MemoryThreshold float64
	MemoryUsage     MemoryUsageFunc

	Now func() time.Time
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = DefaultTimeLimit
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.MemoryLimit == 0 {
		c.MemoryLimit = DefaultMemoryLimit()
	}
	if c.MemoryThreshold <= 0 || c.MemoryThreshold > 1 {
		c.MemoryThreshold = DefaultMemoryThreshold
	}
	if c.MemoryUsage == nil {
		c.MemoryUsage = HeapInUse
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// DefaultMemoryLimit returns the runtime soft memory limit, or 128MiB when none is set.
func DefaultMemoryLimit() uint64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit == math.MaxInt64 {
		return fallbackMemoryLimit
	}
	return uint64(limit)
}

func HeapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}
