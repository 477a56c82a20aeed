package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/engine"
	"github.com/soroosh-tanzadeh/bgqueue/handlers"
	"github.com/soroosh-tanzadeh/bgqueue/internal/config"
	"github.com/soroosh-tanzadeh/bgqueue/lockstore"
	"github.com/soroosh-tanzadeh/bgqueue/redisqueue"
	"github.com/soroosh-tanzadeh/bgqueue/runner"
	"github.com/soroosh-tanzadeh/bgqueue/sqlqueue"

	log "github.com/sirupsen/logrus"
)

type app struct {
	cfg    *config.Config
	engine *engine.Engine

	redis  *redis.Client
	sqlite *sqlqueue.Store
}

func (a *app) redisClient() *redis.Client {
	if a.redis == nil {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
	}
	return a.redis
}

func (a *app) sqliteStore() (*sqlqueue.Store, error) {
	if a.sqlite == nil {
		store, err := sqlqueue.Open(a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.sqlite = store
	}
	return a.sqlite, nil
}

func (a *app) queueStore() (contracts.QueueStore, error) {
	if a.cfg.Store.Driver == "redis" {
		return redisqueue.NewRedisQueueStore(a.redisClient(), redisqueue.WithPrefix(a.cfg.Store.Prefix)), nil
	}
	return a.sqliteStore()
}

func (a *app) lockStore(ctx context.Context) (contracts.LockStore, error) {
	switch a.cfg.Lock.Driver {
	case "redis":
		return lockstore.NewRedisLockStore(a.redisClient(), a.cfg.Store.Prefix+":lock:"), nil
	case "file":
		return lockstore.NewFileLockStore(a.cfg.Lock.Dir)
	}
	store, err := a.sqliteStore()
	if err != nil {
		return nil, err
	}
	return lockstore.NewSQLLockStore(ctx, store.DB())
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, err := a.queueStore()
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	locks, err := a.lockStore(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open lock store: %w", err)
	}

	e, err := engine.New(store, locks, engine.Config{
		Runner: runner.RunnerConfig{
			BatchSize:       cfg.Runner.BatchSize,
			MaxAttempts:     cfg.Runner.MaxAttempts,
			TimeLimit:       cfg.Runner.TimeLimit,
			LockTTL:         cfg.Lock.TTL,
			MemoryLimit:     cfg.Runner.MemoryLimit,
			MemoryThreshold: cfg.Runner.MemoryThreshold,
		},
		SupervisorInterval: cfg.Supervisor.Interval,
		Dispatch: engine.DispatchConfig{
			BaseURL:  cfg.Server.BaseURL,
			Path:     cfg.Dispatch.Path,
			Secret:   cfg.Server.Secret,
			Timeout:  cfg.Dispatch.Timeout,
			TokenTTL: cfg.Dispatch.TokenTTL,
		},
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.engine = e

	for _, q := range cfg.Queues {
		kind, err := handlers.ParseKind(q.Kind)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		hook := handlers.NewWebhook(q.Endpoint, q.FailureEndpoint, cfg.Runner.TimeLimit)
		adapter := handlers.New(kind, hook, hook)

		options := adapter.QueueOptions()
		if q.MaxAttempts > 0 {
			options = append(options, runner.WithMaxAttempts(q.MaxAttempts))
		}
		if q.BatchSize > 0 {
			options = append(options, runner.WithBatchSize(q.BatchSize))
		}
		e.Register(q.Name, adapter, options...)
		log.WithField("queue", q.Name).WithField("kind", kind).Debug("queue registered")
	}
	return a, nil
}

// Close waits for in process invocations and closes the backing stores.
func (a *app) Close(ctx context.Context) error {
	var err error
	if a.engine != nil {
		err = errors.Join(err, a.engine.Shutdown(ctx))
	}
	if a.sqlite != nil {
		err = errors.Join(err, a.sqlite.Close())
	}
	if a.redis != nil {
		err = errors.Join(err, a.redis.Close())
	}
	return err
}
