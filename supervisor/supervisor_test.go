package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/bgqueue/contracts"
	"github.com/soroosh-tanzadeh/bgqueue/internal/locktest"
	"github.com/soroosh-tanzadeh/bgqueue/redisqueue"
	"github.com/soroosh-tanzadeh/bgqueue/runner"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

const recoveredMessage = "health check recovered queue"

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string, string) error { return nil }

type completeHandler struct {
	calls atomic.Int64
}

func (h *completeHandler) Task(context.Context, contracts.QueueItem) (contracts.Result, error) {
	h.calls.Add(1)
	return contracts.Completed(), nil
}

func (h *completeHandler) Failure(context.Context, contracts.QueueItem) {}

// lockFreeFirstRead hides the holder from the first Read, as if the lock was
// taken between the supervisor's check and the runner's.
type lockFreeFirstRead struct {
	contracts.LockStore
	reads atomic.Int64
}

func (l *lockFreeFirstRead) Read(ctx context.Context, key string) (string, error) {
	if l.reads.Add(1) == 1 {
		return "", nil
	}
	return l.LockStore.Read(ctx, key)
}

func countMessages(hook *logtest.Hook, message string) int {
	n := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == message {
			n++
		}
	}
	return n
}

type SupervisorTestSuite struct {
	suite.Suite
	redisServer *miniredis.Miniredis
	lockBackend string

	store      *redisqueue.RedisQueueStore
	locks      contracts.LockStore
	advance    func(time.Duration)
	supervisor *Supervisor
	runner     *runner.Runner
	handler    *completeHandler
}

func TestSupervisorTestSuite(t *testing.T) {
	for _, backend := range locktest.Backends {
		t.Run(backend, func(t *testing.T) {
			suite.Run(t, &SupervisorTestSuite{lockBackend: backend})
		})
	}
}

func (s *SupervisorTestSuite) SetupTest() {
	s.setup(DefaultInterval)
}

func (s *SupervisorTestSuite) setup(interval time.Duration) {
	s.redisServer = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.redisServer.Addr()})
	s.T().Cleanup(func() { client.Close() })

	s.store = redisqueue.NewRedisQueueStore(client)
	s.locks, s.advance = locktest.New(s.T(), s.lockBackend)

	sup, err := NewSupervisor(s.store, s.locks, WithInterval(interval))
	s.Require().NoError(err)
	s.supervisor = sup

	s.runner = runner.NewRunner(runner.RunnerConfig{}, s.store, s.locks, noopDispatcher{}, sup)
	s.handler = &completeHandler{}
	for _, queue := range []string{"media", "image", "gallery"} {
		s.runner.Register(queue, s.handler)
	}
	sup.Attach(s.runner)
	sup.Start()
	s.T().Cleanup(func() { _ = sup.Shutdown() })
}

func (s *SupervisorTestSuite) push(queue string, n int) {
	for i := 0; i < n; i++ {
		_, err := s.store.Push(context.Background(), queue, fmt.Sprintf("%s-%d", queue, i), nil)
		s.Require().NoError(err)
	}
}

func (s *SupervisorTestSuite) TestScheduleIsIdempotent() {
	s.Require().NoError(s.supervisor.Schedule("media"))
	s.Require().NoError(s.supervisor.Schedule("media"))

	s.True(s.supervisor.Scheduled("media"))
	s.Equal([]string{"media"}, s.supervisor.ScheduledQueues())

	s.Eventually(func() bool {
		next, ok := s.supervisor.NextRun("media")
		return ok && next.After(time.Now().Add(DefaultInterval-time.Minute))
	}, time.Second, 10*time.Millisecond)
}

func (s *SupervisorTestSuite) TestUnschedule() {
	s.Require().NoError(s.supervisor.Schedule("media"))
	s.Require().NoError(s.supervisor.Unschedule("media"))
	s.Require().NoError(s.supervisor.Unschedule("media"))

	s.False(s.supervisor.Scheduled("media"))
	_, ok := s.supervisor.NextRun("media")
	s.False(ok)
}

func (s *SupervisorTestSuite) TestTickLeavesLockedQueueAlone() {
	ctx := context.Background()
	s.push("media", 2)
	ok, err := s.locks.TryAcquire(ctx, "media", "busy-runner", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().NoError(s.supervisor.Schedule("media"))

	_, err = s.supervisor.Tick(ctx, "media")

	s.Require().NoError(err)
	s.Zero(s.handler.calls.Load())
	s.True(s.supervisor.Scheduled("media"))
}

func (s *SupervisorTestSuite) TestTickDeregistersEmptyQueue() {
	s.Require().NoError(s.supervisor.Schedule("media"))

	_, err := s.supervisor.Tick(context.Background(), "media")

	s.Require().NoError(err)
	s.False(s.supervisor.Scheduled("media"))
}

func (s *SupervisorTestSuite) TestTickRecoversStaleLock() {
	ctx := context.Background()
	s.push("media", 3)
	ok, err := s.locks.TryAcquire(ctx, "media", "crashed-runner", runner.DefaultLockTTL)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().NoError(s.supervisor.Schedule("media"))

	s.advance(runner.DefaultLockTTL + time.Second)

	report, err := s.supervisor.Tick(ctx, "media")

	s.Require().NoError(err)
	s.Equal(runner.OutcomeCompleted, report.Outcome)
	s.EqualValues(3, s.handler.calls.Load())
	n, err := s.store.Count(ctx, "media")
	s.Require().NoError(err)
	s.Zero(n)
	s.False(s.supervisor.Scheduled("media"))
}

func (s *SupervisorTestSuite) TestRecoverChecksEveryQueue() {
	ctx := context.Background()
	s.push("media", 2)
	s.push("image", 3)

	s.Require().NoError(s.supervisor.Recover(ctx, []string{"media", "image", "gallery"}))

	for _, queue := range []string{"media", "image", "gallery"} {
		n, err := s.store.Count(ctx, queue)
		s.Require().NoError(err)
		s.Zero(n, queue)
		s.False(s.supervisor.Scheduled(queue), queue)
	}
}

func (s *SupervisorTestSuite) TestScheduledCheckFires() {
	s.setup(50 * time.Millisecond)
	s.push("gallery", 2)
	s.Require().NoError(s.supervisor.Schedule("gallery"))

	s.Eventually(func() bool {
		return !s.supervisor.Scheduled("gallery")
	}, 3*time.Second, 20*time.Millisecond)

	n, err := s.store.Count(context.Background(), "gallery")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *SupervisorTestSuite) TestCheckReportsRecoveryOnlyWhenItemsRan() {
	ctx := context.Background()
	hook := logtest.NewGlobal()
	defer hook.Reset()

	s.push("media", 1)
	ok, err := s.locks.TryAcquire(ctx, "media", "busy-runner", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	racy := &lockFreeFirstRead{LockStore: s.locks}
	sup, err := NewSupervisor(s.store, racy)
	s.Require().NoError(err)
	r := runner.NewRunner(runner.RunnerConfig{}, s.store, s.locks, noopDispatcher{}, sup)
	r.Register("media", s.handler)
	sup.Attach(r)
	sup.Start()
	s.T().Cleanup(func() { _ = sup.Shutdown() })

	sup.check("media")
	s.Zero(countMessages(hook, recoveredMessage), "a locked queue was not recovered")
	s.Zero(s.handler.calls.Load())

	holder, err := s.locks.Read(ctx, "media")
	s.Require().NoError(err)
	s.Require().NoError(s.locks.Release(ctx, "media", holder))

	s.supervisor.check("media")
	s.Equal(1, countMessages(hook, recoveredMessage))
	s.EqualValues(1, s.handler.calls.Load())
}
