package dispatch

import (
	"context"
	"sync"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"

	log "github.com/sirupsen/logrus"
)

// LocalDispatcher runs invocations in a goroutine of the current process. It
// serves single process deployments that expose no dispatch endpoint.
type LocalDispatcher struct {
	runner    QueueRunner
	scheduler contracts.Scheduler
	wg        sync.WaitGroup
}

func NewLocalDispatcher(scheduler contracts.Scheduler) *LocalDispatcher {
	return &LocalDispatcher{scheduler: scheduler}
}

// Attach sets the runner. It must be called before the first Dispatch.
func (d *LocalDispatcher) Attach(r QueueRunner) {
	d.runner = r
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, queue, lockToken string) error {
	if d.scheduler != nil {
		if err := d.scheduler.Schedule(queue); err != nil {
			log.WithError(err).WithField("queue", queue).Error("can not schedule health check")
		}
	}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		report, err := d.runner.Run(ctx, queue, lockToken)
		if err != nil {
			log.WithError(err).WithField("queue", queue).WithField("outcome", report.Outcome).Error("runner invocation failed")
		}
	}()
	return nil
}

func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
