package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/observability"
	"github.com/maroof-I/modlek/internal/runlog"
)

// Orchestrator drives the two cadences. Classification runs often and cheap;
// hardening runs rarely and recomputes its whole window. Each job is
// single-flight: a tick that lands while the previous invocation is still
// running is skipped, never queued.
type Orchestrator struct {
	ClassifyEvery time.Duration
	HardenEvery   time.Duration

	Classify Job
	Harden   Job

	RunLog  *runlog.Logger
	Bus     *Bus
	Metrics *observability.Metrics
	Clock   func() time.Time
	Logger  *zap.Logger

	classifyMu sync.Mutex
	hardenMu   sync.Mutex
}

// Run blocks until ctx is cancelled. Both jobs fire once at startup so a
// freshly deployed instance does useful work before the first tick.
func (o *Orchestrator) Run(ctx context.Context) error {
	triggers := make(chan string, 2)
	if o.Bus != nil {
		if err := o.Bus.SubscribeTriggers(triggers); err != nil {
			return err
		}
	}

	classifyTick := time.NewTicker(o.ClassifyEvery)
	defer classifyTick.Stop()
	hardenTick := time.NewTicker(o.HardenEvery)
	defer hardenTick.Stop()

	o.dispatch(ctx, o.Classify, &o.classifyMu)
	o.dispatch(ctx, o.Harden, &o.hardenMu)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-classifyTick.C:
			o.dispatch(ctx, o.Classify, &o.classifyMu)
		case <-hardenTick.C:
			o.dispatch(ctx, o.Harden, &o.hardenMu)
		case kind := <-triggers:
			o.Logger.Info("external trigger", zap.String("kind", kind))
			switch kind {
			case runlog.KindClassify:
				o.dispatch(ctx, o.Classify, &o.classifyMu)
			case runlog.KindHarden:
				o.dispatch(ctx, o.Harden, &o.hardenMu)
			}
		}
	}
}

// dispatch runs the job in its own goroutine if no invocation of it is in
// flight, and skips the tick otherwise.
func (o *Orchestrator) dispatch(ctx context.Context, job Job, mu *sync.Mutex) {
	if job == nil {
		return
	}
	if !mu.TryLock() {
		o.Logger.Debug("previous run still in flight, skipping tick",
			zap.String("job", job.Name()))
		return
	}

	clock := o.Clock
	if clock == nil {
		clock = time.Now
	}

	go func() {
		defer mu.Unlock()

		rec := job.Run(ctx, clock())
		o.Metrics.ObserveRun(rec.Kind, rec.Status, rec.Finished.Sub(rec.Started))

		if o.RunLog != nil {
			if err := o.RunLog.Write(rec); err != nil {
				o.Logger.Warn("write run log",
					zap.String("run_id", rec.RunID),
					zap.Error(err))
			}
		}
		o.Bus.PublishRun(rec)
	}()
}
