package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/riverwork/corestream/internal/telemetry"
	"github.com/riverwork/corestream/pkg/processor"
)

const (
	softBudget = 1 * time.Millisecond
	warnBudget = 5 * time.Millisecond
	failBudget = 1000 * time.Millisecond
)

// Pool is the fixed-size cooperative worker pool of spec.md section 5:
// each Worker owns a disjoint subset of Tasks and runs them round-robin,
// one callback at a time, checking each against the soft/warn/fail time
// budget (overruns are logged, not failed).
// Non-cooperative tasks instead run under a dedicated NonCooperativeRunner
// goroutine, never inside a Worker.
type Pool struct {
	workers []*Worker
	strict  bool // strict mode: a >1s callback is logged at error level instead of warn level; the task keeps running and no error is returned.
}

// NewPool builds a Pool with the given worker count; tasks are assigned
// round-robin as they're added via Assign.
func NewPool(workerCount int, strict bool) *Pool {
	var p = &Pool{strict: strict}
	for i := 0; i < workerCount; i++ {
		p.workers = append(p.workers, &Worker{id: i, strict: strict})
	}
	return p
}

// Assign adds a cooperative task to the least-loaded worker.
func (p *Pool) Assign(t Task) {
	var best = p.workers[0]
	for _, w := range p.workers[1:] {
		if len(w.tasks) < len(best.tasks) {
			best = w
		}
	}
	best.tasks = append(best.tasks, t)
}

// Run drives every worker until ctx is cancelled or every assigned task
// reports done. It is the cooperative half of the engine; non-cooperative
// operators are driven separately by NonCooperativeRunner.
func (p *Pool) Run(ctx context.Context) error {
	var g, gctx = errgroup.WithContext(ctx)
	for _, w := range p.workers {
		var w = w
		g.Go(func() error { return w.run(gctx) })
	}
	return g.Wait()
}

// Worker runs a fixed set of cooperative Tasks round-robin, one callback
// at a time, sleeping a jittered tick interval whenever a full round made
// no progress on any task — mirroring go/shuffle/ring.go's serve()
// select-loop (subscriber-channel-ready vs. read-channel-ready becomes:
// task-has-work vs. tick-timer-fired) and go/runtime/task.go's jittered
// heartbeat cadence.
type Worker struct {
	id     int
	tasks  []Task
	strict bool
}

func (w *Worker) run(ctx context.Context) error {
	var log = telemetry.NewLogger("engine.worker")
	var tickBase = int64(2 * time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var madeProgress, allDone = w.round(log)
		if allDone {
			return nil
		}
		if !madeProgress {
			var interval = time.Duration(jitteredInterval(tickBase))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
}

// round drives one callback on every live task and reports whether any
// task progressed, and whether every task is now done.
func (w *Worker) round(log processor.Logger) (madeProgress bool, allDone bool) {
	allDone = true
	var live = w.tasks[:0]
	for _, t := range w.tasks {
		var start = time.Now()
		var progressed, done, err = t.Step()
		var elapsed = time.Since(start)
		w.observeBudget(log, t, elapsed, err)

		if err != nil {
			log.WithField("task", t.Name()).Errorf("task failed: %v", err)
			continue
		}
		if progressed {
			madeProgress = true
		}
		if !done {
			allDone = false
			live = append(live, t)
		}
	}
	w.tasks = live
	if len(w.tasks) == 0 {
		allDone = true
	}
	return madeProgress, allDone
}

func (w *Worker) observeBudget(log processor.Logger, t Task, elapsed time.Duration, err error) {
	telemetryObserve(t.Name(), elapsed)
	if elapsed <= softBudget || err != nil {
		return
	}
	if elapsed > failBudget && w.strict {
		log.WithField("task", t.Name()).Errorf("callback exceeded fail budget: %s", elapsed)
		return
	}
	if elapsed > warnBudget {
		log.WithField("task", t.Name()).Warnf("callback exceeded warn budget: %s", elapsed)
	}
}
