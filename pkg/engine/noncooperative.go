package engine

import (
	"context"

	"github.com/riverwork/corestream/internal/telemetry"
)

// NonCooperativeRunner drives a single non-cooperative Task on its own
// dedicated goroutine, outside any Worker's round-robin: per spec.md
// section 5, a non-cooperative operator may block indefinitely and its
// outbox may block on full rather than return false, so it must never
// share a worker with budget-bound cooperative tasks.
type NonCooperativeRunner struct {
	task Task
}

func NewNonCooperativeRunner(t Task) *NonCooperativeRunner {
	return &NonCooperativeRunner{task: t}
}

// Run loops Step until the task is done or ctx is cancelled, with no
// time-budget enforcement — the defining difference from Worker.round.
func (r *NonCooperativeRunner) Run(ctx context.Context) error {
	var log = telemetry.NewLogger("engine.noncooperative")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		var _, done, err = r.task.Step()
		if err != nil {
			log.WithField("task", r.task.Name()).Errorf("non-cooperative task failed: %v", err)
			return err
		}
		if done {
			return nil
		}
	}
}
