package engine

import (
	"time"

	"github.com/riverwork/corestream/internal/telemetry"
)

// telemetryObserve records one callback's duration against the shared
// cooperative-budget histogram, labeled by task name.
func telemetryObserve(taskName string, elapsed time.Duration) {
	telemetry.CallbackDuration.WithLabelValues(taskName, "step").Observe(elapsed.Seconds())
}
