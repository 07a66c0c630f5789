// Package telemetry wires structured logging and Prometheus metrics for
// the engine (pkg/engine is its only importer) — the
// logrus/client_golang ambient stack the teacher carries throughout
// go/shuffle and go/runtime, reused here rather than reinvented on the
// standard library.
package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/riverwork/corestream/pkg/processor"
)

// Logger adapts *logrus.Entry to processor.Logger, the way
// go/runtime/task.go's heartbeatLoop builds its *log.Entry with
// WithFields before logging.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger builds a root Logger for the given vertex name.
func NewLogger(vertex string) Logger {
	return Logger{entry: logrus.WithField("vertex", vertex)}
}

func (l Logger) WithField(key string, value interface{}) processor.Logger {
	return Logger{entry: l.entry.WithField(key, value)}
}

func (l Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
