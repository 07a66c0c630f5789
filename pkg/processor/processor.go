// Package processor defines the cooperative scheduling contract every
// operator obeys: init -> {process|tryProcess}* -> completeEdge* ->
// complete* -> {saveSnapshot|restoreSnapshot+finishSnapshotRestore}*.
//
// Per the design notes in spec.md section 9, this is a capability-set
// interface rather than a base class: a concrete operator implements as
// much of Processor as its behavior needs, and stateless operators embed
// NopSnapshot for the snapshot half.
package processor

import (
	"context"

	"github.com/pkg/errors"

	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/outbox"
)

// JobFuture is a cancellation handle a processor consults during
// long-running or blocking callbacks. It is intentionally small: the
// host embedding this core (member discovery, distributed job
// coordination) is out of scope, per spec.md section 1.
type JobFuture interface {
	Done() <-chan struct{}
	IsDone() bool
	Err() error
}

// Context is the fixed set of facts a processor may read after Init.
// Field names match spec.md section 6 (External Interfaces).
type Context struct {
	GlobalProcessorIndex int
	VertexName           string
	LocalParallelism     int
	SnapshottingEnabled  bool
	Logger               Logger
	JobFuture            JobFuture
}

// Logger is the minimal structured-logging surface a processor needs;
// internal/telemetry.Logger adapts a *logrus.Entry to it.
type Logger interface {
	WithField(key string, value interface{}) Logger
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Processor is the capability set every operator implements. In is the
// item type carried by every input ordinal (co-group's n inputs are each
// typed In, with per-ordinal key/accumulate functions distinguishing
// them — see pkg/cogroup); Out is the item type emitted to every output
// ordinal.
type Processor[In, Out any] interface {
	// Init is called exactly once, before any other method.
	Init(out *outbox.Outbox[Out], ctx Context) error

	// Process is called only when inbox has at least one entry. The
	// operator must remove what it processes; it returns implicitly by
	// returning from the call (cooperative operators return quickly;
	// non-cooperative operators may run until the inbox is empty).
	Process(ordinal int, in *inbox.Inbox[In]) error

	// TryProcess is the periodic tick delivered when no input is
	// available. It lets the operator emit on a timer or advance
	// internal clocks. Non-cooperative operators must return true
	// immediately.
	TryProcess() (bool, error)

	// CompleteEdge is called once per input ordinal when that ordinal is
	// exhausted, and re-invoked until it returns true.
	CompleteEdge(ordinal int) (bool, error)

	// Complete is called after every input ordinal has completed. It may
	// be called repeatedly until it returns true.
	Complete() (bool, error)

	// IsCooperative is fixed for the processor's lifetime.
	IsCooperative() bool

	Snapshotter[Out]
}

// Snapshotter is the snapshot/restore half of the contract, split out so
// stateless operators can embed NopSnapshot.
type Snapshotter[Out any] interface {
	// SaveSnapshot streams (key, value) pairs into the outbox's snapshot
	// bucket until nothing remains, then returns true. May be paused by
	// a full bucket (return false, resume next call). Keys must be
	// unique across one capture; pkg/snapshot.KeyWriter enforces this.
	SaveSnapshot(out *outbox.Outbox[Out]) (bool, error)

	// RestoreSnapshot consumes (key, value) batches from in and rebuilds
	// state. Called repeatedly until restore data is exhausted.
	RestoreSnapshot(in *inbox.Inbox[outbox.SnapshotEntry]) error

	// FinishSnapshotRestore resolves derived invariants (rebuilding
	// ordered maps, re-seeding incremental accumulators) after all
	// RestoreSnapshot calls have completed. Returns true when done.
	FinishSnapshotRestore() (bool, error)
}

// NopSnapshot is embedded by stateless operators (transforms) that have
// no snapshot state.
type NopSnapshot[Out any] struct{}

func (NopSnapshot[Out]) SaveSnapshot(*outbox.Outbox[Out]) (bool, error)         { return true, nil }
func (NopSnapshot[Out]) RestoreSnapshot(*inbox.Inbox[outbox.SnapshotEntry]) error { return nil }
func (NopSnapshot[Out]) FinishSnapshotRestore() (bool, error)                   { return true, nil }

// ContractViolation reports an operator that broke the state-machine
// contract: no progress made, a cooperative time-budget overrun, a
// duplicate snapshot key, or a non-monotonic watermark. Per spec.md
// section 7, this is fatal to the job.
type ContractViolation struct {
	Vertex string
	Reason string
	State  string // last-observed state, for diagnostics.
}

func (e *ContractViolation) Error() string {
	if e.State == "" {
		return "contract violation in " + e.Vertex + ": " + e.Reason
	}
	return "contract violation in " + e.Vertex + ": " + e.Reason + " (state: " + e.State + ")"
}

// UserCodeFault wraps an error returned through user-supplied callbacks
// (accumulate, finish, keyFn, timestampFn); panics are not recovered
// into it. Per spec.md
// section 7 it is fatal to the local task.
type UserCodeFault struct {
	Vertex string
	Err    error
}

// NewUserCodeFault builds a UserCodeFault, attaching a stack trace to err
// via pkg/errors so the fatal job-failure log retains the user callback's
// call site even after it crosses the worker/pool boundary.
func NewUserCodeFault(vertex string, err error) *UserCodeFault {
	return &UserCodeFault{Vertex: vertex, Err: errors.WithStack(err)}
}

func (e *UserCodeFault) Error() string { return "user code fault in " + e.Vertex + ": " + e.Err.Error() }
func (e *UserCodeFault) Unwrap() error  { return e.Err }

// jobFuture is the default JobFuture backed by a context.Context.
type jobFuture struct {
	ctx context.Context
}

// NewJobFuture adapts a context.Context into a JobFuture.
func NewJobFuture(ctx context.Context) JobFuture { return jobFuture{ctx: ctx} }

func (j jobFuture) Done() <-chan struct{} { return j.ctx.Done() }
func (j jobFuture) IsDone() bool {
	select {
	case <-j.ctx.Done():
		return true
	default:
		return false
	}
}
func (j jobFuture) Err() error { return j.ctx.Err() }
