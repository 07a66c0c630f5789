// Package engine drives processors through the cooperative scheduling
// contract of spec.md section 5: a fixed-size worker pool round-robins
// cooperative operators, each occupying a worker only during a callback
// and returning within a soft time budget; non-cooperative operators
// each get a dedicated goroutine. Grounded on go/shuffle/ring.go's
// serve() select-loop (subscriber-channel vs. read-channel becomes
// inbox-filled vs. tick-timer here) and go/runtime/task.go's jittered
// heartbeat arithmetic, reused for the tryProcess tick cadence.
package engine

import (
	"math/rand"

	"github.com/riverwork/corestream/pkg/inbox"
	"github.com/riverwork/corestream/pkg/outbox"
	"github.com/riverwork/corestream/pkg/processor"
)

// taskState is the lifecycle position of one cooperative Task, mirroring
// the state machine in spec.md section 4.2: init -> running (process /
// tryProcess) -> completingEdges -> completing -> done.
type taskState int

const (
	stateRunning taskState = iota
	stateCompletingEdges
	stateCompleting
	stateDone
)

// Task is the non-generic scheduling handle a Pool round-robins. Each
// concrete Processor[In, Out] is adapted into a Task by
// NewCooperativeTask, which closes over the typed inboxes/outbox so the
// pool itself never needs type parameters.
type Task interface {
	Name() string
	// Step drives exactly one scheduling decision (one callback) and
	// reports whether further scheduling of this task should continue
	// this round and whether it is now finished.
	Step() (progressed bool, done bool, err error)
	IsCooperative() bool
	// CompleteUpstream marks one input ordinal as having reached EOF.
	CompleteUpstream(ordinal int)
	// BeginCompletion transitions the task from its running phase into
	// completeEdge/complete once the host (not this package, which owns
	// no transport) has observed every upstream ordinal reach EOF.
	BeginCompletion()
}

// edgeInbox pairs an inbox with the ordinal it is fed on, so a
// cooperative task can poll every input ordinal in turn.
type edgeInbox[In any] struct {
	ordinal int
	box     *inbox.Inbox[In]
}

// cooperativeTask adapts processor.Processor[In, Out] plus its inboxes
// and outbox into the non-generic Task interface.
type cooperativeTask[In, Out any] struct {
	name  string
	proc  processor.Processor[In, Out]
	edges []edgeInbox[In]
	out   *outbox.Outbox[Out]

	state         taskState
	edgeCursor    int
	edgesDone     []bool
	allEdgesDone  bool
}

// NewCooperativeTask builds a Task driving proc. edges lists every input
// ordinal's inbox in ordinal order.
func NewCooperativeTask[In, Out any](
	name string,
	proc processor.Processor[In, Out],
	edges []*inbox.Inbox[In],
	out *outbox.Outbox[Out],
) Task {
	var t = &cooperativeTask[In, Out]{name: name, proc: proc, out: out, edgesDone: make([]bool, len(edges))}
	for i, e := range edges {
		t.edges = append(t.edges, edgeInbox[In]{ordinal: i, box: e})
	}
	return t
}

func (t *cooperativeTask[In, Out]) Name() string          { return t.name }
func (t *cooperativeTask[In, Out]) IsCooperative() bool    { return t.proc.IsCooperative() }

func (t *cooperativeTask[In, Out]) Step() (bool, bool, error) {
	switch t.state {
	case stateRunning:
		return t.stepRunning()
	case stateCompletingEdges:
		return t.stepCompletingEdges()
	case stateCompleting:
		var done, err = t.proc.Complete()
		if err != nil {
			return false, false, err
		}
		if done {
			t.state = stateDone
			return true, true, nil
		}
		return true, false, nil
	default:
		return false, true, nil
	}
}

func (t *cooperativeTask[In, Out]) stepRunning() (bool, bool, error) {
	for _, e := range t.edges {
		if !e.box.IsEmpty() {
			if err := t.proc.Process(e.ordinal, e.box); err != nil {
				return false, false, processor.NewUserCodeFault(t.name, err)
			}
			return true, false, nil
		}
	}
	var progressed, err = t.proc.TryProcess()
	if err != nil {
		return false, false, processor.NewUserCodeFault(t.name, err)
	}
	return progressed, false, nil
}

// CompleteUpstream records that the upstream of ordinal reached EOF and
// sets allEdgesDone once every ordinal has been marked; it does not look
// at whether the inboxes are drained. The engine package has no notion
// of upstream EOF itself (that's a transport/host concern out of scope
// per spec.md section 1), so the host calls this.
func (t *cooperativeTask[In, Out]) CompleteUpstream(ordinal int) {
	t.edgesDone[ordinal] = true
	var all = true
	for _, done := range t.edgesDone {
		if !done {
			all = false
			break
		}
	}
	if all {
		t.allEdgesDone = true
	}
}

func (t *cooperativeTask[In, Out]) stepCompletingEdges() (bool, bool, error) {
	for t.edgeCursor < len(t.edges) {
		var ord = t.edges[t.edgeCursor].ordinal
		var done, err = t.proc.CompleteEdge(ord)
		if err != nil {
			return false, false, err
		}
		if !done {
			return true, false, nil
		}
		t.edgeCursor++
	}
	t.state = stateCompleting
	return true, false, nil
}

// BeginCompletion transitions the task into the completeEdge/complete
// phase once every upstream edge has signaled EOF and its inbox is
// drained. Called by the host driving the task, not by Step itself,
// since "all edges are done" is upstream-transport knowledge the engine
// doesn't own.
func (t *cooperativeTask[In, Out]) BeginCompletion() {
	if t.state == stateRunning {
		t.state = stateCompletingEdges
	}
}

// jitteredInterval returns base +/- up to 20% jitter, the same spread
// go/runtime/task.go's heartbeatLoop applies to avoid synchronized
// tryProcess ticks across many workers.
func jitteredInterval(base int64) int64 {
	var spread = base / 5
	if spread <= 0 {
		return base
	}
	return base - spread + rand.Int63n(2*spread+1)
}
