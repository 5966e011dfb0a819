// Package scheduler implements the single-threaded cooperative task
// scheduler (spec.md §3 "Scheduler"): a priority/deadline-ordered ready
// queue, a resource-keyed waiting set with priority inheritance, and
// per-task plus global fuel accounting with pause-not-cancel semantics
// on global exhaustion.
package scheduler

import (
	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// TaskID identifies a spawned task for its lifetime.
type TaskID uint64

// ResourceID identifies a contended resource a task can wait on (a
// mutex, a bounded channel slot, a component resource handle). The
// scheduler only needs identity and ordering over these, not their
// meaning.
type ResourceID uint64

// Policy is the ASIL-aware scheduling policy assigned to a task at
// spawn time (spec.md §4.1's per-module ASIL level drives which
// policies are available to it). The Scheduler records Policy on the
// Task but orders and runs tasks by Priority and Deadline only; it does
// not consult Policy, so no policy restricts allocation or host calls
// during a step or changes how a task is scheduled.
type Policy uint8

const (
	// BestEffort is the QM/A policy.
	BestEffort Policy = iota
	// BoundedLatency is the ASIL-B policy.
	BoundedLatency
	// DeterministicBudget is the ASIL-C policy.
	DeterministicBudget
	// IsolatedDeterministic is the ASIL-D policy.
	IsolatedDeterministic
)

// State is a task's lifecycle state.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateWaiting
	StatePaused
	StateDone
	StateCanceled
	StateFaulted
)

// Task is one spawned unit of execution: an engine Execution plus the
// scheduling metadata (priority, deadline, policy, fuel) the ready heap
// and waiting set order it by.
type Task struct {
	ID       TaskID
	Priority int // lower value = higher priority
	Deadline uint64
	Policy   Policy
	Asil     safety.AsilLevel
	State    State

	Fuel uint64 // remaining per-task fuel budget

	exec *engine.Execution

	// Parent is the task that spawned this one, or 0 for a task spawned
	// directly by the embedder (spec.md §3 Task.parent?). Children is the
	// set of tasks this one has itself spawned, consulted by Cancel to
	// implement post-order cancellation (spec.md §8 "children are
	// cancelled first").
	Parent   TaskID
	Children []TaskID

	WaitingOn ResourceID

	// origPriority is the priority to restore when a priority boost
	// granted via inheritance is released.
	origPriority int
	boosted      bool

	Result []uint64
	Err    error

	heapIndex int
}

// newTask constructs a Task in StateReady wrapping a freshly built
// Execution for (inst, fnIndex, args). parent is 0 for a task with no
// spawning task.
func newTask(id TaskID, eng *engine.Engine, inst *engine.ModuleInstance, fnIndex wasmir.Index, args []uint64, priority int, deadline uint64, policy Policy, asil safety.AsilLevel, fuel uint64, parent TaskID) (*Task, error) {
	ex, err := eng.NewExecution(inst, fnIndex, args)
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:           id,
		Priority:     priority,
		origPriority: priority,
		Deadline:     deadline,
		Policy:       policy,
		Asil:         asil,
		State:        StateReady,
		Fuel:         fuel,
		exec:         ex,
		Parent:       parent,
		heapIndex:    -1,
	}, nil
}
