package scheduler

import (
	"container/heap"
	"sync"

	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// quantumFuel bounds how much fuel a single scheduling round spends on
// one task before yielding to the next ready task, giving round-robin
// preemption among equal-priority tasks instead of one task running to
// completion or fuel exhaustion uninterrupted.
const quantumFuel = 64

// Scheduler is the process's single cooperative scheduler instance. All
// of its methods assume single-threaded use from the runtime's driving
// goroutine (spec.md §3.7: "single-threaded cooperative scheduler");
// the mutex exists only to let Cancel/Join be called from a different
// goroutine than the one driving Run.
type Scheduler struct {
	mu sync.Mutex

	eng *engine.Engine
	sc  *safety.Context
	log *obs.Logger

	ready   readyHeap
	tasks   map[TaskID]*Task
	waiting map[ResourceID][]TaskID
	holders map[ResourceID]TaskID

	nextID uint64

	globalFuel uint64
	paused     bool

	// maxTasks bounds the cumulative number of tasks this scheduler will
	// ever register, since s.tasks keeps a Done/Canceled/Faulted task's
	// record around for later Join/Snapshot calls rather than evicting it
	// (spec.md §6 "max_tasks"; SPEC_FULL.md config section). 0 means
	// unbounded, matching a zero-valued Scheduler built without New.
	maxTasks int
}

// New constructs a Scheduler driving eng, consulting sc for ASIL-aware
// policy decisions and logging through log (nil defaults to discard).
// maxTasks caps the cumulative number of tasks Spawn/SpawnChild will
// register over the scheduler's lifetime; 0 means unbounded.
func New(eng *engine.Engine, sc *safety.Context, log *obs.Logger, globalFuel uint64, maxTasks int) *Scheduler {
	if log == nil {
		log = obs.Discard()
	}
	return &Scheduler{
		eng:        eng,
		sc:         sc,
		log:        log,
		tasks:      make(map[TaskID]*Task),
		waiting:    make(map[ResourceID][]TaskID),
		holders:    make(map[ResourceID]TaskID),
		globalFuel: globalFuel,
		maxTasks:   maxTasks,
	}
}

// Spawn creates a new task calling inst's fnIndex with args, scheduled
// under policy at priority/deadline with its own fuel budget, and
// enqueues it ready to run. parent is TaskID(0) for a task with no
// spawning task (spec.md §6's top-level spawn(...)); SpawnChild spawns
// a task recorded as parent's child instead.
func (s *Scheduler) Spawn(inst *engine.ModuleInstance, fnIndex wasmir.Index, args []uint64, policy Policy, priority int, deadline uint64, fuel uint64) (TaskID, error) {
	return s.spawn(inst, fnIndex, args, policy, priority, deadline, fuel, 0)
}

// SpawnChild is Spawn with the new task recorded as parent's child, so
// Cancel(parent) cancels it first in post-order (spec.md §3 "parent?,
// children[]"; spec.md §8 "children are cancelled first").
func (s *Scheduler) SpawnChild(parent TaskID, inst *engine.ModuleInstance, fnIndex wasmir.Index, args []uint64, policy Policy, priority int, deadline uint64, fuel uint64) (TaskID, error) {
	return s.spawn(inst, fnIndex, args, policy, priority, deadline, fuel, parent)
}

func (s *Scheduler) spawn(inst *engine.ModuleInstance, fnIndex wasmir.Index, args []uint64, policy Policy, priority int, deadline uint64, fuel uint64, parent TaskID) (TaskID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parent != 0 {
		if _, ok := s.tasks[parent]; !ok {
			return 0, rterr.ErrUnknownIndex()
		}
	}
	if s.maxTasks > 0 && len(s.tasks) >= s.maxTasks {
		return 0, rterr.ErrCapacityExceeded()
	}

	s.nextID++
	id := TaskID(s.nextID)
	t, err := newTask(id, s.eng, inst, fnIndex, args, priority, deadline, policy, s.sc.CurrentLevel(), fuel, parent)
	if err != nil {
		return 0, err
	}
	s.tasks[id] = t
	heap.Push(&s.ready, t)
	if parent != 0 {
		pt := s.tasks[parent]
		pt.Children = append(pt.Children, id)
	}
	return id, nil
}

// RefillGlobalFuel adds amount to the global fuel ceiling and, if the
// scheduler was paused on exhaustion, un-pauses every paused task back
// to ready.
func (s *Scheduler) RefillGlobalFuel(amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalFuel += amount
	if s.paused && s.globalFuel > 0 {
		s.paused = false
		for _, t := range s.tasks {
			if t.State == StatePaused {
				t.State = StateReady
				heap.Push(&s.ready, t)
			}
		}
	}
}

// Run drains the ready queue in priority/deadline order, running each
// task for up to one fuel quantum per round, until the ready queue is
// empty or the global fuel ceiling pauses everything.
func (s *Scheduler) Run() error {
	for {
		s.mu.Lock()
		if s.paused || s.ready.Len() == 0 {
			s.mu.Unlock()
			return nil
		}
		t := heap.Pop(&s.ready).(*Task)
		t.State = StateRunning
		s.mu.Unlock()

		s.runQuantum(t)

		s.mu.Lock()
		switch t.State {
		case StateRunning:
			t.State = StateReady
			heap.Push(&s.ready, t)
		case StateReady:
			heap.Push(&s.ready, t)
		}
		s.mu.Unlock()
	}
}

// runQuantum executes t for up to quantumFuel fuel (bounded further by
// its own remaining budget and the scheduler's global fuel), leaving it
// in StateDone/StateFaulted on completion/trap, StateWaiting if it
// blocked (not modeled at the engine level yet — reserved for future
// host-call integration), or StateRunning/StateReady if it simply used
// its quantum and has more work to do.
func (s *Scheduler) runQuantum(t *Task) {
	s.mu.Lock()
	slice := quantumFuel
	if t.Fuel < uint64(slice) {
		slice = int(t.Fuel)
	}
	if s.globalFuel < uint64(slice) {
		slice = int(s.globalFuel)
	}
	s.mu.Unlock()

	if slice <= 0 {
		s.mu.Lock()
		t.State = StatePaused
		s.paused = true
		s.mu.Unlock()
		s.log.GlobalFuelExhausted(1)
		return
	}

	fuel := uint64(slice)
	finished, err := s.eng.Resume(t.exec, &fuel)
	spent := uint64(slice) - fuel

	s.mu.Lock()
	t.Fuel -= spent
	s.globalFuel -= spent
	s.mu.Unlock()

	if err != nil {
		if rterr.Is(err, rterr.Runtime, rterr.RuntimeFuelExhausted) && t.Fuel == 0 {
			s.mu.Lock()
			t.State = StateFaulted
			t.Err = rterr.ErrFuelExhausted()
			s.mu.Unlock()
			s.log.TaskFaulted(uint64(t.ID), "per-task fuel exhausted")
			return
		}
		if rterr.Is(err, rterr.Runtime, rterr.RuntimeFuelExhausted) {
			// Quantum fuel ran out before the task's own budget did;
			// simply reschedule.
			t.State = StateReady
			return
		}
		t.State = StateFaulted
		t.Err = err
		s.log.TaskFaulted(uint64(t.ID), err.Error())
		return
	}
	if finished {
		t.State = StateDone
		t.Result = t.exec.Results()
		return
	}
	t.State = StateReady
}

// Cancel marks id canceled, removing it from the ready queue or waiting
// set. Every descendant of id is canceled first, depth-first, before id
// itself (spec.md §3 "children are cancelled first (post-order
// cleanup)", §8 "cancellation completeness"). Cancellation is
// cooperative-complete: a task can only be observed in StateCanceled by
// Join after it has actually stopped receiving scheduling time.
func (s *Scheduler) Cancel(id TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return rterr.ErrUnknownIndex()
	}
	s.cancelPostOrderLocked(id)
	return nil
}

func (s *Scheduler) cancelPostOrderLocked(id TaskID) {
	t, ok := s.tasks[id]
	if !ok {
		return
	}
	for _, child := range t.Children {
		s.cancelPostOrderLocked(child)
	}
	if t.State == StateDone || t.State == StateFaulted || t.State == StateCanceled {
		return
	}
	if t.WaitingOn != 0 {
		s.removeWaiterLocked(t.WaitingOn, id)
	}
	if t.heapIndex >= 0 {
		heap.Remove(&s.ready, t.heapIndex)
	}
	t.State = StateCanceled
}

// WaitUntilIdle runs the scheduler until both the ready queue and the
// waiting set are empty (every task has finished, faulted, or been
// canceled), or until global fuel exhaustion pauses it first.
func (s *Scheduler) WaitUntilIdle() error {
	for {
		if err := s.Run(); err != nil {
			return err
		}
		s.mu.Lock()
		idle := s.ready.Len() == 0 && len(s.waiting) == 0
		paused := s.paused
		s.mu.Unlock()
		if idle || paused {
			return nil
		}
	}
}

// Join drives the scheduler until id reaches a terminal state, then
// returns its result (or the error it faulted/was canceled with).
func (s *Scheduler) Join(id TaskID) ([]uint64, error) {
	for {
		s.mu.Lock()
		t, ok := s.tasks[id]
		if !ok {
			s.mu.Unlock()
			return nil, rterr.ErrUnknownIndex()
		}
		switch t.State {
		case StateDone:
			s.mu.Unlock()
			return t.Result, nil
		case StateFaulted:
			s.mu.Unlock()
			return nil, t.Err
		case StateCanceled:
			s.mu.Unlock()
			return nil, rterr.New(rterr.Runtime, rterr.RuntimeTrap, "task canceled")
		}
		paused := s.paused
		s.mu.Unlock()
		if paused {
			return nil, rterr.ErrGlobalFuelExhausted()
		}
		if err := s.Run(); err != nil {
			return nil, err
		}
	}
}

// WaitOn transitions id from running to waiting on resourceID. If the
// resource is currently held by a lower-priority task, that holder's
// priority is boosted to id's priority for the duration of the wait
// (priority inheritance, spec.md §3.7).
func (s *Scheduler) WaitOn(id TaskID, resourceID ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return rterr.ErrUnknownIndex()
	}
	t.State = StateWaiting
	t.WaitingOn = resourceID
	s.waiting[resourceID] = append(s.waiting[resourceID], id)

	if holderID, ok := s.holders[resourceID]; ok {
		if holder := s.tasks[holderID]; holder != nil && t.Priority < holder.Priority {
			if !holder.boosted {
				holder.origPriority = holder.Priority
				holder.boosted = true
			}
			holder.Priority = t.Priority
			s.ready.fix(holder)
		}
	}
	return nil
}

// Acquire records id as resourceID's holder, used by callers (component
// resource tables, host mutex emulation) that model resourceID as
// exclusively owned.
func (s *Scheduler) Acquire(id TaskID, resourceID ResourceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holders[resourceID] = id
}

// Release wakes every task waiting on resourceID back to ready, and
// restores any priority boost granted to the outgoing holder via
// inheritance.
func (s *Scheduler) Release(resourceID ResourceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if holderID, ok := s.holders[resourceID]; ok {
		if holder := s.tasks[holderID]; holder != nil && holder.boosted {
			holder.Priority = holder.origPriority
			holder.boosted = false
			s.ready.fix(holder)
		}
		delete(s.holders, resourceID)
	}

	waiters := s.waiting[resourceID]
	delete(s.waiting, resourceID)
	for _, wid := range waiters {
		if wt := s.tasks[wid]; wt != nil && wt.State == StateWaiting {
			wt.State = StateReady
			wt.WaitingOn = 0
			heap.Push(&s.ready, wt)
		}
	}
}

func (s *Scheduler) removeWaiterLocked(resourceID ResourceID, id TaskID) {
	waiters := s.waiting[resourceID]
	for i, wid := range waiters {
		if wid == id {
			s.waiting[resourceID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(s.waiting[resourceID]) == 0 {
		delete(s.waiting, resourceID)
	}
}

// Snapshot returns the task's current state and result, primarily for
// tests and host-facing introspection.
func (s *Scheduler) Snapshot(id TaskID) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}
