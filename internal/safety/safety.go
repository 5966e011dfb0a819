// Package safety implements the per-runtime safety context described in
// spec.md §3/§4.1: a monotonic ASIL level, per-category violation
// counters, and an enforcement mode consulted by the memory and scheduler
// subsystems. Mirrors wazero's internal/wasm.Features singleton-by-value
// pattern, generalized to mutable, explicitly-constructed state (see
// DESIGN.md on "global mutable state").
package safety

import (
	"sync"
	"sync/atomic"

	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
)

// AsilLevel is totally ordered: QM < A < B < C < D.
type AsilLevel uint8

const (
	QM AsilLevel = iota
	A
	B
	C
	D
)

func (l AsilLevel) String() string {
	switch l {
	case QM:
		return "QM"
	case A:
		return "A"
	case B:
		return "B"
	case C:
		return "C"
	case D:
		return "D"
	default:
		return "unknown"
	}
}

// EnforcementMode controls whether a safety-context operation that would
// otherwise be rejected (e.g. lowering the ASIL level) is permitted.
type EnforcementMode uint8

const (
	Strict EnforcementMode = iota
	Lenient
)

// ViolationCategory distinguishes violation counters. It deliberately
// reuses rterr.Category so the counters line up 1:1 with the error
// taxonomy a violation is reported under.
type ViolationCategory = rterr.Category

// historyDepth bounds the audit-trail ring buffer (supplemented feature,
// see SPEC_FULL.md §4).
const historyDepth = 64

// Snapshot is an immutable value copy of the safety context at a point in
// time, used for audit traces.
type Snapshot struct {
	Level         AsilLevel
	Enforcement   EnforcementMode
	Violations    map[ViolationCategory]uint64
	ActiveModules uint32
}

// Context is the process-wide (or, in tests, per-runtime) safety state.
// It is created before any memory operation and is safe for concurrent
// use: mutation is infrequent and protected by a short critical section,
// per spec.md §5.
type Context struct {
	mu            sync.Mutex
	level         AsilLevel
	enforcement   EnforcementMode
	activeModules uint32
	violations    [10]atomic.Uint64 // indexed by rterr.Category
	history       [historyDepth]Snapshot
	historyLen    int
	historyNext   int
	log           *obs.Logger
}

// New constructs a Context at the given initial level and enforcement
// mode. log may be nil, in which case safety events are not logged.
func New(initial AsilLevel, enforcement EnforcementMode, log *obs.Logger) *Context {
	if log == nil {
		log = obs.Discard()
	}
	return &Context{level: initial, enforcement: enforcement, log: log}
}

// CurrentLevel returns the current ASIL level.
func (c *Context) CurrentLevel() AsilLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// SetLevel attempts to move to newLevel, returning the prior level. The
// transition succeeds only if newLevel >= current, unless the context is
// in Lenient mode and no module is currently active.
func (c *Context) SetLevel(newLevel AsilLevel) (old AsilLevel, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old = c.level
	if newLevel < c.level {
		if !(c.enforcement == Lenient && c.activeModules == 0) {
			return old, rterr.ErrLevelLowerAttempt()
		}
	}
	c.level = newLevel
	c.recordSnapshotLocked()
	c.log.AsilTransition(old.String(), newLevel.String())
	return old, nil
}

// EnterModule marks a module active, preventing ASIL downgrades until the
// matching ExitModule call (or a Lenient-mode override).
func (c *Context) EnterModule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeModules++
}

// ExitModule reverses EnterModule.
func (c *Context) ExitModule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeModules > 0 {
		c.activeModules--
	}
}

// RecordViolation increments the strictly-monotonic counter for category
// and logs the event.
func (c *Context) RecordViolation(category ViolationCategory) {
	total := c.violations[category].Add(1)
	c.log.SafetyViolation(category.String(), total)
}

// ViolationCount returns the current counter value for category.
func (c *Context) ViolationCount(category ViolationCategory) uint64 {
	return c.violations[category].Load()
}

// Enforcement returns the configured enforcement mode.
func (c *Context) Enforcement() EnforcementMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enforcement
}

// Snapshot returns a value copy of the current state.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Context) snapshotLocked() Snapshot {
	v := make(map[ViolationCategory]uint64, len(c.violations))
	for i := range c.violations {
		if n := c.violations[i].Load(); n > 0 {
			v[ViolationCategory(i)] = n
		}
	}
	return Snapshot{Level: c.level, Enforcement: c.enforcement, Violations: v, ActiveModules: c.activeModules}
}

func (c *Context) recordSnapshotLocked() {
	c.history[c.historyNext] = c.snapshotLocked()
	c.historyNext = (c.historyNext + 1) % historyDepth
	if c.historyLen < historyDepth {
		c.historyLen++
	}
}

// History returns the bounded audit trail of safety-level transitions,
// oldest first.
func (c *Context) History() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Snapshot, c.historyLen)
	start := (c.historyNext - c.historyLen + historyDepth) % historyDepth
	for i := 0; i < c.historyLen; i++ {
		out[i] = c.history[(start+i)%historyDepth]
	}
	return out
}

// RequireAtLeast returns an error unless the current level is >= floor.
func (c *Context) RequireAtLeast(floor AsilLevel) error {
	if c.CurrentLevel() < floor {
		return rterr.ErrAsilTooLow()
	}
	return nil
}
