package engine

import (
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Conservative, fixed execution-time ceilings (distinct from the
// decoder's ASIL-tiered Limits, which bound the static module). A single
// activation frame never needs more than this; exceeding either is a
// guest programming error surfaced as a trap rather than a silent
// reallocation, consistent with spec.md §4.4's "no bounded container
// resizes" rule applied to runtime state as well as decoded IR.
const (
	maxValueStackDepth = 1024
	maxLabelDepth       = 256
	maxLocalsPerFrame   = 256

	// maxCallDepth bounds the frame stack itself (spec.md §3 "Calls push
	// ExecutionFrames onto a bounded frame stack"). A call that would push
	// past this ceiling traps with Runtime/StackOverflow instead of
	// growing the stack, the same closed-world discipline applied to
	// every other bounded container in this engine.
	maxCallDepth = 64
)

// label is a structured-control-flow entry on a frame's label stack.
type label struct {
	StackDepth     int  // operand-stack depth at which this block's params begin
	Arity          int  // number of values the block/function produces
	IsLoop         bool
	ContinuationIP int // Block/If: index of the matching End+1; Loop: index of the instruction after the Loop
}

// ExecutionFrame is one activation record on the engine's explicit frame
// stack (spec.md §3 "Stackless engine"): no Go call-stack recursion
// backs a guest-to-guest call, so execution can be paused between any
// two instructions and resumed later by the scheduler.
type ExecutionFrame struct {
	Instance    *ModuleInstance
	FnIndex     wasmir.Index
	IP          int
	Locals      *memory.BoundedVec[uint64]
	ValueStack  *memory.BoundedVec[uint64]
	LabelStack  *memory.BoundedVec[label]
	ReturnArity int
	jumps       jumpTargets
}

// framePool preallocates maxCallDepth activation slots once per task
// (at NewExecution time) instead of allocating a frame's Locals/
// ValueStack/LabelStack out of the arena on every call: a guest-to-guest
// call must not allocate outside the bump arena on the engine's hottest
// path (spec.md §1/§4.1), and a scope held open for an entire module
// instance's lifetime cannot afford an unreclaimed allocation per call.
// Pushing a call acquires the next depth's slot and resets it in place;
// returning does not free anything, it simply stops referencing the
// slot, so the pool's allocations (three per slot) are all made once, up
// front, for the task's entire run, however many calls or loop iterations
// it performs.
type framePool struct {
	slots [maxCallDepth]*ExecutionFrame
}

// newFramePool allocates every slot's backing storage from a single
// Provider wrapping inst's own scope, once, up front.
func newFramePool(inst *ModuleInstance) (*framePool, error) {
	p := memory.NewBumpProvider(inst.scope, memory.DefaultModuleScopeBudget)
	pool := &framePool{}
	for i := range pool.slots {
		locals, err := memory.NewBoundedVec[uint64](p, maxLocalsPerFrame)
		if err != nil {
			return nil, err
		}
		valueStack, err := memory.NewBoundedVec[uint64](p, maxValueStackDepth)
		if err != nil {
			return nil, err
		}
		labelStack, err := memory.NewBoundedVec[label](p, maxLabelDepth)
		if err != nil {
			return nil, err
		}
		pool.slots[i] = &ExecutionFrame{Instance: inst, Locals: locals, ValueStack: valueStack, LabelStack: labelStack}
	}
	return pool, nil
}

// acquire resets and returns the slot for the given 0-based call depth,
// failing with Runtime/StackOverflow once depth reaches maxCallDepth or
// locals exceeds a single frame's fixed local-variable ceiling.
func (p *framePool) acquire(depth int, inst *ModuleInstance, fnIndex wasmir.Index, locals []uint64, returnArity int, jumps jumpTargets) (*ExecutionFrame, error) {
	if depth >= maxCallDepth {
		return nil, errStackOverflow()
	}
	if len(locals) > maxLocalsPerFrame {
		return nil, errStackOverflow()
	}
	f := p.slots[depth]
	f.Instance = inst
	f.FnIndex = fnIndex
	f.IP = 0
	f.ReturnArity = returnArity
	f.jumps = jumps
	f.Locals.Truncate(0)
	f.ValueStack.Truncate(0)
	f.LabelStack.Truncate(0)
	for _, v := range locals {
		_ = f.Locals.Push(v)
	}
	return f, nil
}

// body returns the function's decoded instruction sequence.
func (f *ExecutionFrame) body() []wasmir.Instruction {
	localIdx := int(f.FnIndex) - f.Instance.Module.FuncImportCount()
	return f.Instance.Module.Functions[localIdx].Body
}

func (f *ExecutionFrame) push(v uint64) error { return f.ValueStack.Push(v) }

func (f *ExecutionFrame) pop() (uint64, error) {
	v, ok := f.ValueStack.Pop()
	if !ok {
		return 0, errStackUnderflow()
	}
	return v, nil
}
