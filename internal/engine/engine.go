package engine

import (
	"math"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Engine is the stackless interpreter. It holds no per-call state itself
// (all of that lives in Execution/ExecutionFrame); the Engine only
// supplies the shared services — memory, safety — that instantiation and
// dispatch consult.
type Engine struct {
	factory *memory.Factory
	safety  *safety.Context
	log     *obs.Logger
}

// New constructs an Engine over the given memory factory and safety
// context. log may be nil.
func New(factory *memory.Factory, sc *safety.Context, log *obs.Logger) *Engine {
	if log == nil {
		log = obs.Discard()
	}
	return &Engine{factory: factory, safety: sc, log: log}
}

// Execution is one in-flight call chain: an explicit frame stack plus the
// results slot populated once the outermost frame returns. The frame
// stack is what makes this interpreter "stackless" with respect to the
// Go call stack — a guest-to-guest call pushes a frame instead of
// recursing, so Step/Resume can pause between any two instructions.
type Execution struct {
	frames  []*ExecutionFrame
	pool    *framePool
	results []uint64
	done    bool
}

// Results returns the outermost call's return values, valid once the
// Execution has finished.
func (ex *Execution) Results() []uint64 { return ex.results }

// Done reports whether the outermost call has returned.
func (ex *Execution) Done() bool { return ex.done }

// analysisCache memoizes per-function jump-target analysis so repeated
// calls to the same function don't re-scan its body.
type analysisCache struct {
	byFunc map[wasmir.Index]jumpTargets
}

// Instantiate links mod against scope-allocated state: global
// initializers are evaluated, tables and the linear memory are
// allocated and populated from element/data segments, and the start
// function (if any) is run to completion before Instantiate returns.
func (e *Engine) Instantiate(mod *wasmir.Module, scope *memory.Scope) (*ModuleInstance, error) {
	mi := &ModuleInstance{Module: mod, scope: scope, exports: make(map[string]wasmir.Export, len(mod.Exports))}

	mi.Globals = make([]uint64, len(mod.Globals))
	for i, g := range mod.Globals {
		v, err := evalConstExpr(g.Init)
		if err != nil {
			return nil, err
		}
		mi.Globals[i] = v
	}

	mi.Tables = make([]*table, len(mod.Tables))
	for i, tt := range mod.Tables {
		t, err := newTable(scope, tt)
		if err != nil {
			return nil, err
		}
		mi.Tables[i] = t
	}

	if len(mod.Memories) > 0 {
		lm, err := newLinearMemory(scope, mod.Memories[0])
		if err != nil {
			return nil, err
		}
		mi.Memory = lm
	}

	for _, el := range mod.Elements {
		if int(el.TableIndex) >= len(mi.Tables) {
			return nil, rterr.ErrUnknownIndex()
		}
		offsetVal, err := evalConstExpr(el.Offset)
		if err != nil {
			return nil, err
		}
		offset := int(slotToI32(offsetVal))
		t := mi.Tables[el.TableIndex]
		for i, fi := range el.FuncIndexes {
			idx := offset + i
			if idx < 0 || idx >= len(t.elems) {
				return nil, rterr.ErrMemoryOutOfBounds()
			}
			t.elems[idx] = int32(fi)
		}
	}

	for _, d := range mod.DataSegs {
		if mi.Memory == nil {
			return nil, rterr.ErrUnknownIndex()
		}
		offsetVal, err := evalConstExpr(d.Offset)
		if err != nil {
			return nil, err
		}
		offset := uint32(slotToI32(offsetVal))
		if err := mi.Memory.checkBounds(offset, uint32(len(d.Bytes))); err != nil {
			return nil, err
		}
		copy(mi.Memory.bytes[offset:], d.Bytes)
	}

	for _, exp := range mod.Exports {
		mi.exports[exp.Name] = exp
	}

	if mod.Start != nil {
		fuel := uint64(math.MaxUint64)
		if _, err := e.Call(mi, *mod.Start, nil, &fuel); err != nil {
			return nil, err
		}
	}

	return mi, nil
}

// evalConstExpr evaluates the restricted single-instruction constant
// expressions used by global initializers and element/data offsets
// (spec.md's const-expr subset: *Const, and GlobalGet of an imported
// immutable global — the latter is not yet supported pending host-global
// wiring and fails closed with System/Unsupported).
func evalConstExpr(instr wasmir.Instruction) (uint64, error) {
	switch instr.Op {
	case wasmir.OpI32Const:
		return i32ToSlot(instr.I32), nil
	case wasmir.OpI64Const:
		return i64ToSlot(instr.I64), nil
	case wasmir.OpF32Const:
		return f32ToSlot(instr.F32), nil
	case wasmir.OpF64Const:
		return f64ToSlot(instr.F64), nil
	default:
		return 0, rterr.ErrUnsupported()
	}
}

// Call runs fnIndex to completion against inst, consuming from fuel; any
// failure is a typed rterr.Error. A caller wanting to pause on fuel exhaustion should
// use NewExecution/Resume directly instead.
func (e *Engine) Call(inst *ModuleInstance, fnIndex wasmir.Index, args []uint64, fuel *uint64) ([]uint64, error) {
	ex, err := e.NewExecution(inst, fnIndex, args)
	if err != nil {
		return nil, err
	}
	if _, err := e.Resume(ex, fuel); err != nil {
		return nil, err
	}
	return ex.results, nil
}

// NewExecution constructs a paused Execution ready to run fnIndex with
// args as its initial locals. A single frame pool is allocated here,
// once, for the task's entire run (see framePool).
func (e *Engine) NewExecution(inst *ModuleInstance, fnIndex wasmir.Index, args []uint64) (*Execution, error) {
	pool, err := newFramePool(inst)
	if err != nil {
		return nil, err
	}
	ex := &Execution{pool: pool}
	frame, err := e.pushCall(ex, inst, fnIndex, args)
	if err != nil {
		return nil, err
	}
	ex.frames = []*ExecutionFrame{frame}
	return ex, nil
}

// pushCall acquires the ExecutionFrame for a call to fnIndex from ex's
// frame pool (imported functions are rejected here — the component/host
// layer intercepts cross-boundary calls before they reach the core
// engine).
func (e *Engine) pushCall(ex *Execution, inst *ModuleInstance, fnIndex wasmir.Index, args []uint64) (*ExecutionFrame, error) {
	localIdx := int(fnIndex) - inst.Module.FuncImportCount()
	if localIdx < 0 || localIdx >= len(inst.Module.Functions) {
		return nil, rterr.ErrUnknownIndex()
	}
	fn := inst.Module.Functions[localIdx]
	ft, ok := inst.Module.TypeOf(fnIndex)
	if !ok {
		return nil, rterr.ErrUnknownIndex()
	}
	if len(args) != len(ft.Params) {
		return nil, rterr.ErrTypeMismatch()
	}
	jumps, err := analyzeJumps(fn.Body)
	if err != nil {
		return nil, err
	}
	locals := make([]uint64, len(ft.Params)+len(fn.Locals))
	copy(locals, args)
	return ex.pool.acquire(len(ex.frames), inst, fnIndex, locals, len(ft.Results), jumps)
}

// Resume drives Step until the Execution finishes, traps, or fuel runs
// out.
func (e *Engine) Resume(ex *Execution, fuel *uint64) (finished bool, err error) {
	for {
		finished, err = e.Step(ex, fuel)
		if finished || err != nil {
			return finished, err
		}
	}
}
