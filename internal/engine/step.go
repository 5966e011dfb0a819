package engine

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Step executes exactly one instruction of ex's active frame, checking
// its fixed fuel cost against *fuel before dispatch and deducting it once
// the instruction has completed (spec.md §4.6/§4.7). It returns (true, nil)
// once the outermost call has returned, and (false, err) on a trap,
// fuel exhaustion, or any other typed failure. On fuel exhaustion nothing
// has been mutated, so a Resume with more fuel continues at the same
// instruction; on a trap or other error, operands the failing instruction
// had already popped are not restored.
func (e *Engine) Step(ex *Execution, fuel *uint64) (finished bool, err error) {
	if ex.done {
		return true, nil
	}
	frame := ex.frames[len(ex.frames)-1]
	body := frame.body()
	if frame.IP >= len(body) {
		return e.unwindReturn(ex, frame)
	}
	instr := body[frame.IP]

	cost := instr.FuelCost()
	if *fuel < cost {
		return false, rterr.ErrFuelExhausted()
	}

	switch instr.Op {
	case wasmir.OpUnreachable:
		return false, rterr.ErrTrap("unreachable instruction executed")

	case wasmir.OpNop:
		frame.IP++

	case wasmir.OpBlock:
		if err := frame.LabelStack.Push(label{
			StackDepth:     frame.ValueStack.Len(),
			Arity:          instr.Arity,
			ContinuationIP: frame.jumps.matchEnd[frame.IP] + 1,
		}); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpLoop:
		if err := frame.LabelStack.Push(label{
			StackDepth:     frame.ValueStack.Len(),
			Arity:          instr.Arity,
			IsLoop:         true,
			ContinuationIP: frame.IP + 1,
		}); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpIf:
		cond, err := frame.pop()
		if err != nil {
			return false, err
		}
		endIdx := frame.jumps.matchEnd[frame.IP]
		elseIdx := frame.jumps.matchElse[frame.IP]
		if slotToI32(cond) != 0 {
			if err := frame.LabelStack.Push(label{
				StackDepth:     frame.ValueStack.Len(),
				Arity:          instr.Arity,
				ContinuationIP: endIdx + 1,
			}); err != nil {
				return false, err
			}
			frame.IP++
		} else if elseIdx >= 0 {
			if err := frame.LabelStack.Push(label{
				StackDepth:     frame.ValueStack.Len(),
				Arity:          instr.Arity,
				ContinuationIP: endIdx + 1,
			}); err != nil {
				return false, err
			}
			frame.IP = elseIdx + 1
		} else {
			frame.IP = endIdx + 1
		}

	case wasmir.OpElse:
		// Reached by falling through the end of a taken then-branch: the
		// block is complete, matching an ordinary End.
		if err := popLabelNormally(frame); err != nil {
			return false, err
		}
		frame.IP = frame.jumps.matchEnd[frame.IP] + 1

	case wasmir.OpEnd:
		if frame.LabelStack.Len() == 0 {
			*fuel -= cost
			return e.unwindReturn(ex, frame)
		}
		if err := popLabelNormally(frame); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpBr:
		if err := frame.branch(int(instr.Index)); err != nil {
			return false, err
		}

	case wasmir.OpBrIf:
		cond, err := frame.pop()
		if err != nil {
			return false, err
		}
		if slotToI32(cond) != 0 {
			if err := frame.branch(int(instr.Index)); err != nil {
				return false, err
			}
		} else {
			frame.IP++
		}

	case wasmir.OpBrTable:
		idx, err := frame.pop()
		if err != nil {
			return false, err
		}
		i := slotToI32(idx)
		depth := int(instr.Index2)
		if i >= 0 && int(i) < len(instr.Targets) {
			depth = int(instr.Targets[i])
		}
		if err := frame.branch(depth); err != nil {
			return false, err
		}

	case wasmir.OpReturn:
		*fuel -= cost
		return e.unwindReturn(ex, frame)

	case wasmir.OpCall:
		if err := e.dispatchCall(ex, frame, instr.Index); err != nil {
			return false, err
		}

	case wasmir.OpCallIndirect:
		if err := e.dispatchCallIndirect(ex, frame, instr.Index, instr.Index2); err != nil {
			return false, err
		}

	case wasmir.OpDrop:
		if _, err := frame.pop(); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpSelect:
		cond, err := frame.pop()
		if err != nil {
			return false, err
		}
		b, err := frame.pop()
		if err != nil {
			return false, err
		}
		a, err := frame.pop()
		if err != nil {
			return false, err
		}
		if slotToI32(cond) != 0 {
			if err := frame.push(a); err != nil {
				return false, err
			}
		} else {
			if err := frame.push(b); err != nil {
				return false, err
			}
		}
		frame.IP++

	case wasmir.OpLocalGet:
		v, ok := frame.Locals.Get(int(instr.Index))
		if !ok {
			return false, errBadLocalIndex()
		}
		if err := frame.push(v); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpLocalSet, wasmir.OpLocalTee:
		v, err := frame.pop()
		if err != nil {
			return false, err
		}
		if !frame.Locals.Set(int(instr.Index), v) {
			return false, errBadLocalIndex()
		}
		if instr.Op == wasmir.OpLocalTee {
			if err := frame.push(v); err != nil {
				return false, err
			}
		}
		frame.IP++

	case wasmir.OpGlobalGet:
		v, err := frame.Instance.Global(instr.Index)
		if err != nil {
			return false, err
		}
		if err := frame.push(v); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpGlobalSet:
		v, err := frame.pop()
		if err != nil {
			return false, err
		}
		if err := frame.Instance.SetGlobal(instr.Index, v); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpI32Load, wasmir.OpI64Load, wasmir.OpF32Load, wasmir.OpF64Load:
		if err := e.execLoad(frame, instr); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpI32Store, wasmir.OpI64Store, wasmir.OpF32Store, wasmir.OpF64Store:
		if err := e.execStore(frame, instr); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpMemorySize:
		if frame.Instance.Memory == nil {
			return false, rterr.ErrUnsupported()
		}
		if err := frame.push(i32ToSlot(int32(frame.Instance.Memory.pages()))); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpMemoryGrow:
		if frame.Instance.Memory == nil {
			return false, rterr.ErrUnsupported()
		}
		delta, err := frame.pop()
		if err != nil {
			return false, err
		}
		result, err := frame.Instance.Memory.Grow(uint32(slotToI32(delta)))
		if err != nil {
			return false, err
		}
		if err := frame.push(i32ToSlot(result)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpI32Const:
		if err := frame.push(i32ToSlot(instr.I32)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpI64Const:
		if err := frame.push(i64ToSlot(instr.I64)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpF32Const:
		if err := frame.push(f32ToSlot(instr.F32)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpF64Const:
		if err := frame.push(f64ToSlot(instr.F64)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpRefNull:
		if err := frame.push(i32ToSlot(nullFuncref)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpRefIsNull:
		v, err := frame.pop()
		if err != nil {
			return false, err
		}
		result := int32(0)
		if slotToI32(v) == nullFuncref {
			result = 1
		}
		if err := frame.push(i32ToSlot(result)); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpRefFunc:
		if err := frame.push(i32ToSlot(int32(instr.Index))); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpTableGet:
		idx, err := frame.pop()
		if err != nil {
			return false, err
		}
		t := frame.Instance.Tables[instr.Index]
		i := int(slotToI32(idx))
		if i < 0 || i >= len(t.elems) {
			return false, rterr.ErrMemoryOutOfBounds()
		}
		if err := frame.push(i32ToSlot(t.elems[i])); err != nil {
			return false, err
		}
		frame.IP++

	case wasmir.OpTableSet:
		val, err := frame.pop()
		if err != nil {
			return false, err
		}
		idx, err := frame.pop()
		if err != nil {
			return false, err
		}
		t := frame.Instance.Tables[instr.Index]
		i := int(slotToI32(idx))
		if i < 0 || i >= len(t.elems) {
			return false, rterr.ErrMemoryOutOfBounds()
		}
		t.elems[i] = slotToI32(val)
		frame.IP++

	case wasmir.OpCanonLift, wasmir.OpCanonLower, wasmir.OpCanonResourceNew,
		wasmir.OpCanonResourceDrop, wasmir.OpCanonResourceRep:
		// Canonical-ABI operations are dispatched by internal/component,
		// which wraps Step/Resume and intercepts these opcodes before
		// they would otherwise reach the core arithmetic/control dispatch
		// above; reaching here means a component-level function body was
		// handed directly to the core engine.
		return false, rterr.ErrUnsupported()

	default:
		if err := e.execArithmetic(frame, instr); err != nil {
			return false, err
		}
		frame.IP++
	}

	*fuel -= cost
	return ex.done, nil
}

// popLabelNormally pops the innermost label on ordinary (non-branching)
// control flow reaching its End/Else.
func popLabelNormally(frame *ExecutionFrame) error {
	if _, ok := frame.LabelStack.Pop(); !ok {
		return errBadBlockNesting()
	}
	return nil
}

// branch implements the br/br_if/br_table unwind: pop depth+1 labels
// (re-pushing the loop label if the target is a loop), truncate the
// value stack to the target label's entry depth, then restore its arity
// worth of result values before jumping to its continuation.
func (f *ExecutionFrame) branch(depth int) error {
	n := f.LabelStack.Len()
	if depth < 0 || depth >= n {
		return errBadBlockNesting()
	}
	targetIdx := n - 1 - depth
	lbl, ok := f.LabelStack.Get(targetIdx)
	if !ok {
		return errBadBlockNesting()
	}
	vals := make([]uint64, lbl.Arity)
	for i := lbl.Arity - 1; i >= 0; i-- {
		v, err := f.pop()
		if err != nil {
			return err
		}
		vals[i] = v
	}
	if lbl.IsLoop {
		f.LabelStack.Truncate(targetIdx + 1)
	} else {
		f.LabelStack.Truncate(targetIdx)
	}
	f.ValueStack.Truncate(lbl.StackDepth)
	for _, v := range vals {
		if err := f.push(v); err != nil {
			return err
		}
	}
	f.IP = lbl.ContinuationIP
	return nil
}

// unwindReturn pops the active frame, transferring its ReturnArity
// result values to the caller's frame (or to ex.results if this was the
// outermost call).
func (e *Engine) unwindReturn(ex *Execution, frame *ExecutionFrame) (bool, error) {
	results := make([]uint64, frame.ReturnArity)
	for i := frame.ReturnArity - 1; i >= 0; i-- {
		v, err := frame.pop()
		if err != nil {
			return false, err
		}
		results[i] = v
	}
	ex.frames = ex.frames[:len(ex.frames)-1]
	if len(ex.frames) == 0 {
		ex.results = results
		ex.done = true
		return true, nil
	}
	caller := ex.frames[len(ex.frames)-1]
	for _, v := range results {
		if err := caller.push(v); err != nil {
			return false, err
		}
	}
	caller.IP++
	return false, nil
}

func (e *Engine) dispatchCall(ex *Execution, frame *ExecutionFrame, fnIndex wasmir.Index) error {
	inst := frame.Instance
	if int(fnIndex) < inst.Module.FuncImportCount() {
		return rterr.ErrHostUnavailable()
	}
	ft, ok := inst.Module.TypeOf(fnIndex)
	if !ok {
		return rterr.ErrUnknownIndex()
	}
	args := make([]uint64, len(ft.Params))
	for i := len(ft.Params) - 1; i >= 0; i-- {
		v, err := frame.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	callee, err := e.pushCall(ex, inst, fnIndex, args)
	if err != nil {
		return err
	}
	ex.frames = append(ex.frames, callee)
	return nil
}

func (e *Engine) dispatchCallIndirect(ex *Execution, frame *ExecutionFrame, typeIdx, tableIdx wasmir.Index) error {
	inst := frame.Instance
	if int(tableIdx) >= len(inst.Tables) {
		return rterr.ErrUnknownIndex()
	}
	elemIdxVal, err := frame.pop()
	if err != nil {
		return err
	}
	t := inst.Tables[tableIdx]
	i := int(slotToI32(elemIdxVal))
	if i < 0 || i >= len(t.elems) || t.elems[i] == nullFuncref {
		return rterr.ErrTrap("call_indirect: undefined table element")
	}
	fnIndex := wasmir.Index(t.elems[i])
	actual, ok := inst.Module.TypeOf(fnIndex)
	if !ok {
		return rterr.ErrUnknownIndex()
	}
	if int(typeIdx) >= len(inst.Module.Types) {
		return rterr.ErrUnknownIndex()
	}
	expected := inst.Module.Types[typeIdx]
	if !actual.Equal(expected) {
		return rterr.ErrCFIViolation()
	}
	return e.dispatchCall(ex, frame, fnIndex)
}
