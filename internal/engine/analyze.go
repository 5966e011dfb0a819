// Package engine implements the stackless interpreter: a fuel-metered
// instruction dispatcher operating over an explicit frame stack rather
// than the Go call stack, so execution of a guest call can be paused at
// any instruction boundary and resumed later (spec.md §3 "Stackless
// engine", §4.6).
package engine

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// jumpTargets resolves the structured control-flow nesting of a function
// body once, at instantiation time, into a parallel array giving, for
// each Block/Loop/If/Else instruction, the index of its matching End (or,
// for If, its matching Else if present). This lets Step resolve branches
// and block exits by array lookup instead of re-scanning the body on
// every jump, mirroring wazero's own compile-time "meta" pass over a
// function body before interpretation.
type jumpTargets struct {
	matchEnd  []int // index -> index of matching End, for Block/Loop/If/Else
	matchElse []int // index -> index of matching Else, for If only (-1 if none)
}

func analyzeJumps(body []wasmir.Instruction) (jumpTargets, error) {
	jt := jumpTargets{
		matchEnd:  make([]int, len(body)),
		matchElse: make([]int, len(body)),
	}
	for i := range jt.matchEnd {
		jt.matchEnd[i] = -1
		jt.matchElse[i] = -1
	}

	type frame struct {
		openIdx  int
		elseIdx  int
		isIf     bool
	}
	var stack []frame
	for i, instr := range body {
		switch instr.Op {
		case wasmir.OpBlock, wasmir.OpLoop, wasmir.OpIf:
			stack = append(stack, frame{openIdx: i, elseIdx: -1, isIf: instr.Op == wasmir.OpIf})
		case wasmir.OpElse:
			if len(stack) == 0 || !stack[len(stack)-1].isIf {
				return jt, rterr.ErrTypeMismatch()
			}
			stack[len(stack)-1].elseIdx = i
		case wasmir.OpEnd:
			if len(stack) == 0 {
				return jt, rterr.ErrTypeMismatch()
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jt.matchEnd[top.openIdx] = i
			if top.elseIdx >= 0 {
				jt.matchEnd[top.elseIdx] = i
				jt.matchElse[top.openIdx] = top.elseIdx
			}
		}
	}
	if len(stack) != 0 {
		return jt, rterr.ErrTypeMismatch()
	}
	return jt, nil
}
