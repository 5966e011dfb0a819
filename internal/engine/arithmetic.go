package engine

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// execArithmetic dispatches the numeric/comparison opcodes that carry no
// immediates and take their operands from the value stack. Integer
// arithmetic wraps using Go's native two's-complement behavior per
// spec.md §4.6; division and remainder trap through numeric.go's
// explicit checks.
func (e *Engine) execArithmetic(frame *ExecutionFrame, instr wasmir.Instruction) error {
	switch instr.Op {
	case wasmir.OpI32Add, wasmir.OpI32Sub, wasmir.OpI32Mul, wasmir.OpI32DivS, wasmir.OpI32DivU,
		wasmir.OpI32RemS, wasmir.OpI32RemU, wasmir.OpI32And, wasmir.OpI32Or, wasmir.OpI32Xor,
		wasmir.OpI32Shl, wasmir.OpI32ShrS, wasmir.OpI32ShrU,
		wasmir.OpI32Eq, wasmir.OpI32Ne, wasmir.OpI32LtS, wasmir.OpI32LtU, wasmir.OpI32GeS, wasmir.OpI32GeU:
		return execI32Binop(frame, instr.Op)

	case wasmir.OpI64Add, wasmir.OpI64Sub, wasmir.OpI64Mul, wasmir.OpI64DivS, wasmir.OpI64DivU,
		wasmir.OpI64RemS, wasmir.OpI64RemU:
		return execI64Binop(frame, instr.Op)

	case wasmir.OpF32Add, wasmir.OpF32Sub, wasmir.OpF32Mul, wasmir.OpF32Div:
		return execF32Binop(frame, instr.Op)

	case wasmir.OpF64Add, wasmir.OpF64Sub, wasmir.OpF64Mul, wasmir.OpF64Div:
		return execF64Binop(frame, instr.Op)

	default:
		return rterr.ErrUnsupported()
	}
}

func boolSlot(b bool) uint64 {
	if b {
		return i32ToSlot(1)
	}
	return i32ToSlot(0)
}

func execI32Binop(frame *ExecutionFrame, op wasmir.Opcode) error {
	bSlot, err := frame.pop()
	if err != nil {
		return err
	}
	aSlot, err := frame.pop()
	if err != nil {
		return err
	}
	a, b := slotToI32(aSlot), slotToI32(bSlot)
	ua, ub := uint32(a), uint32(b)
	var result uint64
	switch op {
	case wasmir.OpI32Add:
		result = i32ToSlot(a + b)
	case wasmir.OpI32Sub:
		result = i32ToSlot(a - b)
	case wasmir.OpI32Mul:
		result = i32ToSlot(a * b)
	case wasmir.OpI32DivS:
		v, err := i32DivS(a, b)
		if err != nil {
			return err
		}
		result = i32ToSlot(v)
	case wasmir.OpI32DivU:
		v, err := i32DivU(ua, ub)
		if err != nil {
			return err
		}
		result = i32ToSlot(int32(v))
	case wasmir.OpI32RemS:
		v, err := i32RemS(a, b)
		if err != nil {
			return err
		}
		result = i32ToSlot(v)
	case wasmir.OpI32RemU:
		v, err := i32RemU(ua, ub)
		if err != nil {
			return err
		}
		result = i32ToSlot(int32(v))
	case wasmir.OpI32And:
		result = i32ToSlot(a & b)
	case wasmir.OpI32Or:
		result = i32ToSlot(a | b)
	case wasmir.OpI32Xor:
		result = i32ToSlot(a ^ b)
	case wasmir.OpI32Shl:
		result = i32ToSlot(a << (ub & 31))
	case wasmir.OpI32ShrS:
		result = i32ToSlot(a >> (ub & 31))
	case wasmir.OpI32ShrU:
		result = i32ToSlot(int32(ua >> (ub & 31)))
	case wasmir.OpI32Eq:
		result = boolSlot(a == b)
	case wasmir.OpI32Ne:
		result = boolSlot(a != b)
	case wasmir.OpI32LtS:
		result = boolSlot(a < b)
	case wasmir.OpI32LtU:
		result = boolSlot(ua < ub)
	case wasmir.OpI32GeS:
		result = boolSlot(a >= b)
	case wasmir.OpI32GeU:
		result = boolSlot(ua >= ub)
	default:
		return rterr.ErrUnsupported()
	}
	return frame.push(result)
}

func execI64Binop(frame *ExecutionFrame, op wasmir.Opcode) error {
	bSlot, err := frame.pop()
	if err != nil {
		return err
	}
	aSlot, err := frame.pop()
	if err != nil {
		return err
	}
	a, b := slotToI64(aSlot), slotToI64(bSlot)
	ua, ub := uint64(a), uint64(b)
	var result uint64
	switch op {
	case wasmir.OpI64Add:
		result = i64ToSlot(a + b)
	case wasmir.OpI64Sub:
		result = i64ToSlot(a - b)
	case wasmir.OpI64Mul:
		result = i64ToSlot(a * b)
	case wasmir.OpI64DivS:
		v, err := i64DivS(a, b)
		if err != nil {
			return err
		}
		result = i64ToSlot(v)
	case wasmir.OpI64DivU:
		v, err := i64DivU(ua, ub)
		if err != nil {
			return err
		}
		result = i64ToSlot(int64(v))
	case wasmir.OpI64RemS:
		v, err := i64RemS(a, b)
		if err != nil {
			return err
		}
		result = i64ToSlot(v)
	case wasmir.OpI64RemU:
		v, err := i64RemU(ua, ub)
		if err != nil {
			return err
		}
		result = i64ToSlot(int64(v))
	default:
		return rterr.ErrUnsupported()
	}
	return frame.push(result)
}

func execF32Binop(frame *ExecutionFrame, op wasmir.Opcode) error {
	bSlot, err := frame.pop()
	if err != nil {
		return err
	}
	aSlot, err := frame.pop()
	if err != nil {
		return err
	}
	a, b := slotToF32(aSlot), slotToF32(bSlot)
	var result float32
	switch op {
	case wasmir.OpF32Add:
		result = a + b
	case wasmir.OpF32Sub:
		result = a - b
	case wasmir.OpF32Mul:
		result = a * b
	case wasmir.OpF32Div:
		result = a / b
	default:
		return rterr.ErrUnsupported()
	}
	return frame.push(f32ToSlot(result))
}

func execF64Binop(frame *ExecutionFrame, op wasmir.Opcode) error {
	bSlot, err := frame.pop()
	if err != nil {
		return err
	}
	aSlot, err := frame.pop()
	if err != nil {
		return err
	}
	a, b := slotToF64(aSlot), slotToF64(bSlot)
	var result float64
	switch op {
	case wasmir.OpF64Add:
		result = a + b
	case wasmir.OpF64Sub:
		result = a - b
	case wasmir.OpF64Mul:
		result = a * b
	case wasmir.OpF64Div:
		result = a / b
	default:
		return rterr.ErrUnsupported()
	}
	return frame.push(f64ToSlot(result))
}
