package engine

import (
	"encoding/binary"

	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

func (e *Engine) execLoad(frame *ExecutionFrame, instr wasmir.Instruction) error {
	if frame.Instance.Memory == nil {
		return rterr.ErrUnsupported()
	}
	addrVal, err := frame.pop()
	if err != nil {
		return err
	}
	addr := uint32(slotToI32(addrVal)) + instr.MemOffset

	var size uint32
	switch instr.Op {
	case wasmir.OpI32Load, wasmir.OpF32Load:
		size = 4
	case wasmir.OpI64Load, wasmir.OpF64Load:
		size = 8
	}
	if err := frame.Instance.Memory.checkBounds(addr, size); err != nil {
		return err
	}
	buf := frame.Instance.Memory.bytes[addr : addr+size]

	switch instr.Op {
	case wasmir.OpI32Load:
		return frame.push(i32ToSlot(int32(binary.LittleEndian.Uint32(buf))))
	case wasmir.OpI64Load:
		return frame.push(i64ToSlot(int64(binary.LittleEndian.Uint64(buf))))
	case wasmir.OpF32Load:
		return frame.push(uint64(binary.LittleEndian.Uint32(buf)))
	case wasmir.OpF64Load:
		return frame.push(binary.LittleEndian.Uint64(buf))
	}
	return rterr.ErrUnsupported()
}

func (e *Engine) execStore(frame *ExecutionFrame, instr wasmir.Instruction) error {
	if frame.Instance.Memory == nil {
		return rterr.ErrUnsupported()
	}
	val, err := frame.pop()
	if err != nil {
		return err
	}
	addrVal, err := frame.pop()
	if err != nil {
		return err
	}
	addr := uint32(slotToI32(addrVal)) + instr.MemOffset

	var size uint32
	switch instr.Op {
	case wasmir.OpI32Store, wasmir.OpF32Store:
		size = 4
	case wasmir.OpI64Store, wasmir.OpF64Store:
		size = 8
	}
	if err := frame.Instance.Memory.checkBounds(addr, size); err != nil {
		return err
	}
	buf := frame.Instance.Memory.bytes[addr : addr+size]

	switch instr.Op {
	case wasmir.OpI32Store:
		binary.LittleEndian.PutUint32(buf, uint32(slotToI32(val)))
	case wasmir.OpI64Store:
		binary.LittleEndian.PutUint64(buf, uint64(slotToI64(val)))
	case wasmir.OpF32Store:
		binary.LittleEndian.PutUint32(buf, uint32(val))
	case wasmir.OpF64Store:
		binary.LittleEndian.PutUint64(buf, val)
	}
	return nil
}
