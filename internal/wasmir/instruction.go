package wasmir

import (
	"encoding/binary"
	"math"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
)

// Opcode is the tagged-union discriminant for Instruction. The numbering
// here is this runtime's own internal encoding (not the raw Wasm byte
// opcode), grouping numeric/control/memory/reference/table/SIMD core
// opcodes with the canonical-ABI component operations, per spec.md §3.
type Opcode uint16

const (
	OpUnreachable Opcode = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpCall
	OpCallIndirect

	OpDrop
	OpSelect

	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet

	OpI32Load
	OpI64Load
	OpF32Load
	OpF64Load
	OpI32Store
	OpI64Store
	OpF32Store
	OpF64Store
	OpMemorySize
	OpMemoryGrow

	OpI32Const
	OpI64Const
	OpF32Const
	OpF64Const

	OpI32Add
	OpI32Sub
	OpI32Mul
	OpI32DivS
	OpI32DivU
	OpI32RemS
	OpI32RemU
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Shl
	OpI32ShrS
	OpI32ShrU
	OpI32Eq
	OpI32Ne
	OpI32LtS
	OpI32LtU
	OpI32GeS
	OpI32GeU

	OpI64Add
	OpI64Sub
	OpI64Mul
	OpI64DivS
	OpI64DivU
	OpI64RemS
	OpI64RemU

	OpF32Add
	OpF32Sub
	OpF32Mul
	OpF32Div
	OpF64Add
	OpF64Sub
	OpF64Mul
	OpF64Div

	OpRefNull
	OpRefIsNull
	OpRefFunc

	OpTableGet
	OpTableSet

	// Component-model canonical operations (spec.md §4.8).
	OpCanonLift
	OpCanonLower
	OpCanonResourceNew
	OpCanonResourceDrop
	OpCanonResourceRep
)

// Label describes a structured-control-flow target on the label stack.
type Label struct {
	Arity      int
	StackDepth int
	IsLoop     bool
}

// Instruction is a tagged enum covering core Wasm opcodes plus the
// canonical-ABI component operations, each variant carrying its decoded
// immediates (spec.md §3).
type Instruction struct {
	Op Opcode

	// Immediates. Not every field applies to every Op; the decoder only
	// populates the ones relevant to Op, and the engine only reads those.
	I32      int32
	I64      int64
	F32      float32
	F64      float64
	Index    Index // local/global/function/table/memory/type index
	Index2   Index // call_indirect's table index, br_table's default, etc.
	Targets  []Index
	MemAlign uint32
	MemOffset uint32
	Arity    int
}

// fuelTable publishes the fixed fuel cost per opcode class (spec.md §4.6,
// §4.7: "fuel costs are fixed constants per opcode class, published as a
// table the scheduler inspects for budgeting").
var fuelTable = map[Opcode]uint64{
	OpUnreachable: 1,
	OpNop:         1,
	OpBlock:       1,
	OpLoop:        1,
	OpIf:          1,
	OpElse:        1,
	OpEnd:         1,
	OpBr:          1,
	OpBrIf:        1,
	OpBrTable:     2,
	OpReturn:      1,
	OpCall:        4,
	OpCallIndirect: 6,
	OpDrop:        1,
	OpSelect:      1,
	OpLocalGet:    1,
	OpLocalSet:    1,
	OpLocalTee:    1,
	OpGlobalGet:   1,
	OpGlobalSet:   1,
	OpI32Load:     2,
	OpI64Load:     2,
	OpF32Load:     2,
	OpF64Load:     2,
	OpI32Store:    2,
	OpI64Store:    2,
	OpF32Store:    2,
	OpF64Store:    2,
	OpMemorySize:  1,
	OpMemoryGrow:  8,
	OpI32Const:    1,
	OpI64Const:    1,
	OpF32Const:    1,
	OpF64Const:    1,
	OpRefNull:     1,
	OpRefIsNull:   1,
	OpRefFunc:     1,
	OpTableGet:    2,
	OpTableSet:    2,

	OpCanonLift:         8,
	OpCanonLower:        8,
	OpCanonResourceNew:  4,
	OpCanonResourceDrop: 4,
	OpCanonResourceRep:  2,
}

const defaultArithmeticFuel = 1

// FuelCost returns the fixed fuel cost the engine must deduct before
// dispatching the instruction.
func (i Instruction) FuelCost() uint64 {
	if cost, ok := fuelTable[i.Op]; ok {
		return cost
	}
	return defaultArithmeticFuel
}

// Checksum computes an FNV-1a digest over the instruction's binary
// encoding, used by the round-trip property in spec.md §8.
func (i Instruction) Checksum() uint32 {
	return memory.Checksum32(i.MarshalBinary())
}

// instructionFixedSize is the byte length of an Instruction's encoding
// before its variable-length Targets tail.
const instructionFixedSize = 2 + 4 + 8 + 4 + 8 + 4 + 4 + 4 + 4 + 4 + 4

// MarshalBinary serializes the instruction to a compact, stable byte
// encoding used for checksums and state-snapshot persistence
// (spec.md §4.5, §6 "Persisted state layout"). The encoding is
// length-prefixed for Targets so UnmarshalBinary can round-trip it
// exactly (spec.md §8 "serialize then deserialize an instruction: equal
// value and checksum").
func (i Instruction) MarshalBinary() []byte {
	buf := make([]byte, 0, instructionFixedSize+4*len(i.Targets))
	var tmp [8]byte
	binary.LittleEndian.PutUint16(tmp[:2], uint16(i.Op))
	buf = append(buf, tmp[:2]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(i.I32))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:8], uint64(i.I64))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint32(tmp[:4], math.Float32bits(i.F32))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint64(tmp[:8], math.Float64bits(i.F64))
	buf = append(buf, tmp[:8]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(i.Index))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(i.Index2))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], i.MemAlign)
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], i.MemOffset)
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(i.Arity))
	buf = append(buf, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(i.Targets)))
	buf = append(buf, tmp[:4]...)
	for _, t := range i.Targets {
		binary.LittleEndian.PutUint32(tmp[:4], uint32(t))
		buf = append(buf, tmp[:4]...)
	}
	return buf
}

// UnmarshalBinary decodes buf, produced by MarshalBinary, back into i.
// It is the inverse of MarshalBinary exactly, including Targets length,
// so Instruction{...}.MarshalBinary() round-trips through it unchanged.
func (i *Instruction) UnmarshalBinary(buf []byte) error {
	if len(buf) < instructionFixedSize {
		return rterr.ErrSectionOverflow()
	}
	i.Op = Opcode(binary.LittleEndian.Uint16(buf[0:2]))
	i.I32 = int32(binary.LittleEndian.Uint32(buf[2:6]))
	i.I64 = int64(binary.LittleEndian.Uint64(buf[6:14]))
	i.F32 = math.Float32frombits(binary.LittleEndian.Uint32(buf[14:18]))
	i.F64 = math.Float64frombits(binary.LittleEndian.Uint64(buf[18:26]))
	i.Index = Index(binary.LittleEndian.Uint32(buf[26:30]))
	i.Index2 = Index(binary.LittleEndian.Uint32(buf[30:34]))
	i.MemAlign = binary.LittleEndian.Uint32(buf[34:38])
	i.MemOffset = binary.LittleEndian.Uint32(buf[38:42])
	i.Arity = int(int32(binary.LittleEndian.Uint32(buf[42:46])))
	n := binary.LittleEndian.Uint32(buf[46:50])
	rest := buf[instructionFixedSize:]
	if uint64(len(rest)) < uint64(n)*4 {
		return rterr.ErrSectionOverflow()
	}
	if n == 0 {
		i.Targets = nil
		return nil
	}
	targets := make([]Index, n)
	for idx := range targets {
		targets[idx] = Index(binary.LittleEndian.Uint32(rest[idx*4 : idx*4+4]))
	}
	i.Targets = targets
	return nil
}
