// Package component implements the Component Model runtime layer of
// spec.md §4.8: canonical-ABI lifting/lowering of component values over
// core engine instances, per-instance resource tables, and cross-instance
// call gates. It sits one layer above internal/engine — the core engine
// has no knowledge of component values or resources (see
// internal/engine's "imported-function calls inside the core engine"
// design note) — and drives engine.Call directly rather than through the
// core opcode dispatcher.
package component

import (
	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Kind discriminates the canonical ABI value shapes named in spec.md
// §4.8: "records, variants, lists, options, results, resources", plus
// the primitive numeric/string/bool/char kinds the Component Model
// canonical ABI defines underneath them.
type Kind uint8

const (
	KindBool Kind = iota
	KindS32
	KindU32
	KindS64
	KindU64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindRecord
	KindVariant
	KindOption
	KindResult
	KindOwn
	KindBorrow
)

// Type describes the shape of a canonical ABI value well enough to drive
// Lift/Lower: for compound kinds, ElementType/Fields/Cases describe the
// nested shape, following the Component Model's interface-type grammar
// restricted to the spec's CORE scope (no flags/enum/tuple in the CORE,
// per spec.md §1's scope note on "the minimum" component surface).
type Type struct {
	Kind        Kind
	ElementType *Type            // KindList, KindOption
	Fields      []Type           // KindRecord, in declaration order
	Cases       []Type           // KindVariant: payload type per case (KindBool with no payload encodes a unit case)
	OkType      *Type            // KindResult
	ErrType     *Type            // KindResult
	ResourceID  uint32           // KindOwn, KindBorrow: the resource type this handle refers to
}

// Val is a lifted canonical ABI value: a tagged union over Type.Kind.
type Val struct {
	Type Type

	Bool   bool
	I32    int32
	U32    uint32
	I64    int64
	U64    uint64
	F32    float32
	F64    float64
	Char   rune
	Str    string
	List   []Val
	Fields []Val // KindRecord
	Case   int   // KindVariant, KindOption (0=none,1=some), KindResult (0=ok,1=err)
	Payload *Val // KindVariant/KindOption/KindResult's case payload, nil for a unitary case
	Handle HandleID // KindOwn, KindBorrow
}

// flatSlots reports how many core-Wasm uint64 slots t flattens to under
// this runtime's simplified canonical ABI: scalars and resource handles
// occupy one slot; string/list occupy two (pointer, length) slots into the
// owning instance's linear memory; a record occupies the sum of its
// fields' slots (see Lower); variant/option/result occupy two slots, a
// discriminant and one payload slot.
func (t Type) flatSlots() int {
	switch t.Kind {
	case KindString, KindList:
		return 2
	case KindRecord:
		n := 0
		for _, f := range t.Fields {
			n += f.flatSlots()
		}
		return n
	case KindVariant, KindOption, KindResult:
		return 2 // discriminant + one payload slot (CORE scope: single-slot payloads only)
	default:
		return 1
	}
}

// FlatSlots is the exported form of flatSlots, used by Runtime.Invoke to
// size the core-Wasm argument/result vector before lowering.
func FlatSlots(types []Type) int {
	n := 0
	for _, t := range types {
		n += t.flatSlots()
	}
	return n
}

// Lower flattens v into core-Wasm uint64 slots, appending to out.
// String/list payload bytes are written into inst's linear memory via
// WriteBytes and referenced by a (pointer, length) slot pair — the
// canonical ABI's "load"/"store" boundary restricted to this runtime's
// single-linear-memory CORE scope.
func Lower(v Val, inst *engine.ModuleInstance, nextPtr *uint32, out []uint64) ([]uint64, error) {
	switch v.Type.Kind {
	case KindBool:
		b := uint64(0)
		if v.Bool {
			b = 1
		}
		return append(out, b), nil
	case KindS32:
		return append(out, uint64(uint32(v.I32))), nil
	case KindU32:
		return append(out, uint64(v.U32)), nil
	case KindS64, KindU64:
		val := v.U64
		if v.Type.Kind == KindS64 {
			val = uint64(v.I64)
		}
		return append(out, val), nil
	case KindF32:
		return append(out, uint64(f32bits(v.F32))), nil
	case KindF64:
		return append(out, f64bits(v.F64)), nil
	case KindChar:
		return append(out, uint64(v.Char)), nil
	case KindString:
		return lowerBytes(inst, nextPtr, []byte(v.Str), out)
	case KindList:
		buf, err := lowerList(v, inst)
		if err != nil {
			return nil, err
		}
		return lowerBytes(inst, nextPtr, buf, out)
	case KindRecord:
		for _, f := range v.Fields {
			var err error
			out, err = Lower(f, inst, nextPtr, out)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case KindVariant, KindOption, KindResult:
		out = append(out, uint64(v.Case))
		payload := uint64(0)
		if v.Payload != nil {
			slots, err := Lower(*v.Payload, inst, nextPtr, nil)
			if err != nil {
				return nil, err
			}
			if len(slots) > 0 {
				payload = slots[0]
			}
		}
		return append(out, payload), nil
	case KindOwn, KindBorrow:
		return append(out, uint64(v.Handle)), nil
	default:
		return nil, rterr.ErrLowerFailed()
	}
}

func lowerList(v Val, inst *engine.ModuleInstance) ([]byte, error) {
	if v.Type.ElementType != nil && v.Type.ElementType.Kind == KindU32 {
		buf := make([]byte, 0, len(v.List)*4)
		for _, e := range v.List {
			buf = append(buf, byte(e.U32), byte(e.U32>>8), byte(e.U32>>16), byte(e.U32>>24))
		}
		return buf, nil
	}
	return nil, rterr.ErrLowerFailed()
}

func lowerBytes(inst *engine.ModuleInstance, nextPtr *uint32, data []byte, out []uint64) ([]uint64, error) {
	ptr := *nextPtr
	if len(data) > 0 {
		if err := inst.WriteBytes(ptr, data); err != nil {
			return nil, rterr.Wrap(rterr.Component, rterr.ComponentLowerFailed, "canonical ABI lower failed", err)
		}
	}
	*nextPtr += uint32(len(data))
	return append(out, uint64(ptr), uint64(len(data))), nil
}

// Lift reads the core-Wasm slot(s) at slots[0:] according to t, consuming
// as many slots as t.flatSlots() reports, and returns the reconstructed
// Val plus the number of slots consumed.
func Lift(t Type, slots []uint64, inst *engine.ModuleInstance) (Val, int, error) {
	need := t.flatSlots()
	if len(slots) < need {
		return Val{}, 0, rterr.ErrLiftFailed()
	}
	switch t.Kind {
	case KindBool:
		return Val{Type: t, Bool: slots[0] != 0}, 1, nil
	case KindS32:
		return Val{Type: t, I32: int32(uint32(slots[0]))}, 1, nil
	case KindU32:
		return Val{Type: t, U32: uint32(slots[0])}, 1, nil
	case KindS64:
		return Val{Type: t, I64: int64(slots[0])}, 1, nil
	case KindU64:
		return Val{Type: t, U64: slots[0]}, 1, nil
	case KindF32:
		return Val{Type: t, F32: f32frombits(uint32(slots[0]))}, 1, nil
	case KindF64:
		return Val{Type: t, F64: f64frombits(slots[0])}, 1, nil
	case KindChar:
		return Val{Type: t, Char: rune(slots[0])}, 1, nil
	case KindString:
		ptr, length := uint32(slots[0]), uint32(slots[1])
		raw, err := inst.ReadBytes(ptr, length)
		if err != nil {
			return Val{}, 0, rterr.Wrap(rterr.Component, rterr.ComponentLiftFailed, "canonical ABI lift failed", err)
		}
		return Val{Type: t, Str: string(raw)}, 2, nil
	case KindList:
		ptr, length := uint32(slots[0]), uint32(slots[1])
		raw, err := inst.ReadBytes(ptr, length)
		if err != nil {
			return Val{}, 0, rterr.Wrap(rterr.Component, rterr.ComponentLiftFailed, "canonical ABI lift failed", err)
		}
		items := make([]Val, 0, length/4)
		for i := 0; i+4 <= len(raw); i += 4 {
			u := uint32(raw[i]) | uint32(raw[i+1])<<8 | uint32(raw[i+2])<<16 | uint32(raw[i+3])<<24
			items = append(items, Val{Type: *t.ElementType, U32: u})
		}
		return Val{Type: t, List: items}, 2, nil
	case KindRecord:
		fields := make([]Val, 0, len(t.Fields))
		off := 0
		for _, ft := range t.Fields {
			fv, n, err := Lift(ft, slots[off:], inst)
			if err != nil {
				return Val{}, 0, err
			}
			fields = append(fields, fv)
			off += n
		}
		return Val{Type: t, Fields: fields}, off, nil
	case KindVariant, KindOption, KindResult:
		c := int(slots[0])
		var payloadType *Type
		switch t.Kind {
		case KindVariant:
			if c < 0 || c >= len(t.Cases) {
				return Val{}, 0, rterr.ErrLiftFailed()
			}
			payloadType = &t.Cases[c]
		case KindOption:
			if c == 1 {
				payloadType = t.ElementType
			}
		case KindResult:
			if c == 0 {
				payloadType = t.OkType
			} else {
				payloadType = t.ErrType
			}
		}
		var payload *Val
		if payloadType != nil {
			pv, _, err := Lift(*payloadType, slots[1:2], inst)
			if err != nil {
				return Val{}, 0, err
			}
			payload = &pv
		}
		return Val{Type: t, Case: c, Payload: payload}, 2, nil
	case KindOwn, KindBorrow:
		return Val{Type: t, Handle: HandleID(slots[0])}, 1, nil
	default:
		return Val{}, 0, rterr.ErrLiftFailed()
	}
}

// coreValueType reports the core-Wasm ValueType a flattened slot of t's
// top-level kind carries, used when the caller must declare a core
// FunctionType for link-time signature verification.
func coreValueType(k Kind) wasmir.ValueType {
	switch k {
	case KindF32:
		return wasmir.ValueTypeF32
	case KindF64:
		return wasmir.ValueTypeF64
	case KindS64, KindU64:
		return wasmir.ValueTypeI64
	default:
		return wasmir.ValueTypeI32
	}
}
