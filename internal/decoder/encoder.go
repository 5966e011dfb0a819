package decoder

import (
	"sort"

	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// EncodeModule serializes m back into a core Wasm binary, mirroring
// DecodeModule's section layout and field order exactly (spec.md §8
// "decode then re-encode any module: byte-for-byte equal"). Standard
// sections are emitted in the fixed order below. Custom sections are
// emitted after all of them, in name-sorted order, since wasmir.Module
// stores them in a map and so cannot recover their original position; an
// input whose custom sections are not already last and in name order
// round-trips at the IR level but not byte-for-byte. ref.null is always
// re-encoded with the funcref type, since the decoder does not keep its
// type immediate.
func EncodeModule(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteBytes(Magic[:])
	writeRawU32LE(w, Version)

	if len(m.Types) > 0 {
		writeSection(w, sectionType, encodeTypeSection(m))
	}
	if len(m.Imports) > 0 {
		writeSection(w, sectionImport, encodeImportSection(m))
	}
	if len(m.Functions) > 0 {
		writeSection(w, sectionFunction, encodeFunctionSection(m))
	}
	if len(m.Tables) > 0 {
		writeSection(w, sectionTable, encodeTableSection(m))
	}
	if len(m.Memories) > 0 {
		writeSection(w, sectionMemory, encodeMemorySection(m))
	}
	if len(m.Globals) > 0 {
		writeSection(w, sectionGlobal, encodeGlobalSection(m))
	}
	if len(m.Exports) > 0 {
		writeSection(w, sectionExport, encodeExportSection(m))
	}
	if m.Start != nil {
		sw := NewWriter()
		sw.WriteUint32(uint32(*m.Start))
		writeSection(w, sectionStart, sw.Bytes())
	}
	if len(m.Elements) > 0 {
		writeSection(w, sectionElement, encodeElementSection(m))
	}
	if len(m.Functions) > 0 {
		writeSection(w, sectionCode, encodeCodeSection(m))
	}
	if len(m.DataSegs) > 0 {
		writeSection(w, sectionData, encodeDataSection(m))
	}

	names := make([]string, 0, len(m.CustomSections))
	for name := range m.CustomSections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cw := NewWriter()
		cw.WriteString(name)
		cw.WriteBytes(m.CustomSections[name])
		writeSection(w, sectionCustom, cw.Bytes())
	}

	return w.Bytes()
}

func encodeValueType(w *Writer, vt wasmir.ValueType) { w.WriteByte(byte(vt)) }

func encodeLimits(w *Writer, min, max uint32, hasMax bool) {
	if hasMax {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
	w.WriteUint32(min)
	if hasMax {
		w.WriteUint32(max)
	}
}

func encodeFuncType(w *Writer, ft wasmir.FunctionType) {
	w.WriteUint32(uint32(len(ft.Params)))
	for _, p := range ft.Params {
		encodeValueType(w, p)
	}
	w.WriteUint32(uint32(len(ft.Results)))
	for _, r := range ft.Results {
		encodeValueType(w, r)
	}
}

func encodeTypeSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Types)))
	for _, ft := range m.Types {
		w.WriteByte(0x60)
		encodeFuncType(w, ft)
	}
	return w.Bytes()
}

func encodeImportSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		w.WriteString(imp.Module)
		w.WriteString(imp.Name)
		w.WriteByte(byte(imp.Kind))
		switch imp.Kind {
		case wasmir.ExternKindFunc:
			w.WriteUint32(uint32(imp.TypeIndex))
		case wasmir.ExternKindTable:
			encodeValueType(w, imp.Table.ElemType)
			encodeLimits(w, imp.Table.Min, imp.Table.Max, imp.Table.HasMax)
		case wasmir.ExternKindMemory:
			encodeLimits(w, imp.Memory.Min, imp.Memory.Max, imp.Memory.HasMax)
		case wasmir.ExternKindGlobal:
			encodeValueType(w, imp.Global.ValType)
			if imp.Global.Mutable {
				w.WriteByte(1)
			} else {
				w.WriteByte(0)
			}
		}
	}
	return w.Bytes()
}

func encodeFunctionSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Functions)))
	for _, fn := range m.Functions {
		w.WriteUint32(uint32(fn.TypeIndex))
	}
	return w.Bytes()
}

func encodeTableSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Tables)))
	for _, tt := range m.Tables {
		encodeValueType(w, tt.ElemType)
		encodeLimits(w, tt.Min, tt.Max, tt.HasMax)
	}
	return w.Bytes()
}

func encodeMemorySection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Memories)))
	for _, mt := range m.Memories {
		encodeLimits(w, mt.Min, mt.Max, mt.HasMax)
	}
	return w.Bytes()
}

func encodeGlobalSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Globals)))
	for _, g := range m.Globals {
		encodeValueType(w, g.Type.ValType)
		if g.Type.Mutable {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		encodeConstExpr(w, g.Init)
	}
	return w.Bytes()
}

func encodeExportSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Exports)))
	for _, exp := range m.Exports {
		w.WriteString(exp.Name)
		w.WriteByte(byte(exp.Kind))
		w.WriteUint32(uint32(exp.Index))
	}
	return w.Bytes()
}

func encodeElementSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Elements)))
	for _, el := range m.Elements {
		w.WriteUint32(uint32(el.TableIndex))
		encodeConstExpr(w, el.Offset)
		w.WriteUint32(uint32(len(el.FuncIndexes)))
		for _, fi := range el.FuncIndexes {
			w.WriteUint32(uint32(fi))
		}
	}
	return w.Bytes()
}

func encodeDataSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.DataSegs)))
	for _, d := range m.DataSegs {
		w.WriteUint32(uint32(d.MemoryIndex))
		encodeConstExpr(w, d.Offset)
		w.WriteUint32(uint32(len(d.Bytes)))
		w.WriteBytes(d.Bytes)
	}
	return w.Bytes()
}

// encodeCodeSection re-encodes each function body into its own
// length-prefixed blob, mirroring decodeCodeSection's pairing of bodies
// with the function section's type indexes by position.
func encodeCodeSection(m *wasmir.Module) []byte {
	w := NewWriter()
	w.WriteUint32(uint32(len(m.Functions)))
	for _, fn := range m.Functions {
		bw := NewWriter()
		encodeLocals(bw, fn.Locals)
		for _, instr := range fn.Body {
			encodeInstruction(bw, instr)
		}
		body := bw.Bytes()
		w.WriteUint32(uint32(len(body)))
		w.WriteBytes(body)
	}
	return w.Bytes()
}

// encodeLocals re-groups a flattened local-variable slice into
// run-length-encoded (count, type) groups, the inverse of decodeLocals.
// Adjacent locals of the same type collapse into one group, matching how
// any encoder for this format (including a previous pass of this one)
// would have produced them.
func encodeLocals(w *Writer, locals []wasmir.ValueType) {
	type group struct {
		vt    wasmir.ValueType
		count uint32
	}
	var groups []group
	for _, vt := range locals {
		if n := len(groups); n > 0 && groups[n-1].vt == vt {
			groups[n-1].count++
			continue
		}
		groups = append(groups, group{vt: vt, count: 1})
	}
	w.WriteUint32(uint32(len(groups)))
	for _, g := range groups {
		w.WriteUint32(g.count)
		encodeValueType(w, g.vt)
	}
}

func encodeConstExpr(w *Writer, instr wasmir.Instruction) {
	encodeInstruction(w, instr)
	encodeInstruction(w, wasmir.Instruction{Op: wasmir.OpEnd})
}

// encodeInstruction writes one instruction tag and whatever immediates its
// opcode class carries, the inverse of decodeInstruction except that
// ref.null always carries the funcref type.
func encodeInstruction(w *Writer, instr wasmir.Instruction) {
	w.WriteUint32(uint32(instr.Op))

	switch instr.Op {
	case wasmir.OpBlock, wasmir.OpLoop, wasmir.OpIf:
		w.WriteUint32(uint32(instr.Arity))
	case wasmir.OpBr, wasmir.OpBrIf:
		w.WriteUint32(uint32(instr.Index))
	case wasmir.OpBrTable:
		w.WriteUint32(uint32(len(instr.Targets)))
		for _, t := range instr.Targets {
			w.WriteUint32(uint32(t))
		}
		w.WriteUint32(uint32(instr.Index2))
	case wasmir.OpCall, wasmir.OpRefFunc, wasmir.OpLocalGet, wasmir.OpLocalSet, wasmir.OpLocalTee,
		wasmir.OpGlobalGet, wasmir.OpGlobalSet, wasmir.OpTableGet, wasmir.OpTableSet:
		w.WriteUint32(uint32(instr.Index))
	case wasmir.OpCallIndirect:
		w.WriteUint32(uint32(instr.Index))
		w.WriteUint32(uint32(instr.Index2))
	case wasmir.OpI32Load, wasmir.OpI64Load, wasmir.OpF32Load, wasmir.OpF64Load,
		wasmir.OpI32Store, wasmir.OpI64Store, wasmir.OpF32Store, wasmir.OpF64Store:
		w.WriteUint32(instr.MemAlign)
		w.WriteUint32(instr.MemOffset)
	case wasmir.OpI32Const:
		w.WriteInt32(instr.I32)
	case wasmir.OpI64Const:
		w.WriteInt64(instr.I64)
	case wasmir.OpF32Const:
		w.WriteUint32(math32ToBits(instr.F32))
	case wasmir.OpF64Const:
		w.WriteUint64(math64ToBits(instr.F64))
	case wasmir.OpRefNull:
		encodeValueType(w, wasmir.ValueTypeFuncref)
	case wasmir.OpCanonResourceNew, wasmir.OpCanonResourceDrop, wasmir.OpCanonResourceRep,
		wasmir.OpCanonLift, wasmir.OpCanonLower:
		w.WriteUint32(uint32(instr.Index))
	default:
		// Unreachable, Nop, Else, End, Return, Drop, Select, MemorySize,
		// MemoryGrow, RefIsNull and all arithmetic/comparison opcodes carry
		// no immediates.
	}
}
