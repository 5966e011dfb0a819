package decoder

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

func decodeValueType(r *Reader) (wasmir.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch wasmir.ValueType(b) {
	case wasmir.ValueTypeI32, wasmir.ValueTypeI64, wasmir.ValueTypeF32, wasmir.ValueTypeF64,
		wasmir.ValueTypeFuncref, wasmir.ValueTypeExternref:
		return wasmir.ValueType(b), nil
	default:
		return 0, r.fail(rterr.ErrTypeMismatch())
	}
}

func decodeLimits(r *Reader) (min, max uint32, hasMax bool, err error) {
	flag, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, err
	}
	if min, err = r.ReadUint32(); err != nil {
		return 0, 0, false, err
	}
	if flag == 1 {
		if max, err = r.ReadUint32(); err != nil {
			return 0, 0, false, err
		}
		hasMax = true
	}
	return min, max, hasMax, nil
}

func decodeTypeSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxTypes); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.Types = make([]wasmir.FunctionType, 0, n)
	for i := uint32(0); i < n; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return r.fail(rterr.ErrTypeMismatch())
		}
		ft, err := decodeFuncType(r)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, ft)
	}
	return nil
}

func decodeFuncType(r *Reader) (wasmir.FunctionType, error) {
	pn, err := r.ReadUint32()
	if err != nil {
		return wasmir.FunctionType{}, err
	}
	params := make([]wasmir.ValueType, pn)
	for i := range params {
		if params[i], err = decodeValueType(r); err != nil {
			return wasmir.FunctionType{}, err
		}
	}
	rn, err := r.ReadUint32()
	if err != nil {
		return wasmir.FunctionType{}, err
	}
	results := make([]wasmir.ValueType, rn)
	for i := range results {
		if results[i], err = decodeValueType(r); err != nil {
			return wasmir.FunctionType{}, err
		}
	}
	return wasmir.FunctionType{Params: params, Results: results}, nil
}

func decodeImportSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxImports); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.Imports = make([]wasmir.Import, 0, n)
	for i := uint32(0); i < n; i++ {
		mod, err := r.ReadString(limits.MaxNameBytes)
		if err != nil {
			return err
		}
		name, err := r.ReadString(limits.MaxNameBytes)
		if err != nil {
			return err
		}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		imp := wasmir.Import{Module: mod, Name: name, Kind: wasmir.ExternKind(kindByte)}
		switch imp.Kind {
		case wasmir.ExternKindFunc:
			idx, err := r.ReadUint32()
			if err != nil {
				return err
			}
			imp.TypeIndex = wasmir.Index(idx)
		case wasmir.ExternKindTable:
			et, err := decodeValueType(r)
			if err != nil {
				return err
			}
			min, max, hasMax, err := decodeLimits(r)
			if err != nil {
				return err
			}
			imp.Table = wasmir.TableType{ElemType: et, Min: min, Max: max, HasMax: hasMax}
		case wasmir.ExternKindMemory:
			min, max, hasMax, err := decodeLimits(r)
			if err != nil {
				return err
			}
			imp.Memory = wasmir.MemoryType{Min: min, Max: max, HasMax: hasMax}
		case wasmir.ExternKindGlobal:
			vt, err := decodeValueType(r)
			if err != nil {
				return err
			}
			mutByte, err := r.ReadByte()
			if err != nil {
				return err
			}
			imp.Global = wasmir.GlobalType{ValType: vt, Mutable: mutByte == 1}
		default:
			return r.fail(rterr.ErrTypeMismatch())
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctionSection(r *Reader, limits Limits, m *wasmir.Module) ([]wasmir.Index, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := checkLimit(n, limits.MaxFunctions); err != nil {
		return nil, r.fail(err.(*rterr.Error))
	}
	idxs := make([]wasmir.Index, n)
	for i := range idxs {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		idxs[i] = wasmir.Index(v)
	}
	return idxs, nil
}

func decodeTableSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxTables); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.Tables = make([]wasmir.TableType, 0, n)
	for i := uint32(0); i < n; i++ {
		et, err := decodeValueType(r)
		if err != nil {
			return err
		}
		min, max, hasMax, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, wasmir.TableType{ElemType: et, Min: min, Max: max, HasMax: hasMax})
	}
	return nil
}

func decodeMemorySection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxMemories); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.Memories = make([]wasmir.MemoryType, 0, n)
	for i := uint32(0); i < n; i++ {
		min, max, hasMax, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, wasmir.MemoryType{Min: min, Max: max, HasMax: hasMax})
	}
	return nil
}

func decodeGlobalSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxGlobals); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.Globals = make([]wasmir.Global, 0, n)
	for i := uint32(0); i < n; i++ {
		vt, err := decodeValueType(r)
		if err != nil {
			return err
		}
		mutByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		init, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, wasmir.Global{
			Type: wasmir.GlobalType{ValType: vt, Mutable: mutByte == 1},
			Init: init,
		})
	}
	return nil
}

func decodeExportSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxExports); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	seen := make(map[string]struct{}, n)
	m.Exports = make([]wasmir.Export, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := r.ReadString(limits.MaxNameBytes)
		if err != nil {
			return err
		}
		if _, dup := seen[name]; dup {
			return r.fail(rterr.ErrDuplicateExport())
		}
		seen[name] = struct{}{}
		kindByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadUint32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, wasmir.Export{Name: name, Kind: wasmir.ExternKind(kindByte), Index: wasmir.Index(idx)})
	}
	return nil
}

func decodeElementSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxElements); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.Elements = make([]wasmir.Element, 0, n)
	for i := uint32(0); i < n; i++ {
		tblIdx, err := r.ReadUint32()
		if err != nil {
			return err
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		fn, err := r.ReadUint32()
		if err != nil {
			return err
		}
		fns := make([]wasmir.Index, fn)
		for j := range fns {
			v, err := r.ReadUint32()
			if err != nil {
				return err
			}
			fns[j] = wasmir.Index(v)
		}
		m.Elements = append(m.Elements, wasmir.Element{TableIndex: wasmir.Index(tblIdx), Offset: offset, FuncIndexes: fns})
	}
	return nil
}

func decodeDataSection(r *Reader, limits Limits, m *wasmir.Module) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := checkLimit(n, limits.MaxDataSegs); err != nil {
		return r.fail(err.(*rterr.Error))
	}
	m.DataSegs = make([]wasmir.Data, 0, n)
	for i := uint32(0); i < n; i++ {
		memIdx, err := r.ReadUint32()
		if err != nil {
			return err
		}
		offset, err := decodeConstExpr(r)
		if err != nil {
			return err
		}
		bn, err := r.ReadUint32()
		if err != nil {
			return err
		}
		bytes, err := r.ReadBytes(int(bn))
		if err != nil {
			return err
		}
		m.DataSegs = append(m.DataSegs, wasmir.Data{
			MemoryIndex: wasmir.Index(memIdx),
			Offset:      offset,
			Bytes:       append([]byte(nil), bytes...),
		})
	}
	return nil
}

// decodeCodeSection decodes function bodies, pairing them by position with
// the type indexes collected from the function section, and appends the
// resulting wasmir.Function values to m.Functions in declaration order.
func decodeCodeSection(r *Reader, limits Limits, m *wasmir.Module, typeIdxs []wasmir.Index) error {
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if int(n) != len(typeIdxs) {
		return r.fail(rterr.ErrUnknownIndex())
	}
	m.Functions = make([]wasmir.Function, 0, n)
	for i := uint32(0); i < n; i++ {
		bodySize, err := r.ReadUint32()
		if err != nil {
			return err
		}
		body, err := r.ReadBytes(int(bodySize))
		if err != nil {
			return err
		}
		br := NewReader(body)
		locals, err := decodeLocals(br, limits)
		if err != nil {
			return err
		}
		var instrs []wasmir.Instruction
		for {
			if br.Remaining() == 0 {
				return br.fail(rterr.ErrSectionOverflow())
			}
			instr, err := decodeInstruction(br)
			if err != nil {
				return err
			}
			instrs = append(instrs, instr)
			if instr.Op == wasmir.OpEnd && br.Remaining() == 0 {
				break
			}
		}
		m.Functions = append(m.Functions, wasmir.Function{TypeIndex: typeIdxs[i], Locals: locals, Body: instrs})
	}
	return nil
}

func decodeLocals(r *Reader, limits Limits) ([]wasmir.ValueType, error) {
	groups, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	var locals []wasmir.ValueType
	var total uint32
	for i := uint32(0); i < groups; i++ {
		count, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		total += count
		if err := checkLimit(total, limits.MaxLocals); err != nil {
			return nil, r.fail(err.(*rterr.Error))
		}
		vt, err := decodeValueType(r)
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < count; j++ {
			locals = append(locals, vt)
		}
	}
	return locals, nil
}

// decodeConstExpr decodes a single restricted constant-initializer
// instruction followed by its terminating end opcode, per spec.md's
// treatment of global/element/data offset expressions as a one-instruction
// subset.
func decodeConstExpr(r *Reader) (wasmir.Instruction, error) {
	instr, err := decodeInstruction(r)
	if err != nil {
		return wasmir.Instruction{}, err
	}
	end, err := decodeInstruction(r)
	if err != nil {
		return wasmir.Instruction{}, err
	}
	if end.Op != wasmir.OpEnd {
		return wasmir.Instruction{}, r.fail(rterr.ErrTypeMismatch())
	}
	return instr, nil
}

// decodeInstruction decodes one instruction tag, a LEB128-encoded Opcode
// value, followed by whatever immediates that opcode class carries. This is
// the runtime's own compact instruction encoding (wasmir.Opcode), not the
// raw core-Wasm byte opcode space; the bytes that reach here have already
// been produced by a front-end that re-tags standard opcodes into this IR.
func decodeInstruction(r *Reader) (wasmir.Instruction, error) {
	tag, err := r.ReadUint32()
	if err != nil {
		return wasmir.Instruction{}, err
	}
	op := wasmir.Opcode(tag)
	instr := wasmir.Instruction{Op: op}

	switch op {
	case wasmir.OpBlock, wasmir.OpLoop, wasmir.OpIf:
		arity, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.Arity = int(arity)
	case wasmir.OpBr, wasmir.OpBrIf:
		idx, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.Index = wasmir.Index(idx)
	case wasmir.OpBrTable:
		n, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		targets := make([]wasmir.Index, n)
		for i := range targets {
			v, err := r.ReadUint32()
			if err != nil {
				return instr, err
			}
			targets[i] = wasmir.Index(v)
		}
		def, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.Targets = targets
		instr.Index2 = wasmir.Index(def)
	case wasmir.OpCall, wasmir.OpRefFunc, wasmir.OpLocalGet, wasmir.OpLocalSet, wasmir.OpLocalTee,
		wasmir.OpGlobalGet, wasmir.OpGlobalSet, wasmir.OpTableGet, wasmir.OpTableSet:
		idx, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.Index = wasmir.Index(idx)
	case wasmir.OpCallIndirect:
		typeIdx, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		tblIdx, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.Index = wasmir.Index(typeIdx)
		instr.Index2 = wasmir.Index(tblIdx)
	case wasmir.OpI32Load, wasmir.OpI64Load, wasmir.OpF32Load, wasmir.OpF64Load,
		wasmir.OpI32Store, wasmir.OpI64Store, wasmir.OpF32Store, wasmir.OpF64Store:
		align, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		offset, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.MemAlign = align
		instr.MemOffset = offset
	case wasmir.OpI32Const:
		v, err := r.ReadInt32()
		if err != nil {
			return instr, err
		}
		instr.I32 = v
	case wasmir.OpI64Const:
		v, err := r.ReadInt64()
		if err != nil {
			return instr, err
		}
		instr.I64 = v
	case wasmir.OpF32Const:
		bits, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.F32 = math32FromBits(bits)
	case wasmir.OpF64Const:
		bits, err := r.ReadUint64()
		if err != nil {
			return instr, err
		}
		instr.F64 = math64FromBits(bits)
	case wasmir.OpRefNull:
		if _, err := decodeValueType(r); err != nil {
			return instr, err
		}
	case wasmir.OpCanonResourceNew, wasmir.OpCanonResourceDrop, wasmir.OpCanonResourceRep,
		wasmir.OpCanonLift, wasmir.OpCanonLower:
		idx, err := r.ReadUint32()
		if err != nil {
			return instr, err
		}
		instr.Index = wasmir.Index(idx)
	default:
		// Unreachable, Nop, Else, End, Return, Drop, Select, MemorySize,
		// MemoryGrow, RefIsNull and all arithmetic/comparison opcodes carry
		// no immediates.
	}
	return instr, nil
}

// validateCrossReferences checks every declared index reference against
// the cardinalities already decoded, per spec.md §4.5's fail-fast
// validation pass (unknown-index checks only; full
// control-flow and operand-stack typechecking belongs to the engine's
// instantiation-time validation, not the streaming decoder).
func validateCrossReferences(m *wasmir.Module) error {
	for _, imp := range m.Imports {
		if imp.Kind == wasmir.ExternKindFunc && int(imp.TypeIndex) >= len(m.Types) {
			return rterr.ErrUnknownIndex()
		}
	}
	for _, fn := range m.Functions {
		if int(fn.TypeIndex) >= len(m.Types) {
			return rterr.ErrUnknownIndex()
		}
	}
	totalFuncs := m.FuncImportCount() + len(m.Functions)
	for _, exp := range m.Exports {
		switch exp.Kind {
		case wasmir.ExternKindFunc:
			if int(exp.Index) >= totalFuncs {
				return rterr.ErrUnknownIndex()
			}
		case wasmir.ExternKindTable:
			if int(exp.Index) >= len(m.Tables) {
				return rterr.ErrUnknownIndex()
			}
		case wasmir.ExternKindMemory:
			if int(exp.Index) >= len(m.Memories) {
				return rterr.ErrUnknownIndex()
			}
		case wasmir.ExternKindGlobal:
			if int(exp.Index) >= len(m.Globals) {
				return rterr.ErrUnknownIndex()
			}
		}
	}
	totalTables := len(m.Tables)
	for _, imp := range m.Imports {
		if imp.Kind == wasmir.ExternKindTable {
			totalTables++
		}
	}
	for _, el := range m.Elements {
		if int(el.TableIndex) >= totalTables {
			return rterr.ErrUnknownIndex()
		}
		for _, fi := range el.FuncIndexes {
			if int(fi) >= totalFuncs {
				return rterr.ErrUnknownIndex()
			}
		}
	}
	for _, d := range m.DataSegs {
		if int(d.MemoryIndex) >= len(m.Memories) {
			return rterr.ErrUnknownIndex()
		}
	}
	if m.Start != nil && int(*m.Start) >= totalFuncs {
		return rterr.ErrUnknownIndex()
	}
	return nil
}
