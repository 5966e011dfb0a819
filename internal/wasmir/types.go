// Package wasmir defines the validated intermediate representation shared
// by the decoder and the stackless engine: the Module/Component IR
// (spec.md §3 "Module IR") and the typed Instruction enumeration
// (spec.md §3 "Instruction", §4.5-§4.6).
package wasmir

import (
	wabinwasm "github.com/tetratelabs/wabin/wasm"
)

// ValueType reuses wabin's core-Wasm value-type byte constants so this
// IR agrees bit-for-bit with the format both wabin and wazero decode.
type ValueType = wabinwasm.ValueType

const (
	ValueTypeI32       = wabinwasm.ValueTypeI32
	ValueTypeI64       = wabinwasm.ValueTypeI64
	ValueTypeF32       = wabinwasm.ValueTypeF32
	ValueTypeF64       = wabinwasm.ValueTypeF64
	ValueTypeFuncref   = wabinwasm.ValueTypeFuncref
	ValueTypeExternref = wabinwasm.ValueTypeExternref
)

// Index is a dense Wasm-space index (type, function, table, memory,
// global, element, data), matching wabin.wasm.Index's underlying type.
type Index = wabinwasm.Index

// FunctionType is a (params) -> (results) signature.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports whether ft and other declare the identical signature,
// used by the engine's CFI check (spec.md §4.6).
func (ft FunctionType) Equal(other FunctionType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range ft.Results {
		if ft.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}

// Import describes a single imported entity.
type Import struct {
	Module, Name string
	Kind         ExternKind
	// TypeIndex is valid when Kind == ExternKindFunc.
	TypeIndex Index
	// Table, Memory and Global carry the imported extern's type when Kind
	// is the matching ExternKind, so the decoder retains enough state to
	// re-encode the import exactly (spec.md §8 module round-trip).
	Table  TableType
	Memory MemoryType
	Global GlobalType
}

// ExternKind classifies an import/export.
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
)

// Export describes a single exported entity.
type Export struct {
	Name  string
	Kind  ExternKind
	Index Index
}

// Function is a locally-defined function: its declared type index, its
// decoded local variable types (beyond the parameters), and its decoded
// instruction body.
type Function struct {
	TypeIndex Index
	Locals    []ValueType
	Body      []Instruction
}

// TableType describes a table's element type and limits.
type TableType struct {
	ElemType   ValueType
	Min, Max   uint32
	HasMax     bool
}

// MemoryType describes a linear memory's page limits.
type MemoryType struct {
	Min, Max uint32
	HasMax   bool
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is a module-defined global with its constant initializer
// expression, pre-evaluated to a single Instruction (spec.md treats
// const-exprs as a restricted instruction subset).
type Global struct {
	Type GlobalType
	Init Instruction
}

// Element is a table element segment.
type Element struct {
	TableIndex Index
	Offset     Instruction
	FuncIndexes []Index
}

// Data is a linear memory data segment.
type Data struct {
	MemoryIndex Index
	Offset      Instruction
	Bytes       []byte
}

// Module is the validated core-Wasm intermediate representation produced
// by the decoder (spec.md §3 "Module IR"). During decoding these slices
// may be arena-backed inside a decoder scope; the engine's Instantiate
// converts cardinalities into bounded execution-state containers.
type Module struct {
	Types     []FunctionType
	Imports   []Import
	Functions []Function
	Tables    []TableType
	Memories  []MemoryType
	Globals   []Global
	Exports   []Export
	Elements  []Element
	DataSegs  []Data
	Start     *Index

	// Checksum is an FNV-1a digest over the canonical re-encoding of the
	// module, attached for later integrity verification (spec.md §4.5).
	Checksum uint32

	// CustomSections are preserved verbatim but not interpreted.
	CustomSections map[string][]byte
}

// FuncImportCount returns the number of imported (as opposed to locally
// defined) functions.
func (m *Module) FuncImportCount() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ExternKindFunc {
			n++
		}
	}
	return n
}

// TypeOf resolves a function index (imported or local) to its
// FunctionType, or false if the index is invalid.
func (m *Module) TypeOf(funcIndex Index) (FunctionType, bool) {
	importFns := 0
	for _, imp := range m.Imports {
		if imp.Kind != ExternKindFunc {
			continue
		}
		if Index(importFns) == funcIndex {
			if int(imp.TypeIndex) >= len(m.Types) {
				return FunctionType{}, false
			}
			return m.Types[imp.TypeIndex], true
		}
		importFns++
	}
	localIndex := int(funcIndex) - importFns
	if localIndex < 0 || localIndex >= len(m.Functions) {
		return FunctionType{}, false
	}
	ti := m.Functions[localIndex].TypeIndex
	if int(ti) >= len(m.Types) {
		return FunctionType{}, false
	}
	return m.Types[ti], true
}
