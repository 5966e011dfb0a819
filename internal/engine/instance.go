package engine

import (
	"unsafe"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// WasmPageSize is the fixed linear-memory page granularity (64KiB),
// matching the core Wasm specification this decoder/engine pair targets.
const WasmPageSize = 64 * 1024

const nullFuncref = -1

// linearMemory is a growable-within-budget byte buffer, each Grow backed
// by a fresh arena allocation from the owning instance's scope (the
// arena has no realloc-in-place primitive, per spec.md §4.2, so growth
// copies into a new allocation).
type linearMemory struct {
	bytes    []byte
	minPages uint32
	maxPages uint32
	hasMax   bool
	scope    *memory.Scope
}

func newLinearMemory(scope *memory.Scope, mt wasmir.MemoryType) (*linearMemory, error) {
	lm := &linearMemory{minPages: mt.Min, maxPages: mt.Max, hasMax: mt.HasMax, scope: scope}
	if mt.Min > 0 {
		buf, err := scope.Alloc(mt.Min*WasmPageSize, 8)
		if err != nil {
			return nil, err
		}
		lm.bytes = buf
	}
	return lm, nil
}

func (m *linearMemory) pages() uint32 { return uint32(len(m.bytes) / WasmPageSize) }

// Grow allocates delta additional pages, copying existing contents into
// the new allocation, and returns the previous page count, or -1 without
// trapping if the new size exceeds the declared maximum or the arena
// cannot satisfy it (spec.md
// §4.6: "memory.grow that cannot be satisfied returns -1 rather than
// trapping").
func (m *linearMemory) Grow(delta uint32) (int32, error) {
	old := m.pages()
	newPages := old + delta
	if m.hasMax && newPages > m.maxPages {
		return -1, nil
	}
	buf, err := m.scope.Alloc(newPages*WasmPageSize, 8)
	if err != nil {
		return -1, nil
	}
	copy(buf, m.bytes)
	m.bytes = buf
	return int32(old), nil
}

func (m *linearMemory) checkBounds(offset, size uint32) error {
	if uint64(offset)+uint64(size) > uint64(len(m.bytes)) {
		return rterr.ErrMemoryOutOfBounds()
	}
	return nil
}

// table holds funcref slots as function indexes (nullFuncref for null).
type table struct {
	elems []int32
}

func newTable(scope *memory.Scope, tt wasmir.TableType) (*table, error) {
	t := &table{}
	if tt.Min > 0 {
		buf, err := scope.Alloc(tt.Min*4, 4)
		if err != nil {
			return nil, err
		}
		t.elems = unsafe.Slice((*int32)(unsafe.Pointer(&buf[0])), tt.Min)
	}
	for i := range t.elems {
		t.elems[i] = nullFuncref
	}
	return t, nil
}

// ModuleInstance is the executable, linked state produced by Instantiate:
// resolved globals, the (at most one, per spec.md's CORE scope) linear
// memory, tables, and the function index space needed to dispatch calls.
type ModuleInstance struct {
	Module  *wasmir.Module
	scope   *memory.Scope
	Globals []uint64
	Memory  *linearMemory
	Tables  []*table
	exports map[string]wasmir.Export
}

// Global returns the current value of global index idx.
func (mi *ModuleInstance) Global(idx wasmir.Index) (uint64, error) {
	if int(idx) >= len(mi.Globals) {
		return 0, rterr.ErrUnknownIndex()
	}
	return mi.Globals[idx], nil
}

// SetGlobal stores val into global index idx, failing with
// Validation/UnknownIndex on an out-of-range index (the decoder's
// validateCrossReferences does not check the global indices of
// instructions, so this is where such an index is rejected).
func (mi *ModuleInstance) SetGlobal(idx wasmir.Index, val uint64) error {
	if int(idx) >= len(mi.Globals) {
		return rterr.ErrUnknownIndex()
	}
	mi.Globals[idx] = val
	return nil
}

// ReadBytes returns a copy of the length bytes at offset in the
// instance's linear memory, for use by the component layer's canonical
// ABI string/list lifting.
func (mi *ModuleInstance) ReadBytes(offset, length uint32) ([]byte, error) {
	if mi.Memory == nil {
		return nil, rterr.ErrUnsupported()
	}
	if err := mi.Memory.checkBounds(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, mi.Memory.bytes[offset:offset+length])
	return out, nil
}

// WriteBytes copies data into the instance's linear memory at offset,
// for use by the component layer's canonical ABI string/list lowering.
func (mi *ModuleInstance) WriteBytes(offset uint32, data []byte) error {
	if mi.Memory == nil {
		return rterr.ErrUnsupported()
	}
	if err := mi.Memory.checkBounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(mi.Memory.bytes[offset:], data)
	return nil
}

// ExportedFunc resolves an export name to a function index, failing with
// Validation/UnknownIndex if the export does not name a function.
func (mi *ModuleInstance) ExportedFunc(name string) (wasmir.Index, error) {
	exp, ok := mi.exports[name]
	if !ok || exp.Kind != wasmir.ExternKindFunc {
		return 0, rterr.ErrUnknownIndex()
	}
	return exp.Index, nil
}
