package component

import (
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
)

// maxResourcesPerInstance bounds a single instance's resource table, the
// BoundedMap capacity spec.md §3 "ResourceTable" names.
const maxResourcesPerInstance = 1024

// HandleID is an opaque resource handle index, never a pointer
// (spec.md §4.8 isolation invariant).
type HandleID uint32

// ResourceState is a resource entry's lifecycle state.
type ResourceState uint8

const (
	ResourceLive ResourceState = iota
	ResourceBorrowed
	ResourceDropped
)

// InstanceID identifies a component instance for its lifetime.
type InstanceID uint32

// Entry is one resource-table row (spec.md §3 "ResourceEntry").
type Entry struct {
	TypeID         uint32
	Representation uint64
	OwningInstance InstanceID
	RefCount       uint32
	State          ResourceState
}

// Table is a per-component-instance resource table: a bounded map of
// opaque HandleIDs to Entry, with a monotonically increasing handle
// allocator (spec.md §3 "ResourceTable").
type Table struct {
	entries *memory.BoundedMap[HandleID, Entry]
	order   []HandleID // insertion order, for LIFO teardown (spec.md §4.8 Drop)
	nextID  HandleID
}

// NewTable constructs an empty resource table for one component instance,
// drawing its backing storage from p.
func NewTable(p memory.Provider) (*Table, error) {
	entries, err := memory.NewBoundedMap[HandleID, Entry](p, maxResourcesPerInstance)
	if err != nil {
		return nil, err
	}
	return &Table{entries: entries}, nil
}

// New allocates a fresh owning handle for a resource of typeID backed by
// representation, owned by owner.
func (t *Table) New(typeID uint32, representation uint64, owner InstanceID) (HandleID, error) {
	t.nextID++
	id := t.nextID
	if err := t.entries.Set(id, Entry{TypeID: typeID, Representation: representation, OwningInstance: owner, RefCount: 1, State: ResourceLive}); err != nil {
		return 0, err
	}
	t.order = append(t.order, id)
	return id, nil
}

// Get resolves handle to its Entry.
func (t *Table) Get(handle HandleID) (Entry, error) {
	e, ok := t.entries.Get(handle)
	if !ok {
		return Entry{}, rterr.ErrHandleUnknown()
	}
	return e, nil
}

// Borrow records an additional reference to an existing handle without
// transferring ownership, returning the same handle per the Component
// Model's "borrow" semantics (a borrow is a scoped alias, not a new
// table row, in this runtime's simplified CORE model).
func (t *Table) Borrow(handle HandleID) (HandleID, error) {
	e, err := t.Get(handle)
	if err != nil {
		return 0, err
	}
	if e.State == ResourceDropped {
		return 0, rterr.ErrHandleUnknown()
	}
	e.RefCount++
	e.State = ResourceBorrowed
	if err := t.entries.Set(handle, e); err != nil {
		return 0, err
	}
	return handle, nil
}

// ReleaseBorrow reverses one Borrow call on handle, restoring it to Live
// once its reference count returns to the single owning reference.
func (t *Table) ReleaseBorrow(handle HandleID) error {
	e, err := t.Get(handle)
	if err != nil {
		return err
	}
	if e.RefCount > 1 {
		e.RefCount--
	}
	if e.RefCount <= 1 {
		e.State = ResourceLive
	}
	return t.entries.Set(handle, e)
}

// Drop removes handle, failing with Component/HandleWrongOwner if owner
// does not match the entry's OwningInstance or the entry is Borrowed.
func (t *Table) Drop(handle HandleID, owner InstanceID) error {
	e, err := t.Get(handle)
	if err != nil {
		return err
	}
	if e.OwningInstance != owner {
		return rterr.ErrHandleWrongOwner()
	}
	if e.State == ResourceBorrowed {
		return rterr.ErrHandleWrongOwner()
	}
	e.State = ResourceDropped
	t.entries.Delete(handle)
	for i, h := range t.order {
		if h == handle {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// LiveCount returns the number of entries not yet dropped, used by
// Runtime.Drop's zero-leak assertion (spec.md §3 "Lifecycle",
// §8 "Resource accounting").
func (t *Table) LiveCount() int { return t.entries.Len() }

// DropAllLIFO drops every remaining live resource in reverse allocation
// order (spec.md §4.8: "drop, which first drops all live resources in
// LIFO allocation order"), ignoring wrong-owner errors since every
// remaining entry in an instance's own table is, by construction, owned
// by that instance.
func (t *Table) DropAllLIFO(owner InstanceID) {
	for i := len(t.order) - 1; i >= 0; i-- {
		h := t.order[i]
		if e, ok := t.entries.Get(h); ok && e.OwningInstance == owner {
			t.entries.Delete(h)
		}
	}
	t.order = nil
}

// Rewrite transfers handle from this table (the caller's) into dst (the
// callee's) table, for a cross-instance call gate argument of kind
// KindOwn (full ownership transfer) or KindBorrow (temporary alias) —
// spec.md §4.8: "resource handles are rewritten to B's handle space".
func (t *Table) Rewrite(handle HandleID, owner InstanceID, own bool, dst *Table, dstOwner InstanceID) (HandleID, error) {
	e, err := t.Get(handle)
	if err != nil {
		return 0, err
	}
	if own {
		if e.OwningInstance != owner {
			return 0, rterr.ErrHandleWrongOwner()
		}
		if err := t.Drop(handle, owner); err != nil {
			return 0, err
		}
		return dst.New(e.TypeID, e.Representation, dstOwner)
	}
	// Borrow: the callee gets its own scoped alias entry (not a shared
	// row with the caller's table, since tables are per-instance), marked
	// Borrowed so the callee cannot Drop it as if it owned the resource.
	h, err := dst.New(e.TypeID, e.Representation, dstOwner)
	if err != nil {
		return 0, err
	}
	be, _ := dst.Get(h)
	be.State = ResourceBorrowed
	_ = dst.entries.Set(h, be)
	return h, nil
}
