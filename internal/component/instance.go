package component

import (
	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/memory"
)

// dataSegmentArena is the byte offset component-level string/list
// canonical-ABI lowering starts writing at within an instance's linear
// memory, chosen past a conservative low-memory reservation so it never
// collides with a module's own static data segments in this runtime's
// simplified single-linear-memory CORE scope.
const dataSegmentArena = 1 << 16

// Instance is one instantiated component: the underlying core engine
// ModuleInstance plus the per-instance resource table spec.md §4.8
// requires ("a resource table per instance").
type Instance struct {
	ID        InstanceID
	Core      *engine.ModuleInstance
	Resources *Table
	scope     *memory.Scope
	nextPtr   uint32
}

func newInstance(id InstanceID, core *engine.ModuleInstance, scope *memory.Scope) (*Instance, error) {
	resources, err := NewTable(memory.NewBumpProvider(scope, memory.DefaultModuleScopeBudget))
	if err != nil {
		return nil, err
	}
	return &Instance{ID: id, Core: core, Resources: resources, scope: scope, nextPtr: dataSegmentArena}, nil
}

// Close releases the instance's decoder/runtime scope, reclaiming its
// arena allocation in O(1) (spec.md §2 "scope exits reclaim memory in
// O(1)").
func (inst *Instance) Close() error {
	return inst.scope.Close()
}
