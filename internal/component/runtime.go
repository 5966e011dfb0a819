package component

import (
	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Signature describes one exported or imported component function in
// canonical ABI terms, used by Invoke to drive Lower/Lift.
type Signature struct {
	Params  []Type
	Results []Type
}

// Runtime wraps one or more engine instances with the canonical-ABI
// adapters, per-instance resource tables and cross-instance call gates
// of spec.md §4.8. It is the direct analogue of internal/scheduler.Scheduler
// one layer up: where the scheduler owns tasks keyed by TaskID, Runtime
// owns component instances keyed by InstanceID.
type Runtime struct {
	eng     *engine.Engine
	factory *memory.Factory
	log     *obs.Logger

	instances map[InstanceID]*Instance
	nextID    uint32

	// maxInstances bounds the number of simultaneously live component
	// instances, since Drop removes its entry from instances so this is
	// a live count, not a cumulative one (spec.md §6 "max_instances";
	// SPEC_FULL.md config section). 0 means unbounded.
	maxInstances int
}

// New constructs a component Runtime driving eng and allocating instance
// state through factory. log may be nil. maxInstances caps the number of
// simultaneously live instances; 0 means unbounded.
func New(eng *engine.Engine, factory *memory.Factory, log *obs.Logger, maxInstances int) *Runtime {
	if log == nil {
		log = obs.Discard()
	}
	return &Runtime{eng: eng, factory: factory, log: log, instances: make(map[InstanceID]*Instance), maxInstances: maxInstances}
}

// Instantiate links mod into a fresh component Instance, allocating its
// execution state from a Component-crate scope (spec.md §4.8
// "Instantiate(component, imports)").
func (r *Runtime) Instantiate(mod *wasmir.Module) (*Instance, error) {
	if r.maxInstances > 0 && len(r.instances) >= r.maxInstances {
		return nil, rterr.ErrCapacityExceeded()
	}
	scope, err := r.factory.EnterModuleScope(memory.Component)
	if err != nil {
		return nil, err
	}
	core, err := r.eng.Instantiate(mod, scope)
	if err != nil {
		_ = scope.Close()
		return nil, err
	}
	r.nextID++
	id := InstanceID(r.nextID)
	inst, err := newInstance(id, core, scope)
	if err != nil {
		_ = scope.Close()
		return nil, err
	}
	r.instances[id] = inst
	return inst, nil
}

// Lookup resolves an InstanceID to its Instance.
func (r *Runtime) Lookup(id InstanceID) (*Instance, error) {
	inst, ok := r.instances[id]
	if !ok {
		return nil, rterr.ErrUnknownIndex()
	}
	return inst, nil
}

// Invoke lowers args against sig.Params, calls export on the core
// engine, and lifts the core result slots back into component Vals per
// sig.Results (spec.md §4.8 "invoke(instance, export, args)").
func (r *Runtime) Invoke(id InstanceID, export string, sig Signature, args []Val) ([]Val, error) {
	inst, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	fnIndex, err := inst.Core.ExportedFunc(export)
	if err != nil {
		return nil, err
	}
	if len(args) != len(sig.Params) {
		return nil, rterr.ErrTypeMismatch()
	}

	coreArgs := make([]uint64, 0, FlatSlots(sig.Params))
	for _, a := range args {
		var err error
		coreArgs, err = Lower(a, inst.Core, &inst.nextPtr, coreArgs)
		if err != nil {
			return nil, err
		}
	}

	fuel := uint64(^uint64(0))
	coreResults, err := r.eng.Call(inst.Core, fnIndex, coreArgs, &fuel)
	if err != nil {
		return nil, err
	}

	out := make([]Val, 0, len(sig.Results))
	off := 0
	for _, rt := range sig.Results {
		v, n, err := Lift(rt, coreResults[off:], inst.Core)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		off += n
	}
	return out, nil
}

// CallGate performs a cross-instance call (spec.md §4.8 "Cross-instance
// call gates"): arguments are lowered in from, any KindOwn/KindBorrow
// handles are rewritten from from's handle space into to's, the call is
// invoked on to, and KindOwn/KindBorrow values in the result are
// rewritten back into from's handle space.
func (r *Runtime) CallGate(from, to InstanceID, export string, sig Signature, args []Val) ([]Val, error) {
	fromInst, err := r.Lookup(from)
	if err != nil {
		return nil, err
	}
	toInst, err := r.Lookup(to)
	if err != nil {
		return nil, err
	}

	rewritten := make([]Val, len(args))
	for i, a := range args {
		if a.Type.Kind == KindOwn || a.Type.Kind == KindBorrow {
			h, err := fromInst.Resources.Rewrite(a.Handle, from, a.Type.Kind == KindOwn, toInst.Resources, to)
			if err != nil {
				return nil, err
			}
			a.Handle = h
		}
		rewritten[i] = a
	}

	results, err := r.Invoke(to, export, sig, rewritten)
	if err != nil {
		return nil, err
	}

	for i, v := range results {
		if v.Type.Kind == KindOwn || v.Type.Kind == KindBorrow {
			h, err := toInst.Resources.Rewrite(v.Handle, to, v.Type.Kind == KindOwn, fromInst.Resources, from)
			if err != nil {
				return nil, err
			}
			results[i].Handle = h
		}
	}
	return results, nil
}

// Drop tears down instance id: every live resource it owns is dropped in
// LIFO allocation order, then the underlying engine scope is released.
// A non-zero live-resource count when Drop is called is a leak: the LIFO
// pass still drops those resources and the teardown completes, and Drop
// then reports Component/ResourceLeaked (spec.md §7 "dropped instances with leaked resources return
// Component/ResourceLeaked from drop_instance").
func (r *Runtime) Drop(id InstanceID) error {
	inst, err := r.Lookup(id)
	if err != nil {
		return err
	}
	live := inst.Resources.LiveCount()
	inst.Resources.DropAllLIFO(id)
	delete(r.instances, id)
	closeErr := inst.Close()
	if live > 0 {
		r.log.ResourceLeak(uint64(id), live)
		return rterr.ErrResourceLeaked()
	}
	return closeErr
}

// NewResource allocates a fresh owning handle of typeID in instance id's
// resource table, the canonical operation behind the OpCanonResourceNew
// instruction (spec.md §4.8).
func (r *Runtime) NewResource(id InstanceID, typeID uint32, representation uint64) (HandleID, error) {
	inst, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	return inst.Resources.New(typeID, representation, id)
}

// DropResource drops handle from instance id's table, the canonical
// operation behind OpCanonResourceDrop.
func (r *Runtime) DropResource(id InstanceID, handle HandleID) error {
	inst, err := r.Lookup(id)
	if err != nil {
		return err
	}
	return inst.Resources.Drop(handle, id)
}

// ResourceRep returns the raw representation backing handle, the
// canonical operation behind OpCanonResourceRep.
func (r *Runtime) ResourceRep(id InstanceID, handle HandleID) (uint64, error) {
	inst, err := r.Lookup(id)
	if err != nil {
		return 0, err
	}
	e, err := inst.Resources.Get(handle)
	if err != nil {
		return 0, err
	}
	return e.Representation, nil
}
