// Package wrt is the host-facing entry point for the safety-critical
// WebAssembly runtime described by spec.md §6: new_runtime, load/
// instantiate/invoke/spawn, and the safety controls, wired over the
// internal memory/decoder/engine/scheduler/component/host packages the
// same way wazero's root package wires its own internal engine,
// compiler and wasm packages behind a small surface.
package wrt

import (
	"github.com/pulseengine/wrt-sub001/api"
	"github.com/pulseengine/wrt-sub001/internal/component"
	"github.com/pulseengine/wrt-sub001/internal/decoder"
	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/host"
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/scheduler"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Runtime is one configured instance of the core runtime: its own safety
// context, memory arena/capabilities, engine, scheduler, component
// layer and host registry. Multiple Runtimes may coexist in one
// process, each independent (spec.md §5: "multiple threads may host
// independent runtime instances but do not share tasks").
type Runtime struct {
	config *RuntimeConfig
	log    *obs.Logger

	safety  *safety.Context
	arena   *memory.Arena
	caps    *memory.CapabilityContext
	factory *memory.Factory

	eng          *engine.Engine
	sched        *scheduler.Scheduler
	components   *component.Runtime
	hostRegistry *host.Registry

	cache   *moduleCache
	limits  decoder.Limits
}

// NewRuntime constructs a Runtime from config (spec.md §6
// "new_runtime(config)"). A nil config uses NewRuntimeConfig's defaults.
// The only failure path is the host registry's initial scope allocation,
// which cannot fail under a well-formed config — callers may safely
// ignore the error when using NewRuntimeConfig's defaults or simple
// overrides, but it is still surfaced rather than panicked on, matching
// this runtime's "no panics, traps are errors" discipline throughout.
func NewRuntime(config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = NewRuntimeConfig()
	}
	log := obs.Discard()
	if config.logWriter != nil {
		log = obs.New(config.logWriter)
	}

	sc := safety.New(config.asilLevel, config.enforcement, log)
	arena := memory.NewArena(config.heapSize)
	caps := memory.NewCapabilityContext()
	factory := memory.NewFactory(arena, caps, sc)
	eng := engine.New(factory, sc, log)
	sched := scheduler.New(eng, sc, log, config.globalFuel, config.maxTasks)
	comp := component.New(eng, factory, log, config.maxInstances)

	// The host registry outlives every module/component scope, so it
	// draws from its own Host-crate scope that is never closed for the
	// life of the Runtime rather than a scope tied to one load/instantiate
	// call.
	hostScope, err := factory.EnterModuleScope(memory.Host)
	if err != nil {
		return nil, err
	}
	registry, err := host.NewRegistry(memory.NewBumpProvider(hostScope, memory.DefaultModuleScopeBudget))
	if err != nil {
		_ = hostScope.Close()
		return nil, err
	}

	log.RuntimeInit(int(config.heapSize), config.asilLevel.String())

	return &Runtime{
		config:       config,
		log:          log,
		safety:       sc,
		arena:        arena,
		caps:         caps,
		factory:      factory,
		eng:          eng,
		sched:        sched,
		components:   comp,
		hostRegistry: registry,
		cache:        newModuleCache(config.maxCachedModules),
		limits:       decoder.DefaultLimits(config.asilLevel),
	}, nil
}

// LoadComponent decodes bytes into a validated module IR, caching the
// result by its checksum so repeated calls with identical bytes skip
// re-decoding (SPEC_FULL.md §4 "Module cache"), and returns the
// resulting api.ComponentID (spec.md §6 "load_component(bytes) →
// ComponentId").
func (r *Runtime) LoadComponent(bytes []byte) (api.ComponentID, error) {
	checksum := memory.Checksum32(bytes)
	if mod, ok := r.cache.get(checksum); ok {
		return api.ComponentID(mod.Checksum), nil
	}

	scope, err := r.factory.EnterModuleScope(memory.Decoder)
	if err != nil {
		return 0, err
	}
	defer scope.Close()

	mod, err := decoder.DecodeModule(bytes, r.limits, scope)
	if err != nil {
		return 0, err
	}
	r.cache.put(mod)
	return api.ComponentID(mod.Checksum), nil
}

func (r *Runtime) lookupModule(id api.ComponentID) (*wasmir.Module, error) {
	mod, ok := r.cache.get(uint32(id))
	if !ok {
		return nil, rterr.ErrUnknownIndex()
	}
	return mod, nil
}

// Instantiate links the previously loaded component id into a fresh
// instance (spec.md §6 "instantiate(ComponentId, imports) → InstanceId").
// Imports are not resolved against the host registry, neither here nor
// at call time: a call to an imported function fails in the engine with
// System/HostUnavailable (see internal/engine's design note on this).
func (r *Runtime) Instantiate(id api.ComponentID) (api.InstanceID, error) {
	mod, err := r.lookupModule(id)
	if err != nil {
		return 0, err
	}
	inst, err := r.components.Instantiate(mod)
	if err != nil {
		return 0, err
	}
	return api.InstanceID(inst.ID), nil
}

// Invoke calls export on instance id synchronously, lowering args and
// lifting results through the canonical ABI per sig (spec.md §6
// "invoke(InstanceId, export, args) → Result").
func (r *Runtime) Invoke(id api.InstanceID, export string, sig component.Signature, args []component.Val) ([]component.Val, error) {
	return r.components.Invoke(component.InstanceID(id), export, sig, args)
}

// SpawnOptions configures a spawned task (spec.md §6
// "spawn(InstanceId, export, args, options) → TaskId").
type SpawnOptions struct {
	Policy   scheduler.Policy
	Priority int
	Deadline uint64
	Fuel     uint64

	// Parent, if non-zero, records the spawned task as Parent's child, so
	// Cancel(Parent) cancels it first in post-order (spec.md §3
	// "parent?, children[]").
	Parent api.TaskID
}

// Spawn creates a task calling instance id's export asynchronously under
// the scheduler, returning its api.TaskID. Unlike Invoke, Spawn operates
// at the core-Wasm value level (not canonical ABI Vals): a component
// export's lowered core arguments must already be computed by the
// caller, since the scheduler drives raw engine.Execution steps and has
// no canonical-ABI knowledge (that lives one layer up, in
// internal/component, which only Invoke/CallGate consult).
func (r *Runtime) Spawn(id api.InstanceID, export string, coreArgs []uint64, opts SpawnOptions) (api.TaskID, error) {
	inst, err := r.components.Lookup(component.InstanceID(id))
	if err != nil {
		return 0, err
	}
	fnIndex, err := inst.Core.ExportedFunc(export)
	if err != nil {
		return 0, err
	}
	var taskID scheduler.TaskID
	if opts.Parent != 0 {
		taskID, err = r.sched.SpawnChild(scheduler.TaskID(opts.Parent), inst.Core, fnIndex, coreArgs, opts.Policy, opts.Priority, opts.Deadline, opts.Fuel)
	} else {
		taskID, err = r.sched.Spawn(inst.Core, fnIndex, coreArgs, opts.Policy, opts.Priority, opts.Deadline, opts.Fuel)
	}
	if err != nil {
		return 0, err
	}
	return api.TaskID(taskID), nil
}

// RunUntilIdle drives the scheduler until every task has completed,
// faulted, or been canceled, or until global fuel exhaustion pauses it
// (spec.md §6 "run_until_idle()").
func (r *Runtime) RunUntilIdle() error {
	return r.sched.WaitUntilIdle()
}

// Join blocks (by driving the scheduler) until task id finishes,
// returning its core-Wasm result slots or the error it faulted with.
func (r *Runtime) Join(id api.TaskID) ([]uint64, error) {
	return r.sched.Join(scheduler.TaskID(id))
}

// Cancel cooperatively cancels task id (spec.md §6 "cancel(TaskId)").
func (r *Runtime) Cancel(id api.TaskID) error {
	return r.sched.Cancel(scheduler.TaskID(id))
}

// DropInstance tears down instance id, asserting zero leaked resources
// (spec.md §6 "drop_instance(InstanceId)"; spec.md §7 "dropped instances
// with leaked resources return Component/ResourceLeaked").
func (r *Runtime) DropInstance(id api.InstanceID) error {
	return r.components.Drop(component.InstanceID(id))
}

// SetAsil adjusts the runtime's safety level (spec.md §6
// "set_asil(level)"), subject to the monotonicity rule in
// internal/safety.Context.SetLevel.
func (r *Runtime) SetAsil(level api.AsilLevel) (api.AsilLevel, error) {
	return r.safety.SetLevel(level)
}

// SafetySnapshot returns a value copy of the current safety state
// (spec.md §6 "safety_snapshot()").
func (r *Runtime) SafetySnapshot() safety.Snapshot {
	return r.safety.Snapshot()
}

// HostRegistry exposes the runtime's host-function registry for direct
// registration outside the HostModuleBuilder fluent API, primarily for
// tests and advanced embedders.
func (r *Runtime) HostRegistry() *host.Registry { return r.hostRegistry }
