package wrt

import (
	"github.com/pulseengine/wrt-sub001/api"
	"github.com/pulseengine/wrt-sub001/internal/host"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// HostModuleBuilder fluently registers host functions into a Runtime's
// internal/host.Registry under one namespace (SPEC_FULL.md §4 "Builder
// API", mirroring wazero's NewHostModuleBuilder/HostFunctionBuilder
// chain: WithXxx methods returning the same interface-shaped type so
// calls compose, ending in Instantiate to commit the registrations).
type HostModuleBuilder struct {
	r         *Runtime
	namespace string
	pending   []pendingFunc
}

type pendingFunc struct {
	name  string
	entry host.Entry
}

// NewHostModuleBuilder starts building the namespace's host module.
func (r *Runtime) NewHostModuleBuilder(namespace string) *HostModuleBuilder {
	return &HostModuleBuilder{r: r, namespace: namespace}
}

// FunctionBuilder accumulates one host function's declaration before it
// is named with Export.
type FunctionBuilder struct {
	b         *HostModuleBuilder
	params    []wasmir.ValueType
	results   []wasmir.ValueType
	asilFloor api.AsilLevel
	blocking  bool
	fn        host.Func
}

// NewFunctionBuilder starts declaring one host function.
func (b *HostModuleBuilder) NewFunctionBuilder() *FunctionBuilder {
	return &FunctionBuilder{b: b}
}

// WithGoFunction sets fn's core-Wasm signature and Go implementation,
// matching wazero's WithGoFunction(fn, params, results) shape restricted
// to this runtime's core-value-slot calling convention.
func (f *FunctionBuilder) WithGoFunction(fn host.Func, params, results []wasmir.ValueType) *FunctionBuilder {
	f.params, f.results, f.fn = params, results, fn
	return f
}

// WithAsilFloor sets the minimum ASIL level at which the function may be
// called (spec.md §4.9).
func (f *FunctionBuilder) WithAsilFloor(level api.AsilLevel) *FunctionBuilder {
	f.asilFloor = level
	return f
}

// WithBlocking marks the function as one that may block, the flag that
// Registry.CheckPolicy rejects when called with forbidBlocking set
// (spec.md §4.7).
func (f *FunctionBuilder) WithBlocking(blocking bool) *FunctionBuilder {
	f.blocking = blocking
	return f
}

// Export names the function and queues it for registration, returning
// to the owning HostModuleBuilder so further functions can be declared.
func (f *FunctionBuilder) Export(name string) *HostModuleBuilder {
	f.b.pending = append(f.b.pending, pendingFunc{
		name: name,
		entry: host.Entry{
			Signature: wasmir.FunctionType{Params: f.params, Results: f.results},
			AsilFloor: f.asilFloor,
			Blocking:  f.blocking,
			Fn:        f.fn,
		},
	})
	return f.b
}

// Instantiate commits every queued function into the Runtime's host
// registry under the builder's namespace.
func (b *HostModuleBuilder) Instantiate() error {
	for _, p := range b.pending {
		if err := b.r.hostRegistry.Register(b.namespace, p.name, p.entry); err != nil {
			return err
		}
	}
	return nil
}
