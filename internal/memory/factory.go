package memory

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

// Factory is the capability-aware memory factory of spec.md §4.3: it
// looks up a crate's Capability, checks it against the requested layout
// and the current ASIL level, then delegates to the crate's registered
// Provider.
type Factory struct {
	arena        *Arena
	capabilities *CapabilityContext
	safety       *safety.Context
	providers    [crateIDCount]Provider
	registered   [crateIDCount]bool
}

// NewFactory builds a Factory over arena using caps for capability
// lookups and sc to gate ASIL-floored allocations.
func NewFactory(arena *Arena, caps *CapabilityContext, sc *safety.Context) *Factory {
	return &Factory{arena: arena, capabilities: caps, safety: sc}
}

// RegisterProvider installs the backing Provider for a crate. Per-crate
// allocators are pre-registered at init, per spec.md §4.3.
func (f *Factory) RegisterProvider(id CrateID, p Provider) {
	f.providers[id] = p
	f.registered[id] = true
}

// Alloc allocates layout.Size bytes on behalf of crateID, checking the
// crate's capability and the current ASIL level before delegating to its
// registered provider.
func (f *Factory) Alloc(crateID CrateID, layout Layout) ([]byte, error) {
	cap, err := f.capabilities.Lookup(crateID)
	if err != nil {
		return nil, err
	}
	if layout.Size > cap.MaxBytes {
		return nil, rterr.ErrCapabilityDenied()
	}
	if f.safety.CurrentLevel() < cap.AsilFloor {
		f.safety.RecordViolation(rterr.Memory)
		return nil, rterr.ErrAsilTooLow()
	}
	if !f.registered[crateID] {
		return nil, rterr.New(rterr.Memory, rterr.MemoryCapabilityDenied, "no provider registered for crate")
	}
	return f.providers[crateID].Alloc(layout)
}

// EnterModuleScope returns a scope guard for crateID with the crate's
// default budget (spec.md §4.3: 64KiB for decoder and runtime).
func (f *Factory) EnterModuleScope(crateID CrateID) (*Scope, error) {
	cap, err := f.capabilities.Lookup(crateID)
	if err != nil {
		return nil, err
	}
	budget := cap.MaxBytes
	if budget == 0 {
		budget = DefaultModuleScopeBudget
	}
	return f.arena.EnterScope(crateID, budget)
}

// Arena exposes the underlying arena, primarily for tests.
func (f *Factory) Arena() *Arena { return f.arena }

// Capabilities exposes the capability context, primarily for tests and
// host-facing introspection.
func (f *Factory) Capabilities() *CapabilityContext { return f.capabilities }
