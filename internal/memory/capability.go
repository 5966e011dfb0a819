package memory

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

// CrateID is a dense small integer identifying the subsystem asking for
// memory, used as the capability-context lookup key.
type CrateID uint8

const (
	Foundation CrateID = iota
	Decoder
	Runtime
	Component
	Host
	Platform

	crateIDCount
)

func (c CrateID) String() string {
	switch c {
	case Foundation:
		return "foundation"
	case Decoder:
		return "decoder"
	case Runtime:
		return "runtime"
	case Component:
		return "component"
	case Host:
		return "host"
	case Platform:
		return "platform"
	default:
		return "unknown"
	}
}

// Permissions is a bitmask of what a capability holder may do.
type Permissions uint8

const (
	PermRead Permissions = 1 << iota
	PermWrite
	PermExecute
)

// Capability defines the maximum allocation a holder may request and the
// minimum ASIL level at which the capability is valid.
type Capability struct {
	MaxBytes    uint32
	Alignment   uint32
	Permissions Permissions
	AsilFloor   safety.AsilLevel
}

// DefaultModuleScopeBudget is the crate-specific default budget handed to
// EnterModuleScope for the decoder and runtime crates (spec.md §4.3).
const DefaultModuleScopeBudget = 64 * 1024

// CapabilityContext maps a CrateID to its pre-registered Capability.
type CapabilityContext struct {
	entries [crateIDCount]Capability
	set     [crateIDCount]bool
}

// NewCapabilityContext builds a context with the runtime's default
// per-crate capabilities. Callers may override entries with Register
// before the context is used.
func NewCapabilityContext() *CapabilityContext {
	cc := &CapabilityContext{}
	cc.Register(Foundation, Capability{MaxBytes: 256 * 1024, Alignment: 8, Permissions: PermRead | PermWrite, AsilFloor: safety.QM})
	cc.Register(Decoder, Capability{MaxBytes: DefaultModuleScopeBudget, Alignment: 8, Permissions: PermRead | PermWrite, AsilFloor: safety.QM})
	cc.Register(Runtime, Capability{MaxBytes: DefaultModuleScopeBudget, Alignment: 16, Permissions: PermRead | PermWrite, AsilFloor: safety.QM})
	cc.Register(Component, Capability{MaxBytes: 32 * 1024, Alignment: 8, Permissions: PermRead | PermWrite, AsilFloor: safety.QM})
	cc.Register(Host, Capability{MaxBytes: 32 * 1024, Alignment: 8, Permissions: PermRead, AsilFloor: safety.QM})
	cc.Register(Platform, Capability{MaxBytes: 256 * 1024, Alignment: 16, Permissions: PermRead | PermWrite | PermExecute, AsilFloor: safety.QM})
	return cc
}

// Register installs or overwrites the capability for id.
func (cc *CapabilityContext) Register(id CrateID, cap Capability) {
	cc.entries[id] = cap
	cc.set[id] = true
}

// Lookup returns the capability registered for id.
func (cc *CapabilityContext) Lookup(id CrateID) (Capability, error) {
	if int(id) >= len(cc.entries) || !cc.set[id] {
		return Capability{}, rterr.New(rterr.Memory, rterr.MemoryCapabilityDenied, "no capability registered for crate")
	}
	return cc.entries[id], nil
}
