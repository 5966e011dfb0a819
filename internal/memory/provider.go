package memory

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

// Layout describes a requested allocation.
type Layout struct {
	Size  uint32
	Align uint32
}

// Provider is the polymorphic sink for allocations described in
// spec.md §3. It is implemented by bumpProvider (arena-backed),
// platformProvider (OS-backed, abstract here per spec.md's scope), and
// capabilityProvider (a decorator enforcing a Capability over any other
// Provider).
type Provider interface {
	Alloc(layout Layout) ([]byte, error)
	VerifyAccess(offset, length uint32) error
	MaxAllocationSize() uint32
	CanAllocate(size uint32) bool
}

// bumpProvider allocates from a live arena Scope.
type bumpProvider struct {
	scope *Scope
	cap   uint32
}

// NewBumpProvider wraps scope as a Provider, reporting cap as the maximum
// single allocation size it will claim to support (the scope's budget).
func NewBumpProvider(scope *Scope, cap uint32) Provider {
	return &bumpProvider{scope: scope, cap: cap}
}

func (p *bumpProvider) Alloc(layout Layout) ([]byte, error) {
	return p.scope.Alloc(layout.Size, layout.Align)
}

func (p *bumpProvider) VerifyAccess(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(p.cap) {
		return rterr.ErrMemoryOutOfBounds()
	}
	return nil
}

func (p *bumpProvider) MaxAllocationSize() uint32 { return p.cap }

func (p *bumpProvider) CanAllocate(size uint32) bool { return size <= p.cap }

// PlatformBacking is the abstract interface a deployment-specific
// allocator (Linux/QNX/macOS/Zephyr/VxWorks) must implement. Only the
// interface is specified; backends are out of scope (spec.md §1).
type PlatformBacking interface {
	Allocate(size uint32) ([]byte, error)
	Free(buf []byte)
	MaxAllocationSize() uint32
}

// platformProvider delegates to a PlatformBacking implementation. It is
// the only provider permitted to allocate with no active scope
// (spec.md §4.2 step 1).
type platformProvider struct {
	backing PlatformBacking
}

// NewPlatformProvider wraps a PlatformBacking as a Provider.
func NewPlatformProvider(backing PlatformBacking) Provider {
	return &platformProvider{backing: backing}
}

func (p *platformProvider) Alloc(layout Layout) ([]byte, error) {
	return p.backing.Allocate(layout.Size)
}

func (p *platformProvider) VerifyAccess(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(p.backing.MaxAllocationSize()) {
		return rterr.ErrMemoryOutOfBounds()
	}
	return nil
}

func (p *platformProvider) MaxAllocationSize() uint32 { return p.backing.MaxAllocationSize() }

func (p *platformProvider) CanAllocate(size uint32) bool {
	return size <= p.backing.MaxAllocationSize()
}

// capabilityProvider decorates an underlying Provider with a Capability
// check: requested size must fit the capability's MaxBytes and the
// current ASIL level must be >= the capability's floor.
type capabilityProvider struct {
	inner Provider
	cap   Capability
	sc    *safety.Context
}

// NewCapabilityProvider wraps inner, gating every allocation on cap and
// sc's current ASIL level.
func NewCapabilityProvider(inner Provider, cap Capability, sc *safety.Context) Provider {
	return &capabilityProvider{inner: inner, cap: cap, sc: sc}
}

func (p *capabilityProvider) Alloc(layout Layout) ([]byte, error) {
	if layout.Size > p.cap.MaxBytes {
		return nil, rterr.ErrCapabilityDenied()
	}
	if p.sc.CurrentLevel() < p.cap.AsilFloor {
		p.sc.RecordViolation(rterr.Memory)
		return nil, rterr.ErrAsilTooLow()
	}
	return p.inner.Alloc(layout)
}

func (p *capabilityProvider) VerifyAccess(offset, length uint32) error {
	return p.inner.VerifyAccess(offset, length)
}

func (p *capabilityProvider) MaxAllocationSize() uint32 {
	if inner := p.inner.MaxAllocationSize(); inner < p.cap.MaxBytes {
		return inner
	}
	return p.cap.MaxBytes
}

func (p *capabilityProvider) CanAllocate(size uint32) bool {
	return size <= p.cap.MaxBytes && p.inner.CanAllocate(size)
}
