// Package host implements the abstract host-function boundary of
// spec.md §4.9: a registry of host functions keyed by (namespace, name),
// each declaring its core-Wasm signature, ASIL floor, and whether it may
// block. VerifySignature and CheckPolicy are the signature and
// ASIL/blocking checks against an entry; neither the engine nor the
// scheduler calls them.
package host

import (
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// maxRegistryEntries bounds the host registry, consistent with the
// bounded-container-only rule at ASIL-C/D (spec.md §4.4).
const maxRegistryEntries = 256

// Key identifies a host function by its two-part namespace/name import
// name, matching the (module, name) pair a core Wasm import declares.
type Key struct {
	Namespace string
	Name      string
}

// Func is the Go implementation of a host function, operating directly
// on core-Wasm value slots (the same uint64 slot encoding the engine
// uses internally), so it can be invoked without an intermediate
// marshaling step on the hot path.
type Func func(args []uint64) ([]uint64, error)

// Entry is one registered host function.
type Entry struct {
	Signature wasmir.FunctionType
	AsilFloor safety.AsilLevel
	Blocking  bool
	Fn        Func
}

// Registry is the abstract host-function registry of spec.md §4.9.
type Registry struct {
	entries *memory.BoundedMap[Key, Entry]
}

// NewRegistry constructs an empty Registry, drawing its backing storage
// from p.
func NewRegistry(p memory.Provider) (*Registry, error) {
	entries, err := memory.NewBoundedMap[Key, Entry](p, maxRegistryEntries)
	if err != nil {
		return nil, err
	}
	return &Registry{entries: entries}, nil
}

// Register installs entry under (namespace, name). Registering the same
// key twice overwrites the previous entry, matching wazero's
// HostModuleBuilder "last Export wins" convention.
func (r *Registry) Register(namespace, name string, entry Entry) error {
	return r.entries.Set(Key{Namespace: namespace, Name: name}, entry)
}

// Lookup resolves (namespace, name) to its registered Entry.
func (r *Registry) Lookup(namespace, name string) (Entry, error) {
	e, ok := r.entries.Get(Key{Namespace: namespace, Name: name})
	if !ok {
		return Entry{}, rterr.ErrHostUnavailable()
	}
	return e, nil
}

// VerifySignature checks that want matches the signature registered for
// (namespace, name), the link-time check spec.md §4.9 requires before the
// engine wires an import to this entry.
func (r *Registry) VerifySignature(namespace, name string, want wasmir.FunctionType) error {
	e, err := r.Lookup(namespace, name)
	if err != nil {
		return err
	}
	if !e.Signature.Equal(want) {
		return rterr.ErrTypeMismatch()
	}
	return nil
}

// CheckPolicy reports whether a task running at asil under policy may
// call the (namespace, name) host function, per spec.md §4.7's
// IsolatedDeterministic restriction ("additionally forbids any host-call
// that could block") and §4.9's ASIL-floor gate.
func (r *Registry) CheckPolicy(namespace, name string, asil safety.AsilLevel, forbidBlocking bool) error {
	e, err := r.Lookup(namespace, name)
	if err != nil {
		return err
	}
	if asil < e.AsilFloor {
		return rterr.ErrAsilTooLow()
	}
	if forbidBlocking && e.Blocking {
		return rterr.ErrPolicyViolation()
	}
	return nil
}

// Call invokes the registered (namespace, name) host function with args,
// after the caller has already performed VerifySignature/CheckPolicy —
// Call itself does not re-check policy, matching the engine's link-once,
// call-many model.
func (r *Registry) Call(namespace, name string, args []uint64) ([]uint64, error) {
	e, err := r.Lookup(namespace, name)
	if err != nil {
		return nil, err
	}
	return e.Fn(args)
}

// Len returns the number of registered host functions, primarily for
// tests.
func (r *Registry) Len() int { return r.entries.Len() }
