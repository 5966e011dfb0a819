// Package api defines the stable, host-facing types of the runtime's
// external interface (spec.md §6): the numeric error category the host
// maps to a process exit code, the ASIL level and enforcement mode a
// host selects at construction, and the opaque ID types identifying
// loaded components, instances and spawned tasks across the package
// boundary. Mirrors wazero's api package: a small set of decoupling
// types with no behavior of their own, re-exported by the root package
// rather than redefined by it.
package api

import (
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

// Category is the numeric error-category taxonomy a host maps to a
// process exit code (spec.md §6: "the runtime must expose the category
// numerically").
type Category = rterr.Category

// Re-exported category constants, stable across releases.
const (
	Core       = rterr.Core
	Component  = rterr.Component
	Resource   = rterr.Resource
	Memory     = rterr.Memory
	Validation = rterr.Validation
	Type       = rterr.Type
	Runtime    = rterr.Runtime
	System     = rterr.System
	Parse      = rterr.Parse
	Safety     = rterr.Safety
)

// AsilLevel is the host-selectable Automotive Safety Integrity Level.
type AsilLevel = safety.AsilLevel

const (
	QM = safety.QM
	A  = safety.A
	B  = safety.B
	C  = safety.C
	D  = safety.D
)

// EnforcementMode controls whether safety-context operations that would
// otherwise be rejected (e.g. an ASIL downgrade) are permitted.
type EnforcementMode = safety.EnforcementMode

const (
	Strict  = safety.Strict
	Lenient = safety.Lenient
)

// ComponentID identifies a decoded (and possibly cached) component or
// module within one Runtime, returned by Runtime.LoadComponent.
type ComponentID uint64

// InstanceID identifies an instantiated component within one Runtime,
// returned by Runtime.Instantiate.
type InstanceID uint64

// TaskID identifies a spawned task within one Runtime, returned by
// Runtime.Spawn.
type TaskID uint64

// ExitCode maps an error's Category to the non-zero process exit code a
// host-facing CLI should use (spec.md §6: "0 success, non-zero
// categorised by the error's category"). The specific numbering is a
// host concern; this is the default the runtime suggests.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := err.(*rterr.Error); ok {
		return int(e.Category()) + 1
	}
	return 1
}
