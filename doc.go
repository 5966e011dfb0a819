// Package wrt is the CORE of a safety-critical WebAssembly runtime for
// ISO 26262 ASIL-A...D automotive, aerospace and embedded deployments
// (spec.md §1). It loads and validates Wasm modules and Component Model
// components and executes them under bounded-memory, fuel-metered,
// cooperatively-scheduled resource policies with deterministic failure
// semantics.
//
// The host-facing surface is small and lives at this package's root:
// NewRuntime, LoadComponent, Instantiate, Invoke, Spawn, RunUntilIdle,
// Cancel, DropInstance, SetAsil and SafetySnapshot (spec.md §6). Every
// other package under internal/ is an implementation detail this
// package wires together: internal/safety (ASIL state), internal/memory
// (the bump arena, capability-bounded providers and bounded containers),
// internal/decoder and internal/wasmir (the streaming decoder and its
// IR), internal/engine (the stackless interpreter), internal/scheduler
// (the cooperative fuel/priority scheduler), internal/component (the
// canonical-ABI Component Model layer) and internal/host (the abstract
// host-function boundary).
package wrt
