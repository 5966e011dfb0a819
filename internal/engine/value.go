package engine

import "math"

// Operand-stack slots are raw 64-bit words; the opcode dispatching each
// push/pop determines how the bits are interpreted (spec.md §4.6's
// numeric-semantics requirement is implemented per-opcode in step.go
// rather than via a runtime type tag on every slot, matching the
// production interpreter style wazero itself uses).

func i32ToSlot(v int32) uint64   { return uint64(uint32(v)) }
func slotToI32(s uint64) int32   { return int32(uint32(s)) }
func i64ToSlot(v int64) uint64   { return uint64(v) }
func slotToI64(s uint64) int64   { return int64(s) }
func f32ToSlot(v float32) uint64 { return uint64(math.Float32bits(v)) }
func slotToF32(s uint64) float32 { return math.Float32frombits(uint32(s)) }
func f64ToSlot(v float64) uint64 { return math.Float64bits(v) }
func slotToF64(s uint64) float64 { return math.Float64frombits(s) }
