package decoder

import "math"

func math32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func math64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }
func math32ToBits(f float32) uint32      { return math.Float32bits(f) }
func math64ToBits(f float64) uint64      { return math.Float64bits(f) }
