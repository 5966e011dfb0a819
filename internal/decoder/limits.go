package decoder

import "github.com/pulseengine/wrt-sub001/internal/safety"

// Limits bounds the cardinality of decoded module/component entities.
// Exceeding any limit fails decoding with Parse/LimitExceeded before the
// offending entity's body is parsed (spec.md §4.5, §8 boundary scenario
// 1). Limits are ASIL-dependent: tighter at C/D.
type Limits struct {
	MaxFunctions uint32
	MaxLocals    uint32
	MaxTypes     uint32
	MaxTables    uint32
	MaxMemories  uint32
	MaxGlobals   uint32
	MaxExports   uint32
	MaxImports   uint32
	MaxElements  uint32
	MaxDataSegs  uint32
	MaxNameBytes int
}

// DefaultLimits returns the limits in effect for the given ASIL level.
func DefaultLimits(level safety.AsilLevel) Limits {
	switch {
	case level >= safety.C:
		return Limits{
			MaxFunctions: 512,
			MaxLocals:    64,
			MaxTypes:     256,
			MaxTables:    4,
			MaxMemories:  1,
			MaxGlobals:   256,
			MaxExports:   256,
			MaxImports:   256,
			MaxElements:  64,
			MaxDataSegs:  64,
			MaxNameBytes: 256,
		}
	case level == safety.B:
		return Limits{
			MaxFunctions: 4096,
			MaxLocals:    256,
			MaxTypes:     2048,
			MaxTables:    16,
			MaxMemories:  4,
			MaxGlobals:   2048,
			MaxExports:   2048,
			MaxImports:   2048,
			MaxElements:  512,
			MaxDataSegs:  512,
			MaxNameBytes: 1024,
		}
	default: // QM, A
		return Limits{
			MaxFunctions: 65536,
			MaxLocals:    1024,
			MaxTypes:     65536,
			MaxTables:    64,
			MaxMemories:  16,
			MaxGlobals:   65536,
			MaxExports:   65536,
			MaxImports:   65536,
			MaxElements:  4096,
			MaxDataSegs:  4096,
			MaxNameBytes: 65536,
		}
	}
}
