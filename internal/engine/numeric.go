package engine

import "github.com/pulseengine/wrt-sub001/internal/rterr"

// Integer division and remainder trap on division by zero and on the
// signed-overflow edge case (minInt / -1), per spec.md §4.6's "IEEE-754
// and two's-complement wrap semantics, explicit traps on
// division-by-zero and signed overflow" requirement. All other
// arithmetic wraps silently using Go's native two's-complement integer
// behavior.

func i32DivS(a, b int32) (int32, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	if a == -2147483648 && b == -1 {
		return 0, rterr.ErrDivisionTrap()
	}
	return a / b, nil
}

func i32DivU(a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	return a / b, nil
}

func i32RemS(a, b int32) (int32, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	if a == -2147483648 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func i32RemU(a, b uint32) (uint32, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	return a % b, nil
}

func i64DivS(a, b int64) (int64, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	if a == -9223372036854775808 && b == -1 {
		return 0, rterr.ErrDivisionTrap()
	}
	return a / b, nil
}

func i64DivU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	return a / b, nil
}

func i64RemS(a, b int64) (int64, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	if a == -9223372036854775808 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func i64RemU(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, rterr.ErrDivisionTrap()
	}
	return a % b, nil
}
