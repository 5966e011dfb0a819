package engine

import "github.com/pulseengine/wrt-sub001/internal/rterr"

func errStackUnderflow() error { return rterr.ErrTrap("operand stack underflow") }
func errBadLocalIndex() error  { return rterr.ErrUnknownIndex() }
func errBadBlockNesting() error { return rterr.ErrTypeMismatch() }
func errStackOverflow() error  { return rterr.ErrStackOverflow() }
