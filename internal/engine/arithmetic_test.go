package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// divModule returns (i32, i32) -> i32 computing a / b via i32.div_s.
func divModule() *wasmir.Module {
	return &wasmir.Module{
		Types: []wasmir.FunctionType{{
			Params:  []wasmir.ValueType{wasmir.ValueTypeI32, wasmir.ValueTypeI32},
			Results: []wasmir.ValueType{wasmir.ValueTypeI32},
		}},
		Functions: []wasmir.Function{{
			TypeIndex: 0,
			Body: []wasmir.Instruction{
				{Op: wasmir.OpLocalGet, Index: 0},
				{Op: wasmir.OpLocalGet, Index: 1},
				{Op: wasmir.OpI32DivS},
			},
		}},
		Exports: []wasmir.Export{{Name: "div", Kind: wasmir.ExternKindFunc, Index: 0}},
	}
}

func TestI32DivSTrapsOnDivisionByZero(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(divModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	_, err = e.Call(inst, 0, []uint64{10, 0}, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Runtime, rterr.RuntimeDivisionTrap))
}

func TestI32DivSTrapsOnSignedOverflow(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(divModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	_, err = e.Call(inst, 0, []uint64{uint64(uint32(-2147483648)), uint64(uint32(-1))}, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Runtime, rterr.RuntimeDivisionTrap))
}

func TestI32DivSComputesQuotient(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(divModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	results, err := e.Call(inst, 0, []uint64{20, 3}, &fuel)
	require.NoError(t, err)
	require.EqualValues(t, 6, int32(results[0]))
}

// storeLoadModule returns () -> i32 that stores 0x2a at address 0 then
// loads it back, exercising both execStore and execLoad on one memory.
func storeLoadModule() *wasmir.Module {
	return &wasmir.Module{
		Types: []wasmir.FunctionType{
			{Results: []wasmir.ValueType{wasmir.ValueTypeI32}},
		},
		Functions: []wasmir.Function{{
			TypeIndex: 0,
			Body: []wasmir.Instruction{
				{Op: wasmir.OpI32Const, I32: 0},
				{Op: wasmir.OpI32Const, I32: 42},
				{Op: wasmir.OpI32Store},
				{Op: wasmir.OpI32Const, I32: 0},
				{Op: wasmir.OpI32Load},
			},
		}},
		Memories: []wasmir.MemoryType{{Min: 1}},
		Exports:  []wasmir.Export{{Name: "roundtrip", Kind: wasmir.ExternKindFunc, Index: 0}},
	}
}

func TestStoreThenLoadRoundTrips(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(storeLoadModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	results, err := e.Call(inst, 0, nil, &fuel)
	require.NoError(t, err)
	require.EqualValues(t, 42, int32(results[0]))
}

// oobLoadModule returns () -> i32 that loads from an address past its
// single-page memory.
func oobLoadModule() *wasmir.Module {
	return &wasmir.Module{
		Types: []wasmir.FunctionType{
			{Results: []wasmir.ValueType{wasmir.ValueTypeI32}},
		},
		Functions: []wasmir.Function{{
			TypeIndex: 0,
			Body: []wasmir.Instruction{
				{Op: wasmir.OpI32Const, I32: 1 << 20},
				{Op: wasmir.OpI32Load},
			},
		}},
		Memories: []wasmir.MemoryType{{Min: 1}},
		Exports:  []wasmir.Export{{Name: "oob", Kind: wasmir.ExternKindFunc, Index: 0}},
	}
}

func TestLoadOutOfBoundsFails(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(oobLoadModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	_, err = e.Call(inst, 0, nil, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryOutOfBounds))
}
