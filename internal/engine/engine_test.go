package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

func newTestEngine(t *testing.T) (*engine.Engine, *memory.Scope) {
	t.Helper()
	arena := memory.NewArena(1 << 16)
	caps := memory.NewCapabilityContext()
	sc := safety.New(safety.QM, safety.Strict, obs.Discard())
	factory := memory.NewFactory(arena, caps, sc)
	scope, err := factory.EnterModuleScope(memory.Runtime)
	require.NoError(t, err)
	t.Cleanup(func() { scope.Close() })
	return engine.New(factory, sc, obs.Discard()), scope
}

// addModule returns (i32, i32) -> i32 computing a + b via local.get/i32.add.
func addModule() *wasmir.Module {
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
				{Op: wasmir.OpI32Add},
			},
		}},
		Exports: []wasmir.Export{{Name: "add", Kind: wasmir.ExternKindFunc, Index: 0}},
	}
}

func TestInstantiateAndCallAdd(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(addModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	results, err := e.Call(inst, 0, []uint64{2, 3}, &fuel)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.EqualValues(t, 5, int32(results[0]))
}

func TestCallWrongArgCountFails(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(addModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	_, err = e.Call(inst, 0, []uint64{1}, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Validation, rterr.ValidationTypeMismatch))
}

func TestCallUnknownFunctionIndexFails(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(addModule(), scope)
	require.NoError(t, err)

	fuel := uint64(100)
	_, err = e.Call(inst, 7, nil, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Validation, rterr.ValidationUnknownIndex))
}

func TestStepExhaustsFuelBeforeCompletion(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(addModule(), scope)
	require.NoError(t, err)

	ex, err := e.NewExecution(inst, 0, []uint64{2, 3})
	require.NoError(t, err)

	fuel := uint64(1) // one local.get's worth, not enough for the whole body
	_, err = e.Resume(ex, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Runtime, rterr.RuntimeFuelExhausted))
	require.False(t, ex.Done())
}

func TestResumeContinuesAcrossMultipleFuelGrants(t *testing.T) {
	e, scope := newTestEngine(t)
	inst, err := e.Instantiate(addModule(), scope)
	require.NoError(t, err)

	ex, err := e.NewExecution(inst, 0, []uint64{10, 20})
	require.NoError(t, err)

	for !ex.Done() {
		fuel := uint64(1)
		_, err := e.Resume(ex, &fuel)
		if err != nil {
			require.True(t, rterr.Is(err, rterr.Runtime, rterr.RuntimeFuelExhausted))
		}
	}
	require.EqualValues(t, 30, int32(ex.Results()[0]))
}

func TestUnreachableTraps(t *testing.T) {
	e, scope := newTestEngine(t)
	mod := &wasmir.Module{
		Types:     []wasmir.FunctionType{{}},
		Functions: []wasmir.Function{{TypeIndex: 0, Body: []wasmir.Instruction{{Op: wasmir.OpUnreachable}}}},
		Exports:   []wasmir.Export{{Name: "trap", Kind: wasmir.ExternKindFunc, Index: 0}},
	}
	inst, err := e.Instantiate(mod, scope)
	require.NoError(t, err)

	fuel := uint64(10)
	_, err = e.Call(inst, 0, nil, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Runtime, rterr.RuntimeTrap))
}

func TestCallIndirectCFIViolationOnSignatureMismatch(t *testing.T) {
	e, scope := newTestEngine(t)
	mod := &wasmir.Module{
		Types: []wasmir.FunctionType{
			{Results: []wasmir.ValueType{wasmir.ValueTypeI32}},
			{Params: []wasmir.ValueType{wasmir.ValueTypeI32}},
		},
		Functions: []wasmir.Function{
			{TypeIndex: 1, Body: []wasmir.Instruction{{Op: wasmir.OpLocalGet, Index: 0}}},
			{TypeIndex: 0, Body: []wasmir.Instruction{
				{Op: wasmir.OpI32Const, I32: 0},
				{Op: wasmir.OpCallIndirect, Index: 0, Index2: 0},
			}},
		},
		Tables:   []wasmir.TableType{{ElemType: wasmir.ValueTypeFuncref, Min: 1}},
		Elements: []wasmir.Element{{TableIndex: 0, Offset: wasmir.Instruction{Op: wasmir.OpI32Const}, FuncIndexes: []wasmir.Index{0}}},
		Exports:  []wasmir.Export{{Name: "caller", Kind: wasmir.ExternKindFunc, Index: 1}},
	}
	inst, err := e.Instantiate(mod, scope)
	require.NoError(t, err)

	fuel := uint64(20)
	_, err = e.Call(inst, 1, nil, &fuel)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Runtime, rterr.RuntimeCFIViolation))
}
