package wasmir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

func TestFuelCostUsesTableForKnownOpcodes(t *testing.T) {
	require.EqualValues(t, 4, wasmir.Instruction{Op: wasmir.OpCall}.FuelCost())
	require.EqualValues(t, 8, wasmir.Instruction{Op: wasmir.OpCanonLift}.FuelCost())
}

func TestFuelCostDefaultsForUnlistedOpcodes(t *testing.T) {
	require.EqualValues(t, 1, wasmir.Instruction{Op: wasmir.OpI32Add}.FuelCost())
}

func TestChecksumIsStableForIdenticalInstructionsAndSensitiveToImmediates(t *testing.T) {
	a := wasmir.Instruction{Op: wasmir.OpI32Const, I32: 7}
	b := wasmir.Instruction{Op: wasmir.OpI32Const, I32: 7}
	c := wasmir.Instruction{Op: wasmir.OpI32Const, I32: 8}

	require.Equal(t, a.Checksum(), b.Checksum())
	require.NotEqual(t, a.Checksum(), c.Checksum())
}

func TestMarshalBinaryIncludesTargets(t *testing.T) {
	withTargets := wasmir.Instruction{Op: wasmir.OpBrTable, Targets: []wasmir.Index{1, 2, 3}}
	without := wasmir.Instruction{Op: wasmir.OpBrTable}
	require.Greater(t, len(withTargets.MarshalBinary()), len(without.MarshalBinary()))
}

func TestInstructionMarshalUnmarshalRoundTrips(t *testing.T) {
	cases := []wasmir.Instruction{
		{Op: wasmir.OpI32Const, I32: -7},
		{Op: wasmir.OpI64Const, I64: 1 << 40},
		{Op: wasmir.OpF32Const, F32: 3.5},
		{Op: wasmir.OpF64Const, F64: -2.25},
		{Op: wasmir.OpCall, Index: 12},
		{Op: wasmir.OpCallIndirect, Index: 3, Index2: 9},
		{Op: wasmir.OpI32Load, MemAlign: 2, MemOffset: 16},
		{Op: wasmir.OpBlock, Arity: 2},
		{Op: wasmir.OpBrTable, Targets: []wasmir.Index{1, 2, 3}, Index: 0},
		{Op: wasmir.OpUnreachable},
	}
	for _, want := range cases {
		buf := want.MarshalBinary()
		var got wasmir.Instruction
		require.NoError(t, got.UnmarshalBinary(buf))
		require.Equal(t, want, got)
		require.Equal(t, want.Checksum(), got.Checksum())
	}
}

func TestInstructionUnmarshalBinaryRejectsTruncatedInput(t *testing.T) {
	full := wasmir.Instruction{Op: wasmir.OpBrTable, Targets: []wasmir.Index{1, 2, 3}}.MarshalBinary()

	var tooShort wasmir.Instruction
	require.Error(t, tooShort.UnmarshalBinary(full[:4]))

	var truncatedTargets wasmir.Instruction
	require.Error(t, truncatedTargets.UnmarshalBinary(full[:len(full)-4]))
}

func TestFunctionTypeEqual(t *testing.T) {
	a := wasmir.FunctionType{Params: []wasmir.ValueType{wasmir.ValueTypeI32}, Results: []wasmir.ValueType{wasmir.ValueTypeI64}}
	b := wasmir.FunctionType{Params: []wasmir.ValueType{wasmir.ValueTypeI32}, Results: []wasmir.ValueType{wasmir.ValueTypeI64}}
	c := wasmir.FunctionType{Params: []wasmir.ValueType{wasmir.ValueTypeI64}, Results: []wasmir.ValueType{wasmir.ValueTypeI64}}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestModuleTypeOfResolvesImportedThenLocalFunctions(t *testing.T) {
	m := &wasmir.Module{
		Types: []wasmir.FunctionType{
			{Params: []wasmir.ValueType{wasmir.ValueTypeI32}},
			{Results: []wasmir.ValueType{wasmir.ValueTypeI64}},
		},
		Imports: []wasmir.Import{
			{Module: "env", Name: "f", Kind: wasmir.ExternKindFunc, TypeIndex: 0},
		},
		Functions: []wasmir.Function{
			{TypeIndex: 1},
		},
	}

	ft, ok := m.TypeOf(0)
	require.True(t, ok)
	require.Equal(t, m.Types[0], ft)

	ft, ok = m.TypeOf(1)
	require.True(t, ok)
	require.Equal(t, m.Types[1], ft)

	_, ok = m.TypeOf(2)
	require.False(t, ok)
}

func TestModuleFuncImportCount(t *testing.T) {
	m := &wasmir.Module{
		Imports: []wasmir.Import{
			{Kind: wasmir.ExternKindFunc},
			{Kind: wasmir.ExternKindMemory},
			{Kind: wasmir.ExternKindFunc},
		},
	}
	require.Equal(t, 2, m.FuncImportCount())
}
