package component

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/engine"
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// newTestInstance builds a bare ModuleInstance with a two-page linear
// memory, enough backing store for string/list canonical ABI round
// trips, without going through the decoder.
func newTestInstance(t *testing.T) *engine.ModuleInstance {
	t.Helper()
	arena := memory.NewArena(memory.DefaultHeapSize)
	caps := memory.NewCapabilityContext()
	sc := safety.New(safety.QM, safety.Strict, obs.Discard())
	factory := memory.NewFactory(arena, caps, sc)
	scope, err := factory.EnterModuleScope(memory.Component)
	require.NoError(t, err)

	eng := engine.New(factory, sc, obs.Discard())
	mod := &wasmir.Module{Memories: []wasmir.MemoryType{{Min: 2}}}
	inst, err := eng.Instantiate(mod, scope)
	require.NoError(t, err)
	return inst
}

func TestLowerLiftStringRoundTrip(t *testing.T) {
	inst := newTestInstance(t)
	ptr := uint32(1 << 16)

	v := Val{Type: Type{Kind: KindString}, Str: "hello, component"}
	slots, err := Lower(v, inst, &ptr, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	out, n, err := Lift(Type{Kind: KindString}, slots, inst)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hello, component", out.Str)
}

func TestLowerLiftRecordRoundTrip(t *testing.T) {
	inst := newTestInstance(t)
	ptr := uint32(1 << 16)

	recType := Type{Kind: KindRecord, Fields: []Type{{Kind: KindU32}, {Kind: KindBool}}}
	v := Val{Type: recType, Fields: []Val{
		{Type: Type{Kind: KindU32}, U32: 42},
		{Type: Type{Kind: KindBool}, Bool: true},
	}}

	slots, err := Lower(v, inst, &ptr, nil)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	out, n, err := Lift(recType, slots, inst)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.EqualValues(t, 42, out.Fields[0].U32)
	require.True(t, out.Fields[1].Bool)
}

func TestLowerLiftOptionRoundTrip(t *testing.T) {
	inst := newTestInstance(t)
	ptr := uint32(1 << 16)

	optType := Type{Kind: KindOption, ElementType: &Type{Kind: KindU32}}
	payload := Val{Type: Type{Kind: KindU32}, U32: 7}
	some := Val{Type: optType, Case: 1, Payload: &payload}

	slots, err := Lower(some, inst, &ptr, nil)
	require.NoError(t, err)

	out, _, err := Lift(optType, slots, inst)
	require.NoError(t, err)
	require.Equal(t, 1, out.Case)
	require.EqualValues(t, 7, out.Payload.U32)

	none := Val{Type: optType, Case: 0}
	slots, err = Lower(none, inst, &ptr, nil)
	require.NoError(t, err)
	out, _, err = Lift(optType, slots, inst)
	require.NoError(t, err)
	require.Equal(t, 0, out.Case)
}

func TestFlatSlotsMatchesLowerLength(t *testing.T) {
	recType := Type{Kind: KindRecord, Fields: []Type{{Kind: KindU32}, {Kind: KindString}}}
	require.Equal(t, 3, FlatSlots([]Type{recType}))

	inst := newTestInstance(t)
	ptr := uint32(1 << 16)
	v := Val{Type: recType, Fields: []Val{
		{Type: Type{Kind: KindU32}, U32: 1},
		{Type: Type{Kind: KindString}, Str: "ab"},
	}}
	slots, err := Lower(v, inst, &ptr, nil)
	require.NoError(t, err)
	require.Len(t, slots, FlatSlots([]Type{recType}))
}
