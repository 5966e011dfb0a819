package host

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

func addSig() wasmir.FunctionType {
	return wasmir.FunctionType{
		Params:  []wasmir.ValueType{wasmir.ValueTypeI32, wasmir.ValueTypeI32},
		Results: []wasmir.ValueType{wasmir.ValueTypeI32},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	a := memory.NewArena(1 << 16)
	scope, err := a.EnterScope(memory.Host, 1<<16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scope.Close() })
	r, err := NewRegistry(memory.NewBumpProvider(scope, 1<<16))
	require.NoError(t, err)
	return r
}

func TestRegisterAndCall(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register("env", "add", Entry{
		Signature: addSig(),
		AsilFloor: safety.QM,
		Fn: func(args []uint64) ([]uint64, error) {
			return []uint64{args[0] + args[1]}, nil
		},
	}))

	require.NoError(t, r.VerifySignature("env", "add", addSig()))

	out, err := r.Call("env", "add", []uint64{2, 3})
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, out)
}

func TestLookupUnknownFails(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Lookup("env", "missing")
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.System, rterr.SystemHostUnavailable))
}

func TestVerifySignatureMismatch(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register("env", "add", Entry{Signature: addSig(), Fn: func(a []uint64) ([]uint64, error) { return nil, nil }}))

	bad := wasmir.FunctionType{Params: []wasmir.ValueType{wasmir.ValueTypeI64}}
	err := r.VerifySignature("env", "add", bad)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Validation, rterr.ValidationTypeMismatch))
}

func TestCheckPolicyAsilFloor(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register("env", "secure_op", Entry{Signature: addSig(), AsilFloor: safety.C, Fn: func(a []uint64) ([]uint64, error) { return nil, nil }}))

	err := r.CheckPolicy("env", "secure_op", safety.A, false)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryAsilTooLow))

	require.NoError(t, r.CheckPolicy("env", "secure_op", safety.D, false))
}

func TestCheckPolicyForbidsBlockingUnderIsolatedDeterministic(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register("env", "sleep", Entry{
		Signature: addSig(),
		AsilFloor: safety.QM,
		Blocking:  true,
		Fn:        func(a []uint64) ([]uint64, error) { return nil, nil },
	}))

	err := r.CheckPolicy("env", "sleep", safety.D, true)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Safety, rterr.SafetyPolicyViolation))

	require.NoError(t, r.CheckPolicy("env", "sleep", safety.D, false))
}
