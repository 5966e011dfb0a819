package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

func TestBumpProviderAllocAndVerifyAccess(t *testing.T) {
	a := memory.NewArena(1024)
	scope, err := a.EnterScope(memory.Runtime, 512)
	require.NoError(t, err)
	defer scope.Close()

	p := memory.NewBumpProvider(scope, 512)
	buf, err := p.Alloc(memory.Layout{Size: 16, Align: 1})
	require.NoError(t, err)
	require.Len(t, buf, 16)

	require.NoError(t, p.VerifyAccess(0, 512))
	require.Error(t, p.VerifyAccess(0, 513))
	require.True(t, p.CanAllocate(512))
	require.False(t, p.CanAllocate(513))
}

func TestPlatformProviderDelegatesToBacking(t *testing.T) {
	p := memory.NewPlatformProvider(fakeBacking{max: 64})
	buf, err := p.Alloc(memory.Layout{Size: 32})
	require.NoError(t, err)
	require.Len(t, buf, 32)
	require.True(t, p.CanAllocate(64))
	require.False(t, p.CanAllocate(65))
}

func TestCapabilityProviderEnforcesMaxBytesAndAsilFloor(t *testing.T) {
	sc := safety.New(safety.A, safety.Strict, obs.Discard())
	inner := memory.NewPlatformProvider(fakeBacking{max: 1 << 20})
	cap := memory.Capability{MaxBytes: 64, AsilFloor: safety.B}
	p := memory.NewCapabilityProvider(inner, cap, sc)

	_, err := p.Alloc(memory.Layout{Size: 8})
	require.Error(t, err, "current level A is below capability floor B")
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryAsilTooLow))

	_, err = sc.SetLevel(safety.B)
	require.NoError(t, err)

	_, err = p.Alloc(memory.Layout{Size: 128})
	require.Error(t, err, "128 exceeds the capability's MaxBytes of 64")
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryCapabilityDenied))

	buf, err := p.Alloc(memory.Layout{Size: 32})
	require.NoError(t, err)
	require.Len(t, buf, 32)
}

func TestCapabilityProviderMaxAllocationSizeIsTighterBound(t *testing.T) {
	sc := safety.New(safety.QM, safety.Strict, obs.Discard())
	inner := memory.NewPlatformProvider(fakeBacking{max: 16})
	p := memory.NewCapabilityProvider(inner, memory.Capability{MaxBytes: 64}, sc)
	require.EqualValues(t, 16, p.MaxAllocationSize())
}
