package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

func TestNewCapabilityContextPreregistersAllCrates(t *testing.T) {
	cc := memory.NewCapabilityContext()
	cap, err := cc.Lookup(memory.Decoder)
	require.NoError(t, err)
	require.EqualValues(t, memory.DefaultModuleScopeBudget, cap.MaxBytes)
}

func TestCapabilityContextLookupUnregisteredFails(t *testing.T) {
	cc := &memory.CapabilityContext{}
	_, err := cc.Lookup(memory.Decoder)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryCapabilityDenied))
}

func TestCapabilityContextRegisterOverrides(t *testing.T) {
	cc := memory.NewCapabilityContext()
	cc.Register(memory.Host, memory.Capability{MaxBytes: 1, Alignment: 1, AsilFloor: safety.D})
	cap, err := cc.Lookup(memory.Host)
	require.NoError(t, err)
	require.EqualValues(t, 1, cap.MaxBytes)
	require.Equal(t, safety.D, cap.AsilFloor)
}

func TestCrateIDStringKnownAndUnknown(t *testing.T) {
	require.Equal(t, "component", memory.Component.String())
	require.Equal(t, "unknown", memory.CrateID(200).String())
}
