package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/obs"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/safety"
)

func newTestFactory(t *testing.T, level safety.AsilLevel) (*memory.Factory, *safety.Context) {
	t.Helper()
	arena := memory.NewArena(1 << 16)
	caps := memory.NewCapabilityContext()
	sc := safety.New(level, safety.Strict, obs.Discard())
	return memory.NewFactory(arena, caps, sc), sc
}

func TestFactoryAllocRejectsOversizeRequest(t *testing.T) {
	f, _ := newTestFactory(t, safety.QM)
	f.RegisterProvider(memory.Host, memory.NewPlatformProvider(fakeBacking{max: 1 << 20}))

	_, err := f.Alloc(memory.Host, memory.Layout{Size: 1 << 20, Align: 1})
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryCapabilityDenied))
}

func TestFactoryAllocRejectsBelowAsilFloor(t *testing.T) {
	f, _ := newTestFactory(t, safety.QM)
	f.Capabilities().Register(memory.Host, memory.Capability{MaxBytes: 1024, AsilFloor: safety.C})
	f.RegisterProvider(memory.Host, memory.NewPlatformProvider(fakeBacking{max: 1 << 20}))

	_, err := f.Alloc(memory.Host, memory.Layout{Size: 8, Align: 1})
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryAsilTooLow))
}

func TestFactoryAllocFailsWithoutRegisteredProvider(t *testing.T) {
	f, _ := newTestFactory(t, safety.QM)
	_, err := f.Alloc(memory.Host, memory.Layout{Size: 8, Align: 1})
	require.Error(t, err)
}

func TestFactoryAllocSucceedsWithRegisteredProvider(t *testing.T) {
	f, _ := newTestFactory(t, safety.QM)
	f.RegisterProvider(memory.Host, memory.NewPlatformProvider(fakeBacking{max: 1 << 20}))

	buf, err := f.Alloc(memory.Host, memory.Layout{Size: 8, Align: 1})
	require.NoError(t, err)
	require.Len(t, buf, 8)
}

func TestFactoryEnterModuleScopeUsesCapabilityBudget(t *testing.T) {
	f, _ := newTestFactory(t, safety.QM)
	scope, err := f.EnterModuleScope(memory.Decoder)
	require.NoError(t, err)
	defer scope.Close()

	_, err = scope.Alloc(memory.DefaultModuleScopeBudget+1, 1)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Memory, rterr.MemoryOutOfBudget))
}

type fakeBacking struct{ max uint32 }

func (f fakeBacking) Allocate(size uint32) ([]byte, error) { return make([]byte, size), nil }
func (f fakeBacking) Free(buf []byte)                      {}
func (f fakeBacking) MaxAllocationSize() uint32             { return f.max }
