package wrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

func TestModuleCachePutGet(t *testing.T) {
	c := newModuleCache(2)
	mod := &wasmir.Module{Checksum: 1}
	c.put(mod)

	got, ok := c.get(1)
	require.True(t, ok)
	require.Same(t, mod, got)
	require.Equal(t, 1, c.len())
}

func TestModuleCacheEvictsOldestOnceFull(t *testing.T) {
	c := newModuleCache(2)
	c.put(&wasmir.Module{Checksum: 1})
	c.put(&wasmir.Module{Checksum: 2})
	c.put(&wasmir.Module{Checksum: 3})

	require.Equal(t, 2, c.len())
	_, ok := c.get(1)
	require.False(t, ok, "oldest entry must be evicted once the cache is full")
	_, ok = c.get(3)
	require.True(t, ok)
}

func TestModuleCachePutDuplicateChecksumIsNoop(t *testing.T) {
	c := newModuleCache(2)
	first := &wasmir.Module{Checksum: 1}
	c.put(first)
	c.put(&wasmir.Module{Checksum: 1})

	got, ok := c.get(1)
	require.True(t, ok)
	require.Same(t, first, got)
	require.Equal(t, 1, c.len())
}
