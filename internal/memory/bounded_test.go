package memory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/memory"
)

// testProvider returns a fresh bump-backed Provider over its own arena
// scope, enough headroom for one test's worth of bounded containers.
func testProvider(t *testing.T) memory.Provider {
	t.Helper()
	a := memory.NewArena(4096)
	scope, err := a.EnterScope(memory.Runtime, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scope.Close() })
	return memory.NewBumpProvider(scope, 4096)
}

func TestBoundedVecPushUpToCapacity(t *testing.T) {
	v, err := memory.NewBoundedVec[int](testProvider(t), 2)
	require.NoError(t, err)
	require.NoError(t, v.Push(1))
	require.NoError(t, v.Push(2))
	require.Error(t, v.Push(3))
	require.Equal(t, 2, v.Len())

	val, ok := v.Get(1)
	require.True(t, ok)
	require.Equal(t, 2, val)

	popped, ok := v.Pop()
	require.True(t, ok)
	require.Equal(t, 2, popped)
	require.Equal(t, 1, v.Len())
}

func TestBoundedVecTruncate(t *testing.T) {
	v, err := memory.NewBoundedVec[int](testProvider(t), 4)
	require.NoError(t, err)
	v.Push(1)
	v.Push(2)
	v.Push(3)
	v.Truncate(1)
	require.Equal(t, 1, v.Len())
	v.Truncate(10)
	require.Equal(t, 1, v.Len(), "truncating past current length is a no-op")
}

func TestBoundedMapSetGetDelete(t *testing.T) {
	m, err := memory.NewBoundedMap[string, int](testProvider(t), 2)
	require.NoError(t, err)
	require.NoError(t, m.Set("a", 1))
	require.NoError(t, m.Set("b", 2))
	require.Error(t, m.Set("c", 3))

	require.NoError(t, m.Set("a", 10), "updating an existing key never fails")
	val, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 10, val)

	require.True(t, m.Delete("a"))
	require.False(t, m.Delete("a"))
	require.NoError(t, m.Set("c", 3), "capacity freed up after delete")
}

func TestBoundedSetAddContainsRemove(t *testing.T) {
	s, err := memory.NewBoundedSet[int](testProvider(t), 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(1))
	require.NoError(t, s.Add(2))
	require.Error(t, s.Add(3))
	require.True(t, s.Contains(1))
	require.True(t, s.Remove(1))
	require.False(t, s.Contains(1))
}

func TestBoundedStringAppendWithinCapacity(t *testing.T) {
	s, err := memory.NewBoundedString(testProvider(t), 5)
	require.NoError(t, err)
	require.NoError(t, s.Append("ab"))
	require.NoError(t, s.Append("cd"))
	require.Error(t, s.Append("ef"), "appending past capacity fails without partial mutation")
	require.Equal(t, "abcd", s.String())
}

func TestBoundedQueueFIFOOrder(t *testing.T) {
	q, err := memory.NewBoundedQueue[int](testProvider(t), 2)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	require.Error(t, q.Enqueue(3))

	v, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.NoError(t, q.Enqueue(3))

	v, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestChecksum32IsStableAndSensitiveToInput(t *testing.T) {
	a := memory.Checksum32([]byte("hello"))
	b := memory.Checksum32([]byte("hello"))
	c := memory.Checksum32([]byte("world"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
