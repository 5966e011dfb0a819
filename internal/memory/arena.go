package memory

import (
	"sync"
	"sync/atomic"

	"github.com/pulseengine/wrt-sub001/internal/rterr"
)

// DefaultHeapSize is the default static arena size (spec.md §3).
const DefaultHeapSize = 256 * 1024

// MaxScopeDepth bounds the nested scope stack.
const MaxScopeDepth = 16

// maxCASRetries bounds the bump-pointer compare-and-swap retry loop before
// Memory/Contention is raised (spec.md §4.2 step 4).
const maxCASRetries = 16

type scopeInfo struct {
	checkpoint uint32
	budget     uint32
	consumed   uint32
	crateID    CrateID
	epoch      uint64
}

// Arena is the process-wide static bump allocator. Allocation is
// lock-free (a single atomic CAS on the bump offset); the scope stack
// itself is guarded by a mutex, per spec.md §5.
type Arena struct {
	heap      []byte
	offset    atomic.Uint32
	mu        sync.Mutex
	scopes    [MaxScopeDepth]scopeInfo
	depth     int
	nextEpoch uint64
}

// NewArena allocates an Arena backed by a heap of size bytes.
func NewArena(size uint32) *Arena {
	if size == 0 {
		size = DefaultHeapSize
	}
	return &Arena{heap: make([]byte, size)}
}

// Scope is a RAII-style guard over one nested arena scope. Dropping it
// (calling Close) resets the bump offset to the scope's checkpoint and
// pops the scope stack. Scopes must close in LIFO order; Close fails with
// a scope-epoch mismatch if a younger scope is still live.
type Scope struct {
	arena   *Arena
	epoch   uint64
	index   int
	closed  bool
	crateID CrateID
}

// EnterScope pushes a new scope tagged with crateID and budget, returning
// a guard. Fails with Memory/NoScope if the stack is already at
// MaxScopeDepth.
func (a *Arena) EnterScope(crateID CrateID, budget uint32) (*Scope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.depth >= MaxScopeDepth {
		return nil, rterr.New(rterr.Memory, rterr.MemoryNoScope, "maximum nested scope depth exceeded")
	}
	checkpoint := a.offset.Load()
	a.nextEpoch++
	epoch := a.nextEpoch
	a.scopes[a.depth] = scopeInfo{checkpoint: checkpoint, budget: budget, crateID: crateID, epoch: epoch}
	a.depth++
	return &Scope{arena: a, epoch: epoch, index: a.depth - 1, crateID: crateID}, nil
}

// Close reclaims the scope's allocations in O(1) by resetting the bump
// offset to the scope's checkpoint. Closing out of LIFO order is
// rejected.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	a := s.arena
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.depth == 0 || a.scopes[a.depth-1].epoch != s.epoch {
		return rterr.New(rterr.Memory, rterr.MemoryNoScope, "scope closed out of LIFO order")
	}
	a.depth--
	a.offset.Store(a.scopes[a.depth].checkpoint)
	s.closed = true
	return nil
}

// Alloc allocates size bytes aligned to align within the current
// (innermost) scope, which must have been created with Close still
// pending for crateID.
func (s *Scope) Alloc(size, align uint32) ([]byte, error) {
	if s.closed {
		return nil, rterr.ErrNoScope()
	}
	return s.arena.alloc(s.index, size, align)
}

// Consumed returns the number of bytes consumed so far in this scope.
func (s *Scope) Consumed() uint32 {
	s.arena.mu.Lock()
	defer s.arena.mu.Unlock()
	return s.arena.scopes[s.index].consumed
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// alloc implements the algorithm from spec.md §4.2.
func (a *Arena) alloc(scopeIndex int, size, align uint32) ([]byte, error) {
	a.mu.Lock()
	if scopeIndex != a.depth-1 {
		a.mu.Unlock()
		return nil, rterr.New(rterr.Memory, rterr.MemoryNoScope, "allocation requested from a scope that is not innermost")
	}
	scope := &a.scopes[scopeIndex]
	checkpoint := scope.checkpoint
	budget := scope.budget
	a.mu.Unlock()

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		old := a.offset.Load()
		aligned := alignUp(old, align)
		if uint64(aligned)+uint64(size) > uint64(len(a.heap)) {
			return nil, rterr.ErrHeapExhausted()
		}
		newOffset := aligned + size
		if uint64(newOffset)-uint64(checkpoint) > uint64(budget) {
			return nil, rterr.ErrOutOfBudget()
		}
		if a.offset.CompareAndSwap(old, newOffset) {
			a.mu.Lock()
			if scopeIndex < a.depth {
				a.scopes[scopeIndex].consumed = newOffset - checkpoint
			}
			a.mu.Unlock()
			return a.heap[aligned:newOffset:newOffset], nil
		}
	}
	return nil, rterr.ErrContention()
}

// Offset returns the current bump offset, primarily for tests asserting
// the scope-discipline invariant in spec.md §8.
func (a *Arena) Offset() uint32 { return a.offset.Load() }

// Depth returns the current scope nesting depth.
func (a *Arena) Depth() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.depth
}
