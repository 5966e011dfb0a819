package wrt

import (
	"sync"

	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// moduleCache is an in-memory decoded-module cache keyed by the module
// checksum (SPEC_FULL.md §4 "Module cache", mirroring wazero's cache.go
// / CompilationCache): repeated LoadComponent calls with identical bytes
// skip re-decoding. Bounded by RuntimeConfig.maxCachedModules with
// FIFO eviction once full — simpler than an LRU, adequate for a cache
// whose purpose is "skip re-decoding the same bytes twice in a row"
// rather than general working-set retention.
type moduleCache struct {
	mu      sync.Mutex
	entries map[uint32]*wasmir.Module
	order   []uint32
	max     int
}

func newModuleCache(max int) *moduleCache {
	if max <= 0 {
		max = 1
	}
	return &moduleCache{entries: make(map[uint32]*wasmir.Module, max), max: max}
}

// get returns the cached module for checksum, if present.
func (c *moduleCache) get(checksum uint32) (*wasmir.Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[checksum]
	return m, ok
}

// put inserts mod under its own checksum, evicting the oldest entry if
// the cache is already at capacity.
func (c *moduleCache) put(mod *wasmir.Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[mod.Checksum]; exists {
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[mod.Checksum] = mod
	c.order = append(c.order, mod.Checksum)
}

// len reports the number of cached modules, primarily for tests.
func (c *moduleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
