package wrt

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pulseengine/wrt-sub001/api"
	"github.com/pulseengine/wrt-sub001/internal/memory"
)

// RuntimeConfig controls runtime behavior (spec.md §6 "new_runtime(config)
// where config enumerates: asil_level, global_fuel, heap_size, max_tasks,
// max_instances, enforcement"), built with the same fluent WithXxx
// idiom as wazero's NewRuntimeConfig, returning the same concrete type
// so calls chain.
type RuntimeConfig struct {
	asilLevel       api.AsilLevel
	globalFuel      uint64
	heapSize        uint32
	maxTasks        int
	maxInstances    int
	enforcement     api.EnforcementMode
	maxCachedModules int
	logWriter       io.Writer
}

// NewRuntimeConfig returns a RuntimeConfig preset to conservative,
// ASIL-QM defaults.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		asilLevel:        api.QM,
		globalFuel:       1 << 30,
		heapSize:         memory.DefaultHeapSize,
		maxTasks:         256,
		maxInstances:     64,
		enforcement:      api.Strict,
		maxCachedModules: 32,
	}
}

// clone ensures all fields are copied even when the receiver is shared,
// matching wazero's own RuntimeConfig.clone defensive-copy idiom.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	cp := *c
	return &cp
}

// WithAsilLevel sets the runtime's initial ASIL level.
func (c *RuntimeConfig) WithAsilLevel(level api.AsilLevel) *RuntimeConfig {
	ret := c.clone()
	ret.asilLevel = level
	return ret
}

// WithEnforcement sets the safety context's enforcement mode.
func (c *RuntimeConfig) WithEnforcement(mode api.EnforcementMode) *RuntimeConfig {
	ret := c.clone()
	ret.enforcement = mode
	return ret
}

// WithGlobalFuel sets the scheduler-wide fuel ceiling (spec.md §4.7
// "the runtime may impose a global fuel ceiling").
func (c *RuntimeConfig) WithGlobalFuel(fuel uint64) *RuntimeConfig {
	ret := c.clone()
	ret.globalFuel = fuel
	return ret
}

// WithHeapSize sets the bump arena's static heap size in bytes.
func (c *RuntimeConfig) WithHeapSize(bytes uint32) *RuntimeConfig {
	ret := c.clone()
	ret.heapSize = bytes
	return ret
}

// WithMaxTasks bounds the total number of tasks the scheduler registers
// over its lifetime; finished tasks stay registered and still count.
func (c *RuntimeConfig) WithMaxTasks(n int) *RuntimeConfig {
	ret := c.clone()
	ret.maxTasks = n
	return ret
}

// WithMaxInstances bounds the number of concurrently live component
// instances.
func (c *RuntimeConfig) WithMaxInstances(n int) *RuntimeConfig {
	ret := c.clone()
	ret.maxInstances = n
	return ret
}

// WithMaxCachedModules bounds the decoded-module cache (SPEC_FULL.md §4
// "Module cache").
func (c *RuntimeConfig) WithMaxCachedModules(n int) *RuntimeConfig {
	ret := c.clone()
	ret.maxCachedModules = n
	return ret
}

// WithLogWriter directs structured lifecycle/violation/fault logging to
// w instead of the default discard sink.
func (c *RuntimeConfig) WithLogWriter(w io.Writer) *RuntimeConfig {
	ret := c.clone()
	ret.logWriter = w
	return ret
}

// FileConfig is the host-facing persisted configuration DTO
// (SPEC_FULL.md §1 "Configuration"): a YAML document translated into a
// RuntimeConfig, the concrete realization of spec.md §6's
// "new_runtime(config)" for hosts that configure the runtime from a
// file rather than code.
type FileConfig struct {
	AsilLevel        string `yaml:"asil_level"`
	GlobalFuel       uint64 `yaml:"global_fuel"`
	HeapSizeBytes    uint32 `yaml:"heap_size_bytes"`
	MaxTasks         int    `yaml:"max_tasks"`
	MaxInstances     int    `yaml:"max_instances"`
	Enforcement      string `yaml:"enforcement"`
	MaxCachedModules int    `yaml:"max_cached_modules"`
}

// LoadConfig reads a YAML FileConfig from r and translates it into a
// RuntimeConfig, starting from NewRuntimeConfig's defaults for any
// zero-valued field.
func LoadConfig(r io.Reader) (*RuntimeConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("wrt: decode runtime config: %w", err)
	}
	return fc.toRuntimeConfig()
}

// LoadConfigFile opens path and delegates to LoadConfig.
func LoadConfigFile(path string) (*RuntimeConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wrt: open runtime config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

func (fc FileConfig) toRuntimeConfig() (*RuntimeConfig, error) {
	cfg := NewRuntimeConfig()
	if fc.AsilLevel != "" {
		lvl, err := parseAsilLevel(fc.AsilLevel)
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithAsilLevel(lvl)
	}
	if fc.GlobalFuel != 0 {
		cfg = cfg.WithGlobalFuel(fc.GlobalFuel)
	}
	if fc.HeapSizeBytes != 0 {
		cfg = cfg.WithHeapSize(fc.HeapSizeBytes)
	}
	if fc.MaxTasks != 0 {
		cfg = cfg.WithMaxTasks(fc.MaxTasks)
	}
	if fc.MaxInstances != 0 {
		cfg = cfg.WithMaxInstances(fc.MaxInstances)
	}
	if fc.MaxCachedModules != 0 {
		cfg = cfg.WithMaxCachedModules(fc.MaxCachedModules)
	}
	if fc.Enforcement != "" {
		switch fc.Enforcement {
		case "strict":
			cfg = cfg.WithEnforcement(api.Strict)
		case "lenient":
			cfg = cfg.WithEnforcement(api.Lenient)
		default:
			return nil, fmt.Errorf("wrt: unknown enforcement mode %q", fc.Enforcement)
		}
	}
	return cfg, nil
}

func parseAsilLevel(s string) (api.AsilLevel, error) {
	switch s {
	case "QM":
		return api.QM, nil
	case "A":
		return api.A, nil
	case "B":
		return api.B, nil
	case "C":
		return api.C, nil
	case "D":
		return api.D, nil
	default:
		return 0, fmt.Errorf("wrt: unknown ASIL level %q", s)
	}
}
