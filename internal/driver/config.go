// Package driver ties every component together behind the invocation
// surface the specification pins at the driver layer (spec §6): loading a
// plan and environment, building the dependency graph, checking staleness,
// scheduling outdated targets, and mapping the outcome to an exit code.
package driver

import (
	"github.com/vk/buildgrid/internal/plan"
	"github.com/vk/buildgrid/internal/scheduler"
)

// Strategy selects a scheduling algorithm (spec §4.F).
type Strategy string

const (
	StrategyStaged  Strategy = "staged"
	StrategyDynamic Strategy = "dynamic"
)

// Config carries every recognized configuration option from spec §6.
type Config struct {
	// Strategy selects Staged or Dynamic scheduling. Defaults to Dynamic.
	Strategy Strategy
	// Backend names the default dispatch backend (spec's "parallelism"
	// option); per-row `evaluator` overrides win over this.
	Backend string
	// MaxParallel bounds concurrent workers.
	MaxParallel int
	// TriggerDefault applies to rows that don't specify their own trigger.
	TriggerDefault plan.Trigger
	// CacheDir is the cache root directory.
	CacheDir string
	// KeepGoing continues past a target failure instead of aborting.
	KeepGoing bool
	// Verbose enables per-event progress logging in addition to the
	// summary (spec §7's verbose/non-verbose modes).
	Verbose bool
	// RootSeed is the base seed for reproducible evaluation.
	RootSeed string
	// Caching is the caching site recorded on every WorkItem; see
	// scheduler.CachingSite.
	Caching scheduler.CachingSite
	// Strict promotes MissingDependency from a warning to a fatal error.
	Strict bool
	// ShortHashAlgo/LongHashAlgo identify the hashing algorithms this run
	// uses; changing them across runs invalidates the cache.
	ShortHashAlgo string
	LongHashAlgo  string
}

// withDefaults fills in the zero-value defaults spec §6 implies.
func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyDynamic
	}
	if c.Backend == "" {
		c.Backend = "fork"
	}
	if c.MaxParallel < 1 {
		c.MaxParallel = 1
	}
	if c.CacheDir == "" {
		c.CacheDir = ".buildgrid-cache"
	}
	if c.ShortHashAlgo == "" {
		c.ShortHashAlgo = "fnv64a"
	}
	if c.LongHashAlgo == "" {
		c.LongHashAlgo = "sha256"
	}
	return c
}
