// Package scheduler implements the two scheduling strategies (spec §4.F):
// Staged, which walks the topological layering barrier by barrier, and
// Dynamic, which maintains a ready queue and a fixed worker pool with no
// barrier between layers. Both drive an injected BuildFunc that knows how
// to dispatch a single target to a backend and obey a shared max_parallel
// bound.
package scheduler

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/hashstore"
	"github.com/vk/buildgrid/internal/syntax"
)

// CachingSite names who commits a completed target's value to the object
// store (spec §4.F "Dispatch contract"). It is carried on every WorkItem,
// but neither the backends nor the driver act on it: the driver's BuildFunc
// writes every built value and meta record itself, whichever site is set.
type CachingSite int

const (
	// Worker names the worker as the writer of the value.
	Worker CachingSite = iota
	// Master names the master as the writer, with the worker returning the
	// value in-band.
	Master
)

// State is a target's position in the per-target state machine (spec
// §4.F).
type State int32

const (
	Pending State = iota
	Ready
	Building
	Built
	Failed
	Aborted
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Building:
		return "building"
	case Built:
		return "built"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// WorkItem is a single unit of dispatch (spec §4.F "Dispatch contract").
type WorkItem struct {
	Name        string
	Command     syntax.Expr
	EvalScope   map[string]cty.Value
	CachingSite CachingSite
	Seed        string
}

// Outcome is a completed work item's result.
type Outcome struct {
	Status Status
	Value  cty.Value
	Err    error
	Meta   *hashstore.Meta
}

// Status is the terminal disposition of a single dispatch.
type Status int

const (
	StatusBuilt Status = iota
	StatusFailed
)

// BuildFunc dispatches a single target and blocks until it completes. It's
// the seam between the scheduler (this package) and the dispatch backends
// (internal/dispatch): the scheduler owns the state machine and
// concurrency, a BuildFunc owns talking to a specific backend.
type BuildFunc func(ctx context.Context, item WorkItem) Outcome

// Seed derives a deterministic per-target seed from the run's root seed,
// so results are reproducible across backends (spec §4.F "Seeds").
func Seed(rootSeed, target string) string {
	return hashstore.LongHash("buildgrid/seed/v1", []byte(rootSeed+"\x00"+target))
}

// Summary tallies a run's outcomes for the driver layer's exit-code
// mapping (spec §6 "Invocation surface").
type Summary struct {
	Built   []string
	Failed  []string
	Skipped []string
	Aborted []string
}
