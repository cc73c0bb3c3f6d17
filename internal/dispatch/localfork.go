package dispatch

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/scheduler"
	"github.com/vk/buildgrid/internal/syntax"
)

// Evaluator runs a single command expression to a value, given the scope
// of already-built dependency values and a deterministic per-target seed.
type Evaluator interface {
	Eval(ctx context.Context, expr syntax.Expr, scope map[string]cty.Value, seed string) (cty.Value, error)
}

// ForkBackend is the "local pool (forked)" backend (spec §4.G item 1). Go
// has no fork(2) equivalent that shares parent memory copy-on-write, so
// this evaluates in-process goroutines instead — the cheapest legal
// approximation of "lightweight worker sharing parent memory", documented
// as a deliberate deviation rather than a POSIX-only os/exec fork shim.
type ForkBackend struct {
	Eval        Evaluator
	MaxParallelN int
}

// Dispatch implements Backend.
func (b *ForkBackend) Dispatch(ctx context.Context, item scheduler.WorkItem) (<-chan scheduler.Outcome, error) {
	return dispatchSync(ctx, func() scheduler.Outcome {
		val, err := b.Eval.Eval(ctx, item.Command, item.EvalScope, item.Seed)
		if err != nil {
			return scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
		}
		return scheduler.Outcome{Status: scheduler.StatusBuilt, Value: val}
	}), nil
}

// MaxParallel implements Backend.
func (b *ForkBackend) MaxParallel() int {
	if b.MaxParallelN < 1 {
		return 1
	}
	return b.MaxParallelN
}
