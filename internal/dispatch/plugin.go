package dispatch

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/scheduler"
)

// Callback is a user-supplied evaluation function plus a completion
// notification, letting an embedder distribute work over an arbitrary
// transport (spec §4.G item 4).
type Callback func(ctx context.Context, item scheduler.WorkItem, done func(cty.Value, error))

// PluginBackend adapts a Callback to the Backend contract.
type PluginBackend struct {
	Call         Callback
	MaxParallelN int
}

// Dispatch implements Backend.
func (b *PluginBackend) Dispatch(ctx context.Context, item scheduler.WorkItem) (<-chan scheduler.Outcome, error) {
	ch := make(chan scheduler.Outcome, 1)
	b.Call(ctx, item, func(v cty.Value, err error) {
		if err != nil {
			ch <- scheduler.Outcome{Status: scheduler.StatusFailed, Err: err}
			return
		}
		ch <- scheduler.Outcome{Status: scheduler.StatusBuilt, Value: v}
	})
	return ch, nil
}

// MaxParallel implements Backend.
func (b *PluginBackend) MaxParallel() int {
	if b.MaxParallelN < 1 {
		return 1
	}
	return b.MaxParallelN
}
