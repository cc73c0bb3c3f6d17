package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// Staged runs the layer-barrier scheduling strategy (spec §4.F "Staged"):
// each topological layer is fully dispatched and awaited before the next
// begins.
type Staged struct {
	MaxParallel int
	KeepGoing   bool
	Build       BuildFunc
}

// Run walks layers in order. byName resolves a layer's node names to their
// WorkItem; entries with no WorkItem (not outdated, or not a target) are
// skipped.
func (s *Staged) Run(ctx context.Context, layers [][]string, byName map[string]WorkItem) (Summary, error) {
	logger := ctxlog.FromContext(ctx)
	summary := Summary{}
	var aborted bool

	maxParallel := s.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}

	for _, layer := range layers {
		if aborted || ctx.Err() != nil {
			for _, name := range layer {
				if _, ok := byName[name]; ok {
					summary.Aborted = append(summary.Aborted, name)
				}
			}
			continue
		}

		var work []string
		for _, name := range layer {
			if _, ok := byName[name]; ok {
				work = append(work, name)
			}
		}
		if len(work) == 0 {
			continue
		}

		sem := make(chan struct{}, maxParallel)
		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, name := range work {
			item := byName[name]
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				logger.Debug("scheduler dispatching target", "target", item.Name, "layer_size", len(work))
				outcome := s.Build(ctx, item)

				mu.Lock()
				defer mu.Unlock()
				if outcome.Status == StatusFailed {
					logger.Error("target failed", "target", item.Name, "error", outcome.Err)
					summary.Failed = append(summary.Failed, item.Name)
					if !s.KeepGoing {
						aborted = true
					}
					return
				}
				summary.Built = append(summary.Built, item.Name)
			}()
		}
		wg.Wait()

		if aborted {
			continue
		}
	}

	sort.Strings(summary.Built)
	sort.Strings(summary.Failed)
	sort.Strings(summary.Aborted)

	if aborted {
		return summary, fmt.Errorf("scheduler: aborted after a target failed without keep_going")
	}
	return summary, ctx.Err()
}
