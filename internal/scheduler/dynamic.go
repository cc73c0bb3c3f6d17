package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/buildgrid/internal/ctxlog"
)

// Dynamic runs the ready-queue scheduling strategy (spec §4.F "Dynamic"): a
// fixed-size worker pool pulls from a queue of targets whose predecessors
// have all built, with no barrier between topological layers.
type Dynamic struct {
	MaxParallel int
	KeepGoing   bool
	Build       BuildFunc
}

// Run schedules items, where deps[name] lists the build-set predecessors
// of name (only targets also present in items — file/import dependencies
// that don't themselves need building are pre-resolved by the caller).
func (d *Dynamic) Run(ctx context.Context, items []WorkItem, deps map[string][]string) (Summary, error) {
	logger := ctxlog.FromContext(ctx)

	nodes := make(map[string]*buildNode, len(items))
	for _, item := range items {
		nodes[item.Name] = newBuildNode(item, deps[item.Name])
	}
	dependents := make(map[string][]string, len(items))
	for name, preds := range deps {
		for _, p := range preds {
			dependents[p] = append(dependents[p], name)
		}
	}
	for _, list := range dependents {
		sort.Strings(list)
	}

	ready := make(chan *buildNode, len(nodes))
	var wg sync.WaitGroup
	var mu sync.Mutex
	summary := Summary{}
	var aborted bool
	var abortErr error

	enqueue := func(n *buildNode) {
		n.SetState(Ready)
		wg.Add(1)
		ready <- n
	}

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := nodes[name]
		if len(n.deps) == 0 {
			enqueue(n)
		}
	}

	maxParallel := d.MaxParallel
	if maxParallel < 1 {
		maxParallel = 1
	}

	var skip func(name string)
	skip = func(name string) {
		n, ok := nodes[name]
		if !ok || n.State() != Pending {
			return
		}
		n.SetState(Skipped)
		mu.Lock()
		summary.Skipped = append(summary.Skipped, name)
		mu.Unlock()
		for _, dependent := range dependents[name] {
			skip(dependent)
		}
	}

	worker := func(id int) {
		for n := range ready {
			if ctx.Err() != nil {
				n.SetState(Skipped)
				wg.Done()
				continue
			}
			mu.Lock()
			isAborted := aborted
			mu.Unlock()
			if isAborted {
				n.SetState(Aborted)
				mu.Lock()
				summary.Aborted = append(summary.Aborted, n.item.Name)
				mu.Unlock()
				wg.Done()
				continue
			}

			n.SetState(Building)
			logger.Debug("scheduler dispatching target", "target", n.item.Name, "worker", id)
			outcome := d.Build(ctx, n.item)

			if outcome.Status == StatusFailed {
				n.SetState(Failed)
				logger.Error("target failed", "target", n.item.Name, "error", outcome.Err)
				mu.Lock()
				summary.Failed = append(summary.Failed, n.item.Name)
				if !d.KeepGoing {
					aborted = true
					if abortErr == nil {
						abortErr = fmt.Errorf("target %q failed: %w", n.item.Name, outcome.Err)
					}
				}
				mu.Unlock()
				for _, dependent := range dependents[n.item.Name] {
					skip(dependent)
				}
				wg.Done()
				continue
			}

			n.SetState(Built)
			mu.Lock()
			summary.Built = append(summary.Built, n.item.Name)
			mu.Unlock()

			for _, dependentName := range dependents[n.item.Name] {
				dependent := nodes[dependentName]
				if dependent.decrementDeps() {
					enqueue(dependent)
				}
			}
			wg.Done()
		}
	}

	for i := 0; i < maxParallel; i++ {
		go worker(i)
	}

	wg.Wait()
	close(ready)

	if aborted {
		for _, name := range names {
			if nodes[name].State() == Pending {
				nodes[name].SetState(Aborted)
				summary.Aborted = append(summary.Aborted, name)
			}
		}
	}

	sort.Strings(summary.Built)
	sort.Strings(summary.Failed)
	sort.Strings(summary.Skipped)
	sort.Strings(summary.Aborted)

	if abortErr != nil {
		return summary, abortErr
	}
	return summary, ctx.Err()
}
