package scheduler

import "sync/atomic"

// buildNode wraps a single target under construction with the atomic
// bookkeeping the dynamic scheduler needs, mirroring the teacher's
// node.Node depCount/state atomics (internal/node/node.go).
type buildNode struct {
	item WorkItem
	deps []string // names of build-set predecessors, i.e. other outdated targets

	depCount atomic.Int32
	state    atomic.Int32
}

func newBuildNode(item WorkItem, deps []string) *buildNode {
	n := &buildNode{item: item, deps: deps}
	n.depCount.Store(int32(len(deps)))
	n.state.Store(int32(Pending))
	return n
}

func (n *buildNode) State() State {
	return State(n.state.Load())
}

func (n *buildNode) SetState(s State) {
	n.state.Store(int32(s))
}

// decrementDeps drops n's unmet-predecessor count by one and reports
// whether it has just reached zero.
func (n *buildNode) decrementDeps() bool {
	return n.depCount.Add(-1) == 0
}
