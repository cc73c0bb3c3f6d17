// Package analyzer implements the expression analyzer (spec §4.A): it walks
// a parsed command and classifies every reference it finds into a DepSet of
// free identifiers, target loads, file reads/writes, sub-document
// references, and namespaced calls.
package analyzer

import "sort"

// DepSet is the classified dependency set produced by analyzing a single
// expression.
type DepSet struct {
	Globals    map[string]bool
	Loads      map[string]bool
	Reads      map[string]bool
	Writes     map[string]bool
	Subdocs    map[string]bool
	Namespaced map[string]bool
}

// New returns an empty, ready-to-use DepSet.
func New() *DepSet {
	return &DepSet{
		Globals:    map[string]bool{},
		Loads:      map[string]bool{},
		Reads:      map[string]bool{},
		Writes:     map[string]bool{},
		Subdocs:    map[string]bool{},
		Namespaced: map[string]bool{},
	}
}

// RemoveSelf drops name from Globals and Loads, implementing self-loop
// suppression (spec §4.A/§4.C, invariant I5, property P6): a recursive
// reference to the node currently being analyzed never produces a
// self-edge.
func (d *DepSet) RemoveSelf(name string) {
	delete(d.Globals, name)
	delete(d.Loads, name)
}

// Merge folds other into d in place, used by the import scanner (§4.B) to
// combine an import's own DepSet with those of its transitive references.
func (d *DepSet) Merge(other *DepSet) {
	if other == nil {
		return
	}
	mergeInto(d.Globals, other.Globals)
	mergeInto(d.Loads, other.Loads)
	mergeInto(d.Reads, other.Reads)
	mergeInto(d.Writes, other.Writes)
	mergeInto(d.Subdocs, other.Subdocs)
	mergeInto(d.Namespaced, other.Namespaced)
}

// DropOutputs clears Writes and Subdocs — used for function imports, which
// cannot declare outputs (spec §4.B).
func (d *DepSet) DropOutputs() {
	d.Writes = map[string]bool{}
	d.Subdocs = map[string]bool{}
}

func mergeInto(dst, src map[string]bool) {
	for k := range src {
		dst[k] = true
	}
}

// sortedKeys returns m's keys in sorted order, giving a DepSet's contents a
// deterministic iteration order (the package tests compare DepSets this way).
func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
