package graph

import (
	"fmt"

	"github.com/vk/buildgrid/internal/analyzer"
	"github.com/vk/buildgrid/internal/environ"
	"github.com/vk/buildgrid/internal/plan"
)

// MissingDependencyError reports a command referencing an identifier that
// resolves to neither a target nor an import (spec §7 MissingDependency).
// It's a warning by default; Build's Strict option promotes it to fatal.
type MissingDependencyError struct {
	Target string
	Name   string
}

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("graph: target %q references unknown identifier %q", e.Target, e.Name)
}

// Options configures Build.
type Options struct {
	// Strict promotes MissingDependencyError from a warning to a fatal
	// build error (spec §7).
	Strict bool
}

// Result is Build's output: the assembled graph plus any non-fatal
// warnings collected along the way.
type Result struct {
	Graph    *Graph
	Warnings []error
}

// Build merges each target row's DepSet and each import's DepSet into a
// single DAG per the edge rules in spec §4.C, then removes self-loops and
// runs cycle detection.
func Build(p plan.Plan, env environ.Env, targetDeps map[string]*analyzer.DepSet, importDeps map[string]*analyzer.DepSet, opts Options) (*Result, error) {
	g := New()
	res := &Result{Graph: g}

	targetNames := map[string]bool{}
	for _, row := range p {
		targetNames[row.Target] = true
	}

	for _, row := range p {
		if err := g.AddNode(row.Target, Target); err != nil {
			return nil, err
		}
	}
	for name, imp := range env {
		kind := ImportedObject
		if imp.Function != nil {
			kind = ImportedFunction
		}
		if err := g.AddNode(name, kind); err != nil {
			return nil, err
		}
	}

	for _, row := range p {
		deps := targetDeps[row.Target]
		if deps == nil {
			continue
		}
		if err := wireTargetEdges(g, row.Target, deps, targetNames, env, opts, res); err != nil {
			return nil, err
		}
	}

	for name := range env {
		deps := importDeps[name]
		if deps == nil {
			continue
		}
		if err := wireImportEdges(g, name, deps, targetNames, env, opts, res); err != nil {
			return nil, err
		}
	}

	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	return res, nil
}

// wireTargetEdges adds the dependency edges for a single target row: the
// globals/loads/subdocs it references, plus its input and output files.
func wireTargetEdges(g *Graph, target string, deps *analyzer.DepSet, targetNames map[string]bool, env environ.Env, opts Options, res *Result) error {
	for _, name := range sortedKeys(unionSets(deps.Globals, deps.Loads, deps.Subdocs)) {
		if name == target {
			continue // self-loop suppression (I5)
		}
		if err := resolveAndLink(g, target, name, targetNames, env, opts, res); err != nil {
			return err
		}
	}
	for _, p := range sortedKeys(deps.Reads) {
		fileID := "file:" + p
		if err := g.AddNode(fileID, InputFile); err != nil {
			return err
		}
		if err := g.AddEdge(fileID, target); err != nil {
			return err
		}
	}
	for _, p := range sortedKeys(deps.Writes) {
		fileID := "file:" + p
		if err := g.AddNode(fileID, OutputFile); err != nil {
			return err
		}
		if err := g.AddEdge(target, fileID); err != nil {
			return err
		}
	}
	return nil
}

// wireImportEdges adds the edges for an import's own transitive references
// (function-import bodies can reference other imports or, transitively,
// targets are not possible since imports don't see the plan's targets).
func wireImportEdges(g *Graph, name string, deps *analyzer.DepSet, targetNames map[string]bool, env environ.Env, opts Options, res *Result) error {
	for _, ref := range sortedKeys(unionSets(deps.Globals, deps.Loads, deps.Subdocs)) {
		if ref == name {
			continue
		}
		if err := resolveAndLink(g, name, ref, targetNames, env, opts, res); err != nil {
			return err
		}
	}
	for _, p := range sortedKeys(deps.Reads) {
		fileID := "file:" + p
		if err := g.AddNode(fileID, InputFile); err != nil {
			return err
		}
		if err := g.AddEdge(fileID, name); err != nil {
			return err
		}
	}
	return nil
}

func resolveAndLink(g *Graph, dependent, name string, targetNames map[string]bool, env environ.Env, opts Options, res *Result) error {
	_, isTarget := targetNames[name]
	_, isImport := env[name]
	if !isTarget && !isImport {
		err := MissingDependencyError{Target: dependent, Name: name}
		if opts.Strict {
			return err
		}
		res.Warnings = append(res.Warnings, err)
		return nil
	}
	return g.AddEdge(name, dependent)
}

func unionSets(sets ...map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}
