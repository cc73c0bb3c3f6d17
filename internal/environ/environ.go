// Package environ implements the import scanner (spec §4.B): it resolves
// every import binding reachable from the plan's root names into the
// dependency set the graph builder needs.
package environ

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/analyzer"
	"github.com/vk/buildgrid/internal/syntax"
)

// Import is a tagged union over the three import kinds the specification
// distinguishes. Exactly one of FunctionImport, ValueImport, or FileImport
// is set.
type Import struct {
	Function *FunctionImport
	Value    *ValueImport
	File     *FileImport
}

// FunctionImport is a name bound to a function whose body is analyzed as an
// expression (spec §4.B).
type FunctionImport struct {
	Body   syntax.Expr
	Params []string
	Unwrap analyzer.UnwrapFunc
}

// ValueImport is a name bound to a constant value; it has no dependencies
// and its identity is its content hash.
type ValueImport struct {
	Value cty.Value
}

// FileImport is a name bound to an on-disk file; it has no dependencies and
// its identity is its file hash or mtime, per configuration.
type FileImport struct {
	Path         string
	TrackContent bool
}

// Env is the set of importable bindings visible to a plan.
type Env map[string]Import

// Scan returns the classified DepSet of every binding in env reachable from
// roots, following each import's own free identifiers into env as an
// identifier-graph closure (spec §4.B).
func Scan(env Env, roots []string) (map[string]*analyzer.DepSet, error) {
	result := map[string]*analyzer.DepSet{}
	var visit func(name string) error
	visit = func(name string) error {
		if _, done := result[name]; done {
			return nil
		}
		imp, ok := env[name]
		if !ok {
			return nil // not an import; resolved elsewhere (target or unbound global)
		}
		deps, err := analyzeImport(imp)
		if err != nil {
			return fmt.Errorf("environ: scanning import %q: %w", name, err)
		}
		deps.RemoveSelf(name)
		result[name] = deps

		for _, ref := range allRefs(deps) {
			if err := visit(ref); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func analyzeImport(imp Import) (*analyzer.DepSet, error) {
	switch {
	case imp.Function != nil:
		f := imp.Function
		deps, err := analyzer.AnalyzeFunction(f.Body, f.Params, f.Unwrap, analyzer.Options{})
		if err != nil {
			return nil, err
		}
		deps.DropOutputs()
		return deps, nil
	case imp.Value != nil, imp.File != nil:
		return analyzer.New(), nil
	default:
		return nil, fmt.Errorf("environ: import has no kind set")
	}
}

// allRefs returns every identifier a DepSet's closure walk should follow:
// globals, loads, and subdocs, matching the graph builder's edge rule
// (spec §4.C).
func allRefs(d *analyzer.DepSet) []string {
	var out []string
	for name := range d.Globals {
		out = append(out, name)
	}
	for name := range d.Loads {
		out = append(out, name)
	}
	for name := range d.Subdocs {
		out = append(out, name)
	}
	return out
}
