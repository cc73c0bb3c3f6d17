package analyzer

import (
	"fmt"
	"path"
	"strings"

	"github.com/vk/buildgrid/internal/syntax"
)

// SubdocExtractor is the pluggable sub-document parser the specification
// treats as an external collaborator: given a sub-document's path, it
// returns the identifiers the sub-document references.
type SubdocExtractor interface {
	ExtractRefs(path string) ([]string, error)
}

// UnwrapFunc resolves a plain call target to the function it names, so the
// analyzer can unwrap a "vectorized wrapper" shape down to the inner
// function it forwards to (spec §4.A, design note in §9).
type UnwrapFunc func(name string) (body syntax.Expr, params []string, ok bool)

// Options configures a single Analyze call.
type Options struct {
	// Subdoc extracts identifier references from a sub-document; nil
	// disables subdoc extraction (subdoc paths are still recorded).
	Subdoc SubdocExtractor
	// Params are the formal parameter names of the function body being
	// analyzed (empty for target commands). They are removed from Globals
	// even though they're free within the body's own syntax tree.
	Params []string
}

var markerNames = map[string]bool{
	"load":      true,
	"read":      true,
	"file_in":   true,
	"file_out":  true,
	"subdoc_in": true,
	"ignore":    true,
}

type walker struct {
	deps *DepSet
	opts Options
}

// Analyze walks expr and returns its classified DepSet (spec §4.A).
func Analyze(expr syntax.Expr, opts Options) (*DepSet, error) {
	w := &walker{deps: New(), opts: opts}
	if err := w.walk(expr); err != nil {
		return nil, err
	}

	free := syntax.FreeVariables(expr)
	params := make(map[string]bool, len(opts.Params))
	for _, p := range opts.Params {
		params[p] = true
	}

	globals := map[string]bool{}
	for g := range w.deps.Globals {
		if !free[g] {
			continue
		}
		if params[g] || markerNames[g] {
			continue
		}
		globals[g] = true
	}
	w.deps.Globals = globals
	return w.deps, nil
}

// AnalyzeFunction analyzes a function import's body, first unwrapping any
// vectorized-wrapper shape via unwrap (spec §4.A "Vectorized wrappers").
func AnalyzeFunction(body syntax.Expr, params []string, unwrap UnwrapFunc, opts Options) (*DepSet, error) {
	seen := map[string]bool{}
	for unwrap != nil {
		name, ok := detectWrapper(body, params)
		if !ok || seen[name] {
			break
		}
		inner, innerParams, ok := unwrap(name)
		if !ok {
			break
		}
		seen[name] = true
		body, params = inner, innerParams
	}
	opts.Params = params
	return Analyze(body, opts)
}

// detectWrapper reports whether body is a thin forwarding wrapper: a single
// call whose positional arguments are exactly the formal parameters, in
// order, with no keyword arguments.
func detectWrapper(body syntax.Expr, params []string) (string, bool) {
	call, ok := body.(*syntax.CallExpr)
	if !ok || len(call.Kwargs) != 0 || len(call.Args) != len(params) {
		return "", false
	}
	if markerNames[call.Name] || strings.Contains(call.Name, "::") {
		return "", false
	}
	for i, arg := range call.Args {
		id, ok := arg.(*syntax.Ident)
		if !ok || id.Name != params[i] {
			return "", false
		}
	}
	return call.Name, true
}

func (w *walker) walk(e syntax.Expr) error {
	switch v := e.(type) {
	case nil:
		return nil
	case *syntax.Ident:
		w.deps.Globals[v.Name] = true
	case *syntax.StringLit, *syntax.NumberLit, *syntax.BoolLit, *syntax.NullLit:
		// literal: ignored
	case *syntax.ListExpr:
		for _, el := range v.Elems {
			if err := w.walk(el); err != nil {
				return err
			}
		}
	case *syntax.BinaryExpr:
		if err := w.walk(v.X); err != nil {
			return err
		}
		return w.walk(v.Y)
	case *syntax.UnaryExpr:
		return w.walk(v.X)
	case *syntax.CallExpr:
		return w.walkCall(v)
	default:
		return fmt.Errorf("analyzer: unrecognized expression node %T", e)
	}
	return nil
}

func (w *walker) walkCall(c *syntax.CallExpr) error {
	switch {
	case c.Name == "load" || c.Name == "read":
		return w.walkLoad(c)
	case c.Name == "file_in":
		return w.walkFileMarker(c, w.deps.Reads)
	case c.Name == "file_out":
		return w.walkFileMarker(c, w.deps.Writes)
	case c.Name == "subdoc_in":
		return w.walkSubdoc(c)
	case c.Name == "ignore":
		return nil // don't descend
	case strings.Contains(c.Name, "::"):
		w.deps.Namespaced[c.Name] = true
		return w.walkArgs(c)
	default:
		// A generic call's head names a plain binding (typically a
		// function import); it's tracked as a global just like a bare
		// identifier reference would be.
		w.deps.Globals[c.Name] = true
		return w.walkArgs(c)
	}
}

func (w *walker) walkArgs(c *syntax.CallExpr) error {
	for _, a := range c.Args {
		if err := w.walk(a); err != nil {
			return err
		}
	}
	for _, kw := range c.Kwargs {
		if err := w.walk(kw.Value); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkLoad(c *syntax.CallExpr) error {
	for _, arg := range c.Args {
		if id, ok := arg.(*syntax.Ident); ok {
			w.deps.Loads[id.Name] = true
			continue
		}
		if err := w.walk(arg); err != nil {
			return err
		}
	}
	for _, kw := range c.Kwargs {
		if kw.Name == "list" {
			if err := w.walkLoadList(kw.Value); err != nil {
				return err
			}
			continue
		}
		if err := w.walk(kw.Value); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkLoadList(v syntax.Expr) error {
	lst, ok := v.(*syntax.ListExpr)
	if !ok {
		return w.walk(v)
	}
	for _, el := range lst.Elems {
		if id, ok := el.(*syntax.Ident); ok {
			w.deps.Loads[id.Name] = true
			continue
		}
		if err := w.walk(el); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkFileMarker(c *syntax.CallExpr, into map[string]bool) error {
	for _, arg := range c.Args {
		if s, ok := arg.(*syntax.StringLit); ok {
			into[normalizePath(s.Value)] = true
			continue
		}
		if err := w.walk(arg); err != nil {
			return err
		}
	}
	for _, kw := range c.Kwargs {
		if err := w.walk(kw.Value); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) walkSubdoc(c *syntax.CallExpr) error {
	for _, arg := range c.Args {
		s, ok := arg.(*syntax.StringLit)
		if !ok {
			if err := w.walk(arg); err != nil {
				return err
			}
			continue
		}
		p := normalizePath(s.Value)
		w.deps.Subdocs[p] = true
		if w.opts.Subdoc == nil {
			continue
		}
		refs, err := w.opts.Subdoc.ExtractRefs(p)
		if err != nil {
			return fmt.Errorf("analyzer: extracting sub-document refs from %q: %w", p, err)
		}
		for _, r := range refs {
			w.deps.Loads[r] = true
		}
	}
	for _, kw := range c.Kwargs {
		if err := w.walk(kw.Value); err != nil {
			return err
		}
	}
	return nil
}

func normalizePath(p string) string {
	return NormalizePath(p)
}

// NormalizePath canonicalizes a file path the way analyzer tracks it in a
// DepSet's Reads/Writes/Subdocs sets, so any code resolving those names back
// to a filesystem path (dependency-hash lookups, evaluators) agrees with the
// analyzer on what string identifies a given file.
func NormalizePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}
