// Package evalref implements a reference evaluator over the syntax
// package's expression AST, using go-cty's standard function library for
// arithmetic and comparison. It exists to make the specification's literal
// end-to-end scenarios executable, not as a general-purpose language
// runtime (spec §1 Non-goals).
package evalref

import (
	"context"
	"fmt"
	"os"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/vk/buildgrid/internal/analyzer"
	"github.com/vk/buildgrid/internal/environ"
	"github.com/vk/buildgrid/internal/syntax"
)

// Evaluator evaluates a command expression to a cty.Value, resolving
// function-import calls against env.
type Evaluator struct {
	Env environ.Env
}

// New returns an Evaluator bound to env.
func New(env environ.Env) *Evaluator {
	return &Evaluator{Env: env}
}

// Eval satisfies internal/dispatch.Evaluator. scope carries the already
// resolved values of the command's target/import dependencies; seed is the
// deterministic per-target seed derived by the scheduler.
func (e *Evaluator) Eval(ctx context.Context, expr syntax.Expr, scope map[string]cty.Value, seed string) (cty.Value, error) {
	return e.eval(ctx, expr, scope)
}

func (e *Evaluator) eval(ctx context.Context, expr syntax.Expr, scope map[string]cty.Value) (cty.Value, error) {
	switch v := expr.(type) {
	case *syntax.NumberLit:
		return cty.ParseNumberVal(v.Text)
	case *syntax.StringLit:
		return cty.StringVal(v.Value), nil
	case *syntax.BoolLit:
		return cty.BoolVal(v.Value), nil
	case *syntax.NullLit:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case *syntax.Ident:
		return e.lookup(v.Name, scope)
	case *syntax.ListExpr:
		vals := make([]cty.Value, len(v.Elems))
		for i, el := range v.Elems {
			val, err := e.eval(ctx, el, scope)
			if err != nil {
				return cty.NilVal, err
			}
			vals[i] = val
		}
		if len(vals) == 0 {
			return cty.ListValEmpty(cty.DynamicPseudoType), nil
		}
		return cty.TupleVal(vals), nil
	case *syntax.UnaryExpr:
		return e.evalUnary(ctx, v, scope)
	case *syntax.BinaryExpr:
		return e.evalBinary(ctx, v, scope)
	case *syntax.CallExpr:
		return e.evalCall(ctx, v, scope)
	default:
		return cty.NilVal, fmt.Errorf("evalref: unsupported expression %T", expr)
	}
}

func (e *Evaluator) lookup(name string, scope map[string]cty.Value) (cty.Value, error) {
	if v, ok := scope[name]; ok {
		return v, nil
	}
	if imp, ok := e.Env[name]; ok && imp.Value != nil {
		return imp.Value.Value, nil
	}
	return cty.NilVal, fmt.Errorf("evalref: unresolved identifier %q", name)
}

func (e *Evaluator) evalUnary(ctx context.Context, u *syntax.UnaryExpr, scope map[string]cty.Value) (cty.Value, error) {
	x, err := e.eval(ctx, u.X, scope)
	if err != nil {
		return cty.NilVal, err
	}
	switch u.Op {
	case "-":
		return stdlib.NegateFunc.Call([]cty.Value{x})
	case "!":
		return stdlib.NotFunc.Call([]cty.Value{x})
	default:
		return cty.NilVal, fmt.Errorf("evalref: unsupported unary operator %q", u.Op)
	}
}

func (e *Evaluator) evalBinary(ctx context.Context, b *syntax.BinaryExpr, scope map[string]cty.Value) (cty.Value, error) {
	x, err := e.eval(ctx, b.X, scope)
	if err != nil {
		return cty.NilVal, err
	}
	y, err := e.eval(ctx, b.Y, scope)
	if err != nil {
		return cty.NilVal, err
	}
	fn, ok := binaryFuncs[b.Op]
	if !ok {
		return cty.NilVal, fmt.Errorf("evalref: unsupported binary operator %q", b.Op)
	}
	return fn.Call([]cty.Value{x, y})
}

var binaryFuncs = map[string]function.Function{
	"+":  stdlib.AddFunc,
	"-":  stdlib.SubtractFunc,
	"*":  stdlib.MultiplyFunc,
	"/":  stdlib.DivideFunc,
	"%":  stdlib.ModuloFunc,
	"==": stdlib.EqualFunc,
	"!=": stdlib.NotEqualFunc,
	"<":  stdlib.LessThanFunc,
	"<=": stdlib.LessThanOrEqualToFunc,
	">":  stdlib.GreaterThanFunc,
	">=": stdlib.GreaterThanOrEqualToFunc,
	"&&": stdlib.AndFunc,
	"||": stdlib.OrFunc,
}

func (e *Evaluator) evalCall(ctx context.Context, c *syntax.CallExpr, scope map[string]cty.Value) (cty.Value, error) {
	switch {
	case c.Name == "load" || c.Name == "read":
		return e.evalLoad(c, scope)
	case c.Name == "file_in":
		return e.evalFileIn(c, scope)
	case c.Name == "ignore":
		return cty.NullVal(cty.DynamicPseudoType), nil
	default:
		return e.evalFunctionImport(ctx, c, scope)
	}
}

func (e *Evaluator) evalLoad(c *syntax.CallExpr, scope map[string]cty.Value) (cty.Value, error) {
	if len(c.Args) != 1 {
		return cty.NilVal, fmt.Errorf("evalref: load/read expects exactly one target argument")
	}
	id, ok := c.Args[0].(*syntax.Ident)
	if !ok {
		return cty.NilVal, fmt.Errorf("evalref: load/read argument must be a bare identifier")
	}
	return e.lookup(id.Name, scope)
}

func (e *Evaluator) evalFileIn(c *syntax.CallExpr, scope map[string]cty.Value) (cty.Value, error) {
	if len(c.Args) != 1 {
		return cty.NilVal, fmt.Errorf("evalref: file_in expects exactly one path argument")
	}
	lit, ok := c.Args[0].(*syntax.StringLit)
	if !ok {
		return cty.NilVal, fmt.Errorf("evalref: file_in argument must be a string literal")
	}
	path := analyzer.NormalizePath(lit.Value)
	data, err := os.ReadFile(path)
	if err != nil {
		return cty.NilVal, fmt.Errorf("evalref: reading %q: %w", path, err)
	}
	return cty.StringVal(string(data)), nil
}

func (e *Evaluator) evalFunctionImport(ctx context.Context, c *syntax.CallExpr, scope map[string]cty.Value) (cty.Value, error) {
	imp, ok := e.Env[c.Name]
	if !ok || imp.Function == nil {
		return cty.NilVal, fmt.Errorf("evalref: %q is not a known function import", c.Name)
	}
	f := imp.Function
	if len(c.Args) != len(f.Params) {
		return cty.NilVal, fmt.Errorf("evalref: %q expects %d arguments, got %d", c.Name, len(f.Params), len(c.Args))
	}
	inner := make(map[string]cty.Value, len(f.Params))
	for i, param := range f.Params {
		val, err := e.eval(ctx, c.Args[i], scope)
		if err != nil {
			return cty.NilVal, err
		}
		inner[param] = val
	}
	return e.eval(ctx, f.Body, inner)
}
