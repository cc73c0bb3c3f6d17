package evalref

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/environ"
	"github.com/vk/buildgrid/internal/syntax"
)

func mustEval(t *testing.T, e *Evaluator, src string, scope map[string]cty.Value) cty.Value {
	t.Helper()
	expr, err := syntax.Parse(src)
	if err != nil {
		t.Fatalf("parsing %q: %v", src, err)
	}
	v, err := e.Eval(context.Background(), expr, scope, "seed")
	if err != nil {
		t.Fatalf("evaluating %q: %v", src, err)
	}
	return v
}

func TestEvalArithmeticChain(t *testing.T) {
	e := New(environ.Env{})
	a := mustEval(t, e, "1", nil)
	b := mustEval(t, e, "load(a) + 1", map[string]cty.Value{"a": a})
	c := mustEval(t, e, "load(b) * 2", map[string]cty.Value{"b": b})
	f, _ := c.AsBigFloat().Float64()
	if f != 4 {
		t.Errorf("expected c = 4, got %v", f)
	}
}

func TestEvalFunctionImport(t *testing.T) {
	body, err := syntax.Parse("x + 1")
	if err != nil {
		t.Fatal(err)
	}
	env := environ.Env{
		"f": environ.Import{Function: &environ.FunctionImport{Body: body, Params: []string{"x"}}},
	}
	e := New(env)
	got := mustEval(t, e, "f(3)", nil)
	f, _ := got.AsBigFloat().Float64()
	if f != 4 {
		t.Errorf("expected f(3) = 4, got %v", f)
	}
}

func TestEvalFileIn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := New(environ.Env{})
	got := mustEval(t, e, `file_in("`+path+`")`, nil)
	if got.AsString() != "hello" {
		t.Errorf("expected file contents %q, got %q", "hello", got.AsString())
	}
}

func TestEvalUnresolvedIdentifierFails(t *testing.T) {
	e := New(environ.Env{})
	expr, err := syntax.Parse("missing")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Eval(context.Background(), expr, nil, "seed"); err == nil {
		t.Error("expected error for unresolved identifier")
	}
}

func TestEvalComparisonAndBoolean(t *testing.T) {
	e := New(environ.Env{})
	got := mustEval(t, e, "1 < 2 && true", nil)
	if got.False() {
		t.Errorf("expected true, got %v", got)
	}
}
