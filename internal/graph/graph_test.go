package graph

import (
	"testing"

	"github.com/vk/buildgrid/internal/analyzer"
	"github.com/vk/buildgrid/internal/environ"
	"github.com/vk/buildgrid/internal/plan"
	"github.com/vk/buildgrid/internal/syntax"
)

func depsOf(t *testing.T, src string) *analyzer.DepSet {
	t.Helper()
	expr, err := syntax.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	d, err := analyzer.Analyze(expr, analyzer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func rowOf(t *testing.T, name, src string) plan.Row {
	t.Helper()
	expr, err := syntax.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	return plan.Row{Target: name, Command: expr}
}

func TestBuildBasicChainLayering(t *testing.T) {
	p := plan.Plan{
		rowOf(t, "a", "1"),
		rowOf(t, "b", "a + 1"),
		rowOf(t, "c", "b * 2"),
	}
	targetDeps := map[string]*analyzer.DepSet{
		"a": depsOf(t, "1"),
		"b": depsOf(t, "a + 1"),
		"c": depsOf(t, "b * 2"),
	}
	res, err := Build(p, environ.Env{}, targetDeps, nil, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	layers := res.Graph.Layers()
	want := [][]string{{"a"}, {"b"}, {"c"}}
	if len(layers) != len(want) {
		t.Fatalf("layers = %v, want %v", layers, want)
	}
	for i := range want {
		if len(layers[i]) != 1 || layers[i][0] != want[i][0] {
			t.Errorf("layer %d = %v, want %v", i, layers[i], want[i])
		}
	}
}

func TestBuildParallelWidth(t *testing.T) {
	p := plan.Plan{
		rowOf(t, "a", "1"), rowOf(t, "b", "2"), rowOf(t, "c", "3"), rowOf(t, "d", "4"),
		rowOf(t, "e", "a + b + c + d"),
	}
	targetDeps := map[string]*analyzer.DepSet{
		"a": depsOf(t, "1"), "b": depsOf(t, "2"), "c": depsOf(t, "3"), "d": depsOf(t, "4"),
		"e": depsOf(t, "a + b + c + d"),
	}
	res, err := Build(p, environ.Env{}, targetDeps, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	layers := res.Graph.Layers()
	if len(layers[0]) != 4 {
		t.Fatalf("expected first layer width 4, got %v", layers[0])
	}
	outdated := map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true}
	if got := MaxUsefulParallelism(layers, outdated); got != 4 {
		t.Errorf("MaxUsefulParallelism = %d, want 4", got)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	p := plan.Plan{
		rowOf(t, "a", "b"),
		rowOf(t, "b", "a"),
	}
	targetDeps := map[string]*analyzer.DepSet{
		"a": depsOf(t, "b"),
		"b": depsOf(t, "a"),
	}
	_, err := Build(p, environ.Env{}, targetDeps, nil, Options{})
	if err == nil {
		t.Fatal("expected CyclicPlanError")
	}
	if _, ok := err.(CyclicPlanError); !ok {
		t.Errorf("expected CyclicPlanError, got %T: %v", err, err)
	}
}

func TestBuildFileEdges(t *testing.T) {
	p := plan.Plan{
		rowOf(t, "y", `file_in("in.txt")`),
	}
	targetDeps := map[string]*analyzer.DepSet{
		"y": depsOf(t, `file_in("in.txt")`),
	}
	res, err := Build(p, environ.Env{}, targetDeps, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	deps := res.Graph.Dependencies("y")
	if len(deps) != 1 || deps[0] != "file:in.txt" {
		t.Errorf("expected y to depend on file:in.txt, got %v", deps)
	}
}

func TestBuildMissingDependencyIsWarningByDefault(t *testing.T) {
	p := plan.Plan{rowOf(t, "a", "unknown_thing")}
	targetDeps := map[string]*analyzer.DepSet{"a": depsOf(t, "unknown_thing")}
	res, err := Build(p, environ.Env{}, targetDeps, nil, Options{})
	if err != nil {
		t.Fatalf("expected non-strict missing dependency to be a warning, got fatal error: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
}

func TestBuildMissingDependencyStrictIsFatal(t *testing.T) {
	p := plan.Plan{rowOf(t, "a", "unknown_thing")}
	targetDeps := map[string]*analyzer.DepSet{"a": depsOf(t, "unknown_thing")}
	_, err := Build(p, environ.Env{}, targetDeps, nil, Options{Strict: true})
	if err == nil {
		t.Fatal("expected fatal error in strict mode")
	}
}

func TestBuildEmptyPlanHasNoLayers(t *testing.T) {
	res, err := Build(plan.Plan{}, environ.Env{}, nil, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if layers := res.Graph.Layers(); len(layers) != 0 {
		t.Errorf("expected no layers, got %v", layers)
	}
	if got := MaxUsefulParallelism(nil, nil); got != 0 {
		t.Errorf("MaxUsefulParallelism on empty input = %d, want 0", got)
	}
}
