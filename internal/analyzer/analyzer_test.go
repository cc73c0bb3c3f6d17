package analyzer

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vk/buildgrid/internal/syntax"
)

func analyze(t *testing.T, src string, opts Options) *DepSet {
	t.Helper()
	expr, err := syntax.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	deps, err := Analyze(expr, opts)
	if err != nil {
		t.Fatalf("Analyze(%q): %v", src, err)
	}
	return deps
}

func keys(m map[string]bool) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestAnalyzeLoad(t *testing.T) {
	deps := analyze(t, "load(a, b, list = [c, d])", Options{})
	for _, want := range []string{"a", "b", "c", "d"} {
		if !deps.Loads[want] {
			t.Errorf("Loads missing %q, got %v", want, keys(deps.Loads))
		}
	}
	if len(deps.Globals) != 0 {
		t.Errorf("Globals should be empty, got %v", keys(deps.Globals))
	}
}

func TestAnalyzeFileMarkers(t *testing.T) {
	deps := analyze(t, `file_in("in.txt") + file_out("out.txt")`, Options{})
	if !deps.Reads["in.txt"] {
		t.Errorf("Reads missing in.txt, got %v", keys(deps.Reads))
	}
	if !deps.Writes["out.txt"] {
		t.Errorf("Writes missing out.txt, got %v", keys(deps.Writes))
	}
}

func TestAnalyzeIgnoreSkipsDescent(t *testing.T) {
	deps := analyze(t, "ignore(load(a) + b)", Options{})
	if len(deps.Loads) != 0 || len(deps.Globals) != 0 {
		t.Errorf("ignore() should suppress descent, got loads=%v globals=%v", keys(deps.Loads), keys(deps.Globals))
	}
}

func TestAnalyzeNamespacedCall(t *testing.T) {
	deps := analyze(t, "pkg::fn(a) + pkg:::other(b)", Options{})
	if !deps.Namespaced["pkg::fn"] || !deps.Namespaced["pkg:::other"] {
		t.Errorf("Namespaced missing entries, got %v", keys(deps.Namespaced))
	}
	if !deps.Globals["a"] || !deps.Globals["b"] {
		t.Errorf("Globals missing args of namespaced calls, got %v", keys(deps.Globals))
	}
}

func TestAnalyzeGlobals(t *testing.T) {
	deps := analyze(t, "a + b * 2", Options{})
	if !deps.Globals["a"] || !deps.Globals["b"] {
		t.Errorf("Globals missing, got %v", keys(deps.Globals))
	}
}

func TestAnalyzeSubdocWithoutExtractor(t *testing.T) {
	deps := analyze(t, `subdoc_in("doc.yaml")`, Options{})
	if !deps.Subdocs["doc.yaml"] {
		t.Errorf("Subdocs missing doc.yaml, got %v", keys(deps.Subdocs))
	}
	if len(deps.Loads) != 0 {
		t.Errorf("Loads should stay empty without an extractor, got %v", keys(deps.Loads))
	}
}

type fakeExtractor struct{ refs []string }

func (f fakeExtractor) ExtractRefs(string) ([]string, error) { return f.refs, nil }

func TestAnalyzeSubdocWithExtractor(t *testing.T) {
	deps := analyze(t, `subdoc_in("doc.yaml")`, Options{Subdoc: fakeExtractor{refs: []string{"x", "y"}}})
	if !deps.Loads["x"] || !deps.Loads["y"] {
		t.Errorf("Loads missing extracted refs, got %v", keys(deps.Loads))
	}
}

func TestAnalyzeParamsRemovedFromGlobals(t *testing.T) {
	deps := analyze(t, "a + b", Options{Params: []string{"a"}})
	if deps.Globals["a"] {
		t.Errorf("param %q should be removed from Globals", "a")
	}
	if !deps.Globals["b"] {
		t.Errorf("Globals missing non-param %q", "b")
	}
}

func TestAnalyzeFunctionUnwrapsVectorizedWrapper(t *testing.T) {
	inner, err := syntax.Parse("x + y")
	if err != nil {
		t.Fatal(err)
	}
	unwrap := func(name string) (syntax.Expr, []string, bool) {
		if name == "helper" {
			return inner, []string{"x", "y"}, true
		}
		return nil, nil, false
	}
	body, err := syntax.Parse("helper(p, q)")
	if err != nil {
		t.Fatal(err)
	}
	deps, err := AnalyzeFunction(body, []string{"p", "q"}, unwrap, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys(deps.Globals), keys(deps.Globals)) {
		t.Fatal("unreachable")
	}
	if len(deps.Globals) != 0 {
		t.Errorf("wrapper's own params (x, y after rename) should be stripped, got %v", keys(deps.Globals))
	}
}

func TestAnalyzeFunctionNoWrapperShapeIsAnalyzedDirectly(t *testing.T) {
	body, err := syntax.Parse("p + extra")
	if err != nil {
		t.Fatal(err)
	}
	deps, err := AnalyzeFunction(body, []string{"p"}, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if deps.Globals["p"] {
		t.Errorf("param p should be stripped, got %v", keys(deps.Globals))
	}
	if !deps.Globals["extra"] {
		t.Errorf("Globals missing extra, got %v", keys(deps.Globals))
	}
}

func TestAnalyzeGenericCallHeadIsAGlobal(t *testing.T) {
	deps := analyze(t, "f(3)", Options{})
	if !deps.Globals["f"] {
		t.Errorf("Globals missing generic call head %q, got %v", "f", keys(deps.Globals))
	}
}

func TestAnalyzeMixedExpressionDepSetShape(t *testing.T) {
	deps := analyze(t, `load(a) + file_in("in.txt") + pkg::fn(b) + subdoc_in("doc.yaml")`, Options{})

	want := map[string][]string{
		"Loads":      {"a"},
		"Reads":      {"in.txt"},
		"Namespaced": {"pkg::fn"},
		"Subdocs":    {"doc.yaml"},
		"Globals":    {"b"},
	}
	got := map[string][]string{
		"Loads":      sortedKeys(deps.Loads),
		"Reads":      sortedKeys(deps.Reads),
		"Namespaced": sortedKeys(deps.Namespaced),
		"Subdocs":    sortedKeys(deps.Subdocs),
		"Globals":    sortedKeys(deps.Globals),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DepSet shape mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeSelfLoopSuppression(t *testing.T) {
	deps := analyze(t, "self + load(self)", Options{})
	deps.RemoveSelf("self")
	if deps.Globals["self"] || deps.Loads["self"] {
		t.Errorf("RemoveSelf should drop self references, got globals=%v loads=%v", keys(deps.Globals), keys(deps.Loads))
	}
}
