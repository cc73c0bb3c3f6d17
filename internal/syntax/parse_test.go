package syntax

import "testing"

func TestParseAndString(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"1", "1"},
		{"a + 1", "a + 1"},
		{"b * 2", "b * 2"},
		{"load(a, b)", "load(a, b)"},
		{`file_in("in.txt")`, `file_in("in.txt")`},
		{"ignore(x + y)", "ignore(x + y)"},
		{"pkg::fn(a)", "pkg::fn(a)"},
		{"pkg:::fn(a)", "pkg:::fn(a)"},
		{"load(a, list = [b, c])", "load(a, list = [b, c])"},
		{"-x", "-x"},
		{"!x", "!x"},
		{"(a + b) * c", "(a + b) * c"},
		{"a - (b - c)", "a - (b - c)"},
		{"a - b - c", "a - b - c"},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			expr, err := Parse(c.src)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", c.src, err)
			}
			if got := expr.String(); got != c.want {
				t.Errorf("String() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestStandardizeNormalizesQuotesAndSemicolons(t *testing.T) {
	got, err := Standardize(`file_in('in.txt');`)
	if err != nil {
		t.Fatalf("Standardize error: %v", err)
	}
	want := `file_in("in.txt")`
	if got != want {
		t.Errorf("Standardize() = %q, want %q", got, want)
	}
}

func TestStandardizeIsIdempotent(t *testing.T) {
	src := `load(a, b, list = [c, d]) + pkg::fn(1, 2)`
	once, err := Standardize(src)
	if err != nil {
		t.Fatalf("Standardize error: %v", err)
	}
	twice, err := Standardize(once)
	if err != nil {
		t.Fatalf("Standardize (second pass) error: %v", err)
	}
	if once != twice {
		t.Errorf("Standardize not idempotent: %q != %q", once, twice)
	}
}

func TestFreeVariables(t *testing.T) {
	expr, err := Parse("f(a, b, list = [c]) + d")
	if err != nil {
		t.Fatal(err)
	}
	free := FreeVariables(expr)
	for _, want := range []string{"a", "b", "c", "d"} {
		if !free[want] {
			t.Errorf("FreeVariables missing %q, got %v", want, free)
		}
	}
}
