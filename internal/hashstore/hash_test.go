package hashstore

import (
	"testing"

	"github.com/zclconf/go-cty/cty"
)

func TestCommandHashDeterministic(t *testing.T) {
	a := CommandHash(`file_in("in.txt")`)
	b := CommandHash(`file_in("in.txt")`)
	if a != b {
		t.Errorf("CommandHash not deterministic: %q != %q", a, b)
	}
	if c := CommandHash(`file_in("other.txt")`); c == a {
		t.Errorf("CommandHash collided for different input")
	}
}

func TestValueHashStableAcrossEquivalentValues(t *testing.T) {
	a := cty.ObjectVal(map[string]cty.Value{"x": cty.NumberIntVal(1), "y": cty.StringVal("z")})
	b := cty.ObjectVal(map[string]cty.Value{"y": cty.StringVal("z"), "x": cty.NumberIntVal(1)})
	ha, err := ValueHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := ValueHash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Errorf("ValueHash should be stable under key reordering, got %q != %q", ha, hb)
	}
}

func TestDependHashOrderIndependent(t *testing.T) {
	a := DependHash([]DependPair{{"b", "2"}, {"a", "1"}})
	b := DependHash([]DependPair{{"a", "1"}, {"b", "2"}})
	if a != b {
		t.Errorf("DependHash should not depend on input order, got %q != %q", a, b)
	}
}

func TestDomainSeparation(t *testing.T) {
	// The same bytes hashed as a command vs. a file must not collide.
	if CommandHash("x") == FileHash([]byte("x")) {
		t.Error("CommandHash and FileHash collided on identical bytes")
	}
}
