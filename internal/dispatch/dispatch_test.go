package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/scheduler"
	"github.com/vk/buildgrid/internal/syntax"
)

type constEvaluator struct {
	val cty.Value
	err error
}

func (e constEvaluator) Eval(context.Context, syntax.Expr, map[string]cty.Value, string) (cty.Value, error) {
	return e.val, e.err
}

func TestForkBackendDispatchSuccess(t *testing.T) {
	b := &ForkBackend{Eval: constEvaluator{val: cty.NumberIntVal(4)}}
	ch, err := b.Dispatch(context.Background(), scheduler.WorkItem{Name: "c"})
	if err != nil {
		t.Fatal(err)
	}
	out := <-ch
	if out.Status != scheduler.StatusBuilt || out.Value.AsBigFloat().String() != "4" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestForkBackendDispatchFailure(t *testing.T) {
	b := &ForkBackend{Eval: constEvaluator{err: errors.New("boom")}}
	ch, err := b.Dispatch(context.Background(), scheduler.WorkItem{Name: "c"})
	if err != nil {
		t.Fatal(err)
	}
	out := <-ch
	if out.Status != scheduler.StatusFailed {
		t.Errorf("expected failed outcome, got %+v", out)
	}
}

func TestPluginBackendDispatch(t *testing.T) {
	b := &PluginBackend{Call: func(ctx context.Context, item scheduler.WorkItem, done func(cty.Value, error)) {
		done(cty.StringVal("ok"), nil)
	}}
	ch, err := b.Dispatch(context.Background(), scheduler.WorkItem{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	out := <-ch
	if out.Status != scheduler.StatusBuilt || out.Value.AsString() != "ok" {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestRegistryResolveDefaultAndNamed(t *testing.T) {
	r := NewRegistry("fork")
	fork := &ForkBackend{Eval: constEvaluator{val: cty.True}}
	if err := r.Register("fork", fork); err != nil {
		t.Fatal(err)
	}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	got, err := r.Resolve("")
	if err != nil || got != Backend(fork) {
		t.Errorf("Resolve(\"\") should return the default backend, got %v, err=%v", got, err)
	}
	if _, err := r.Resolve("missing"); err == nil {
		t.Error("expected error resolving unknown backend")
	}
}

func TestRegistryDuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry("fork")
	fork := &ForkBackend{}
	if err := r.Register("fork", fork); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("fork", fork); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
