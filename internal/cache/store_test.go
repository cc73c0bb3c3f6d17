package cache

import (
	"context"
	"testing"

	"github.com/vk/buildgrid/internal/hashstore"
)

func TestMetaRoundTrip(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), "fnv64a", "sha256")
	if err != nil {
		t.Fatal(err)
	}
	m := &hashstore.Meta{Target: "a", CommandHash: "abc"}
	if err := s.Put("a", m); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get("a")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.CommandHash != "abc" {
		t.Errorf("CommandHash = %q, want abc", got.CommandHash)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), "fnv64a", "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutObject("h1", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, ok, err := s.GetObject("h1")
	if err != nil || !ok {
		t.Fatalf("GetObject: ok=%v err=%v", ok, err)
	}
	if string(data) != "hello" {
		t.Errorf("GetObject = %q, want hello", data)
	}
}

func TestExistsAndListAndClean(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), "fnv64a", "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("a", &hashstore.Meta{Target: "a"}); err != nil {
		t.Fatal(err)
	}
	ok, err := s.Exists("a", string(NamespaceMeta))
	if err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}
	names, err := s.List(string(NamespaceMeta))
	if err != nil || len(names) != 1 || names[0] != "a" {
		t.Fatalf("List = %v, err=%v", names, err)
	}
	if err := s.Clean("a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists("a", string(NamespaceMeta)); ok {
		t.Error("expected a to be cleaned")
	}
}

func TestOpenInvalidatesOnAlgorithmChange(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(context.Background(), dir, "fnv64a", "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Put("a", &hashstore.Meta{Target: "a"}); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(context.Background(), dir, "fnv64a", "sha512")
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := s2.Exists("a", string(NamespaceMeta)); ok {
		t.Error("expected cache to be invalidated on hash algorithm change")
	}
}

func TestProgressRoundTrip(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), "fnv64a", "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetProgress("a", ProgressBuilding); err != nil {
		t.Fatal(err)
	}
	state, ok, err := s.GetProgress("a")
	if err != nil || !ok {
		t.Fatalf("GetProgress: ok=%v err=%v", ok, err)
	}
	if state != ProgressBuilding {
		t.Errorf("state = %q, want %q", state, ProgressBuilding)
	}
}
