package s3import

import (
	"context"
	"testing"
)

func TestMemStoreRoundTrip(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	if err := store.Put(ctx, "greeting", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	imp, err := FetchValue(ctx, store, "greeting")
	if err != nil {
		t.Fatal(err)
	}
	if imp.Value.Value.AsString() != "hello" {
		t.Errorf("got %q", imp.Value.Value.AsString())
	}
}

func TestMemStoreMissingKey(t *testing.T) {
	store := NewMemStore()
	if _, err := FetchValue(context.Background(), store, "missing"); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	store := &FSStore{Root: t.TempDir()}
	ctx := context.Background()
	if err := store.Put(ctx, "nested/greeting.txt", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	imp, err := FetchValue(ctx, store, "nested/greeting.txt")
	if err != nil {
		t.Fatal(err)
	}
	if imp.Value.Value.AsString() != "hi" {
		t.Errorf("got %q", imp.Value.Value.AsString())
	}
}
