package httpimport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"greeting":"hello"}`))
	}))
	defer srv.Close()

	f := New(srv.URL)
	defer f.Close()

	imp, err := f.FetchValue(context.Background(), "/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if imp.Value == nil {
		t.Fatal("expected a ValueImport")
	}
	got := imp.Value.Value.AsString()
	if got != `{"greeting":"hello"}` {
		t.Errorf("got %q", got)
	}
}

func TestFetchValueErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(srv.URL)
	defer f.Close()

	if _, err := f.FetchValue(context.Background(), "/broken"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
