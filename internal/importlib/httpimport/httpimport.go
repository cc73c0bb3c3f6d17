// Package httpimport is a concrete environ.Import provider: it resolves a
// named import by fetching it over HTTP, so a plan can depend on content
// that lives on a remote server instead of on disk (spec §9's "out of
// scope collaborators... at least one concrete, minimal, testable
// implementation").
package httpimport

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"resty.dev/v3"

	"github.com/vk/buildgrid/internal/environ"
)

// Fetcher resolves import values by GETting them from an HTTP server.
type Fetcher struct {
	client  *resty.Client
	baseURL string
}

// New builds a Fetcher whose requests are relative to baseURL.
func New(baseURL string) *Fetcher {
	return &Fetcher{client: resty.New(), baseURL: baseURL}
}

// Close releases the underlying client's idle connections.
func (f *Fetcher) Close() error {
	return f.client.Close()
}

// FetchValue GETs path and wraps the response body as a ValueImport (spec
// §4.B "a name bound to a constant value").
func (f *Fetcher) FetchValue(ctx context.Context, path string) (environ.Import, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.baseURL + path)
	if err != nil {
		return environ.Import{}, fmt.Errorf("httpimport: fetching %s: %w", path, err)
	}
	if resp.IsError() {
		return environ.Import{}, fmt.Errorf("httpimport: %s returned status %s", path, resp.Status())
	}
	return environ.Import{Value: &environ.ValueImport{Value: cty.StringVal(resp.String())}}, nil
}
