// Package s3import is a concrete environ.Import provider backed by an
// object store. It generalizes the teacher's modules/s3 (a presigned-URL
// upload runner) into a Store abstraction so plans can depend on
// content-addressed blobs without buildgrid taking on an object-storage
// SDK dependency the retrieved pack doesn't otherwise carry (spec §9).
package s3import

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/buildgrid/internal/environ"
)

// Store is the narrow object-storage contract s3import needs: get and put
// a blob by key. FSStore and MemStore below are the two minimal, testable
// implementations spec §9 requires of an out-of-scope collaborator.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// MemStore is an in-memory Store, the default for tests and for runs that
// don't need durability across processes.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: map[string][]byte{}}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("s3import: key %q not found", key)
	}
	return data, nil
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

// FSStore is a Store backed by a directory on disk, one file per key.
type FSStore struct {
	Root string
}

// Get implements Store.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, key))
	if err != nil {
		return nil, fmt.Errorf("s3import: reading key %q: %w", key, err)
	}
	return data, nil
}

// Put implements Store.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.Root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("s3import: preparing directory for %q: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("s3import: writing key %q: %w", key, err)
	}
	return nil
}

// FetchValue resolves an import by reading key from store and wrapping the
// bytes as a ValueImport, matching the object store's content-addressed
// contract from spec §4.D.
func FetchValue(ctx context.Context, store Store, key string) (environ.Import, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return environ.Import{}, err
	}
	return environ.Import{Value: &environ.ValueImport{Value: cty.StringVal(string(data))}}, nil
}
