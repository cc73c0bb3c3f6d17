// Package cache implements the on-disk cache layout (spec §6): objects,
// meta, and progress namespaces under a single root directory, guarded by
// a hashing-algorithm config that invalidates the cache on mismatch.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/hashstore"
)

// Namespace is one of the cache's three logical namespaces (spec §3
// "Cache").
type Namespace string

const (
	NamespaceObjects  Namespace = "objects"
	NamespaceMeta     Namespace = "meta"
	NamespaceProgress Namespace = "progress"
)

// Store is a filesystem-backed cache rooted at a directory. It satisfies
// hashstore.Store for the meta namespace and additionally exposes the
// object and progress namespaces the spec's on-disk layout names.
type Store struct {
	root string

	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// Open opens (or initializes) a cache rooted at dir. shortAlgo/longAlgo
// identify the hashing algorithms this run will use; if a prior run used
// different ones, the existing cache contents are invalidated (spec §6
// "config — ... must match across runs or cache is invalidated").
func Open(ctx context.Context, dir, shortAlgo, longAlgo string) (*Store, error) {
	logger := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating cache root %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, "config")
	existing, found, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if found && (existing.ShortHashAlgo != shortAlgo || existing.LongHashAlgo != longAlgo) {
		logger.Warn("cache hashing algorithm changed, invalidating cache",
			"path", dir, "old_short", existing.ShortHashAlgo, "old_long", existing.LongHashAlgo,
			"new_short", shortAlgo, "new_long", longAlgo)
		if err := invalidate(dir); err != nil {
			return nil, err
		}
	}
	if err := writeConfig(cfgPath, &config{ShortHashAlgo: shortAlgo, LongHashAlgo: longAlgo}); err != nil {
		return nil, err
	}

	return &Store{root: dir, keyLocks: map[string]*sync.Mutex{}}, nil
}

func invalidate(dir string) error {
	for _, ns := range []Namespace{NamespaceObjects, NamespaceMeta, NamespaceProgress} {
		if err := os.RemoveAll(filepath.Join(dir, string(ns))); err != nil {
			return fmt.Errorf("cache: invalidating namespace %s: %w", ns, err)
		}
	}
	return nil
}

// lockFor serializes writers on a single key, letting readers proceed
// concurrently for every other key (spec §4.D "writers serialize per key").
func (s *Store) lockFor(key string) *sync.Mutex {
	s.keyLocksMu.Lock()
	defer s.keyLocksMu.Unlock()
	m, ok := s.keyLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.keyLocks[key] = m
	}
	return m
}

func (s *Store) path(ns Namespace, name string) string {
	return filepath.Join(s.root, string(ns), name)
}

// Get implements hashstore.Store.
func (s *Store) Get(name string) (*hashstore.Meta, bool, error) {
	data, err := os.ReadFile(s.path(NamespaceMeta, name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: reading meta %q: %w", name, err)
	}
	var m hashstore.Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("cache: parsing meta %q: %w", name, err)
	}
	return &m, true, nil
}

// Put implements hashstore.Store.
func (s *Store) Put(name string, m *hashstore.Meta) error {
	lock := s.lockFor("meta:" + name)
	lock.Lock()
	defer lock.Unlock()

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("cache: marshaling meta %q: %w", name, err)
	}
	return atomicWrite(s.path(NamespaceMeta, name), data)
}

// Exists implements hashstore.Store, checking for name under namespace.
func (s *Store) Exists(name, namespace string) (bool, error) {
	_, err := os.Stat(s.path(Namespace(namespace), name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: checking %s/%s: %w", namespace, name, err)
	}
	return true, nil
}

// List implements hashstore.Store, returning every key under namespace.
func (s *Store) List(namespace string) ([]string, error) {
	dir := filepath.Join(s.root, namespace)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: listing %s: %w", namespace, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Clean implements hashstore.Store. An empty name cleans every namespace.
func (s *Store) Clean(name string) error {
	if name == "" {
		return invalidate(s.root)
	}
	for _, ns := range []Namespace{NamespaceMeta, NamespaceProgress} {
		lock := s.lockFor(string(ns) + ":" + name)
		lock.Lock()
		err := os.Remove(s.path(ns, name))
		lock.Unlock()
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache: cleaning %s/%s: %w", ns, name, err)
		}
	}
	return nil
}

// GetObject reads the value blob stored under content hash.
func (s *Store) GetObject(hash string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(NamespaceObjects, hash))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: reading object %q: %w", hash, err)
	}
	return data, true, nil
}

// PutObject writes a value blob under its content hash. Objects are
// immutable and content-addressed, so a repeated Put for the same hash is
// a cheap no-op rather than a race.
func (s *Store) PutObject(hash string, data []byte) error {
	if ok, _ := s.Exists(hash, string(NamespaceObjects)); ok {
		return nil
	}
	lock := s.lockFor("object:" + hash)
	lock.Lock()
	defer lock.Unlock()
	return atomicWrite(s.path(NamespaceObjects, hash), data)
}

var _ hashstore.Store = (*Store)(nil)
