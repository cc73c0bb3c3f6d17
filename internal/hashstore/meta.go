package hashstore

import "time"

// Meta is the cached bookkeeping record for one target, consulted by the
// staleness oracle (spec §4.E).
type Meta struct {
	Target       string
	CommandHash  string
	DependsHash  string
	ValueHash    string
	OutputHashes map[string]string // output file path -> file hash, for FileChange triggers
	BuiltAt      time.Time
	Failed       bool
}

// Store is the meta store's contract (spec §4.D): get/put/exists/list/clean,
// safe for concurrent readers, writers serialized per key.
type Store interface {
	Get(name string) (*Meta, bool, error)
	Put(name string, m *Meta) error
	Exists(name, namespace string) (bool, error)
	List(namespace string) ([]string, error)
	Clean(name string) error
}
