// Package staleness implements the staleness oracle (spec §4.E): given a
// target and its cached meta record, decide whether it must be rebuilt.
package staleness

import (
	"os"

	"github.com/vk/buildgrid/internal/hashstore"
	"github.com/vk/buildgrid/internal/plan"
)

// DependencyHash resolves the current hash of a single dependency by name.
// It's the caller's job to recurse for imports and read cached hashes for
// already-built targets; a dependency that hasn't been built yet must
// return ok=false so Outdated can apply the "not yet built" sentinel (spec
// §4.E, "Dependencies that are not yet built contribute a sentinel that
// forces outdated").
type DependencyHash func(name string) (hash string, ok bool)

// Current is the state Outdated needs about a target's current inputs,
// gathered fresh on every run.
type Current struct {
	CommandHash  string
	Dependencies []string        // dependency names, for current_depends_hash
	OutputFiles  []string        // output file paths, for FileChange
	ObjectExists bool            // whether t's value is present in the object store
	DependHash   DependencyHash
}

// Outdated reports whether target t is outdated, per spec §4.E rules 1-6.
func Outdated(t plan.Row, trigger plan.Trigger, m *hashstore.Meta, cur Current) bool {
	if m == nil {
		return true // rule 1
	}
	if trigger == plan.TriggerAlways {
		return true // rule 2
	}
	if (trigger == plan.TriggerAny || trigger == plan.TriggerCommand) && cur.CommandHash != m.CommandHash {
		return true // rule 3
	}
	if trigger == plan.TriggerAny || trigger == plan.TriggerDepends {
		if currentDependsHash(cur) != m.DependsHash {
			return true // rule 4
		}
	}
	if trigger == plan.TriggerAny || trigger == plan.TriggerFileChange {
		if anyOutputFileChanged(cur.OutputFiles, m.OutputHashes) {
			return true // rule 5
		}
	}
	if trigger == plan.TriggerMissing && !cur.ObjectExists {
		return true // rule 6
	}
	return false
}

func currentDependsHash(cur Current) string {
	pairs := make([]hashstore.DependPair, 0, len(cur.Dependencies))
	for _, name := range cur.Dependencies {
		hash, ok := cur.DependHash(name)
		if !ok {
			hash = "<unbuilt>" // sentinel: forces a depends_hash mismatch
		}
		pairs = append(pairs, hashstore.DependPair{Name: name, Hash: hash})
	}
	return hashstore.DependHash(pairs)
}

func anyOutputFileChanged(outputs []string, cached map[string]string) bool {
	for _, f := range outputs {
		data, err := os.ReadFile(f)
		if err != nil {
			return true // missing or unreadable
		}
		if hashstore.FileHash(data) != cached[f] {
			return true
		}
	}
	return false
}
