package cache

import (
	"fmt"
	"os"
)

// ProgressState is a target's ephemeral per-run state, stored under the
// `progress/` namespace (spec §6).
type ProgressState string

const (
	ProgressQueued   ProgressState = "queued"
	ProgressBuilding ProgressState = "building"
	ProgressBuilt    ProgressState = "built"
	ProgressFailed   ProgressState = "failed"
)

// SetProgress records name's current state.
func (s *Store) SetProgress(name string, state ProgressState) error {
	lock := s.lockFor("progress:" + name)
	lock.Lock()
	defer lock.Unlock()
	return atomicWrite(s.path(NamespaceProgress, name), []byte(state))
}

// GetProgress reads name's current state, if any.
func (s *Store) GetProgress(name string) (ProgressState, bool, error) {
	data, err := os.ReadFile(s.path(NamespaceProgress, name))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: reading progress %q: %w", name, err)
	}
	return ProgressState(data), true, nil
}
