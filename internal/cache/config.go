package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// config is the on-disk `config` file: the hashing algorithm identifiers a
// cache directory was created with (spec §6 "Cache on-disk layout"). If a
// later run's algorithms don't match, the cache is invalidated rather than
// silently mixing hash spaces.
type config struct {
	ShortHashAlgo string `yaml:"short_hash_algo"`
	LongHashAlgo  string `yaml:"long_hash_algo"`
}

func loadConfig(path string) (*config, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: reading config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, false, fmt.Errorf("cache: parsing config: %w", err)
	}
	return &cfg, true, nil
}

func writeConfig(path string, cfg *config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cache: marshaling config: %w", err)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to path via a temp file and rename, so a reader
// never observes a partially written file (spec §3 "Cache operations are
// atomic per key").
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cache: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
