package environ

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/syntax"
)

// manifest is the on-disk shape of a single `.yaml` import manifest.
type manifest struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"` // "function", "value", "file"
	Body    string   `yaml:"body,omitempty"`
	Params  []string `yaml:"params,omitempty"`
	Value   string   `yaml:"value,omitempty"`
	Path    string   `yaml:"path,omitempty"`
	Content bool     `yaml:"track_content,omitempty"`
}

// FromDirectory builds an Env by walking dir for `.yaml` import manifests,
// each declaring a single named import. It is an ambient convenience for
// wiring imports from disk, not part of the scanner's core contract.
func FromDirectory(ctx context.Context, dir string) (Env, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("environ loading import manifests", "path", dir)

	env := Env{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("environ: reading manifest %s: %w", path, err)
		}
		var m manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("environ: parsing manifest %s: %w", path, err)
		}
		imp, err := manifestToImport(m)
		if err != nil {
			return fmt.Errorf("environ: manifest %s: %w", path, err)
		}
		if _, dup := env[m.Name]; dup {
			return fmt.Errorf("environ: duplicate import registration %q (from %s)", m.Name, path)
		}
		env[m.Name] = imp
		logger.Debug("registered import", "name", m.Name, "kind", m.Kind, "file", path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("environ loaded manifests", "count", len(env))
	return env, nil
}

func manifestToImport(m manifest) (Import, error) {
	switch m.Kind {
	case "function":
		body, err := syntax.Parse(m.Body)
		if err != nil {
			return Import{}, fmt.Errorf("parsing body of %q: %w", m.Name, err)
		}
		return Import{Function: &FunctionImport{Body: body, Params: m.Params}}, nil
	case "value":
		return Import{Value: &ValueImport{Value: cty.StringVal(m.Value)}}, nil
	case "file":
		return Import{File: &FileImport{Path: m.Path, TrackContent: m.Content}}, nil
	default:
		return Import{}, fmt.Errorf("unknown import kind %q for %q", m.Kind, m.Name)
	}
}
