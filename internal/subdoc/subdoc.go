// Package subdoc provides a minimal, concrete sub-document extractor
// (spec §1's "at least one concrete, minimal, testable implementation"):
// a YAML file whose top-level `refs` list names the identifiers the
// sub-document references.
package subdoc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLExtractor implements analyzer.SubdocExtractor by reading a small
// YAML manifest per sub-document path.
type YAMLExtractor struct{}

type manifest struct {
	Refs []string `yaml:"refs"`
}

// ExtractRefs reads path as a YAML manifest and returns its declared refs.
func (YAMLExtractor) ExtractRefs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("subdoc: reading %q: %w", path, err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("subdoc: parsing %q: %w", path, err)
	}
	return m.Refs, nil
}
