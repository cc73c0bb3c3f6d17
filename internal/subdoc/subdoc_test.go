package subdoc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractRefs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	if err := os.WriteFile(path, []byte("refs:\n  - a\n  - b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	refs, err := YAMLExtractor{}.ExtractRefs(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || refs[0] != "a" || refs[1] != "b" {
		t.Errorf("unexpected refs: %v", refs)
	}
}

func TestExtractRefsMissingFile(t *testing.T) {
	if _, err := (YAMLExtractor{}).ExtractRefs("/nonexistent/doc.yaml"); err == nil {
		t.Error("expected an error for a missing sub-document")
	}
}
