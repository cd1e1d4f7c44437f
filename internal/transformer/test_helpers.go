package transformer

import (
	"os"
	"path/filepath"
	"testing"
)

type testDir struct {
	path string
	t    *testing.T
}

func newTestDir(t *testing.T) *testDir {
	t.Helper()
	return &testDir{path: t.TempDir(), t: t}
}

func (td *testDir) createFile(name, content string) string {
	td.t.Helper()

	path := filepath.Join(td.path, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		td.t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func (td *testDir) listSuffix(suffix string) []string {
	td.t.Helper()

	entries, err := os.ReadDir(td.path)
	if err != nil {
		td.t.Fatalf("failed to read test dir: %v", err)
	}

	var matches []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == suffix {
			matches = append(matches, filepath.Join(td.path, entry.Name()))
		}
	}
	return matches
}
