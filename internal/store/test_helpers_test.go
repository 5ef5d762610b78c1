package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation creates an accepted compilation record.
func createTestCompilation(resource, rawQuery, specHash string) Compilation {
	return Compilation{
		Resource:        resource,
		RawQuery:        rawQuery,
		InputHash:       "in-" + rawQuery,
		SpecJSON:        `{"where":{}}`,
		SpecHash:        specHash,
		CompilerVersion: "1",
	}
}
