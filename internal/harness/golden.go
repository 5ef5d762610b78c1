package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/jsonapiq/internal/canonical"
)

const goldenSuffix = ".golden"

// ErrGoldenMismatch is returned by Golden.Check when a snapshot differs
// from its golden file.
var ErrGoldenMismatch = errors.New("snapshot does not match golden file")

// Snapshot returns the canonical JSON golden form of a result: the
// compiled spec, or the error code of a rejected query, plus rendered SQL
// when present. Pass IDs and fingerprints are left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	m := map[string]any{"scenario": scenarioName}
	if result.Rejected() {
		m["error_code"] = result.ErrorCode
	} else {
		m["spec"] = result.Spec
	}
	if result.SQL != "" {
		args, err := normalize(result.Args)
		if err != nil {
			return nil, err
		}
		if args == nil {
			args = []any{}
		}
		m["sql"] = result.SQL
		m["args"] = args
	}
	return canonical.Marshal(m)
}

// Golden is a directory of {scenario}.golden snapshot files.
type Golden struct {
	Dir string
}

// Path returns the golden file of a scenario.
func (g Golden) Path(scenarioName string) string {
	return filepath.Join(g.Dir, scenarioName+goldenSuffix)
}

// Check compares a snapshot with its golden file. A scenario without a
// golden file passes; surrounding whitespace in the file is ignored.
func (g Golden) Check(scenarioName string, snapshot []byte) error {
	want, err := os.ReadFile(g.Path(scenarioName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(snapshot)) {
		return ErrGoldenMismatch
	}
	return nil
}

// Update writes the golden file of a scenario, creating Dir if needed.
func (g Golden) Update(scenarioName string, snapshot []byte) error {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(g.Path(scenarioName), snapshot, 0o644)
}

// AssertGolden compares a result's snapshot with dir/{name}.golden through
// goldie, so `go test -update` regenerates it.
func AssertGolden(t *testing.T, dir, scenarioName string, result *Result) {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", scenarioName, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(goldenSuffix),
	)
	g.Assert(t, scenarioName, data)
}
