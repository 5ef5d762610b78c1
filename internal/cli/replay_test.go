package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonapiq/internal/store"
)

func recordQueries(t *testing.T, db string, extra []string, queries ...string) {
	t.Helper()
	for _, q := range queries {
		args := append([]string{"compile", "users", q, "--record", db}, extra...)
		_, _ = execute(t, args...)
	}
}

func TestReplayNoDrift(t *testing.T) {
	db := filepath.Join(t.TempDir(), "compile.db")
	recordQueries(t, db, nil, "filter[users][age]=>18", "include=posts.comments", "limit=abc")

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "3 record(s), 3 matched")
	assert.Contains(t, out, "✓ No drift")
}

func TestReplayDetectsDrift(t *testing.T) {
	db := filepath.Join(t.TempDir(), "compile.db")
	// accepted leniently, rejected strictly
	recordQueries(t, db, []string{"--lenient"}, "limit=abc", "limit=5")

	out, err := execute(t, "replay", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeReplayDrift, resp.Error.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, float64(1), data["matched"])
	drifts := data["drifts"].([]any)
	require.Len(t, drifts, 1)
	drift := drifts[0].(map[string]any)
	assert.Equal(t, "limit=abc", drift["raw_query"])
	assert.Equal(t, "MALFORMED_INTEGER", drift["got_error"])
	assert.NotEmpty(t, drift["recorded_hash"])
}

func TestReplayDriftText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "compile.db")
	recordQueries(t, db, []string{"--lenient"}, "offset=x")

	out, err := execute(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Contains(t, out, `✗ seq 1 users "offset=x"`)
	assert.Contains(t, out, "Got:      rejected MALFORMED_INTEGER")
	assert.Contains(t, out, "✗ Replay drift detected")
}

func TestReplayFiltersByResource(t *testing.T) {
	db := filepath.Join(t.TempDir(), "compile.db")
	recordQueries(t, db, nil, "limit=1")
	_, _ = execute(t, "compile", "posts", "limit=2", "--record", db)

	out, err := execute(t, "replay", "--db", db, "--resource", "posts", "--format", "json")
	require.NoError(t, err)
	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
}

func TestReplayEmptyLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "compile.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "0 record(s), 0 matched")
}

func TestReplayDatabaseNotFound(t *testing.T) {
	_, err := execute(t, "replay", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayRequiresDB(t *testing.T) {
	_, err := execute(t, "replay")
	require.Error(t, err)
}
