package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
resources: [posts]
remap:
  people: users
relations:
  posts.author:
    table: users
    foreign_key: id
    references: author_id
`)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid (1 resource(s), 1 alias(es), 1 relation(s))")
}

func TestValidateCUEJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.cue", `
remap: people: "users"
max_include_depth: 8
`)

	out, err := execute(t, "validate", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(1), data["aliases"])
}

func TestValidateCUESchemaViolation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.cue", "max_include_depth: 1000\n")

	out, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigSchema, resp.Error.Code)
}

func TestValidateYAMLUnknownKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "remapp:\n  a: b\n")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, ErrCodeConfigInvalid)
}

func TestValidateSemanticError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "optional_marker: \".\"\n")

	out, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, ErrCodeConfigInvalid, resp.Error.Code)
	issues := resp.Data.(map[string]any)["errors"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "optional_marker", issues[0].(map[string]any)["field"])
}

func TestValidateChainedAlias(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "remap:\n  folks: people\n  people: users\n")

	out, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, ErrCodeConfigUnreachable, resp.Error.Code)
	issues := resp.Data.(map[string]any)["errors"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "remap.folks", issues[0].(map[string]any)["field"])
}

func TestValidateNotFound(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeConfigNotFound)
}

func TestValidateUnsupportedFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "remap = {}\n")

	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
