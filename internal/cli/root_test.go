package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "jsonapiq", cmd.Use)
	assert.Contains(t, cmd.Long, "JSON:API")
}

func TestFlags(t *testing.T) {
	tests := []struct {
		path      []string // subcommand, empty for the root's persistent flags
		flag      string
		shorthand string
		def       string
	}{
		{nil, "verbose", "v", "false"},
		{nil, "format", "", "text"},
		{nil, "config", "c", ""},
		{nil, "lenient", "", "false"},
		{[]string{"compile"}, "output", "o", ""},
		{[]string{"compile"}, "record", "", ""},
		{[]string{"sql"}, "dialect", "", "sqlite"},
		{[]string{"replay"}, "db", "", ""},
		{[]string{"replay"}, "resource", "", ""},
		{[]string{"replay"}, "after-seq", "", "0"},
		{[]string{"replay"}, "limit", "", "0"},
		{[]string{"test"}, "golden", "", ""},
		{[]string{"test"}, "update", "", "false"},
		{[]string{"test"}, "filter", "", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		name := strings.Join(append(append([]string{}, tt.path...), tt.flag), "/")
		t.Run(name, func(t *testing.T) {
			flags := root.PersistentFlags()
			if len(tt.path) > 0 {
				sub, _, err := root.Find(tt.path)
				require.NoError(t, err)
				require.Equal(t, tt.path[len(tt.path)-1], sub.Name())
				flags = sub.Flags()
			}
			f := flags.Lookup(tt.flag)
			require.NotNil(t, f, "missing --%s", tt.flag)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	_, err := execute(t, "compile", "users", "limit=1", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEnvironmentOverridesFormat(t *testing.T) {
	t.Setenv("JSONAPIQ_FORMAT", "json")

	out, err := execute(t, "compile", "users", "limit=5")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
}

func TestFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("JSONAPIQ_FORMAT", "json")

	out, err := execute(t, "compile", "users", "limit=5", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled users")
}
