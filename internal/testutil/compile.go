// Package testutil holds helpers shared by tests that compile queries and
// run the rendered SQL against a database.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonapiq/internal/compiler"
	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/input"
	"github.com/roach88/jsonapiq/internal/queryspec"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Compile parses query and compiles it for resource, failing the test on
// any error.
func Compile(t testing.TB, cfg config.Config, resource, query string) *queryspec.QuerySpec {
	t.Helper()

	params, err := input.ParseQuery(query)
	require.NoError(t, err)
	spec, err := compiler.New(cfg,
		compiler.WithLogger(QuietLogger()),
		compiler.WithPassIDGenerator(NewSequenceGenerator("")),
	).Compile(context.Background(), params, resource)
	require.NoError(t, err, "compile %q", query)
	return spec
}

// ProjectIDs narrows the root and every top-level include to the id
// column so result rows scan uniformly.
func ProjectIDs(spec *queryspec.QuerySpec) {
	spec.Attributes = []string{"id"}
	for i := range spec.Include {
		spec.Include[i].Attributes = []string{"id"}
	}
}

// ScanRootIDs reads the first column of every row as an int64 and returns
// the distinct values in first-seen order. Remaining columns are discarded.
func ScanRootIDs(t testing.TB, rows *sql.Rows) []int64 {
	t.Helper()
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)

	var ids []int64
	for rows.Next() {
		dest := make([]any, len(cols))
		var id int64
		dest[0] = &id
		for i := 1; i < len(dest); i++ {
			dest[i] = new(any)
		}
		require.NoError(t, rows.Scan(dest...))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return DistinctFirst(ids)
}

// DistinctFirst drops repeated IDs, keeping the first occurrence. Joined
// rows repeat their root.
func DistinctFirst(ids []int64) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
