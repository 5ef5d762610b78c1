package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLDefaultDialect(t *testing.T) {
	out, err := execute(t, "sql", "users", "filter[users][age]=>18&limit=10")
	require.NoError(t, err)

	assert.Contains(t, out, `SELECT "users".* FROM "users" AS "users" WHERE "users"."age" > ?`)
	assert.Contains(t, out, "LIMIT ?")
	assert.Contains(t, out, "Args:")
	assert.Contains(t, out, `1: "18"`)
	assert.Contains(t, out, "2: 10")
}

func TestSQLServerPaging(t *testing.T) {
	out, err := execute(t, "sql", "users", "offset=20&limit=10", "--dialect", "sqlserver", "--format", "json")
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, "sqlserver", data["dialect"])
	assert.Equal(t,
		"SELECT [users].* FROM [users] AS [users] ORDER BY [users].[id] ASC OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY",
		data["sql"])
	assert.Equal(t, []any{float64(20), float64(10)}, data["args"])
}

func TestSQLPostgresPlaceholders(t *testing.T) {
	out, err := execute(t, "sql", "users", "filter[users][name]=bob&limit=1", "--dialect", "postgres", "--format", "json")
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Contains(t, data["sql"], "$1")
	assert.Contains(t, data["sql"], "$2")
}

func TestSQLNoArgsIsEmptyList(t *testing.T) {
	out, err := execute(t, "sql", "users", "", "--format", "json")
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, []any{}, data["args"])
}

func TestSQLUnsupportedConstruct(t *testing.T) {
	out, err := execute(t, "sql", "users", "sort=posts.title")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_UNSUPPORTED]")
}

func TestSQLUnknownDialect(t *testing.T) {
	_, err := execute(t, "sql", "users", "limit=1", "--dialect", "oracle")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSQLRejectedQuery(t *testing.T) {
	out, err := execute(t, "sql", "users", "filter[users][age][greaterThan]=5", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "UNKNOWN_OPERATOR", decodeResponse(t, out).Error.Code)
}
