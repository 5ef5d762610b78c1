package querysql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/operator"
	"github.com/roach88/jsonapiq/internal/queryspec"
)

func intPtr(n int) *int { return &n }

func TestCompile_SimpleSelect(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{
		Where: queryspec.Where{Fields: map[string]queryspec.FieldPredicate{
			"status": {operator.Eq: "active"},
		}},
		Attributes: []string{"id", "name"},
	}

	sql, params, err := c.Compile("users", q)
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "users"."id", "users"."name" FROM "users" AS "users" WHERE "users"."status" = ? ORDER BY "users"."id" ASC`,
		sql)
	assert.NotContains(t, sql, "active")
	assert.Equal(t, []any{"active"}, params)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	sql, params, err := c.Compile("users", &queryspec.QuerySpec{})
	require.NoError(t, err)

	assert.Equal(t, `SELECT "users".* FROM "users" AS "users" ORDER BY "users"."id" ASC`, sql)
	assert.Empty(t, params)
}

func TestCompile_Operators(t *testing.T) {
	tests := []struct {
		name   string
		pred   queryspec.FieldPredicate
		sql    string
		params []any
	}{
		{"eq", queryspec.FieldPredicate{operator.Eq: "a"}, `"users"."f" = ?`, []any{"a"}},
		{"ne", queryspec.FieldPredicate{operator.Ne: "a"}, `"users"."f" <> ?`, []any{"a"}},
		{"lt", queryspec.FieldPredicate{operator.Lt: "5"}, `"users"."f" < ?`, []any{"5"}},
		{"gt", queryspec.FieldPredicate{operator.Gt: "5"}, `"users"."f" > ?`, []any{"5"}},
		{"lte", queryspec.FieldPredicate{operator.Lte: "5"}, `"users"."f" <= ?`, []any{"5"}},
		{"gte", queryspec.FieldPredicate{operator.Gte: "5"}, `"users"."f" >= ?`, []any{"5"}},
		{"like", queryspec.FieldPredicate{operator.Like: "%a%"}, `"users"."f" LIKE ?`, []any{"%a%"}},
		{"notLike", queryspec.FieldPredicate{operator.NotLike: "%a%"}, `"users"."f" NOT LIKE ?`, []any{"%a%"}},
		{"in", queryspec.FieldPredicate{operator.In: []any{"a", "b"}}, `"users"."f" IN (?, ?)`, []any{"a", "b"}},
		{"notIn", queryspec.FieldPredicate{operator.NotIn: []any{"a"}}, `"users"."f" NOT IN (?)`, []any{"a"}},
		{"empty in", queryspec.FieldPredicate{operator.In: []any{}}, `1 = 0`, nil},
		{"empty notIn", queryspec.FieldPredicate{operator.NotIn: []any{}}, `1 = 1`, nil},
		{"between", queryspec.FieldPredicate{operator.Between: []any{"1", "5"}}, `"users"."f" BETWEEN ? AND ?`, []any{"1", "5"}},
		{"notBetween", queryspec.FieldPredicate{operator.NotBetween: []any{"1", "5"}}, `"users"."f" NOT BETWEEN ? AND ?`, []any{"1", "5"}},
		{"null marker", nil, `"users"."f" IS NULL`, nil},
		{"eq null", queryspec.FieldPredicate{operator.Eq: nil}, `"users"."f" IS NULL`, nil},
		{"ne null", queryspec.FieldPredicate{operator.Ne: nil}, `"users"."f" IS NOT NULL`, nil},
		{"contains lowered", queryspec.FieldPredicate{operator.Contains: "a"}, `"users"."f" LIKE ?`, []any{"%a%"}},
		{"startsWith lowered", queryspec.FieldPredicate{operator.StartsWith: "a"}, `"users"."f" LIKE ?`, []any{"a%"}},
		{"range", queryspec.FieldPredicate{operator.Lt: "9", operator.Gt: "1"}, `("users"."f" < ? AND "users"."f" > ?)`, []any{"9", "1"}},
	}

	c := NewSQLCompiler(SQLite, config.Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &queryspec.QuerySpec{Where: queryspec.Where{Fields: map[string]queryspec.FieldPredicate{"f": tt.pred}}}
			sql, params, err := c.Compile("users", q)
			require.NoError(t, err)
			assert.Equal(t, `SELECT "users".* FROM "users" AS "users" WHERE `+tt.sql+` ORDER BY "users"."id" ASC`, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_RejectsMalformedPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred queryspec.FieldPredicate
	}{
		{"logical", queryspec.FieldPredicate{operator.And: "x"}},
		{"in scalar", queryspec.FieldPredicate{operator.In: "x"}},
		{"between arity", queryspec.FieldPredicate{operator.Between: []any{"1"}}},
		{"unknown", queryspec.FieldPredicate{"regex": "x"}},
	}

	c := NewSQLCompiler(SQLite, config.Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &queryspec.QuerySpec{Where: queryspec.Where{Fields: map[string]queryspec.FieldPredicate{"f": tt.pred}}}
			_, _, err := c.Compile("users", q)
			assert.True(t, errors.Is(err, ErrUnsupported), "got %v", err)
		})
	}
}

func TestCompile_FieldsInNameOrder(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{Where: queryspec.Where{Fields: map[string]queryspec.FieldPredicate{
		"name": {operator.Eq: "bob"},
		"age":  {operator.Gt: "18"},
	}}}

	sql, params, err := c.Compile("users", q)
	require.NoError(t, err)
	assert.Contains(t, sql, `WHERE "users"."age" > ? AND "users"."name" = ?`)
	assert.Equal(t, []any{"18", "bob"}, params)
}

func TestCompile_OrList(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{
		Where: queryspec.Where{
			Fields: map[string]queryspec.FieldPredicate{"age": {operator.Gt: "18"}},
			Or: []queryspec.OrEntry{
				{Field: "$users.email$", Ops: queryspec.FieldPredicate{operator.Like: "%gmail%"}},
				{Field: "$posts.title$", Ops: queryspec.FieldPredicate{operator.Eq: "Go"}},
			},
		},
		Include: []queryspec.IncludeNode{{Relation: "posts", Required: false}},
	}

	sql, params, err := c.Compile("users", q)
	require.NoError(t, err)
	assert.Contains(t, sql, `WHERE "users"."age" > ? AND ("users"."email" LIKE ? OR "posts"."title" = ?)`)
	assert.Equal(t, []any{"18", "%gmail%", "Go"}, params)
}

func TestCompile_OrReferenceMustBeJoined(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{Where: queryspec.Where{Or: []queryspec.OrEntry{
		{Field: "$posts.title$", Ops: queryspec.FieldPredicate{operator.Eq: "Go"}},
	}}}

	_, _, err := c.Compile("users", q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))

	q.Where.Or[0].Field = "users.title"
	_, _, err = c.Compile("users", q)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCompile_Joins(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{
		Include: []queryspec.IncludeNode{{
			Relation:   "posts",
			Required:   true,
			Attributes: []string{"title"},
			Where: &queryspec.Where{Fields: map[string]queryspec.FieldPredicate{
				"title": {operator.Like: "Go%"},
			}},
			Include: []queryspec.IncludeNode{
				{Relation: "comments", Required: false, Attributes: []string{"body"}},
			},
		}},
		Attributes: []string{"id"},
	}

	sql, params, err := c.Compile("users", q)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "users"."id", "posts"."title" AS "posts.title", "posts.comments"."body" AS "posts.comments.body" `+
			`FROM "users" AS "users" `+
			`INNER JOIN "posts" AS "posts" ON "posts"."users_id" = "users"."id" AND "posts"."title" LIKE ? `+
			`LEFT JOIN "comments" AS "posts.comments" ON "posts.comments"."posts_id" = "posts"."id" `+
			`ORDER BY "users"."id" ASC`,
		sql)
	assert.Equal(t, []any{"Go%"}, params)
}

func TestCompile_ConfiguredRelations(t *testing.T) {
	cfg := config.Config{Relations: map[string]config.Relation{
		"posts":          {ForeignKey: "author_id"},
		"posts.comments": {Table: "post_comments", ForeignKey: "post_ref", References: "uuid"},
	}}
	c := NewSQLCompiler(Postgres, cfg)
	q := &queryspec.QuerySpec{Include: []queryspec.IncludeNode{{
		Relation: "posts",
		Required: true,
		Include:  []queryspec.IncludeNode{{Relation: "comments", Required: true}},
	}}}

	sql, _, err := c.Compile("users", q)
	require.NoError(t, err)
	assert.Contains(t, sql, `INNER JOIN "posts" AS "posts" ON "posts"."author_id" = "users"."id"`)
	assert.Contains(t, sql, `INNER JOIN "post_comments" AS "posts.comments" ON "posts.comments"."post_ref" = "posts"."uuid"`)
}

func TestCompile_IncludeWithOrRejected(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{Include: []queryspec.IncludeNode{{
		Relation: "posts",
		Where: &queryspec.Where{Or: []queryspec.OrEntry{
			{Field: "$posts.title$", Ops: queryspec.FieldPredicate{operator.Eq: "x"}},
		}},
	}}}

	_, _, err := c.Compile("users", q)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCompile_OrderBy(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	q := &queryspec.QuerySpec{
		Include: []queryspec.IncludeNode{{Relation: "posts", Required: true}},
		Order: []queryspec.SortTerm{
			{Field: "createdAt", Direction: queryspec.Desc},
			{Path: []string{"posts"}, Field: "title", Direction: queryspec.Asc},
		},
	}

	sql, _, err := c.Compile("users", q)
	require.NoError(t, err)
	assert.Contains(t, sql, `ORDER BY "users"."createdAt" DESC, "posts"."title" ASC, "users"."id" ASC`)

	q.Order = []queryspec.SortTerm{{Path: []string{"tags"}, Field: "name", Direction: queryspec.Asc}}
	_, _, err = c.Compile("users", q)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestCompile_Pagination(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		limit   *int
		offset  *int
		suffix  string
		params  []any
	}{
		{"sqlite both", SQLite, intPtr(10), intPtr(20), ` LIMIT ? OFFSET ?`, []any{10, 20}},
		{"sqlite offset only", SQLite, nil, intPtr(5), ` LIMIT -1 OFFSET ?`, []any{5}},
		{"postgres both", Postgres, intPtr(10), intPtr(20), ` LIMIT $1 OFFSET $2`, []any{10, 20}},
		{"postgres offset only", Postgres, nil, intPtr(5), ` OFFSET $1`, []any{5}},
		{"sqlserver both", SQLServer, intPtr(10), intPtr(20), ` OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY`, []any{20, 10}},
		{"sqlserver limit only", SQLServer, intPtr(10), nil, ` OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY`, []any{0, 10}},
		{"none", SQLite, nil, nil, ` ASC`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSQLCompiler(tt.dialect, config.Config{})
			sql, params, err := c.Compile("users", &queryspec.QuerySpec{Limit: tt.limit, Offset: tt.offset})
			require.NoError(t, err)
			assert.True(t, len(sql) >= len(tt.suffix) && sql[len(sql)-len(tt.suffix):] == tt.suffix, "sql: %s", sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompile_DialectPlaceholdersAndQuoting(t *testing.T) {
	q := &queryspec.QuerySpec{Where: queryspec.Where{Fields: map[string]queryspec.FieldPredicate{
		"a": {operator.Eq: "1"},
		"b": {operator.In: []any{"2", "3"}},
	}}}

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, `SELECT "users".* FROM "users" AS "users" WHERE "users"."a" = ? AND "users"."b" IN (?, ?) ORDER BY "users"."id" ASC`},
		{Postgres, `SELECT "users".* FROM "users" AS "users" WHERE "users"."a" = $1 AND "users"."b" IN ($2, $3) ORDER BY "users"."id" ASC`},
		{SQLServer, `SELECT [users].* FROM [users] AS [users] WHERE [users].[a] = @p1 AND [users].[b] IN (@p2, @p3) ORDER BY [users].[id] ASC`},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			sql, params, err := NewSQLCompiler(tt.dialect, config.Config{}).Compile("users", q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
			assert.Equal(t, []any{"1", "2", "3"}, params)
		})
	}
}

func TestCompile_NilAndEmptyInputs(t *testing.T) {
	c := NewSQLCompiler(SQLite, config.Config{})
	_, _, err := c.Compile("users", nil)
	assert.Error(t, err)
	_, _, err = c.Compile("", &queryspec.QuerySpec{})
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"sqlite": SQLite, "SQLite3": SQLite,
		"postgres": Postgres, "pg": Postgres, "pgx": Postgres,
		"sqlserver": SQLServer, "mssql": SQLServer,
	}
	for in, want := range tests {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestDialect_QuoteEscapes(t *testing.T) {
	assert.Equal(t, `"a""b"`, SQLite.Quote(`a"b`))
	assert.Equal(t, `[a]]b]`, SQLServer.Quote(`a]b`))
}
