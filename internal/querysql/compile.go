// Package querysql renders a QuerySpec as a parameterized SELECT.
//
// The root resource is the FROM table, every include node becomes a join
// aliased by its relation path, and "$path.field$" references in the OR list
// resolve against those aliases. Values are always bound, never
// interpolated.
package querysql

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/operator"
	"github.com/roach88/jsonapiq/internal/queryspec"
)

// ErrUnsupported reports a QuerySpec construct that has no SQL rendering.
var ErrUnsupported = errors.New("unsupported query construct")

// DefaultPrimaryKey is the column joins reference and results are finally
// ordered by.
const DefaultPrimaryKey = "id"

// SQLCompiler compiles QuerySpecs to parameterized SQL.
//
// Every statement ends with an ORDER BY on the root primary key, after any
// requested sort terms, so paging is deterministic.
type SQLCompiler struct {
	dialect Dialect
	cfg     config.Config
}

// NewSQLCompiler creates a compiler for dialect using cfg's relation join
// settings.
func NewSQLCompiler(dialect Dialect, cfg config.Config) *SQLCompiler {
	return &SQLCompiler{dialect: dialect, cfg: cfg}
}

// Compile renders q as a SELECT rooted at resource.
// Returns (sql, params, error).
func (c *SQLCompiler) Compile(resource string, q *queryspec.QuerySpec) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query spec")
	}
	if resource == "" {
		return "", nil, fmt.Errorf("root resource is required")
	}

	b := &builder{
		dialect: c.dialect,
		cfg:     c.cfg,
		root:    resource,
		aliases: map[string]bool{resource: true},
	}

	columns := b.columns(resource, q.Attributes, false)
	var joins []string
	for _, n := range q.Include {
		js, cols, err := b.join(resource, resource, "", n)
		if err != nil {
			return "", nil, err
		}
		joins = append(joins, js...)
		columns = append(columns, cols...)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table(resource))
	sb.WriteString(" AS ")
	sb.WriteString(b.q(resource))
	for _, j := range joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}

	where, err := b.where(resource, &q.Where)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	order, err := b.orderBy(q.Order)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)

	sb.WriteString(b.paginate(q.Limit, q.Offset))

	return sb.String(), b.args, nil
}

type builder struct {
	dialect Dialect
	cfg     config.Config
	root    string
	aliases map[string]bool
	args    []any
}

func (b *builder) q(ident string) string { return b.dialect.Quote(ident) }

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) col(alias, column string) string {
	return b.q(alias) + "." + b.q(column)
}

// table returns the quoted table backing a relation path.
func (b *builder) table(path string) string {
	if r, ok := b.cfg.RelationFor(path); ok && r.Table != "" {
		return b.q(r.Table)
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return b.q(path[i+1:])
	}
	return b.q(path)
}

// columns renders a projection. Included relations alias their columns as
// "path.column" so they stay distinguishable in the result set.
func (b *builder) columns(alias string, attrs []string, aliased bool) []string {
	if len(attrs) == 0 {
		return []string{b.q(alias) + ".*"}
	}
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		expr := b.col(alias, a)
		if aliased {
			expr += " AS " + b.q(alias+"."+a)
		}
		out = append(out, expr)
	}
	return out
}

// join renders the join for n and its descendants. parentAlias is the
// alias of the joined parent, parentName its bare relation (or root) name.
func (b *builder) join(parentAlias, parentName, prefix string, n queryspec.IncludeNode) ([]string, []string, error) {
	if n.Relation == "" {
		return nil, nil, fmt.Errorf("%w: include node without relation", ErrUnsupported)
	}
	alias := n.Relation
	if prefix != "" {
		alias = prefix + "." + n.Relation
	}
	b.aliases[alias] = true

	fk := parentName + "_" + DefaultPrimaryKey
	ref := DefaultPrimaryKey
	if r, ok := b.cfg.RelationFor(alias); ok {
		if r.ForeignKey != "" {
			fk = r.ForeignKey
		}
		if r.References != "" {
			ref = r.References
		}
	}

	kind := "LEFT JOIN"
	if n.Required {
		kind = "INNER JOIN"
	}
	on := b.col(alias, fk) + " = " + b.col(parentAlias, ref)
	if n.Where != nil {
		if len(n.Where.Or) > 0 {
			return nil, nil, fmt.Errorf("%w: OR list on include %q", ErrUnsupported, alias)
		}
		cond, err := b.fields(alias, n.Where.Fields)
		if err != nil {
			return nil, nil, fmt.Errorf("include %q: %w", alias, err)
		}
		if cond != "" {
			on += " AND " + cond
		}
	}

	joins := []string{fmt.Sprintf("%s %s AS %s ON %s", kind, b.table(alias), b.q(alias), on)}
	cols := b.columns(alias, n.Attributes, true)
	for _, child := range n.Include {
		js, cs, err := b.join(alias, n.Relation, alias, child)
		if err != nil {
			return nil, nil, err
		}
		joins = append(joins, js...)
		cols = append(cols, cs...)
	}
	return joins, cols, nil
}

func (b *builder) where(alias string, w *queryspec.Where) (string, error) {
	if w.IsEmpty() {
		return "", nil
	}
	var parts []string
	cond, err := b.fields(alias, w.Fields)
	if err != nil {
		return "", err
	}
	if cond != "" {
		parts = append(parts, cond)
	}

	if len(w.Or) > 0 {
		ors := make([]string, 0, len(w.Or))
		for _, e := range w.Or {
			owner, field, err := b.qualified(e.Field)
			if err != nil {
				return "", err
			}
			s, err := b.predicate(b.col(owner, field), e.Ops)
			if err != nil {
				return "", err
			}
			ors = append(ors, s)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	return strings.Join(parts, " AND "), nil
}

// qualified splits "$posts.comments.body$" into ("posts.comments", "body").
func (b *builder) qualified(ref string) (string, string, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(ref, "$"), "$")
	dot := strings.LastIndexByte(inner, '.')
	if len(inner) != len(ref)-2 || dot <= 0 || dot == len(inner)-1 {
		return "", "", fmt.Errorf("%w: malformed qualified field %q", ErrUnsupported, ref)
	}
	owner := inner[:dot]
	if !b.aliases[owner] {
		return "", "", fmt.Errorf("%w: %q references relation %q which is not included", ErrUnsupported, ref, owner)
	}
	return owner, inner[dot+1:], nil
}

// fields renders field predicates in field name order.
func (b *builder) fields(alias string, fields map[string]queryspec.FieldPredicate) (string, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		s, err := b.predicate(b.col(alias, name), fields[name])
		if err != nil {
			return "", fmt.Errorf("field %q: %w", name, err)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND "), nil
}

// predicate renders one field's operator map. Operators render in their
// declaration order; a nil map is the IS NULL marker.
func (b *builder) predicate(col string, pred queryspec.FieldPredicate) (string, error) {
	if pred == nil {
		return col + " IS NULL", nil
	}
	var parts []string
	for _, op := range operator.All {
		v, ok := pred[op]
		if !ok {
			continue
		}
		s, err := b.comparison(col, op, v)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) != len(pred) {
		return "", fmt.Errorf("%w: unknown operator in %v", ErrUnsupported, pred)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

var binaryOps = map[operator.Operator]string{
	operator.Eq:      "=",
	operator.Ne:      "<>",
	operator.Lt:      "<",
	operator.Gt:      ">",
	operator.Lte:     "<=",
	operator.Gte:     ">=",
	operator.Like:    "LIKE",
	operator.NotLike: "NOT LIKE",
}

func (b *builder) comparison(col string, op operator.Operator, v any) (string, error) {
	if op.IsLogical() {
		return "", fmt.Errorf("%w: logical operator %q as comparison", ErrUnsupported, op)
	}
	if op.IsPattern() && op != operator.Like && op != operator.NotLike {
		op, v = operator.ApplyPatternWrapping(op, v)
	}

	if op.IsList() {
		list, ok := v.([]any)
		if !ok {
			return "", fmt.Errorf("%w: %s needs a list, got %T", ErrUnsupported, op, v)
		}
		return b.listComparison(col, op, list)
	}

	switch {
	case v == nil && op == operator.Eq:
		return col + " IS NULL", nil
	case v == nil && op == operator.Ne:
		return col + " IS NOT NULL", nil
	}
	sqlOp, ok := binaryOps[op]
	if !ok {
		return "", fmt.Errorf("%w: operator %q", ErrUnsupported, op)
	}
	return fmt.Sprintf("%s %s %s", col, sqlOp, b.bind(v)), nil
}

func (b *builder) listComparison(col string, op operator.Operator, list []any) (string, error) {
	switch op {
	case operator.In, operator.NotIn:
		if len(list) == 0 {
			if op == operator.In {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		phs := make([]string, len(list))
		for i, v := range list {
			phs[i] = b.bind(v)
		}
		kw := "IN"
		if op == operator.NotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(phs, ", ")), nil
	case operator.Between, operator.NotBetween:
		if len(list) != 2 {
			return "", fmt.Errorf("%w: %s needs exactly 2 values, got %d", ErrUnsupported, op, len(list))
		}
		kw := "BETWEEN"
		if op == operator.NotBetween {
			kw = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s %s AND %s", col, kw, b.bind(list[0]), b.bind(list[1])), nil
	}
	return "", fmt.Errorf("%w: operator %q", ErrUnsupported, op)
}

func (b *builder) orderBy(terms []queryspec.SortTerm) (string, error) {
	parts := make([]string, 0, len(terms)+1)
	for _, t := range terms {
		alias := b.root
		if len(t.Path) > 0 {
			alias = strings.Join(t.Path, ".")
		}
		if !b.aliases[alias] {
			return "", fmt.Errorf("%w: sort on %q which is not included", ErrUnsupported, alias)
		}
		dir := "ASC"
		if t.Direction == queryspec.Desc {
			dir = "DESC"
		}
		parts = append(parts, b.col(alias, t.Field)+" "+dir)
	}
	// stable tiebreaker
	parts = append(parts, b.col(b.root, DefaultPrimaryKey)+" ASC")
	return strings.Join(parts, ", "), nil
}

func (b *builder) paginate(limit, offset *int) string {
	if limit == nil && offset == nil {
		return ""
	}
	if b.dialect == SQLServer {
		off := 0
		if offset != nil {
			off = *offset
		}
		s := " OFFSET " + b.bind(off) + " ROWS"
		if limit != nil {
			s += " FETCH NEXT " + b.bind(*limit) + " ROWS ONLY"
		}
		return s
	}

	var s string
	switch {
	case limit != nil:
		s = " LIMIT " + b.bind(*limit)
	case b.dialect == SQLite:
		// SQLite requires LIMIT before OFFSET
		s = " LIMIT -1"
	}
	if offset != nil {
		s += " OFFSET " + b.bind(*offset)
	}
	return s
}
