// Package sqlgen renders a finalized query to ClickHouse-flavoured SQL text.
//
// Render is a pure function of its input. It only ever sees the boundary
// variant built by options.Build, never an in-flight Option Model.
//
// Literals are interpolated, not parameterized: the output is display and
// copy-paste text for a query editor, not a prepared statement.
package sqlgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
)

// Render converts q to SQL text.
func Render(q options.Query) (string, error) {
	if q == nil {
		return "", fmt.Errorf("cannot render nil query")
	}

	switch query := q.(type) {
	case *options.ListQuery:
		return renderList(query)
	case *options.AggregateQuery:
		return renderAggregate(query)
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
}

func renderList(q *options.ListQuery) (string, error) {
	cols := make([]string, 0, len(q.Columns))
	for _, c := range q.Columns {
		cols = append(cols, selectItem(Ident(c.Name), c.Alias))
	}
	return assemble(q.Database, q.Table, cols, q.Where, nil, q.OrderBy, q.Limit)
}

func renderAggregate(q *options.AggregateQuery) (string, error) {
	cols := make([]string, 0, len(q.GroupBy)+len(q.Aggregates))
	for _, g := range q.GroupBy {
		cols = append(cols, Ident(g))
	}
	for i, a := range q.Aggregates {
		expr, err := aggregateExpr(a)
		if err != nil {
			return "", fmt.Errorf("aggregate %d: %w", i, err)
		}
		cols = append(cols, selectItem(expr, a.Alias))
	}
	return assemble(q.Database, q.Table, cols, q.Where, q.GroupBy, q.OrderBy, q.Limit)
}

func assemble(database, table string, cols []string, where []options.Condition, groupBy []string, orderBy []options.Ordering, limit int) (string, error) {
	if table == "" {
		return "", fmt.Errorf("no table")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(cols) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(cols, ", "))
	}

	b.WriteString(" FROM ")
	if database != "" {
		b.WriteString(Ident(database))
		b.WriteString(".")
	}
	b.WriteString(Ident(table))

	if len(where) > 0 {
		clause, err := whereClause(where)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(clause)
	}

	if len(groupBy) > 0 {
		parts := make([]string, len(groupBy))
		for i, g := range groupBy {
			parts[i] = Ident(g)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if len(orderBy) > 0 {
		parts := make([]string, len(orderBy))
		for i, o := range orderBy {
			dir := o.Direction
			if dir == "" {
				dir = options.Asc
			}
			parts[i] = fmt.Sprintf("%s %s", Ident(o.Column), dir)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	return b.String(), nil
}

func selectItem(expr, alias string) string {
	if alias == "" {
		return expr
	}
	return fmt.Sprintf("%s AS %s", expr, Ident(alias))
}

func aggregateExpr(a options.AggregateColumn) (string, error) {
	fn := strings.ToLower(string(a.Function))
	switch options.AggregateFunc(fn) {
	case options.AggCount:
		if a.Column == "" {
			return "count(*)", nil
		}
	case options.AggSum, options.AggAvg, options.AggMin, options.AggMax, options.AggAny, options.AggUniq:
		if a.Column == "" {
			return "", fmt.Errorf("%s needs a column", fn)
		}
	default:
		return "", fmt.Errorf("unknown aggregate function %q", a.Function)
	}
	return fmt.Sprintf("%s(%s)", fn, Ident(a.Column)), nil
}

// whereClause joins the conditions in order. Each condition is
// parenthesized and joined to the previous one by its own combinator; the
// first combinator is ignored.
func whereClause(conds []options.Condition) (string, error) {
	var b strings.Builder
	for i, c := range conds {
		expr, err := condition(c)
		if err != nil {
			return "", fmt.Errorf("filter %d: %w", i, err)
		}
		if i > 0 {
			comb := c.Combinator
			if comb == "" {
				comb = options.CombineAnd
			}
			fmt.Fprintf(&b, " %s ", comb)
		}
		b.WriteString("(")
		b.WriteString(expr)
		b.WriteString(")")
	}
	return b.String(), nil
}

func condition(c options.Condition) (string, error) {
	col := Ident(c.Column)

	switch c.Operator {
	case options.OpIsNull, options.OpIsNotNull:
		return fmt.Sprintf("%s %s", col, c.Operator), nil

	case options.OpEquals, options.OpNotEquals, options.OpLess, options.OpLessEq,
		options.OpGreater, options.OpGreaterEq:
		if len(c.Values) != 1 {
			return "", fmt.Errorf("%s needs exactly one value, got %d", c.Operator, len(c.Values))
		}
		return fmt.Sprintf("%s %s %s", col, c.Operator, Literal(c.Type, c.Values[0])), nil

	case options.OpLike, options.OpNotLike:
		if len(c.Values) != 1 {
			return "", fmt.Errorf("%s needs exactly one value, got %d", c.Operator, len(c.Values))
		}
		return fmt.Sprintf("%s %s %s", col, c.Operator, Quote(c.Values[0])), nil

	case options.OpIn, options.OpNotIn:
		if len(c.Values) == 0 {
			return "", fmt.Errorf("%s needs at least one value", c.Operator)
		}
		lits := make([]string, len(c.Values))
		for i, v := range c.Values {
			lits[i] = Literal(c.Type, v)
		}
		return fmt.Sprintf("%s %s (%s)", col, c.Operator, strings.Join(lits, ", ")), nil

	case options.OpWithinLast:
		if len(c.Values) != 1 {
			return "", fmt.Errorf("%s needs exactly one duration, got %d", c.Operator, len(c.Values))
		}
		interval, err := Interval(c.Values[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s >= now() - %s", col, interval), nil

	default:
		return "", fmt.Errorf("unknown operator %q", c.Operator)
	}
}

// Interval converts a Go duration string to an INTERVAL expression in the
// largest whole unit.
func Interval(s string) (string, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return "", fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return "", fmt.Errorf("duration %q must be positive", s)
	}
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("INTERVAL %d HOUR", d/time.Hour), nil
	case d%time.Minute == 0:
		return fmt.Sprintf("INTERVAL %d MINUTE", d/time.Minute), nil
	case d%time.Second == 0:
		return fmt.Sprintf("INTERVAL %d SECOND", d/time.Second), nil
	default:
		return "", fmt.Errorf("duration %q is finer than a second", s)
	}
}

// Ident quotes an identifier.
func Ident(name string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(name) + `"`
}

// Quote renders a string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// decimal matches plain decimal numbers. Hex floats and the inf/nan
// spellings stay quoted.
var decimal = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// Literal renders v for a column of type typ. Decimal numbers and booleans
// are emitted bare when the column type and the value agree; anything else
// is a quoted string.
func Literal(typ, v string) string {
	switch {
	case catalog.IsNumericType(typ):
		if decimal.MatchString(v) {
			return v
		}
	case catalog.IsBoolType(typ):
		if b, err := strconv.ParseBool(v); err == nil {
			return strconv.FormatBool(b)
		}
	}
	return Quote(v)
}
