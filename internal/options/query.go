package options

// Query is the finalized, mode-specific form of an Option Model handed to a
// query-text generator.
//
// This is a sealed interface - only ListQuery and AggregateQuery implement it,
// so generators can switch exhaustively:
//
//	switch q := query.(type) {
//	case *ListQuery:
//	case *AggregateQuery:
//	}
type Query interface {
	queryNode()
	// From returns the schema location the query reads.
	From() (database, table string)
}

// Condition is a filter whose column reference has been resolved.
type Condition struct {
	Column     string
	Type       string
	Operator   FilterOperator
	Values     []string
	Combinator Combinator
}

// Ordering is an ORDER BY entry whose reference has been resolved.
type Ordering struct {
	Column    string
	Direction Direction
}

// ListQuery is a flat row listing.
//
//	SELECT <Columns> FROM <Database>.<Table> WHERE <Where> ORDER BY <OrderBy> LIMIT <Limit>
type ListQuery struct {
	Database string
	Table    string
	Columns  []SelectedColumn // empty selects every column
	Where    []Condition
	OrderBy  []Ordering
	Limit    int
}

func (*ListQuery) queryNode() {}

// From implements Query.
func (q *ListQuery) From() (string, string) { return q.Database, q.Table }

// AggregateQuery is an aggregated, optionally grouped query.
//
//	SELECT <GroupBy>, <Aggregates> FROM ... WHERE ... GROUP BY <GroupBy> ORDER BY ... LIMIT ...
type AggregateQuery struct {
	Database   string
	Table      string
	Aggregates []AggregateColumn
	GroupBy    []string
	Where      []Condition
	OrderBy    []Ordering
	Limit      int
}

func (*AggregateQuery) queryNode() {}

// From implements Query.
func (q *AggregateQuery) From() (string, string) { return q.Database, q.Table }

// Build converts an Option Model to its boundary variant.
//
// Build normalizes o first, so any Options value is accepted. Filters and
// orderings that reference a hint are bound to the column carrying that hint;
// when no column carries it they are skipped and reported in the returned
// ValidationResult. The only error is a missing table.
func Build(o Options) (Query, ValidationResult, error) {
	n := Normalize(o)
	v := &validator{}

	if n.Table == "" {
		return nil, ValidationResult{}, &BuildError{
			Code:    ErrCodeMissingTable,
			Field:   FieldTable,
			Message: "no table selected",
		}
	}

	where := resolveFilters(n, v)
	order := resolveOrderBy(n, v)

	var q Query
	switch n.Mode {
	case ModeAggregate:
		q = &AggregateQuery{
			Database:   n.Database,
			Table:      n.Table,
			Aggregates: n.Aggregates,
			GroupBy:    n.GroupBy,
			Where:      where,
			OrderBy:    order,
			Limit:      n.Limit,
		}
	default:
		q = &ListQuery{
			Database: n.Database,
			Table:    n.Table,
			Columns:  n.Columns,
			Where:    where,
			OrderBy:  order,
			Limit:    n.Limit,
		}
	}

	res := Validate(q)
	res.Warnings = append(v.warnings, res.Warnings...)
	res.OK = len(res.Warnings) == 0
	return q, res, nil
}

func resolveFilters(o Options, v *validator) []Condition {
	var out []Condition
	for i, f := range o.Filters {
		col, typ := f.Column, f.Type
		if f.Hint != HintNone {
			hc, ok := o.ColumnByHint(f.Hint)
			if !ok {
				v.addWarning("filter %d references %s column, none selected", i, f.Hint)
				continue
			}
			col = hc.Name
			if typ == "" {
				typ = hc.Type
			}
		}
		if col == "" {
			v.addWarning("filter %d has no column", i)
			continue
		}
		comb := f.Combinator
		if comb == "" {
			comb = CombineAnd
		}
		out = append(out, Condition{
			Column:     col,
			Type:       typ,
			Operator:   f.Operator,
			Values:     f.Values,
			Combinator: comb,
		})
	}
	return out
}

func resolveOrderBy(o Options, v *validator) []Ordering {
	var out []Ordering
	for i, ob := range o.OrderBy {
		col := ob.Column
		if ob.Hint != HintNone {
			hc, ok := o.ColumnByHint(ob.Hint)
			if !ok {
				v.addWarning("order by %d references %s column, none selected", i, ob.Hint)
				continue
			}
			col = hc.Name
		}
		if col == "" {
			v.addWarning("order by %d has no column", i)
			continue
		}
		dir := ob.Direction
		if dir == "" {
			dir = Asc
		}
		out = append(out, Ordering{Column: col, Direction: dir})
	}
	return out
}
