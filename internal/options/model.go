package options

import "slices"

// Normalize returns a copy of o with every Option Model invariant restored.
//
// Normalize is idempotent and never fails: invalid user input is clamped or
// dropped rather than rejected.
//   - Empty Builder defaults to BuilderTable, empty Mode to ModeList.
//   - The logs builder is forced into ModeList.
//   - Negative Limit floors at 0.
//   - Outside ModeAggregate, Aggregates and GroupBy are cleared.
//   - GroupBy keeps the first occurrence of each column.
//   - When several columns carry the same hint, the last one keeps it.
func Normalize(o Options) Options {
	n := o.Clone()

	if n.Builder == "" {
		n.Builder = BuilderTable
	}
	if n.Mode == "" || n.Builder == BuilderLogs {
		n.Mode = ModeList
	}
	if n.Limit < 0 {
		n.Limit = 0
	}

	if n.Mode != ModeAggregate {
		n.Aggregates = nil
		n.GroupBy = nil
	} else {
		n.GroupBy = dedupe(n.GroupBy)
	}

	n.Columns = uniqueHints(n.Columns)
	return n
}

// Clone returns a deep copy of o. Slices of the copy never alias o.
func (o Options) Clone() Options {
	c := o
	c.Columns = slices.Clone(o.Columns)
	c.Aggregates = slices.Clone(o.Aggregates)
	c.GroupBy = slices.Clone(o.GroupBy)
	c.OrderBy = slices.Clone(o.OrderBy)
	if o.Filters != nil {
		c.Filters = make([]Filter, len(o.Filters))
		for i, f := range o.Filters {
			f.Values = slices.Clone(f.Values)
			c.Filters[i] = f
		}
	}
	return c
}

// Equal reports whether two models are identical field by field.
func (o Options) Equal(other Options) bool {
	if o.Builder != other.Builder || o.Database != other.Database || o.Table != other.Table ||
		o.Mode != other.Mode || o.Limit != other.Limit || o.Meta != other.Meta {
		return false
	}
	if !slices.Equal(o.Columns, other.Columns) ||
		!slices.Equal(o.Aggregates, other.Aggregates) ||
		!slices.Equal(o.GroupBy, other.GroupBy) ||
		!slices.Equal(o.OrderBy, other.OrderBy) {
		return false
	}
	return slices.EqualFunc(o.Filters, other.Filters, func(a, b Filter) bool {
		return a.Column == b.Column && a.Hint == b.Hint && a.Type == b.Type &&
			a.Operator == b.Operator && a.Combinator == b.Combinator &&
			slices.Equal(a.Values, b.Values)
	})
}

// IsNew reports whether the query has never been configured: nothing is
// selected, aggregated, filtered or ordered. The schema location does not
// count, since hosts often preselect a default database and table.
func (o Options) IsNew() bool {
	return len(o.Columns) == 0 && len(o.Aggregates) == 0 &&
		len(o.Filters) == 0 && len(o.OrderBy) == 0
}

// ColumnByHint returns the column carrying hint h.
func (o Options) ColumnByHint(h ColumnHint) (SelectedColumn, bool) {
	if h == HintNone {
		return SelectedColumn{}, false
	}
	for _, c := range o.Columns {
		if c.Hint == h {
			return c, true
		}
	}
	return SelectedColumn{}, false
}

// WithHintedColumn returns a copy of o where col is the only column carrying
// col.Hint. Any column already holding that hint is removed first, so hint
// collisions never arise.
func (o Options) WithHintedColumn(col SelectedColumn) Options {
	if col.Hint == HintNone {
		n := o.Clone()
		n.Columns = append(n.Columns, col)
		return n
	}
	n := o.WithoutHint(col.Hint)
	n.Columns = append(n.Columns, col)
	return n
}

// WithoutHint returns a copy of o with the column carrying h removed.
func (o Options) WithoutHint(h ColumnHint) Options {
	n := o.Clone()
	if h == HintNone {
		return n
	}
	n.Columns = slices.DeleteFunc(n.Columns, func(c SelectedColumn) bool {
		return c.Hint == h
	})
	return n
}

// PlainColumns returns the columns that carry no hint, in order.
func (o Options) PlainColumns() []SelectedColumn {
	var out []SelectedColumn
	for _, c := range o.Columns {
		if c.Hint == HintNone {
			out = append(out, c)
		}
	}
	return out
}

// uniqueHints clears the hint on every column whose hint also appears on a
// later column.
func uniqueHints(cols []SelectedColumn) []SelectedColumn {
	seen := make(map[ColumnHint]bool)
	for i := len(cols) - 1; i >= 0; i-- {
		h := cols[i].Hint
		if h == HintNone {
			continue
		}
		if seen[h] {
			cols[i].Hint = HintNone
			continue
		}
		seen[h] = true
	}
	return cols
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
