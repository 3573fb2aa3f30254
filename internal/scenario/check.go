package scenario

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/querybuilder/internal/options"
)

// Check compares a run result against e and returns one message per
// mismatch, in a stable order.
func Check(e Expect, r *Result) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if want := strings.TrimSpace(e.SQL); want != "" && want != r.SQL {
		fail("sql: expected %q, got %q", want, r.SQL)
	}

	hints := make([]string, 0, len(e.Hints))
	for h := range e.Hints {
		hints = append(hints, string(h))
	}
	sort.Strings(hints)
	for _, h := range hints {
		want := e.Hints[options.ColumnHint(h)]
		col, ok := r.Final.ColumnByHint(options.ColumnHint(h))
		switch {
		case want == "" && ok:
			fail("hint %s: expected no column, got %q", h, col.Name)
		case want != "" && !ok:
			fail("hint %s: expected %q, got none", h, want)
		case want != "" && col.Name != want:
			fail("hint %s: expected %q, got %q", h, want, col.Name)
		}
	}

	if e.Limit != nil && *e.Limit != r.Final.Limit {
		fail("limit: expected %d, got %d", *e.Limit, r.Final.Limit)
	}
	if e.Filters != nil && !filtersEqual(*e.Filters, r.Final.Filters) {
		fail("filters: expected %+v, got %+v", *e.Filters, r.Final.Filters)
	}
	if e.OrderBy != nil && !slices.Equal(*e.OrderBy, r.Final.OrderBy) {
		fail("order_by: expected %+v, got %+v", *e.OrderBy, r.Final.OrderBy)
	}
	if e.OtelEnabled != nil && *e.OtelEnabled != r.Final.Meta.OtelEnabled {
		fail("otel_enabled: expected %t, got %t", *e.OtelEnabled, r.Final.Meta.OtelEnabled)
	}
	if e.Commits != nil && *e.Commits != len(r.Snapshots) {
		fail("commits: expected %d, got %d", *e.Commits, len(r.Snapshots))
	}
	if e.Advisory != nil && *e.Advisory != string(r.Advisory) {
		fail("advisory: expected %q, got %q", *e.Advisory, r.Advisory)
	}
	return errs
}

func filtersEqual(a, b []options.Filter) bool {
	return slices.EqualFunc(a, b, func(x, y options.Filter) bool {
		return x.Column == y.Column && x.Hint == y.Hint && x.Type == y.Type &&
			x.Operator == y.Operator && x.Combinator == y.Combinator &&
			slices.Equal(x.Values, y.Values)
	})
}
