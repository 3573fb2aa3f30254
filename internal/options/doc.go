// Package options defines the Option Model: the single structure describing a
// query under construction in the visual query builder.
//
// ARCHITECTURE:
//
// Two shapes of the same query exist:
//
//	[Options]  editable superset record (persisted, reconciled, rule input)
//	    │
//	    │  Build() - once, at the query-text boundary
//	    ▼
//	[Query]    sealed tagged variant: ListQuery | AggregateQuery
//
// Options keeps every field regardless of mode so editors and the reconciler
// can work on one record. Fields that are meaningless in the current mode are
// cleared by Normalize, never hidden. Query is what a query-text generator
// consumes; hint references are resolved to concrete column names and
// mode-specific parts only exist on the matching variant.
//
// INVARIANTS (hold for every Options returned by Normalize):
//   - At most one column carries a given ColumnHint.
//   - In List mode Aggregates and GroupBy are empty.
//   - Limit is never negative (0 means "no limit").
//   - The logs builder is always in List mode.
package options
