// Package mode governs which Option Model fields are active for a builder.
//
// The table builder is a two-state machine:
//
//	         toggle
//	List ───────────▶ Aggregate
//	     ◀───────────
//	         toggle   (aggregates and group-by are dropped)
//
// The logs builder has one fixed shape and never leaves List.
package mode

import (
	"slices"

	"github.com/roach88/querybuilder/internal/options"
)

// Controller tracks the builder mode of one editor session.
type Controller struct {
	builder options.BuilderKind
	mode    options.Mode
}

// NewController derives the initial mode from a loaded model: the table
// builder starts in Aggregate only when aggregates are already present.
func NewController(o options.Options) *Controller {
	c := &Controller{builder: o.Builder, mode: options.ModeList}
	if c.builder == "" {
		c.builder = options.BuilderTable
	}
	if c.builder == options.BuilderTable && len(o.Aggregates) > 0 {
		c.mode = options.ModeAggregate
	}
	return c
}

// Builder returns the builder kind.
func (c *Controller) Builder() options.BuilderKind {
	return c.builder
}

// Mode returns the current mode.
func (c *Controller) Mode() options.Mode {
	return c.mode
}

// Transition moves to mode to. It returns false when the transition is not
// allowed (the logs builder is fixed) or nothing changes.
func (c *Controller) Transition(to options.Mode) bool {
	if c.builder == options.BuilderLogs || to == c.mode {
		return false
	}
	if to != options.ModeList && to != options.ModeAggregate {
		return false
	}
	c.mode = to
	return true
}

// ActiveFields returns the fields visible to editors in the current state.
func (c *Controller) ActiveFields() []options.Field {
	return ActiveFields(c.builder, c.mode)
}

var (
	logsFields = []options.Field{
		options.FieldDatabase, options.FieldTable,
		options.FieldOtelEnabled, options.FieldOtelVersion,
		options.FieldTimeColumn, options.FieldLogLevelColumn, options.FieldLogMessageColumn,
		options.FieldColumns, options.FieldFilters, options.FieldOrderBy, options.FieldLimit,
	}
	listFields = []options.Field{
		options.FieldDatabase, options.FieldTable, options.FieldMode,
		options.FieldColumns, options.FieldFilters, options.FieldOrderBy, options.FieldLimit,
	}
	aggregateFields = []options.Field{
		options.FieldDatabase, options.FieldTable, options.FieldMode,
		options.FieldAggregates, options.FieldGroupBy,
		options.FieldFilters, options.FieldOrderBy, options.FieldLimit,
	}
)

// ActiveFields returns the fields visible for a builder and mode.
func ActiveFields(builder options.BuilderKind, m options.Mode) []options.Field {
	switch {
	case builder == options.BuilderLogs:
		return slices.Clone(logsFields)
	case m == options.ModeAggregate:
		return slices.Clone(aggregateFields)
	default:
		return slices.Clone(listFields)
	}
}

// Apply rewrites o for mode to.
//
// Entering Aggregate starts with empty aggregates and group-by; columns are
// kept. Leaving Aggregate drops aggregates and group-by for good: switching
// back does not restore them. The logs builder always yields List.
func Apply(o options.Options, to options.Mode) options.Options {
	n := o.Clone()
	if n.Builder == options.BuilderLogs {
		to = options.ModeList
	}

	switch to {
	case options.ModeAggregate:
		// A normalized List model has no aggregates, so entering starts empty.
		if n.Aggregates == nil {
			n.Aggregates = []options.AggregateColumn{}
		}
		if n.GroupBy == nil {
			n.GroupBy = []string{}
		}
		n.Mode = options.ModeAggregate
	default:
		n.Mode = options.ModeList
		n.Aggregates = nil
		n.GroupBy = nil
	}
	return n
}
