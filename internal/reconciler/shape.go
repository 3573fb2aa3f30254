package reconciler

import (
	"slices"

	"github.com/roach88/querybuilder/internal/mode"
	"github.com/roach88/querybuilder/internal/options"
)

// State is the editable working record shared by every shape. Which fields
// a builder may edit is decided by its Shape.
type State struct {
	Database    string
	Table       string
	Mode        options.Mode
	Columns     []options.SelectedColumn
	Aggregates  []options.AggregateColumn
	GroupBy     []string
	Filters     []options.Filter
	OrderBy     []options.OrderBy
	Limit       int
	OtelEnabled bool
	OtelVersion string

	// Log hint columns, edited individually by the logs builder.
	TimeColumn       *options.SelectedColumn
	LogLevelColumn   *options.SelectedColumn
	LogMessageColumn *options.SelectedColumn
}

// Shape describes the editable state of one builder.
type Shape struct {
	Builder options.BuilderKind
	Fields  []options.Field

	// FromOptions extracts the working state from a snapshot.
	FromOptions func(options.Options) State

	// Project is the single mapping from a merged working state back into a
	// full Option Model. base is the snapshot the batch was queued against.
	Project func(s State, base options.Options) options.Options
}

// ShapeFor returns the shape of a builder kind.
func ShapeFor(b options.BuilderKind) Shape {
	if b == options.BuilderLogs {
		return LogsShape()
	}
	return TableShape()
}

// TableShape is the generic List/Aggregate builder.
func TableShape() Shape {
	return Shape{
		Builder: options.BuilderTable,
		Fields: []options.Field{
			options.FieldDatabase, options.FieldTable, options.FieldMode,
			options.FieldColumns, options.FieldAggregates, options.FieldGroupBy,
			options.FieldFilters, options.FieldOrderBy, options.FieldLimit,
		},
		FromOptions: func(o options.Options) State {
			return State{
				Database:   o.Database,
				Table:      o.Table,
				Mode:       o.Mode,
				Columns:    o.Columns,
				Aggregates: o.Aggregates,
				GroupBy:    o.GroupBy,
				Filters:    o.Filters,
				OrderBy:    o.OrderBy,
				Limit:      o.Limit,
			}
		},
		Project: projectTable,
	}
}

// LogsShape is the log-specialized builder. Hinted columns are edited
// through dedicated fields; Columns holds the remaining plain selection.
func LogsShape() Shape {
	return Shape{
		Builder: options.BuilderLogs,
		Fields: []options.Field{
			options.FieldDatabase, options.FieldTable,
			options.FieldOtelEnabled, options.FieldOtelVersion,
			options.FieldTimeColumn, options.FieldLogLevelColumn, options.FieldLogMessageColumn,
			options.FieldColumns, options.FieldFilters, options.FieldOrderBy, options.FieldLimit,
		},
		FromOptions: func(o options.Options) State {
			return State{
				Database:         o.Database,
				Table:            o.Table,
				Mode:             options.ModeList,
				Columns:          o.PlainColumns(),
				Filters:          o.Filters,
				OrderBy:          o.OrderBy,
				Limit:            o.Limit,
				OtelEnabled:      o.Meta.OtelEnabled,
				OtelVersion:      o.Meta.OtelVersion,
				TimeColumn:       hinted(o, options.HintTime),
				LogLevelColumn:   hinted(o, options.HintLogLevel),
				LogMessageColumn: hinted(o, options.HintLogMessage),
			}
		},
		Project: projectLogs,
	}
}

func projectTable(s State, base options.Options) options.Options {
	next := base.Clone()
	next.Builder = options.BuilderTable
	next.Database = s.Database
	next.Table = s.Table
	next.Columns = slices.Clone(s.Columns)
	next.Aggregates = slices.Clone(s.Aggregates)
	next.GroupBy = slices.Clone(s.GroupBy)
	next.Filters = slices.Clone(s.Filters)
	next.OrderBy = slices.Clone(s.OrderBy)
	next.Limit = s.Limit
	return mode.Apply(next, s.Mode)
}

func projectLogs(s State, base options.Options) options.Options {
	next := base.Clone()
	next.Builder = options.BuilderLogs
	next.Mode = options.ModeList
	next.Database = s.Database
	next.Table = s.Table
	next.Meta = options.Meta{OtelEnabled: s.OtelEnabled, OtelVersion: s.OtelVersion}
	next.Aggregates = nil
	next.GroupBy = nil
	next.Filters = slices.Clone(s.Filters)
	next.OrderBy = slices.Clone(s.OrderBy)
	next.Limit = s.Limit

	var cols []options.SelectedColumn
	for _, hc := range []struct {
		hint options.ColumnHint
		col  *options.SelectedColumn
	}{
		{options.HintTime, s.TimeColumn},
		{options.HintLogLevel, s.LogLevelColumn},
		{options.HintLogMessage, s.LogMessageColumn},
	} {
		if hc.col == nil || hc.col.Name == "" {
			continue
		}
		c := *hc.col
		c.Hint = hc.hint
		cols = append(cols, c)
	}
	for _, c := range s.Columns {
		// Hinted columns are owned by their dedicated fields.
		c.Hint = options.HintNone
		cols = append(cols, c)
	}
	next.Columns = cols
	return next
}

func hinted(o options.Options, h options.ColumnHint) *options.SelectedColumn {
	c, ok := o.ColumnByHint(h)
	if !ok {
		return nil
	}
	return &c
}
