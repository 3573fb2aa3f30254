package reconciler

import (
	"fmt"

	"github.com/roach88/querybuilder/internal/options"
)

// Editors bundles the setters of one shape.
//
// Every setter is non-nil. A setter for a field outside the shape panics
// when called, with the same message Bind raises when wiring it; hosts that
// build editors from user input should check Has first. Patch.Apply does.
type Editors struct {
	SetDatabase         Setter[string]
	SetTable            Setter[string]
	SetMode             Setter[options.Mode]
	SetColumns          Setter[[]options.SelectedColumn]
	SetAggregates       Setter[[]options.AggregateColumn]
	SetGroupBy          Setter[[]string]
	SetFilters          Setter[[]options.Filter]
	SetOrderBy          Setter[[]options.OrderBy]
	SetLimit            Setter[int]
	SetOtelEnabled      Setter[bool]
	SetOtelVersion      Setter[string]
	SetTimeColumn       Setter[*options.SelectedColumn]
	SetLogLevelColumn   Setter[*options.SelectedColumn]
	SetLogMessageColumn Setter[*options.SelectedColumn]

	allowed map[options.Field]bool
}

// NewEditors binds every field of r's shape.
func NewEditors(r *Reconciler) *Editors {
	return &Editors{
		SetDatabase:         bindOrReject[string](r, options.FieldDatabase),
		SetTable:            bindOrReject[string](r, options.FieldTable),
		SetMode:             bindOrReject[options.Mode](r, options.FieldMode),
		SetColumns:          bindOrReject[[]options.SelectedColumn](r, options.FieldColumns),
		SetAggregates:       bindOrReject[[]options.AggregateColumn](r, options.FieldAggregates),
		SetGroupBy:          bindOrReject[[]string](r, options.FieldGroupBy),
		SetFilters:          bindOrReject[[]options.Filter](r, options.FieldFilters),
		SetOrderBy:          bindOrReject[[]options.OrderBy](r, options.FieldOrderBy),
		SetLimit:            bindOrReject[int](r, options.FieldLimit),
		SetOtelEnabled:      bindOrReject[bool](r, options.FieldOtelEnabled),
		SetOtelVersion:      bindOrReject[string](r, options.FieldOtelVersion),
		SetTimeColumn:       bindOrReject[*options.SelectedColumn](r, options.FieldTimeColumn),
		SetLogLevelColumn:   bindOrReject[*options.SelectedColumn](r, options.FieldLogLevelColumn),
		SetLogMessageColumn: bindOrReject[*options.SelectedColumn](r, options.FieldLogMessageColumn),
		allowed:             r.allowed,
	}
}

// Has reports whether f is editable through e.
func (e *Editors) Has(f options.Field) bool {
	return e.allowed[f]
}

func bindOrReject[T any](r *Reconciler, f options.Field) Setter[T] {
	if r.allowed[f] {
		return Bind[T](r, f)
	}
	msg := fmt.Sprintf("reconciler: field %q is not part of the %s shape", f, r.shape.Builder)
	return func(T) { panic(msg) }
}

// Patch is a sparse set of edits, as read from a scenario or a request
// body. Nil fields are left alone. Clear resets hinted-column fields.
type Patch struct {
	Database         *string                    `yaml:"database,omitempty" json:"database,omitempty"`
	Table            *string                    `yaml:"table,omitempty" json:"table,omitempty"`
	Mode             *options.Mode              `yaml:"mode,omitempty" json:"mode,omitempty"`
	Columns          *[]options.SelectedColumn  `yaml:"columns,omitempty" json:"columns,omitempty"`
	Aggregates       *[]options.AggregateColumn `yaml:"aggregates,omitempty" json:"aggregates,omitempty"`
	GroupBy          *[]string                  `yaml:"group_by,omitempty" json:"groupBy,omitempty"`
	Filters          *[]options.Filter          `yaml:"filters,omitempty" json:"filters,omitempty"`
	OrderBy          *[]options.OrderBy         `yaml:"order_by,omitempty" json:"orderBy,omitempty"`
	Limit            *int                       `yaml:"limit,omitempty" json:"limit,omitempty"`
	OtelEnabled      *bool                      `yaml:"otel_enabled,omitempty" json:"otelEnabled,omitempty"`
	OtelVersion      *string                    `yaml:"otel_version,omitempty" json:"otelVersion,omitempty"`
	TimeColumn       *options.SelectedColumn    `yaml:"time_column,omitempty" json:"timeColumn,omitempty"`
	LogLevelColumn   *options.SelectedColumn    `yaml:"log_level_column,omitempty" json:"logLevelColumn,omitempty"`
	LogMessageColumn *options.SelectedColumn    `yaml:"log_message_column,omitempty" json:"logMessageColumn,omitempty"`
	Clear            []options.Field            `yaml:"clear,omitempty" json:"clear,omitempty"`
}

// PatchError reports a patch field the builder cannot edit.
type PatchError struct {
	Field   options.Field
	Builder options.BuilderKind
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("field %q is not editable in the %s builder", e.Field, e.Builder)
}

// Apply writes every set field of p through e. When any field is outside
// e's shape nothing is written and a *PatchError is returned.
func (p Patch) Apply(e *Editors, builder options.BuilderKind) error {
	steps := []struct {
		field options.Field
		set   bool
		ok    bool
		apply func()
	}{
		{options.FieldDatabase, p.Database != nil, e.Has(options.FieldDatabase), func() { e.SetDatabase(*p.Database) }},
		{options.FieldTable, p.Table != nil, e.Has(options.FieldTable), func() { e.SetTable(*p.Table) }},
		{options.FieldMode, p.Mode != nil, e.Has(options.FieldMode), func() { e.SetMode(*p.Mode) }},
		{options.FieldColumns, p.Columns != nil, e.Has(options.FieldColumns), func() { e.SetColumns(*p.Columns) }},
		{options.FieldAggregates, p.Aggregates != nil, e.Has(options.FieldAggregates), func() { e.SetAggregates(*p.Aggregates) }},
		{options.FieldGroupBy, p.GroupBy != nil, e.Has(options.FieldGroupBy), func() { e.SetGroupBy(*p.GroupBy) }},
		{options.FieldFilters, p.Filters != nil, e.Has(options.FieldFilters), func() { e.SetFilters(*p.Filters) }},
		{options.FieldOrderBy, p.OrderBy != nil, e.Has(options.FieldOrderBy), func() { e.SetOrderBy(*p.OrderBy) }},
		{options.FieldLimit, p.Limit != nil, e.Has(options.FieldLimit), func() { e.SetLimit(*p.Limit) }},
		{options.FieldOtelEnabled, p.OtelEnabled != nil, e.Has(options.FieldOtelEnabled), func() { e.SetOtelEnabled(*p.OtelEnabled) }},
		{options.FieldOtelVersion, p.OtelVersion != nil, e.Has(options.FieldOtelVersion), func() { e.SetOtelVersion(*p.OtelVersion) }},
		{options.FieldTimeColumn, p.TimeColumn != nil, e.Has(options.FieldTimeColumn), func() { e.SetTimeColumn(p.TimeColumn) }},
		{options.FieldLogLevelColumn, p.LogLevelColumn != nil, e.Has(options.FieldLogLevelColumn), func() { e.SetLogLevelColumn(p.LogLevelColumn) }},
		{options.FieldLogMessageColumn, p.LogMessageColumn != nil, e.Has(options.FieldLogMessageColumn), func() { e.SetLogMessageColumn(p.LogMessageColumn) }},
	}

	clears := make([]Setter[*options.SelectedColumn], 0, len(p.Clear))
	for _, f := range p.Clear {
		if !e.Has(f) {
			return &PatchError{Field: f, Builder: builder}
		}
		var setter Setter[*options.SelectedColumn]
		switch f {
		case options.FieldTimeColumn:
			setter = e.SetTimeColumn
		case options.FieldLogLevelColumn:
			setter = e.SetLogLevelColumn
		case options.FieldLogMessageColumn:
			setter = e.SetLogMessageColumn
		}
		if setter == nil {
			return &PatchError{Field: f, Builder: builder}
		}
		clears = append(clears, setter)
	}
	for _, s := range steps {
		if s.set && !s.ok {
			return &PatchError{Field: s.field, Builder: builder}
		}
	}

	for _, s := range steps {
		if s.set {
			s.apply()
		}
	}
	for _, reset := range clears {
		reset(nil)
	}
	return nil
}

// IsEmpty reports whether p edits nothing.
func (p Patch) IsEmpty() bool {
	return p.Database == nil && p.Table == nil && p.Mode == nil && p.Columns == nil &&
		p.Aggregates == nil && p.GroupBy == nil && p.Filters == nil && p.OrderBy == nil &&
		p.Limit == nil && p.OtelEnabled == nil && p.OtelVersion == nil &&
		p.TimeColumn == nil && p.LogLevelColumn == nil && p.LogMessageColumn == nil &&
		len(p.Clear) == 0
}
