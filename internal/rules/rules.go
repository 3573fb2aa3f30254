// Package rules holds the default inference rules.
//
// Each rule is a named, pure proposal over the working Option Model and the
// column catalog. It declares the fields it watches and the precondition
// under which it may write. The session runs the rules in declaration order
// after every merged commit, until none of them changes the model.
//
// Rules that must fire at most once per fresh query or table selection are
// gated by Memory. Memory is armed when a session starts on a never-configured
// query and re-armed on every schema location change; a rule disarms itself
// once it has had its chance, so a value the user clears later is never
// silently re-filled.
package rules

import (
	"slices"
	"time"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/convention"
	"github.com/roach88/querybuilder/internal/options"
)

// Rule is one default inference rule.
type Rule interface {
	// Name identifies the rule in logs and traces.
	Name() string

	// Watches lists the Option Model fields the rule reads.
	Watches() []options.Field

	// Apply proposes its update directly on in.Options. It reports whether
	// the model changed.
	Apply(in *Input) bool
}

// Memory records which fire-once rules may still run.
type Memory struct {
	DetectArmed     bool `json:"detectArmed"`
	TimeColumnArmed bool `json:"timeColumnArmed"`
	DefaultsArmed   bool `json:"defaultsArmed"`
}

// Armed returns a Memory with every fire-once rule armed.
func Armed() Memory {
	return Memory{DetectArmed: true, TimeColumnArmed: true, DefaultsArmed: true}
}

// Defaults are the product defaults the rules propose.
type Defaults struct {
	// TimeColumns are the recognized default time column names, matched
	// case-insensitively. Earlier names do not take precedence; the first
	// match in catalog order wins.
	TimeColumns []string `yaml:"time_columns" json:"timeColumns"`

	// TimeRange is the operand of the default WITHIN_LAST filter.
	TimeRange string `yaml:"time_range" json:"timeRange"`
}

// DefaultDefaults returns the built-in Defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		TimeColumns: []string{"timestamp", "time", "event_time", "datetime", "created_at"},
		TimeRange:   "1h",
	}
}

// Validate checks that d can be proposed as-is.
func (d Defaults) Validate() error {
	if _, err := time.ParseDuration(d.TimeRange); err != nil {
		return err
	}
	return nil
}

// Input is everything a rule may read. Options is the working model and is
// the only field a rule writes (besides disarming Memory).
type Input struct {
	Options options.Options

	// Previous is the settled model before the current transition. On the
	// first settle of a session it equals the loaded model.
	Previous options.Options

	// Initial is set for the first settle of a session.
	Initial bool

	// Catalog holds the columns fetched for CatalogLocation. It is empty
	// while a fetch is pending or after one failed.
	Catalog         []catalog.Column
	CatalogLocation catalog.Location

	Memory      *Memory
	Conventions *convention.Registry
	Defaults    Defaults
}

// CatalogReady reports whether the catalog describes the location the
// working model currently reads.
func (in *Input) CatalogReady() bool {
	return len(in.Catalog) > 0 &&
		!in.CatalogLocation.IsZero() &&
		in.CatalogLocation == catalog.LocationOf(in.Options)
}

// Standard returns the built-in rules in evaluation order.
func Standard() []Rule {
	return []Rule{
		ConventionDetect{},
		ConventionColumns{},
		DefaultTimeColumn{},
		DefaultFilters{},
	}
}

// Evaluate runs one pass of rules over in, in declaration order, and returns
// the names of the rules that changed the model.
func Evaluate(rules []Rule, in *Input) []string {
	var changed []string
	for _, r := range rules {
		if r.Apply(in) {
			changed = append(changed, r.Name())
		}
	}
	return changed
}

// ConventionDetect enables the log-schema convention on a fresh logs query
// whose catalog matches a known convention version.
type ConventionDetect struct{}

func (ConventionDetect) Name() string { return "convention-detect" }

func (ConventionDetect) Watches() []options.Field {
	return []options.Field{options.FieldDatabase, options.FieldTable, options.FieldOtelEnabled}
}

func (ConventionDetect) Apply(in *Input) bool {
	o := &in.Options
	if o.Builder != options.BuilderLogs || !in.Memory.DetectArmed || in.Conventions == nil {
		return false
	}
	if o.Meta.OtelEnabled {
		in.Memory.DetectArmed = false
		return false
	}
	if !in.CatalogReady() {
		return false
	}
	in.Memory.DetectArmed = false

	version, ok := in.Conventions.Detect(in.Catalog)
	if !ok {
		return false
	}
	o.Meta = options.Meta{OtelEnabled: true, OtelVersion: version}
	return true
}

// ConventionColumns replaces the Time, LogLevel and LogMessage columns with
// the convention's fixed names whenever the convention flag or version
// changes. It overwrites any previously hinted column for those hints.
//
// A flag enabled without a version selects the registry's latest version.
// On a session's first settle the loaded columns are kept; a flag-on model
// with none of the log hints assigned gets the convention names.
type ConventionColumns struct{}

func (ConventionColumns) Name() string { return "convention-columns" }

func (ConventionColumns) Watches() []options.Field {
	return []options.Field{options.FieldOtelEnabled, options.FieldOtelVersion}
}

func (ConventionColumns) Apply(in *Input) bool {
	o := in.Options
	if o.Builder != options.BuilderLogs || !o.Meta.OtelEnabled || in.Conventions == nil {
		return false
	}
	if o.Meta.OtelVersion == "" {
		in.Options.Meta.OtelVersion = in.Conventions.Latest()
		return true
	}
	if in.Initial {
		if hasLogHint(o) {
			return false
		}
	} else if o.Meta == in.Previous.Meta {
		return false
	}
	m, ok := in.Conventions.Lookup(o.Meta.OtelVersion)
	if !ok {
		return false
	}

	next := o
	for _, col := range m.Columns() {
		next = next.WithHintedColumn(col)
	}
	next.Columns = hintedFirst(next.Columns)
	if next.Equal(o) {
		return false
	}
	in.Options = next
	return true
}

func hasLogHint(o options.Options) bool {
	for _, h := range options.LogHints {
		if _, ok := o.ColumnByHint(h); ok {
			return true
		}
	}
	return false
}

// hintedFirst orders the log hint columns ahead of plain ones, matching the
// layout the logs builder projects.
func hintedFirst(cols []options.SelectedColumn) []options.SelectedColumn {
	out := make([]options.SelectedColumn, 0, len(cols))
	for _, h := range options.LogHints {
		for _, c := range cols {
			if c.Hint == h {
				out = append(out, c)
			}
		}
	}
	for _, c := range cols {
		if !slices.Contains(options.LogHints, c.Hint) {
			out = append(out, c)
		}
	}
	return out
}

// DefaultTimeColumn proposes a Time column from the catalog for a fresh
// query or table selection.
type DefaultTimeColumn struct{}

func (DefaultTimeColumn) Name() string { return "default-time-column" }

func (DefaultTimeColumn) Watches() []options.Field {
	return []options.Field{
		options.FieldDatabase, options.FieldTable, options.FieldMode,
		options.FieldColumns, options.FieldOtelEnabled,
	}
}

func (DefaultTimeColumn) Apply(in *Input) bool {
	o := in.Options
	if o.Mode != options.ModeList || !in.Memory.TimeColumnArmed {
		return false
	}
	if _, ok := o.ColumnByHint(options.HintTime); ok || o.Meta.OtelEnabled {
		in.Memory.TimeColumnArmed = false
		return false
	}
	if !in.CatalogReady() {
		return false
	}
	in.Memory.TimeColumnArmed = false

	c, ok := timeCandidate(in.Catalog, in.Defaults.TimeColumns)
	if !ok {
		return false
	}
	in.Options = o.WithHintedColumn(options.SelectedColumn{
		Name: c.Name,
		Type: c.Type,
		Hint: options.HintTime,
	})
	if o.Builder == options.BuilderLogs {
		in.Options.Columns = hintedFirst(in.Options.Columns)
	}
	return true
}

// timeCandidate returns the first catalog column, in catalog order, with a
// timestamp type and a recognized name.
func timeCandidate(cols []catalog.Column, names []string) (catalog.Column, bool) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[catalog.FoldName(n)] = true
	}
	for _, c := range cols {
		if catalog.IsTimestampType(c.Type) && known[catalog.FoldName(c.Name)] {
			return c, true
		}
	}
	return catalog.Column{}, false
}

// DefaultFilters proposes a relative time range filter and a descending time
// ordering once a Time column is available on a query with neither filters
// nor ordering.
type DefaultFilters struct{}

func (DefaultFilters) Name() string { return "default-filters" }

func (DefaultFilters) Watches() []options.Field {
	return []options.Field{
		options.FieldMode, options.FieldColumns,
		options.FieldFilters, options.FieldOrderBy,
	}
}

func (DefaultFilters) Apply(in *Input) bool {
	o := in.Options
	if o.Mode != options.ModeList || !in.Memory.DefaultsArmed {
		return false
	}
	if len(o.Filters) > 0 || len(o.OrderBy) > 0 {
		in.Memory.DefaultsArmed = false
		return false
	}
	if _, ok := o.ColumnByHint(options.HintTime); !ok {
		return false
	}
	in.Memory.DefaultsArmed = false

	next := o.Clone()
	next.Filters = []options.Filter{{
		Hint:       options.HintTime,
		Operator:   options.OpWithinLast,
		Values:     []string{in.Defaults.TimeRange},
		Combinator: options.CombineAnd,
	}}
	next.OrderBy = []options.OrderBy{{
		Hint:      options.HintTime,
		Direction: options.Desc,
	}}
	in.Options = next
	return true
}
