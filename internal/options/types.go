package options

// BuilderKind selects which editor surface owns the query.
type BuilderKind string

const (
	// BuilderTable is the generic builder with List and Aggregate modes.
	BuilderTable BuilderKind = "table"
	// BuilderLogs is the log-specialized builder. Its shape is fixed to List
	// and it carries the log-schema convention flags.
	BuilderLogs BuilderKind = "logs"
)

// Mode is the builder mode: flat row listing or aggregated/grouped.
type Mode string

const (
	ModeList      Mode = "list"
	ModeAggregate Mode = "aggregate"
)

// ColumnHint marks a selected column as filling a logical role.
type ColumnHint string

const (
	HintNone       ColumnHint = ""
	HintTime       ColumnHint = "time"
	HintLogLevel   ColumnHint = "log_level"
	HintLogMessage ColumnHint = "log_message"
)

// LogHints are the hints driven by the log-schema convention, in the order
// their columns are placed by the logs builder.
var LogHints = []ColumnHint{HintTime, HintLogLevel, HintLogMessage}

// SelectedColumn is one entry of the SELECT list.
type SelectedColumn struct {
	Name  string     `yaml:"name" json:"name"`
	Alias string     `yaml:"alias,omitempty" json:"alias,omitempty"`
	Type  string     `yaml:"type,omitempty" json:"type,omitempty"`
	Hint  ColumnHint `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// AggregateFunc names an aggregate function.
type AggregateFunc string

const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
	AggAny   AggregateFunc = "any"
	AggUniq  AggregateFunc = "uniq"
)

// AggregateFuncs lists the supported aggregate functions.
var AggregateFuncs = []AggregateFunc{AggCount, AggSum, AggAvg, AggMin, AggMax, AggAny, AggUniq}

// AggregateColumn is an aggregate expression. Count with an empty Column
// means count(*).
type AggregateColumn struct {
	Function AggregateFunc `yaml:"function" json:"function"`
	Column   string        `yaml:"column,omitempty" json:"column,omitempty"`
	Alias    string        `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// FilterOperator is the comparison applied by a Filter.
type FilterOperator string

const (
	OpEquals     FilterOperator = "="
	OpNotEquals  FilterOperator = "!="
	OpLess       FilterOperator = "<"
	OpLessEq     FilterOperator = "<="
	OpGreater    FilterOperator = ">"
	OpGreaterEq  FilterOperator = ">="
	OpLike       FilterOperator = "LIKE"
	OpNotLike    FilterOperator = "NOT LIKE"
	OpIn         FilterOperator = "IN"
	OpNotIn      FilterOperator = "NOT IN"
	OpIsNull     FilterOperator = "IS NULL"
	OpIsNotNull  FilterOperator = "IS NOT NULL"
	OpWithinLast FilterOperator = "WITHIN_LAST"
)

// Combinator joins a filter to the one before it.
type Combinator string

const (
	CombineAnd Combinator = "AND"
	CombineOr  Combinator = "OR"
)

// Filter is one WHERE condition. Order across Options.Filters is significant.
//
// A filter may reference its column through Hint instead of Column; Build
// resolves it to whichever column carries the hint at that time.
type Filter struct {
	Column     string         `yaml:"column,omitempty" json:"column,omitempty"`
	Hint       ColumnHint     `yaml:"hint,omitempty" json:"hint,omitempty"`
	Type       string         `yaml:"type,omitempty" json:"type,omitempty"`
	Operator   FilterOperator `yaml:"operator" json:"operator"`
	Values     []string       `yaml:"values,omitempty" json:"values,omitempty"`
	Combinator Combinator     `yaml:"combinator,omitempty" json:"combinator,omitempty"`
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderBy is one ORDER BY entry. Column names a column or an aggregate alias;
// Hint, when set, takes precedence and is resolved by Build.
type OrderBy struct {
	Column    string     `yaml:"column,omitempty" json:"column,omitempty"`
	Hint      ColumnHint `yaml:"hint,omitempty" json:"hint,omitempty"`
	Direction Direction  `yaml:"direction,omitempty" json:"direction,omitempty"`
}

// Meta holds mode-specific flags.
type Meta struct {
	// OtelEnabled marks the table as following the OTEL log-schema convention.
	OtelEnabled bool `yaml:"otel_enabled,omitempty" json:"otelEnabled,omitempty"`
	// OtelVersion selects the convention version (e.g. "v1").
	OtelVersion string `yaml:"otel_version,omitempty" json:"otelVersion,omitempty"`
}

// Options is the Option Model.
type Options struct {
	Builder    BuilderKind       `yaml:"builder,omitempty" json:"builder,omitempty"`
	Database   string            `yaml:"database,omitempty" json:"database,omitempty"`
	Table      string            `yaml:"table,omitempty" json:"table,omitempty"`
	Mode       Mode              `yaml:"mode,omitempty" json:"mode,omitempty"`
	Columns    []SelectedColumn  `yaml:"columns,omitempty" json:"columns,omitempty"`
	Aggregates []AggregateColumn `yaml:"aggregates,omitempty" json:"aggregates,omitempty"`
	GroupBy    []string          `yaml:"group_by,omitempty" json:"groupBy,omitempty"`
	Filters    []Filter          `yaml:"filters,omitempty" json:"filters,omitempty"`
	OrderBy    []OrderBy         `yaml:"order_by,omitempty" json:"orderBy,omitempty"`
	Limit      int               `yaml:"limit,omitempty" json:"limit,omitempty"`
	Meta       Meta              `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// Field is the logical name of an editable Option Model field.
type Field string

const (
	FieldDatabase         Field = "database"
	FieldTable            Field = "table"
	FieldMode             Field = "mode"
	FieldColumns          Field = "columns"
	FieldAggregates       Field = "aggregates"
	FieldGroupBy          Field = "group_by"
	FieldFilters          Field = "filters"
	FieldOrderBy          Field = "order_by"
	FieldLimit            Field = "limit"
	FieldOtelEnabled      Field = "otel_enabled"
	FieldOtelVersion      Field = "otel_version"
	FieldTimeColumn       Field = "time_column"
	FieldLogLevelColumn   Field = "log_level_column"
	FieldLogMessageColumn Field = "log_message_column"
)

// HintField maps a log hint to the field that edits its column.
func HintField(h ColumnHint) (Field, bool) {
	switch h {
	case HintTime:
		return FieldTimeColumn, true
	case HintLogLevel:
		return FieldLogLevelColumn, true
	case HintLogMessage:
		return FieldLogMessageColumn, true
	default:
		return "", false
	}
}
