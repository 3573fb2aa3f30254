package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/options"
)

// owner is a minimal state owner that records every commit.
type owner struct {
	current options.Options
	commits []options.Options
}

func (o *owner) get() options.Options { return o.current }

func (o *owner) put(next options.Options) {
	o.commits = append(o.commits, next)
	o.current = next
}

func newTable(t *testing.T, initial options.Options) (*Reconciler, *owner) {
	t.Helper()
	own := &owner{current: options.Normalize(initial)}
	r, err := New(TableShape(), own.get, own.put)
	require.NoError(t, err)
	return r, own
}

func newLogs(t *testing.T, initial options.Options) (*Reconciler, *owner) {
	t.Helper()
	initial.Builder = options.BuilderLogs
	own := &owner{current: options.Normalize(initial)}
	r, err := New(LogsShape(), own.get, own.put)
	require.NoError(t, err)
	return r, own
}

func TestNew_RejectsUnknownField(t *testing.T) {
	shape := TableShape()
	shape.Fields = append(shape.Fields, "colour")

	_, err := New(shape, func() options.Options { return options.Options{} }, func(options.Options) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestNew_RejectsDuplicateField(t *testing.T) {
	shape := TableShape()
	shape.Fields = append(shape.Fields, options.FieldLimit)

	_, err := New(shape, func() options.Options { return options.Options{} }, func(options.Options) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field")
}

func TestNew_RequiresCallbacks(t *testing.T) {
	_, err := New(TableShape(), nil, func(options.Options) {})
	assert.Error(t, err)

	_, err = New(Shape{Builder: options.BuilderTable}, func() options.Options { return options.Options{} }, func(options.Options) {})
	assert.Error(t, err)
}

func TestBind_PanicsOutsideShape(t *testing.T) {
	r, _ := newTable(t, options.Options{})

	assert.PanicsWithValue(t,
		`reconciler: field "otel_enabled" is not part of the table shape`,
		func() { Bind[bool](r, options.FieldOtelEnabled) })
}

func TestEditors_OutsideShapeSetterNamesTheField(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "events"})
	e := NewEditors(r)

	require.NotNil(t, e.SetTimeColumn)
	assert.False(t, e.Has(options.FieldTimeColumn))
	assert.PanicsWithValue(t,
		`reconciler: field "time_column" is not part of the table shape`,
		func() { e.SetTimeColumn(&options.SelectedColumn{Name: "ts"}) })

	assert.False(t, r.Flush(), "the rejected edit was never queued")
	assert.Empty(t, own.commits)
}

func TestBind_PanicsOnTypeMismatch(t *testing.T) {
	r, _ := newTable(t, options.Options{})

	assert.Panics(t, func() { Bind[string](r, options.FieldLimit) })
	assert.NotPanics(t, func() { Bind[int](r, options.FieldLimit) })
}

func TestFlush_NothingPending(t *testing.T) {
	r, own := newTable(t, options.Options{})
	assert.False(t, r.Flush())
	assert.Empty(t, own.commits)
}

func TestFlush_BatchCommitsOnce(t *testing.T) {
	r, own := newTable(t, options.Options{Database: "db", Table: "logs", Limit: 10})
	e := NewEditors(r)

	e.SetTable("spans")
	e.SetLimit(100)
	e.SetTable("events")

	assert.Equal(t, []options.Field{options.FieldTable, options.FieldLimit}, r.Pending())
	require.True(t, r.Flush())

	require.Len(t, own.commits, 1, "one batch, one commit")
	got := own.commits[0]
	assert.Equal(t, "events", got.Table, "last write wins")
	assert.Equal(t, 100, got.Limit)
	assert.Equal(t, "db", got.Database, "unmentioned field unchanged")
	assert.Nil(t, r.Pending())
}

func TestFlush_UsesSnapshotBatchWasQueuedAgainst(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "logs", Limit: 10})
	e := NewEditors(r)

	e.SetLimit(50)

	// Another writer supersedes the snapshot mid-batch. The batch must still
	// merge onto the snapshot it was queued against.
	own.current = options.Options{Builder: options.BuilderTable, Mode: options.ModeList, Table: "other", Limit: 99}

	e.SetDatabase("db")
	require.True(t, r.Flush())

	got := own.commits[0]
	assert.Equal(t, "logs", got.Table)
	assert.Equal(t, 50, got.Limit)
	assert.Equal(t, "db", got.Database)
}

func TestFlush_NewBatchAfterFlushSeesLatestSnapshot(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "logs"})
	e := NewEditors(r)

	e.SetLimit(5)
	r.Flush()
	e.SetDatabase("db")
	r.Flush()

	require.Len(t, own.commits, 2)
	assert.Equal(t, 5, own.commits[1].Limit)
	assert.Equal(t, "db", own.commits[1].Database)
}

func TestLimitSetterClamps(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "logs", Limit: 10})
	e := NewEditors(r)

	e.SetLimit(-5)
	r.Flush()

	assert.Equal(t, 0, own.commits[0].Limit)
}

func TestDiscard(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "logs"})
	e := NewEditors(r)

	e.SetLimit(5)
	r.Discard()
	assert.False(t, r.Flush())
	assert.Empty(t, own.commits)
}

func TestSetterValuesAreCopied(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "logs"})
	e := NewEditors(r)

	cols := []options.SelectedColumn{{Name: "a"}}
	e.SetColumns(cols)
	r.Flush()
	cols[0].Name = "mutated"

	assert.Equal(t, "a", own.commits[0].Columns[0].Name)
}

func TestTableShape_ModeSwitchClearsAggregates(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "requests"})
	e := NewEditors(r)

	e.SetMode(options.ModeAggregate)
	e.SetAggregates([]options.AggregateColumn{{Function: options.AggCount, Alias: "n"}})
	e.SetGroupBy([]string{"status"})
	r.Flush()

	agg := own.commits[0]
	assert.Equal(t, options.ModeAggregate, agg.Mode)
	assert.Len(t, agg.Aggregates, 1, "aggregates written with the mode switch survive")

	e.SetMode(options.ModeList)
	r.Flush()
	list := own.commits[1]
	assert.Equal(t, options.ModeList, list.Mode)
	assert.Empty(t, list.Aggregates)
	assert.Empty(t, list.GroupBy)

	e.SetMode(options.ModeAggregate)
	r.Flush()
	back := own.commits[2]
	assert.Equal(t, options.ModeAggregate, back.Mode)
	assert.Empty(t, back.Aggregates, "not restored")
	assert.Empty(t, back.GroupBy, "not restored")
}

func TestTableShape_AggregatesIgnoredInListMode(t *testing.T) {
	r, own := newTable(t, options.Options{Table: "requests"})
	e := NewEditors(r)

	e.SetAggregates([]options.AggregateColumn{{Function: options.AggCount}})
	r.Flush()

	assert.Empty(t, own.commits[0].Aggregates)
}

func TestLogsShape_HintedColumnFields(t *testing.T) {
	r, own := newLogs(t, options.Options{Table: "logs"})
	e := NewEditors(r)

	assert.False(t, e.Has(options.FieldMode), "logs builder has no mode field")
	assert.False(t, e.Has(options.FieldAggregates))
	assert.True(t, e.Has(options.FieldLogLevelColumn))

	e.SetColumns([]options.SelectedColumn{{Name: "host", Hint: options.HintTime}})
	e.SetLogMessageColumn(&options.SelectedColumn{Name: "msg"})
	e.SetTimeColumn(&options.SelectedColumn{Name: "ts", Type: "DateTime"})
	r.Flush()

	got := own.commits[0]
	assert.Equal(t, []options.SelectedColumn{
		{Name: "ts", Type: "DateTime", Hint: options.HintTime},
		{Name: "msg", Hint: options.HintLogMessage},
		{Name: "host"},
	}, got.Columns, "hinted first, plain columns lose stray hints")
	assert.Equal(t, options.BuilderLogs, got.Builder)
	assert.Equal(t, options.ModeList, got.Mode)
}

func TestLogsShape_ClearHintedColumn(t *testing.T) {
	r, own := newLogs(t, options.Options{
		Table: "logs",
		Columns: []options.SelectedColumn{
			{Name: "ts", Hint: options.HintTime},
			{Name: "lvl", Hint: options.HintLogLevel},
		},
	})
	e := NewEditors(r)

	e.SetTimeColumn(nil)
	r.Flush()

	assert.Equal(t, []options.SelectedColumn{{Name: "lvl", Hint: options.HintLogLevel}}, own.commits[0].Columns)
}

func TestLogsShape_OtelMeta(t *testing.T) {
	r, own := newLogs(t, options.Options{Table: "otel_logs"})
	e := NewEditors(r)

	e.SetOtelEnabled(true)
	e.SetOtelVersion("v1")
	r.Flush()

	assert.Equal(t, options.Meta{OtelEnabled: true, OtelVersion: "v1"}, own.commits[0].Meta)
}

func TestShapeFor(t *testing.T) {
	assert.Equal(t, options.BuilderLogs, ShapeFor(options.BuilderLogs).Builder)
	assert.Equal(t, options.BuilderTable, ShapeFor(options.BuilderTable).Builder)
	assert.Equal(t, options.BuilderTable, ShapeFor("").Builder)
}

func TestHas(t *testing.T) {
	r, _ := newLogs(t, options.Options{})
	assert.True(t, r.Has(options.FieldTimeColumn))
	assert.False(t, r.Has(options.FieldMode))
	assert.Equal(t, options.BuilderLogs, r.Shape().Builder)
}
