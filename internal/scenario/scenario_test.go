package scenario

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/session"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			sc, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, name, sc.Name, "file name matches scenario name")

			result, err := RunWithGolden(t, sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "description: d\n", "name is required"},
		{"no description", "name: n\n", "description is required"},
		{"unknown field", "name: n\ndescription: d\nstep: []\n", "field step not found"},
		{"bad builder", "name: n\ndescription: d\nbuilder: chart\n", `unknown builder "chart"`},
		{"bad defaults", "name: n\ndescription: d\ndefaults: { time_columns: [ts], time_range: later }\n", "defaults"},
		{"catalog without table", "name: n\ndescription: d\ncatalog:\n  - database: db\n", "catalog[0]: table is required"},
		{"duplicate catalog", "name: n\ndescription: d\ncatalog:\n  - table: t\n  - table: t\n", "duplicate location t"},
		{"empty step", "name: n\ndescription: d\nsteps:\n  - {}\n", "steps[0]: exactly one"},
		{"two actions", "name: n\ndescription: d\nsteps:\n  - { fetch: true, fetch_stale: true }\n", "steps[0]: exactly one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestRun_PatchOutsideShapeFails(t *testing.T) {
	sc, err := Parse([]byte(`
name: bad_patch
description: the table builder has no otel flag
initial: { table: t }
steps:
  - set: { otel_enabled: true }
`))
	require.NoError(t, err)

	_, err = Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (set)")
	assert.Contains(t, err.Error(), `"otel_enabled" is not editable in the table builder`)
}

func TestRun_FailedExpectationsAreReported(t *testing.T) {
	sc, err := Parse([]byte(`
name: wrong
description: every expectation is wrong
initial: { table: t, limit: 5 }
expect:
  sql: SELECT 1
  limit: 6
  commits: 3
  hints: { time: ts }
  otel_enabled: true
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		`sql: expected "SELECT 1", got "SELECT * FROM \"t\" LIMIT 5"`,
		`hint time: expected "ts", got none`,
		"limit: expected 6, got 5",
		"otel_enabled: expected true, got false",
		"commits: expected 3, got 0",
	}, result.Errors)
}

func TestRun_CustomDefaults(t *testing.T) {
	sc, err := Parse([]byte(`
name: custom_defaults
description: configured names and range are used
defaults: { time_columns: [ts], time_range: 15m }
initial: { database: db, table: events }
catalog:
  - database: db
    table: events
    columns:
      - { name: timestamp, type: DateTime }
      - { name: ts, type: DateTime }
steps:
  - fetch: true
expect:
  sql: 'SELECT "ts" FROM "db"."events" WHERE ("ts" >= now() - INTERVAL 15 MINUTE) ORDER BY "ts" DESC'
  hints: { time: ts }
  commits: 1
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExtraSessionOptions(t *testing.T) {
	sc, err := Parse([]byte("name: fixed\ndescription: d\ninitial: { table: t }\nsteps:\n  - set: { limit: 1 }\n"))
	require.NoError(t, err)

	result, err := Run(sc, session.WithIDGenerator(session.NewFixedGenerator("override")))
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 1)
	assert.Equal(t, "override", result.Snapshots[0].SessionID)
}

func TestRun_NoTableHasNoSQL(t *testing.T) {
	sc, err := Parse([]byte("name: empty\ndescription: d\nexpect: { advisory: no_location }\n"))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.SQL)
}

func TestCheck_HintAbsent(t *testing.T) {
	r := &Result{Final: options.Options{
		Columns: []options.SelectedColumn{{Name: "ts", Hint: options.HintTime}},
	}}
	errs := Check(Expect{Hints: map[options.ColumnHint]string{options.HintTime: ""}}, r)
	assert.Equal(t, []string{`hint time: expected no column, got "ts"`}, errs)

	errs = Check(Expect{Hints: map[options.ColumnHint]string{options.HintTime: "other"}}, r)
	assert.Equal(t, []string{`hint time: expected "other", got "ts"`}, errs)
}

func TestCheck_FiltersAndOrdering(t *testing.T) {
	r := &Result{Final: options.Options{
		Filters: []options.Filter{{Column: "a", Operator: options.OpIn, Values: []string{"1", "2"}}},
		OrderBy: []options.OrderBy{{Column: "a", Direction: options.Asc}},
	}}

	same := []options.Filter{{Column: "a", Operator: options.OpIn, Values: []string{"1", "2"}}}
	order := []options.OrderBy{{Column: "a", Direction: options.Asc}}
	assert.Empty(t, Check(Expect{Filters: &same, OrderBy: &order}, r))

	other := []options.Filter{{Column: "a", Operator: options.OpIn, Values: []string{"1"}}}
	none := []options.OrderBy{}
	errs := Check(Expect{Filters: &other, OrderBy: &none}, r)
	require.Len(t, errs, 2)
	assert.True(t, strings.HasPrefix(errs[0], "filters:"))
	assert.True(t, strings.HasPrefix(errs[1], "order_by:"))
}
