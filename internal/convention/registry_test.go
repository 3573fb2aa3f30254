package convention

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
)

func TestDefault_V1Mapping(t *testing.T) {
	r := Default()

	assert.Equal(t, "v1", r.Latest())
	assert.Equal(t, []string{"v1"}, r.Versions())

	m, ok := r.Lookup("v1")
	require.True(t, ok)
	assert.Equal(t, []options.SelectedColumn{
		{Name: "Timestamp", Type: "DateTime64(9)", Hint: options.HintTime},
		{Name: "SeverityText", Type: "LowCardinality(String)", Hint: options.HintLogLevel},
		{Name: "Body", Type: "String", Hint: options.HintLogMessage},
	}, m.Columns())

	latest, ok := r.Lookup("latest")
	require.True(t, ok)
	assert.Equal(t, "v1", latest.Version)

	_, ok = r.Lookup("v9")
	assert.False(t, ok)
}

func TestParse_UserVersions(t *testing.T) {
	src := `
versions: {
	v1: {
		time: {name: "Timestamp", type: "DateTime64(9)"}
		log_level: {name: "SeverityText"}
		log_message: {name: "Body"}
	}
	v2: {
		time: {name: "TimestampTime", type: "DateTime"}
		log_level: {name: "SeverityText"}
		log_message: {name: "Body"}
	}
}
latest: "v2"
`
	r, err := Parse("custom.cue", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"v2", "v1"}, r.Versions())

	m, ok := r.Lookup("v1")
	require.True(t, ok)
	c, ok := m.Column(options.HintLogLevel)
	require.True(t, ok)
	assert.Equal(t, "SeverityText", c.Name)
	assert.Equal(t, "", c.Type, "type defaults to empty")
}

func TestParse_RejectsInvalidDocuments(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{
			name: "empty column name",
			src: `versions: v1: {
				time: {name: ""}
				log_level: {name: "l"}
				log_message: {name: "m"}
			}
			latest: "v1"`,
		},
		{
			name: "missing hint",
			src: `versions: v1: {
				time: {name: "t"}
				log_level: {name: "l"}
			}
			latest: "v1"`,
		},
		{
			name: "unknown field",
			src: `versions: v1: {
				time: {name: "t"}
				log_level: {name: "l"}
				log_message: {name: "m"}
				trace_id: {name: "TraceId"}
			}
			latest: "v1"`,
		},
		{
			name: "undefined latest",
			src: `versions: v1: {
				time: {name: "t"}
				log_level: {name: "l"}
				log_message: {name: "m"}
			}
			latest: "v7"`,
		},
		{
			name: "syntax error",
			src:  `versions: {`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tc.src))
			require.Error(t, err)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conv.cue")
	require.NoError(t, os.WriteFile(path, []byte(otelSrc), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", r.Latest())

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	r := Default()

	otelCols := []catalog.Column{
		{Name: "Timestamp", Type: "DateTime64(9)"},
		{Name: "TraceId", Type: "String"},
		{Name: "SeverityText", Type: "LowCardinality(String)"},
		{Name: "Body", Type: "String"},
	}
	version, ok := r.Detect(otelCols)
	require.True(t, ok)
	assert.Equal(t, "v1", version)

	// Case-insensitive
	version, ok = r.Detect([]catalog.Column{{Name: "timestamp"}, {Name: "severitytext"}, {Name: "BODY"}})
	require.True(t, ok)
	assert.Equal(t, "v1", version)

	_, ok = r.Detect([]catalog.Column{{Name: "ts"}, {Name: "msg"}})
	assert.False(t, ok)

	_, ok = r.Detect(nil)
	assert.False(t, ok)
}
