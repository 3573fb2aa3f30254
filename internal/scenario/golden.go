package scenario

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/querybuilder/internal/options"
)

// Transcript is the golden form of a run: the settled model, its query
// text and the trace of effects per step.
type Transcript struct {
	Scenario string          `json:"scenario"`
	SQL      string          `json:"sql,omitempty"`
	Advisory string          `json:"advisory,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
	Final    options.Options `json:"final"`
	Trace    []TraceEvent    `json:"trace,omitempty"`
}

// TranscriptOf renders r as indented JSON with a trailing newline.
func TranscriptOf(name string, r *Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(Transcript{
		Scenario: name,
		SQL:      r.SQL,
		Advisory: string(r.Advisory),
		Warnings: r.Warnings,
		Final:    r.Final,
		Trace:    r.Trace,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes sc and compares its transcript against
// testdata/golden/{sc.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scenario -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return nil, err
	}

	out, err := TranscriptOf(sc.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, out)
	return result, nil
}
