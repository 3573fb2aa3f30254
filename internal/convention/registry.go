// Package convention holds the versioned log-schema conventions a table can
// follow, such as the OpenTelemetry (OTEL) column layout.
//
// Conventions are data, not code: each version maps the log hints (time,
// log level, log message) to fixed column names. The built-in registry is a
// CUE document embedded in the binary; hosts can load their own CUE file,
// which is unified with the same schema before use.
package convention

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
)

//go:embed schema.cue
var schemaSrc string

//go:embed otel.cue
var otelSrc string

// Mapping is one convention version.
type Mapping struct {
	Version string
	columns map[options.ColumnHint]options.SelectedColumn
}

// Column returns the fixed column for hint h.
func (m Mapping) Column(h options.ColumnHint) (options.SelectedColumn, bool) {
	c, ok := m.columns[h]
	return c, ok
}

// Columns returns the hinted columns in options.LogHints order.
func (m Mapping) Columns() []options.SelectedColumn {
	out := make([]options.SelectedColumn, 0, len(options.LogHints))
	for _, h := range options.LogHints {
		if c, ok := m.columns[h]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Registry is an immutable set of convention versions.
type Registry struct {
	versions map[string]Mapping
	order    []string // newest first
	latest   string
}

// Default returns the built-in registry. It panics if the embedded document
// is invalid, which is a build defect.
func Default() *Registry {
	r, err := Parse("otel.cue", []byte(otelSrc))
	if err != nil {
		panic(fmt.Sprintf("convention: embedded registry: %v", err))
	}
	return r
}

// Load parses a CUE convention file.
func Load(path string) (*Registry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conventions: %w", err)
	}
	return Parse(path, src)
}

// Parse compiles src against the convention schema.
func Parse(name string, src []byte) (*Registry, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	data := ctx.CompileBytes(src, cue.Filename(name))
	if err := data.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var doc document
	if err := v.Decode(&doc); err != nil {
		return nil, formatCUEError(err)
	}
	return newRegistry(doc)
}

// document mirrors the CUE schema.
type document struct {
	Versions map[string]mappingDoc `json:"versions"`
	Latest   string                `json:"latest"`
}

type mappingDoc struct {
	Time       columnDoc `json:"time"`
	LogLevel   columnDoc `json:"log_level"`
	LogMessage columnDoc `json:"log_message"`
}

type columnDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func newRegistry(doc document) (*Registry, error) {
	if _, ok := doc.Versions[doc.Latest]; !ok {
		return nil, &LoadError{Message: fmt.Sprintf("latest version %q is not defined", doc.Latest)}
	}

	r := &Registry{
		versions: make(map[string]Mapping, len(doc.Versions)),
		latest:   doc.Latest,
	}
	for version, md := range doc.Versions {
		r.versions[version] = Mapping{
			Version: version,
			columns: map[options.ColumnHint]options.SelectedColumn{
				options.HintTime:       {Name: md.Time.Name, Type: md.Time.Type, Hint: options.HintTime},
				options.HintLogLevel:   {Name: md.LogLevel.Name, Type: md.LogLevel.Type, Hint: options.HintLogLevel},
				options.HintLogMessage: {Name: md.LogMessage.Name, Type: md.LogMessage.Type, Hint: options.HintLogMessage},
			},
		}
		if version != doc.Latest {
			r.order = append(r.order, version)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(r.order)))
	r.order = append([]string{doc.Latest}, r.order...)
	return r, nil
}

// Lookup returns the mapping of a version. "latest" resolves to the newest.
func (r *Registry) Lookup(version string) (Mapping, bool) {
	if version == "latest" {
		version = r.latest
	}
	m, ok := r.versions[version]
	return m, ok
}

// Latest returns the newest version name.
func (r *Registry) Latest() string {
	return r.latest
}

// Versions returns the version names, newest first.
func (r *Registry) Versions() []string {
	return slices.Clone(r.order)
}

// Detect returns the newest version whose every column exists in cols.
// Names compare under catalog.FoldName.
func (r *Registry) Detect(cols []catalog.Column) (string, bool) {
	if len(cols) == 0 {
		return "", false
	}
	for _, version := range r.order {
		if r.matches(r.versions[version], cols) {
			return version, true
		}
	}
	return "", false
}

func (r *Registry) matches(m Mapping, cols []catalog.Column) bool {
	for _, c := range m.Columns() {
		if _, ok := catalog.FindFold(cols, c.Name); !ok {
			return false
		}
	}
	return true
}

// LoadError reports an invalid convention document.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
