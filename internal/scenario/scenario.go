package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/reconciler"
	"github.com/roach88/querybuilder/internal/rules"
)

// Scenario is one scripted editing session.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the session ID and
	// the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Builder overrides initial.builder when set.
	Builder options.BuilderKind `yaml:"builder,omitempty"`

	// Initial is the persisted model the session is created from.
	Initial options.Options `yaml:"initial"`

	// Defaults replaces the built-in product defaults.
	Defaults *rules.Defaults `yaml:"defaults,omitempty"`

	// Catalog lists what the accessor returns per location.
	Catalog []CatalogEntry `yaml:"catalog,omitempty"`

	Steps  []Step `yaml:"steps"`
	Expect Expect `yaml:"expect"`
}

// CatalogEntry is the accessor's answer for one location.
type CatalogEntry struct {
	Database string           `yaml:"database,omitempty"`
	Table    string           `yaml:"table"`
	Columns  []catalog.Column `yaml:"columns,omitempty"`

	// Error, when set, makes the fetch fail with this message.
	Error string `yaml:"error,omitempty"`
}

// Location returns the entry's schema location.
func (e CatalogEntry) Location() catalog.Location {
	return catalog.Location{Database: e.Database, Table: e.Table}
}

// Step is exactly one of Set, Fetch or FetchStale.
type Step struct {
	Set        *reconciler.Patch `yaml:"set,omitempty"`
	Fetch      bool              `yaml:"fetch,omitempty"`
	FetchStale bool              `yaml:"fetch_stale,omitempty"`
}

// Kind names the step for traces and error messages.
func (s Step) Kind() string {
	switch {
	case s.Set != nil:
		return "set"
	case s.Fetch:
		return "fetch"
	case s.FetchStale:
		return "fetch_stale"
	default:
		return "empty"
	}
}

// Expect lists the checks made against the settled session.
// Unset fields are not checked.
type Expect struct {
	// SQL is the rendered query text. Surrounding whitespace is ignored.
	SQL string `yaml:"sql,omitempty"`

	// Hints maps a hint to the column expected to carry it. An empty name
	// asserts that no column carries the hint.
	Hints map[options.ColumnHint]string `yaml:"hints,omitempty"`

	Limit       *int               `yaml:"limit,omitempty"`
	Filters     *[]options.Filter  `yaml:"filters,omitempty"`
	OrderBy     *[]options.OrderBy `yaml:"order_by,omitempty"`
	OtelEnabled *bool              `yaml:"otel_enabled,omitempty"`

	// Commits is the number of snapshots dispatched, including any produced
	// while the session was created.
	Commits *int `yaml:"commits,omitempty"`

	// Advisory is the session advisory after the last step.
	Advisory *string `yaml:"advisory,omitempty"`
}

// Load reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func validate(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch sc.Builder {
	case "", options.BuilderTable, options.BuilderLogs:
	default:
		return fmt.Errorf("unknown builder %q", sc.Builder)
	}
	if sc.Defaults != nil {
		if err := sc.Defaults.Validate(); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
	}

	seen := make(map[catalog.Location]bool, len(sc.Catalog))
	for i, e := range sc.Catalog {
		if e.Table == "" {
			return fmt.Errorf("catalog[%d]: table is required", i)
		}
		if seen[e.Location()] {
			return fmt.Errorf("catalog[%d]: duplicate location %s", i, e.Location())
		}
		seen[e.Location()] = true
	}

	for i, step := range sc.Steps {
		n := 0
		if step.Set != nil {
			n++
		}
		if step.Fetch {
			n++
		}
		if step.FetchStale {
			n++
		}
		if n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of set, fetch, fetch_stale is required", i)
		}
	}
	return nil
}
