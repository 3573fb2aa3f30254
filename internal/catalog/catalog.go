// Package catalog describes the columns available at a schema location.
//
// The engine never introspects the backing store itself; it asks an
// Accessor. Transport, retries and caching belong to the Accessor
// implementation. An empty result means "unknown schema" and keeps every
// catalog-dependent default rule inert.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/querybuilder/internal/options"
)

// Location identifies a table.
type Location struct {
	Database string `yaml:"database" json:"database"`
	Table    string `yaml:"table" json:"table"`
}

// LocationOf returns the schema location an Option Model reads.
func LocationOf(o options.Options) Location {
	return Location{Database: o.Database, Table: o.Table}
}

// IsZero reports whether no table is selected.
func (l Location) IsZero() bool {
	return l.Table == ""
}

func (l Location) String() string {
	if l.Database == "" {
		return l.Table
	}
	return fmt.Sprintf("%s.%s", l.Database, l.Table)
}

// Column is one available column.
type Column struct {
	Name string             `yaml:"name" json:"name"`
	Type string             `yaml:"type" json:"type"`
	Hint options.ColumnHint `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Accessor fetches the ordered column list of a location.
type Accessor interface {
	FetchColumns(ctx context.Context, loc Location) ([]Column, error)
}

// AccessorFunc adapts a function to the Accessor interface.
type AccessorFunc func(ctx context.Context, loc Location) ([]Column, error)

// FetchColumns implements Accessor.
func (f AccessorFunc) FetchColumns(ctx context.Context, loc Location) ([]Column, error) {
	return f(ctx, loc)
}

// Static is an in-memory Accessor. Unknown locations yield no columns.
type Static map[Location][]Column

// FetchColumns implements Accessor.
func (s Static) FetchColumns(ctx context.Context, loc Location) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols := s[loc]
	out := make([]Column, len(cols))
	copy(out, cols)
	return out, nil
}

// Find returns the column named name.
func Find(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsTimestampType reports whether a declared column type holds points in time.
// Nullable(...) and LowCardinality(...) wrappers are ignored.
func IsTimestampType(t string) bool {
	base := strings.ToLower(unwrapType(t))
	switch {
	case strings.HasPrefix(base, "datetime"): // DateTime, DateTime64(3), DateTime('UTC')
		return true
	case base == "date" || base == "date32":
		return true
	case strings.HasPrefix(base, "timestamp"): // timestamp, timestamptz, timestamp with time zone
		return true
	}
	return false
}

// IsNumericType reports whether values of a declared type are rendered
// without quotes.
func IsNumericType(t string) bool {
	base := strings.ToLower(unwrapType(t))
	for _, prefix := range []string{"int", "uint", "float", "decimal", "double", "real", "numeric", "bigint", "smallint", "tinyint"} {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// IsBoolType reports whether a declared type is boolean.
func IsBoolType(t string) bool {
	base := strings.ToLower(unwrapType(t))
	return base == "bool" || base == "boolean"
}

func unwrapType(t string) string {
	t = strings.TrimSpace(t)
	for {
		lower := strings.ToLower(t)
		switch {
		case strings.HasPrefix(lower, "nullable(") && strings.HasSuffix(t, ")"):
			t = strings.TrimSpace(t[len("nullable(") : len(t)-1])
		case strings.HasPrefix(lower, "lowcardinality(") && strings.HasSuffix(t, ")"):
			t = strings.TrimSpace(t[len("lowcardinality(") : len(t)-1])
		default:
			return t
		}
	}
}

// FoldName returns the comparison key for a column name: NFC-normalized and
// case-folded, so "Timestamp" and "TIMESTAMP" match.
func FoldName(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// FindFold returns the first column whose name matches name under FoldName.
func FindFold(cols []Column, name string) (Column, bool) {
	key := FoldName(name)
	for _, c := range cols {
		if FoldName(c.Name) == key {
			return c, true
		}
	}
	return Column{}, false
}
