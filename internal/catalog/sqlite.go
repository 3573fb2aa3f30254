package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is an Accessor backed by a SQLite database file.
//
// Location.Database selects an attached schema; empty means "main".
// Column order follows the table definition (cid), so rules that pick the
// first matching column stay deterministic.
type SQLite struct {
	db *sql.DB
}

// uriPath escapes the characters SQLite URI filenames treat specially.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// OpenSQLite opens the SQLite database at path read-only.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", "file:"+uriPath.Replace(path)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// NewSQLite wraps an already open database handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FetchColumns implements Accessor.
func (s *SQLite) FetchColumns(ctx context.Context, loc Location) ([]Column, error) {
	if loc.IsZero() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid",
		loc.Table, schemaName(loc.Database))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", loc, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", loc, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", loc, err)
	}
	return cols, nil
}

// Tables lists the tables of a schema in name order.
func (s *SQLite) Tables(ctx context.Context, database string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%%' ORDER BY name",
		quoteIdent(schemaName(database)))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func schemaName(database string) string {
	if database == "" {
		return "main"
	}
	return database
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
