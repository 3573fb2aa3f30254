package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/convention"
)

// ColumnsOptions holds flags for the columns command.
type ColumnsOptions struct {
	*RootOptions
	Catalog  string
	Database string
}

// TablesResult lists the tables of a catalog schema.
type TablesResult struct {
	Database string   `json:"database,omitempty"`
	Tables   []string `json:"tables"`
}

func (r TablesResult) String() string {
	if len(r.Tables) == 0 {
		return "No tables found."
	}
	return strings.Join(r.Tables, "\n")
}

// ColumnInfo is one catalog column as shown to the user.
type ColumnInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Timestamp bool   `json:"timestamp"`
}

// ColumnsResult lists the columns of one table.
type ColumnsResult struct {
	Location   string       `json:"location"`
	Columns    []ColumnInfo `json:"columns"`
	Convention string       `json:"convention,omitempty"`
}

func (r ColumnsResult) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tTIMESTAMP")
	for _, c := range r.Columns {
		ts := ""
		if c.Timestamp {
			ts = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Type, ts)
	}
	tw.Flush()
	if r.Convention != "" {
		fmt.Fprintf(&b, "log-schema convention: %s\n", r.Convention)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColumnsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "columns [table]",
		Short: "List catalog tables or the columns of a table",
		Long: `Inspect the catalog database the engine reads schemas from.

Without a table, lists the tables of the schema. With a table, lists its
columns in definition order, marks timestamp-typed columns, and reports
the log-schema convention version the columns match, if any.

Examples:
  qb columns --catalog analytics.db
  qb columns events --catalog analytics.db
  qb columns otel_logs --database otel --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := ""
			if len(args) == 1 {
				table = args[0]
			}
			return runColumns(opts, table, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "SQLite catalog database (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "database", "", "attached schema name (default main)")

	return cmd
}

func runColumns(opts *ColumnsOptions, table string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	cat, err := opts.openCatalog(opts.Catalog)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCatalog, "failed to open catalog", err)
	}
	if cat == nil {
		return f.Fail(ExitCommandError, ErrCodeCatalog, "no catalog database configured", nil)
	}
	defer cat.Close()

	if table == "" {
		tables, err := cat.Tables(ctx, opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeCatalog, "failed to list tables", err)
		}
		if tables == nil {
			tables = []string{}
		}
		return f.Success(TablesResult{Database: opts.Database, Tables: tables})
	}

	loc := catalog.Location{Database: opts.Database, Table: table}
	cols, err := cat.FetchColumns(ctx, loc)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCatalog, "failed to read columns", err)
	}
	if len(cols) == 0 {
		return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("table not found: %s", loc), nil)
	}

	reg := convention.Default()
	if opts.Config.Conventions != "" {
		if reg, err = convention.Load(opts.Config.Conventions); err != nil {
			return f.Fail(ExitCommandError, ErrCodeParse, "failed to load conventions", err)
		}
	}

	result := ColumnsResult{Location: loc.String(), Columns: make([]ColumnInfo, 0, len(cols))}
	for _, c := range cols {
		result.Columns = append(result.Columns, ColumnInfo{
			Name:      c.Name,
			Type:      c.Type,
			Timestamp: catalog.IsTimestampType(c.Type),
		})
	}
	if version, ok := reg.Detect(cols); ok {
		result.Convention = version
	}
	return f.Success(result)
}
