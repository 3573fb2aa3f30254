package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/session"
	"github.com/roach88/querybuilder/internal/sqlgen"
	"github.com/roach88/querybuilder/internal/store"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Catalog string // catalog database, overrides config
	Save    string // saved query name
}

// RenderResult is the settled model and its query text.
type RenderResult struct {
	SQL      string          `json:"sql"`
	Options  options.Options `json:"options"`
	Warnings []string        `json:"warnings,omitempty"`
	Advisory string          `json:"advisory,omitempty"`
	SavedID  string          `json:"savedId,omitempty"`
}

func (r RenderResult) String() string {
	var b strings.Builder
	b.WriteString(r.SQL)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n-- warning: %s", w)
	}
	if r.Advisory != "" {
		fmt.Fprintf(&b, "\n-- advisory: %s", r.Advisory)
	}
	if r.SavedID != "" {
		fmt.Fprintf(&b, "\n-- saved: %s", r.SavedID)
	}
	return b.String()
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <options-file>",
		Short: "Settle an option model and print its query",
		Long: `Load an option model, settle it against the catalog database and
print the generated query.

When a catalog database is available, a fresh query receives the same
defaults an editor would propose: the time column, a relative time range
filter, descending time ordering, and for the logs builder the log-schema
convention columns.

Examples:
  qb render query.yaml
  qb render query.yaml --catalog analytics.db
  qb render query.yaml --save "recent errors" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "SQLite catalog database (overrides config)")
	cmd.Flags().StringVar(&opts.Save, "save", "", "save the settled model under this name")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	initial, err := loadOptionsFile(path)
	if os.IsNotExist(err) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("options file not found: %s", path), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeParse, "failed to load options", err)
	}

	cat, err := opts.openCatalog(opts.Catalog)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCatalog, "failed to open catalog", err)
	}
	var acc catalog.Accessor
	if cat != nil {
		defer cat.Close()
		acc = cat
	}

	sess, err := opts.settle(ctx, initial, acc)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to start session", err)
	}

	result, err := renderSession(sess)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeBuild, "failed to render query", err)
	}

	if opts.Save != "" {
		st, err := store.Open(opts.Config.Store.Path)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
		}
		defer st.Close()

		saved, err := st.Save(ctx, store.SavedQuery{Name: opts.Save, Options: sess.Current()})
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to save query", err)
		}
		result.SavedID = saved.ID
		opts.Logger.Info("saved query", "id", saved.ID, "name", saved.Name)
	}

	return f.Success(result)
}

func renderSession(sess *session.Session) (RenderResult, error) {
	result, err := renderOptions(sess.Current())
	if err != nil {
		return RenderResult{}, err
	}
	result.Advisory = string(sess.Advisory())
	return result, nil
}

func renderOptions(o options.Options) (RenderResult, error) {
	q, vr, err := options.Build(o)
	if err != nil {
		return RenderResult{}, err
	}
	sql, err := sqlgen.Render(q)
	if err != nil {
		return RenderResult{}, err
	}
	return RenderResult{
		SQL:      sql,
		Options:  options.Normalize(o),
		Warnings: vr.Warnings,
	}, nil
}
