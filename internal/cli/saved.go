package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/querybuilder/internal/store"
)

// SavedSummary is one row of the saved query listing.
type SavedSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Builder   string    `json:"builder"`
	Location  string    `json:"location"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SavedList is the saved query listing.
type SavedList struct {
	Queries []SavedSummary `json:"queries"`
}

func (l SavedList) String() string {
	if len(l.Queries) == 0 {
		return "No saved queries."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBUILDER\tTABLE\tUPDATED")
	for _, q := range l.Queries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", q.ID, q.Name, q.Builder, q.Location, q.UpdatedAt.Format(time.RFC3339))
	}
	tw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

// SavedShow is one saved query with its rendered text.
type SavedShow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	RenderResult
}

func (s SavedShow) String() string {
	return fmt.Sprintf("-- %s (%s)\n%s", s.Name, s.ID, s.RenderResult)
}

// deleted reports a removed saved query.
type deleted struct {
	ID string `json:"deleted"`
}

func (d deleted) String() string { return "Deleted " + d.ID }

// NewSavedCommand creates the saved command group.
func NewSavedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved queries",
		Long: `List, show and delete queries saved with "qb render --save".

The store location comes from store.path in the config file.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavedList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavedShow(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSavedDelete(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func withStore(opts *RootOptions, f *OutputFormatter, fn func(*store.Store) error) error {
	st, err := store.Open(opts.Config.Store.Path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open store", err)
	}
	defer st.Close()
	return fn(st)
}

func runSavedList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withStore(opts, f, func(st *store.Store) error {
		queries, err := st.List(cmd.Context())
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to list saved queries", err)
		}

		out := SavedList{Queries: make([]SavedSummary, 0, len(queries))}
		for _, q := range queries {
			loc := q.Options.Table
			if q.Options.Database != "" {
				loc = q.Options.Database + "." + loc
			}
			out.Queries = append(out.Queries, SavedSummary{
				ID:        q.ID,
				Name:      q.Name,
				Builder:   string(q.Options.Builder),
				Location:  loc,
				UpdatedAt: q.UpdatedAt,
			})
		}
		return f.Success(out)
	})
}

func runSavedShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withStore(opts, f, func(st *store.Store) error {
		q, err := st.Load(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("saved query not found: %s", id), nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to load saved query", err)
		}

		rendered, err := renderOptions(q.Options)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeRender, "failed to render saved query", err)
		}
		return f.Success(SavedShow{ID: q.ID, Name: q.Name, RenderResult: rendered})
	})
}

func runSavedDelete(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withStore(opts, f, func(st *store.Store) error {
		err := st.Delete(cmd.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			return f.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("saved query not found: %s", id), nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to delete saved query", err)
		}
		opts.Logger.Info("deleted saved query", "id", id)
		return f.Success(deleted{ID: id})
	})
}
