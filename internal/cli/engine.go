package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/convention"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/session"
)

// loadOptionsFile reads a persisted option model. Unknown keys are
// rejected.
func loadOptionsFile(path string) (options.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return options.Options{}, err
	}

	var o options.Options
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return options.Options{}, fmt.Errorf("failed to parse options: %w", err)
	}
	return o, nil
}

// sessionOptions translates the loaded configuration into session options.
func (o *RootOptions) sessionOptions() ([]session.Option, error) {
	opts := []session.Option{
		session.WithLogger(o.Logger),
		session.WithDefaults(o.Config.Defaults),
		session.WithMaxRulePasses(o.Config.MaxRulePasses),
	}
	if o.Config.Conventions != "" {
		reg, err := convention.Load(o.Config.Conventions)
		if err != nil {
			return nil, fmt.Errorf("load conventions: %w", err)
		}
		opts = append(opts, session.WithConventions(reg))
	}
	return opts, nil
}

// settle creates a session from initial and resolves its catalog fetches
// synchronously, so the returned session has applied every default the
// catalog allows. acc may be nil.
func (o *RootOptions) settle(ctx context.Context, initial options.Options, acc catalog.Accessor) (*session.Session, error) {
	opts, err := o.sessionOptions()
	if err != nil {
		return nil, err
	}

	var pending []session.FetchTicket
	if acc != nil {
		opts = append(opts, session.WithFetchHook(func(t session.FetchTicket) {
			pending = append(pending, t)
		}))
	}

	sess, err := session.New(initial, opts...)
	if err != nil {
		return nil, err
	}

	for len(pending) > 0 {
		t := pending[0]
		pending = pending[1:]

		fetchCtx, cancel := context.WithTimeout(ctx, o.Config.Timeout())
		cols, fetchErr := acc.FetchColumns(fetchCtx, t.Location)
		cancel()

		if _, err := sess.ReceiveCatalog(t, cols, fetchErr); err != nil && !session.IsUnsettled(err) {
			return nil, err
		}
	}
	return sess, nil
}

// openCatalog opens the catalog database, preferring the flag over config.
// An empty path yields a nil accessor.
func (o *RootOptions) openCatalog(flagPath string) (*catalog.SQLite, error) {
	path := flagPath
	if path == "" {
		path = o.Config.Catalog.Path
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return catalog.OpenSQLite(path)
}
