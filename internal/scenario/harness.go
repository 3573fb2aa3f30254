package scenario

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/reconciler"
	"github.com/roach88/querybuilder/internal/session"
	"github.com/roach88/querybuilder/internal/sqlgen"
)

// TraceEvent is one observable effect of a step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Event    string `json:"event"` // commit, catalog, stale, catalog_error
	Location string `json:"location,omitempty"`
	Seq      int64  `json:"seq,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall success: every step ran and every
	// expectation matched.
	Pass bool

	Final     options.Options
	SQL       string
	Warnings  []string
	Advisory  session.Advisory
	Snapshots []session.Snapshot
	Trace     []TraceEvent

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// runner feeds one session. Fetches are collected at request time and
// delivered only by fetch steps.
type runner struct {
	sc      *Scenario
	sess    *session.Session
	result  *Result
	step    int
	pending []session.FetchTicket
}

// Run executes sc and checks its expectations. The returned error reports
// a scenario that could not be executed; failed expectations are reported
// in Result.Errors.
//
// extra options are applied after the harness defaults, so a caller may
// replace the logger.
func Run(sc *Scenario, extra ...session.Option) (*Result, error) {
	r := &runner{sc: sc, result: &Result{Pass: true}}

	initial := sc.Initial
	if sc.Builder != "" {
		initial.Builder = sc.Builder
	}

	opts := []session.Option{
		session.WithDispatcher(session.DispatcherFunc(r.dispatch)),
		session.WithFetchHook(func(t session.FetchTicket) { r.pending = append(r.pending, t) }),
		session.WithIDGenerator(session.NewFixedGenerator(sc.Name)),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if sc.Defaults != nil {
		opts = append(opts, session.WithDefaults(*sc.Defaults))
	}
	opts = append(opts, extra...)

	sess, err := session.New(initial, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	r.sess = sess

	for i, step := range sc.Steps {
		r.step = i + 1
		if err := r.execute(step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", r.step, step.Kind(), err)
		}
	}

	r.finish()
	for _, msg := range Check(sc.Expect, r.result) {
		r.result.AddError("%s", msg)
	}
	return r.result, nil
}

func (r *runner) dispatch(snap session.Snapshot) {
	r.result.Snapshots = append(r.result.Snapshots, snap)
	r.result.Trace = append(r.result.Trace, TraceEvent{Step: r.step, Event: "commit", Seq: snap.Seq})
}

func (r *runner) execute(step Step) error {
	switch {
	case step.Set != nil:
		return r.set(*step.Set)
	case step.Fetch:
		r.deliver(r.pending)
	case step.FetchStale:
		newestFirst := slices.Clone(r.pending)
		slices.Reverse(newestFirst)
		r.deliver(newestFirst)
	}
	return nil
}

func (r *runner) set(p reconciler.Patch) error {
	var patchErr error
	_, err := r.sess.Interact(func(e *reconciler.Editors) {
		patchErr = p.Apply(e, r.sess.Builder())
	})
	if patchErr != nil {
		return patchErr
	}
	if err != nil {
		r.result.AddError("step %d: %v", r.step, err)
	}
	return nil
}

func (r *runner) deliver(tickets []session.FetchTicket) {
	r.pending = nil
	for _, t := range tickets {
		cols, fetchErr := r.lookup(t.Location)
		at := len(r.result.Trace)
		accepted, err := r.sess.ReceiveCatalog(t, cols, fetchErr)
		if err != nil {
			r.result.AddError("step %d: %v", r.step, err)
		}

		event := "catalog"
		switch {
		case !accepted:
			event = "stale"
		case fetchErr != nil:
			event = "catalog_error"
		}
		// The delivery precedes the commits it caused.
		r.result.Trace = slices.Insert(r.result.Trace, at, TraceEvent{Step: r.step, Event: event, Location: t.Location.String()})
	}
}

func (r *runner) lookup(loc catalog.Location) ([]catalog.Column, error) {
	for _, e := range r.sc.Catalog {
		if e.Location() != loc {
			continue
		}
		if e.Error != "" {
			return nil, errors.New(e.Error)
		}
		return slices.Clone(e.Columns), nil
	}
	return nil, nil
}

func (r *runner) finish() {
	res := r.result
	res.Final = r.sess.Current()
	res.Advisory = r.sess.Advisory()

	q, vr, err := r.sess.Query()
	if err != nil {
		if !options.IsMissingTable(err) {
			res.AddError("build: %v", err)
		}
		return
	}
	res.Warnings = vr.Warnings

	sql, err := sqlgen.Render(q)
	if err != nil {
		res.AddError("render: %v", err)
		return
	}
	res.SQL = sql
}
