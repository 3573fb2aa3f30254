package reconciler

import (
	"fmt"
	"slices"

	"github.com/roach88/querybuilder/internal/options"
)

// Setter writes one field of the pending batch.
type Setter[T any] func(T)

// fieldDesc binds a field name to its value type and its slot in State.
type fieldDesc struct {
	accepts func(any) bool
	set     func(*State, any)
	typ     string
}

func desc[T any](set func(*State, T)) fieldDesc {
	return fieldDesc{
		accepts: func(v any) bool {
			_, ok := v.(T)
			return ok
		},
		set: func(s *State, v any) { set(s, v.(T)) },
		typ: fmt.Sprintf("%T", *new(T)),
	}
}

var fields = map[options.Field]fieldDesc{
	options.FieldDatabase: desc(func(s *State, v string) { s.Database = v }),
	options.FieldTable:    desc(func(s *State, v string) { s.Table = v }),
	options.FieldMode:     desc(func(s *State, v options.Mode) { s.Mode = v }),
	options.FieldColumns: desc(func(s *State, v []options.SelectedColumn) {
		s.Columns = slices.Clone(v)
	}),
	options.FieldAggregates: desc(func(s *State, v []options.AggregateColumn) {
		s.Aggregates = slices.Clone(v)
	}),
	options.FieldGroupBy: desc(func(s *State, v []string) { s.GroupBy = slices.Clone(v) }),
	options.FieldFilters: desc(func(s *State, v []options.Filter) {
		s.Filters = options.Options{Filters: v}.Clone().Filters
	}),
	options.FieldOrderBy: desc(func(s *State, v []options.OrderBy) { s.OrderBy = slices.Clone(v) }),
	options.FieldLimit: desc(func(s *State, v int) {
		// Entry-driven: clamp, never reject.
		s.Limit = max(v, 0)
	}),
	options.FieldOtelEnabled: desc(func(s *State, v bool) { s.OtelEnabled = v }),
	options.FieldOtelVersion: desc(func(s *State, v string) { s.OtelVersion = v }),
	options.FieldTimeColumn: desc(func(s *State, v *options.SelectedColumn) {
		s.TimeColumn = copyColumn(v)
	}),
	options.FieldLogLevelColumn: desc(func(s *State, v *options.SelectedColumn) {
		s.LogLevelColumn = copyColumn(v)
	}),
	options.FieldLogMessageColumn: desc(func(s *State, v *options.SelectedColumn) {
		s.LogMessageColumn = copyColumn(v)
	}),
}

func copyColumn(c *options.SelectedColumn) *options.SelectedColumn {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Reconciler batches field updates for one shape and commits them once.
//
// A Reconciler is not safe for concurrent use. Like the editors it serves,
// it runs on the session's single writer.
type Reconciler struct {
	shape   Shape
	allowed map[options.Field]bool
	current func() options.Options
	commit  func(options.Options)

	queued  bool
	base    options.Options
	pending map[options.Field]any
	order   []options.Field
}

// New creates a Reconciler for shape. current supplies the snapshot a new
// batch is queued against; commit receives each merged model.
//
// New rejects shapes that name unknown or duplicate fields.
func New(shape Shape, current func() options.Options, commit func(options.Options)) (*Reconciler, error) {
	if shape.FromOptions == nil || shape.Project == nil {
		return nil, fmt.Errorf("shape %q: FromOptions and Project are required", shape.Builder)
	}
	if current == nil || commit == nil {
		return nil, fmt.Errorf("shape %q: current and commit are required", shape.Builder)
	}

	allowed := make(map[options.Field]bool, len(shape.Fields))
	for _, f := range shape.Fields {
		if _, ok := fields[f]; !ok {
			return nil, fmt.Errorf("shape %q: unknown field %q", shape.Builder, f)
		}
		if allowed[f] {
			return nil, fmt.Errorf("shape %q: duplicate field %q", shape.Builder, f)
		}
		allowed[f] = true
	}

	return &Reconciler{
		shape:   shape,
		allowed: allowed,
		current: current,
		commit:  commit,
	}, nil
}

// Shape returns the reconciler's shape.
func (r *Reconciler) Shape() Shape {
	return r.shape
}

// Has reports whether field f belongs to the shape.
func (r *Reconciler) Has(f options.Field) bool {
	return r.allowed[f]
}

// Bind returns the setter for field f.
//
// Bind panics if f is not part of the reconciler's shape or T is not the
// field's value type. Both are programming errors and surface when the
// editor is wired, never at edit time.
func Bind[T any](r *Reconciler, f options.Field) Setter[T] {
	d, ok := fields[f]
	if !ok || !r.allowed[f] {
		panic(fmt.Sprintf("reconciler: field %q is not part of the %s shape", f, r.shape.Builder))
	}
	var zero T
	if !d.accepts(zero) {
		panic(fmt.Sprintf("reconciler: field %q holds %s, not %T", f, d.typ, zero))
	}
	return func(v T) {
		r.enqueue(f, v)
	}
}

func (r *Reconciler) enqueue(f options.Field, v any) {
	if !r.queued {
		r.base = r.current()
		r.pending = make(map[options.Field]any)
		r.order = r.order[:0]
		r.queued = true
	}
	if _, seen := r.pending[f]; !seen {
		r.order = append(r.order, f)
	}
	r.pending[f] = v
}

// Pending returns the fields written in the current batch, in first-write
// order.
func (r *Reconciler) Pending() []options.Field {
	if !r.queued {
		return nil
	}
	return slices.Clone(r.order)
}

// Flush merges the pending batch onto its base snapshot and commits the
// result. It returns false, without committing, when nothing is pending.
func (r *Reconciler) Flush() bool {
	if !r.queued {
		return false
	}

	state := r.shape.FromOptions(r.base)
	for _, f := range r.order {
		fields[f].set(&state, r.pending[f])
	}
	next := r.shape.Project(state, r.base)

	r.reset()
	r.commit(next)
	return true
}

// Discard drops the pending batch.
func (r *Reconciler) Discard() {
	r.reset()
}

func (r *Reconciler) reset() {
	r.queued = false
	r.base = options.Options{}
	r.pending = nil
	r.order = r.order[:0]
}
