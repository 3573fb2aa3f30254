package session

import (
	"fmt"
	"log/slog"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/convention"
	"github.com/roach88/querybuilder/internal/mode"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/reconciler"
	"github.com/roach88/querybuilder/internal/rules"
)

// DefaultMaxRulePasses bounds the settle loop of one transition.
const DefaultMaxRulePasses = 8

// Snapshot is one settled Option Model handed to the host.
type Snapshot struct {
	SessionID string          `json:"sessionId"`
	Seq       int64           `json:"seq"`
	Options   options.Options `json:"options"`
}

// Dispatcher receives every settled snapshot. It is the session's only
// externally observable write effect.
type Dispatcher interface {
	Dispatch(Snapshot)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(Snapshot)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(s Snapshot) { f(s) }

// FetchTicket identifies one catalog fetch. Results must be handed back
// with the ticket they were requested with.
type FetchTicket struct {
	Generation uint64           `json:"generation"`
	Location   catalog.Location `json:"location"`
}

// FetchHook is called, on the session's goroutine, whenever the session
// needs the catalog of a location. It must not block.
type FetchHook func(FetchTicket)

// Advisory describes why catalog-dependent defaults are inert.
type Advisory string

const (
	AdvisoryNone               Advisory = ""
	AdvisoryNoLocation         Advisory = "no_location"
	AdvisoryCatalogPending     Advisory = "catalog_pending"
	AdvisoryCatalogUnavailable Advisory = "catalog_unavailable"
)

// Session is the state owner of one query under construction.
//
// Thread-safety: a Session is not safe for concurrent use. All calls must
// come from one goroutine; use Loop to feed it from several.
type Session struct {
	id          string
	logger      *slog.Logger
	conventions *convention.Registry
	defaults    rules.Defaults
	rules       []rules.Rule
	maxPasses   int
	dispatcher  Dispatcher
	fetch       FetchHook
	idGen       IDGenerator

	current options.Options
	clock   *Clock
	mode    *mode.Controller
	recon   *reconciler.Reconciler
	editors *reconciler.Editors
	staged  *options.Options

	memory     rules.Memory
	catalog    []catalog.Column
	catalogLoc catalog.Location
	generation uint64
	pending    bool
	fetchErr   error
}

// Option configures a Session.
type Option func(*Session)

// WithDispatcher sets the snapshot sink.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Session) {
		s.dispatcher = d
	}
}

// WithConventions sets the log-schema convention registry.
// Default: convention.Default().
func WithConventions(r *convention.Registry) Option {
	return func(s *Session) {
		s.conventions = r
	}
}

// WithDefaults sets the product defaults the rules propose.
func WithDefaults(d rules.Defaults) Option {
	return func(s *Session) {
		s.defaults = d
	}
}

// WithRules replaces the rule set. Rules run in the given order.
func WithRules(rs ...rules.Rule) Option {
	return func(s *Session) {
		s.rules = append([]rules.Rule(nil), rs...)
	}
}

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithIDGenerator sets the session ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.idGen = g
	}
}

// WithMaxRulePasses bounds the settle loop.
// Default: 8 passes (DefaultMaxRulePasses).
func WithMaxRulePasses(n int) Option {
	return func(s *Session) {
		s.maxPasses = n
	}
}

// WithFetchHook sets the function that starts catalog fetches.
func WithFetchHook(h FetchHook) Option {
	return func(s *Session) {
		s.fetch = h
	}
}

// New creates a session from a persisted or initial model, possibly empty.
//
// The initial model is normalized and settled once. Fire-once rules are
// armed only when the model was never configured. When a location is set a
// catalog fetch is requested immediately.
func New(initial options.Options, opts ...Option) (*Session, error) {
	s := &Session{
		conventions: convention.Default(),
		defaults:    rules.DefaultDefaults(),
		rules:       rules.Standard(),
		maxPasses:   DefaultMaxRulePasses,
		idGen:       UUIDv7Generator{},
		clock:       NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxPasses < 1 {
		return nil, fmt.Errorf("max rule passes must be positive, got %d", s.maxPasses)
	}

	s.id = s.idGen.Generate()
	s.logger = s.logger.With("session", s.id)
	s.mode = mode.NewController(initial)
	s.current = options.Normalize(mode.Apply(initial, s.mode.Mode()))

	r, err := reconciler.New(reconciler.ShapeFor(s.current.Builder), s.snapshot, s.stage)
	if err != nil {
		return nil, fmt.Errorf("create reconciler: %w", err)
	}
	s.recon = r
	s.editors = reconciler.NewEditors(r)

	if s.current.IsNew() {
		s.memory = rules.Armed()
	}

	s.logger.Info("session started",
		"builder", s.current.Builder,
		"mode", s.mode.Mode(),
		"location", catalog.LocationOf(s.current).String(),
		"fresh", s.current.IsNew(),
	)

	if loc := catalog.LocationOf(s.current); !loc.IsZero() {
		s.requestCatalog(loc)
	}

	settled, err := s.settle(s.current, s.current, true)
	s.publish(settled)
	if err != nil {
		s.logSettleError(err)
	}
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Seq returns the sequence number of the last dispatched snapshot.
func (s *Session) Seq() int64 { return s.clock.Current() }

// Current returns a copy of the settled model.
func (s *Session) Current() options.Options { return s.current.Clone() }

// Builder returns the session's builder kind.
func (s *Session) Builder() options.BuilderKind { return s.mode.Builder() }

// Mode returns the session's current mode.
func (s *Session) Mode() options.Mode { return s.mode.Mode() }

// ActiveFields returns the fields editable in the current mode.
func (s *Session) ActiveFields() []options.Field { return s.mode.ActiveFields() }

// Query builds the boundary variant of the settled model.
func (s *Session) Query() (options.Query, options.ValidationResult, error) {
	return options.Build(s.current)
}

// Memory returns the fire-once rule state.
func (s *Session) Memory() rules.Memory { return s.memory }

// Catalog returns the columns known for the current location.
func (s *Session) Catalog() []catalog.Column {
	if s.catalogLoc != catalog.LocationOf(s.current) {
		return nil
	}
	return append([]catalog.Column(nil), s.catalog...)
}

// Advisory reports why catalog-dependent defaults may be inert.
func (s *Session) Advisory() Advisory {
	switch {
	case catalog.LocationOf(s.current).IsZero():
		return AdvisoryNoLocation
	case s.pending:
		return AdvisoryCatalogPending
	case s.fetchErr != nil || len(s.Catalog()) == 0:
		return AdvisoryCatalogUnavailable
	default:
		return AdvisoryNone
	}
}

// Interact runs one interaction tick. Every setter call made by fns is
// merged into a single commit before any rule observes the model.
//
// Interact reports whether a snapshot was dispatched. A non-nil error is a
// *RuntimeError describing a settle problem; the model is still committed.
func (s *Session) Interact(fns ...func(*reconciler.Editors)) (bool, error) {
	for _, fn := range fns {
		fn(s.editors)
	}
	if !s.recon.Flush() {
		return false, nil
	}

	next := options.Normalize(*s.staged)
	s.staged = nil
	previous := s.current

	if next.Mode != s.mode.Mode() && s.mode.Transition(next.Mode) {
		s.logger.Debug("mode transition", "from", previous.Mode, "to", next.Mode)
	}

	if loc := catalog.LocationOf(next); loc != catalog.LocationOf(previous) {
		s.changeLocation(loc)
	}

	settled, err := s.settle(next, previous, false)
	dispatched := s.publish(settled)
	if err != nil {
		s.logSettleError(err)
	}
	return dispatched, err
}

// ReceiveCatalog delivers the result of the fetch identified by ticket. It
// reports whether the result was accepted; results for a superseded
// generation are discarded.
//
// A failed fetch leaves the catalog empty and raises an advisory.
func (s *Session) ReceiveCatalog(ticket FetchTicket, cols []catalog.Column, fetchErr error) (bool, error) {
	if ticket.Generation != s.generation || ticket.Location != catalog.LocationOf(s.current) {
		s.logger.Debug("discarding stale catalog",
			"generation", ticket.Generation,
			"current_generation", s.generation,
			"location", ticket.Location.String(),
		)
		return false, nil
	}

	s.pending = false
	s.catalogLoc = ticket.Location
	if fetchErr != nil {
		s.catalog = nil
		s.fetchErr = fetchErr
		s.logger.Warn("catalog unavailable",
			"location", ticket.Location.String(),
			"error", fetchErr,
		)
		return true, nil
	}

	s.catalog = append([]catalog.Column(nil), cols...)
	s.fetchErr = nil
	s.logger.Debug("catalog received",
		"location", ticket.Location.String(),
		"columns", len(cols),
	)

	settled, err := s.settle(s.current, s.current, false)
	s.publish(settled)
	if err != nil {
		s.logSettleError(err)
	}
	return true, err
}

func (s *Session) snapshot() options.Options {
	return s.current
}

func (s *Session) stage(next options.Options) {
	s.staged = &next
}

// changeLocation forgets the old catalog and re-arms the fire-once rules
// for the new selection.
func (s *Session) changeLocation(loc catalog.Location) {
	s.catalog = nil
	s.catalogLoc = catalog.Location{}
	s.fetchErr = nil
	s.pending = false
	s.memory = rules.Armed()

	s.logger.Info("schema location changed", "location", loc.String())

	if !loc.IsZero() {
		s.requestCatalog(loc)
	} else {
		s.generation++
	}
}

func (s *Session) requestCatalog(loc catalog.Location) {
	s.generation++
	if s.fetch == nil {
		return
	}
	s.pending = true
	s.fetch(FetchTicket{Generation: s.generation, Location: loc})
}

// settle runs the rules over working until a pass changes nothing.
// previous is the settled model before the transition. The first settle of
// a session passes the loaded model as both, with initial set.
func (s *Session) settle(working, previous options.Options, initial bool) (options.Options, error) {
	in := &rules.Input{
		Options:         working,
		Previous:        previous,
		Initial:         initial,
		Catalog:         s.catalog,
		CatalogLocation: s.catalogLoc,
		Memory:          &s.memory,
		Conventions:     s.conventions,
		Defaults:        s.defaults,
	}

	var fired []string
	for pass := 1; pass <= s.maxPasses; pass++ {
		changed := rules.Evaluate(s.rules, in)
		in.Options = options.Normalize(in.Options)
		if len(changed) == 0 {
			return in.Options, nil
		}
		fired = changed
		s.logger.Debug("rules fired", "pass", pass, "rules", changed)
	}
	return in.Options, newUnsettledError(s.id, s.maxPasses, fired)
}

// publish makes next the settled model and dispatches it when it differs
// from the previous one.
func (s *Session) publish(next options.Options) bool {
	if next.Equal(s.current) {
		return false
	}
	s.current = next
	snap := Snapshot{SessionID: s.id, Seq: s.clock.Next(), Options: next.Clone()}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(snap)
	}
	return true
}

func (s *Session) logSettleError(err error) {
	s.logger.Error("settle incomplete", "error", err)
}
