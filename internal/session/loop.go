package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/reconciler"
)

// DefaultFetchTimeout bounds one catalog fetch started by a Loop.
const DefaultFetchTimeout = 30 * time.Second

// Loop is the single-writer event loop around a Session.
//
// Interactions and catalog results are processed in FIFO order. Interactions
// queued back to back are one tick: they are merged into one commit.
//
// Thread-safety model:
//   - Submit(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Session(): only before Run starts or after it returns
type Loop struct {
	session  *Session
	queue    *eventQueue
	accessor catalog.Accessor
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoop creates a Loop whose session fetches catalogs through acc.
// A nil acc leaves every catalog unknown.
func NewLoop(acc catalog.Accessor, initial options.Options, opts ...Option) (*Loop, error) {
	l := &Loop{
		queue:    newEventQueue(),
		accessor: acc,
		timeout:  DefaultFetchTimeout,
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())

	if acc != nil {
		opts = append(opts, WithFetchHook(l.fetch))
	}
	s, err := New(initial, opts...)
	if err != nil {
		l.cancel()
		return nil, err
	}
	l.session = s
	return l, nil
}

// Session returns the wrapped session.
func (l *Loop) Session() *Session {
	return l.session
}

// Submit queues one interaction.
func (l *Loop) Submit(fn func(*reconciler.Editors)) error {
	if fn == nil {
		return fmt.Errorf("nil interaction")
	}
	if !l.queue.Enqueue(Event{Type: EventTypeInteraction, Interact: fn}) {
		return &RuntimeError{
			Code:      ErrCodeStopped,
			Message:   "loop is stopped",
			SessionID: l.session.ID(),
		}
	}
	return nil
}

// Run starts the event loop. It blocks until ctx is cancelled or Stop is
// called and the queue has drained.
//
// Settle errors are logged and processing continues; they never stop the
// loop.
func (l *Loop) Run(ctx context.Context) error {
	log := l.session.logger
	log.Info("loop starting")
	defer l.shutdown()

	for {
		if ev, ok := l.queue.TryDequeue(); ok {
			l.process(ev)
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("loop stopping: context cancelled")
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel closes with the queue, so this fires
			// immediately once stopped.
			if l.queue.Closed() && l.queue.Len() == 0 {
				log.Info("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns after processing what is queued.
func (l *Loop) Stop() {
	l.queue.Close()
}

func (l *Loop) process(ev Event) {
	switch ev.Type {
	case EventTypeInteraction:
		fns := append([]func(*reconciler.Editors){ev.Interact}, l.queue.DrainInteractions()...)
		_, _ = l.session.Interact(fns...)

	case EventTypeCatalog:
		if ev.Catalog == nil {
			l.session.logger.Error("catalog event missing result")
			return
		}
		_, _ = l.session.ReceiveCatalog(ev.Catalog.Ticket, ev.Catalog.Columns, ev.Catalog.Err)

	default:
		l.session.logger.Error("unknown event type", "type", int(ev.Type))
	}
}

// fetch runs on the session goroutine and must not block: the accessor is
// called from its own goroutine and the result comes back as an event.
func (l *Loop) fetch(t FetchTicket) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
		defer cancel()

		cols, err := l.accessor.FetchColumns(ctx, t.Location)
		l.queue.Enqueue(Event{
			Type:    EventTypeCatalog,
			Catalog: &CatalogResult{Ticket: t, Columns: cols, Err: err},
		})
	}()
}

func (l *Loop) shutdown() {
	l.cancel()
	l.queue.Close()
	l.wg.Wait()
}
