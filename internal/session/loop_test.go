package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/options"
	"github.com/roach88/querybuilder/internal/reconciler"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// snapshots is a goroutine-safe dispatcher that signals every snapshot.
type snapshots struct {
	ch chan Snapshot
}

func newSnapshots() *snapshots {
	return &snapshots{ch: make(chan Snapshot, 16)}
}

func (s *snapshots) Dispatch(snap Snapshot) { s.ch <- snap }

func (s *snapshots) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case snap := <-s.ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot dispatched")
		return Snapshot{}
	}
}

func startLoop(t *testing.T, l *Loop) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
			return nil
		}
	}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 3; i++ {
		q.Enqueue(Event{Type: EventTypeCatalog, Catalog: &CatalogResult{Ticket: FetchTicket{Generation: uint64(i)}}})
	}

	for i := 0; i < 3; i++ {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, uint64(i), e.Catalog.Ticket.Generation)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_DrainInteractionsStopsAtCatalog(t *testing.T) {
	q := newEventQueue()
	noop := func(*reconciler.Editors) {}
	q.Enqueue(Event{Type: EventTypeInteraction, Interact: noop})
	q.Enqueue(Event{Type: EventTypeInteraction, Interact: noop})
	q.Enqueue(Event{Type: EventTypeCatalog, Catalog: &CatalogResult{}})
	q.Enqueue(Event{Type: EventTypeInteraction, Interact: noop})

	assert.Len(t, q.DrainInteractions(), 2)
	assert.Equal(t, 2, q.Len())
	assert.Empty(t, q.DrainInteractions(), "catalog event is at the front")
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Event{Type: EventTypeInteraction}))

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue should wake waiters")
	}
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()
	const producers, perProducer = 8, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Event{Type: EventTypeInteraction, Interact: func(*reconciler.Editors) {}})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
	assert.Len(t, q.DrainInteractions(), producers*perProducer)
}

func TestLoop_FetchesAndSettles(t *testing.T) {
	acc := catalog.Static{
		{Database: "db", Table: "events"}: {
			{Name: "timestamp", Type: "DateTime"},
			{Name: "body", Type: "String"},
		},
	}
	snaps := newSnapshots()
	l, err := NewLoop(acc, options.Options{Database: "db", Table: "events"},
		WithDispatcher(snaps), WithLogger(quietLogger()), WithIDGenerator(NewFixedGenerator("loop-1")))
	require.NoError(t, err)

	stop := startLoop(t, l)

	snap := snaps.next(t)
	tc, ok := snap.Options.ColumnByHint(options.HintTime)
	require.True(t, ok)
	assert.Equal(t, "timestamp", tc.Name)
	assert.Equal(t, "loop-1", snap.SessionID)

	require.NoError(t, l.Submit(func(e *reconciler.Editors) { e.SetLimit(25) }))
	snap = snaps.next(t)
	assert.Equal(t, 25, snap.Options.Limit)
	assert.Equal(t, int64(2), snap.Seq)

	assert.ErrorIs(t, stop(), context.Canceled)
	assert.Equal(t, 25, l.Session().Current().Limit)
}

func TestLoop_QueuedInteractionsShareATick(t *testing.T) {
	snaps := newSnapshots()
	l, err := NewLoop(nil, options.Options{Table: "events"},
		WithDispatcher(snaps), WithLogger(quietLogger()))
	require.NoError(t, err)

	// Queued before Run starts, so Run sees them back to back.
	require.NoError(t, l.Submit(func(e *reconciler.Editors) { e.SetLimit(5) }))
	require.NoError(t, l.Submit(func(e *reconciler.Editors) { e.SetDatabase("db") }))
	require.NoError(t, l.Submit(func(e *reconciler.Editors) { e.SetLimit(7) }))
	l.Stop()

	require.NoError(t, l.Run(context.Background()))

	require.Len(t, snaps.ch, 1)
	snap := <-snaps.ch
	assert.Equal(t, 7, snap.Options.Limit)
	assert.Equal(t, "db", snap.Options.Database)
}

func TestLoop_SubmitAfterStop(t *testing.T) {
	l, err := NewLoop(nil, options.Options{}, WithLogger(quietLogger()))
	require.NoError(t, err)
	l.Stop()

	err = l.Submit(func(*reconciler.Editors) {})
	require.Error(t, err)
	assert.True(t, IsStopped(err))
	assert.Error(t, l.Submit(nil))
}

func TestLoop_StaleFetchDiscarded(t *testing.T) {
	release := make(chan struct{})
	acc := catalog.AccessorFunc(func(ctx context.Context, loc catalog.Location) ([]catalog.Column, error) {
		if loc.Table == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []catalog.Column{{Name: "timestamp", Type: "DateTime"}}, nil
		}
		return []catalog.Column{{Name: "created_at", Type: "DateTime"}}, nil
	})

	snaps := newSnapshots()
	l, err := NewLoop(acc, options.Options{Table: "slow"}, WithDispatcher(snaps), WithLogger(quietLogger()))
	require.NoError(t, err)
	stop := startLoop(t, l)

	require.NoError(t, l.Submit(func(e *reconciler.Editors) { e.SetTable("fast") }))

	// Table change, then defaults from the fast catalog.
	snaps.next(t)
	snap := snaps.next(t)
	tc, _ := snap.Options.ColumnByHint(options.HintTime)
	assert.Equal(t, "created_at", tc.Name)

	close(release)
	select {
	case snap := <-snaps.ch:
		t.Fatalf("stale fetch dispatched %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}

	stop()
	tc, _ = l.Session().Current().ColumnByHint(options.HintTime)
	assert.Equal(t, "created_at", tc.Name)
}

func TestLoop_FetchErrorIsAdvisory(t *testing.T) {
	acc := catalog.AccessorFunc(func(context.Context, catalog.Location) ([]catalog.Column, error) {
		return nil, errors.New("no default schema configured")
	})
	l, err := NewLoop(acc, options.Options{Table: "events"}, WithLogger(quietLogger()))
	require.NoError(t, err)

	// Let the failed fetch land in the queue, then process it and stop.
	require.Eventually(t, func() bool { return l.queue.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, AdvisoryCatalogPending, l.Session().Advisory())
	l.Stop()
	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, AdvisoryCatalogUnavailable, l.Session().Advisory())
}
