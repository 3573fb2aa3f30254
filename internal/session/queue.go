package session

import (
	"sync"

	"github.com/roach88/querybuilder/internal/catalog"
	"github.com/roach88/querybuilder/internal/reconciler"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeInteraction carries editor setter calls.
	EventTypeInteraction EventType = iota + 1
	// EventTypeCatalog carries the result of a catalog fetch.
	EventTypeCatalog
)

// CatalogResult is the outcome of one catalog fetch.
type CatalogResult struct {
	Ticket  FetchTicket
	Columns []catalog.Column
	Err     error
}

// Event wraps interactions and catalog results for the event queue.
type Event struct {
	Type     EventType
	Interact func(*reconciler.Editors)
	Catalog  *CatalogResult
}

// eventQueue is a thread-safe FIFO queue for events.
//
// Hosts and fetch goroutines enqueue from anywhere while the Loop's Run
// goroutine dequeues. The signal channel enables context-aware waiting.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.pop(), true
}

// DrainInteractions removes the run of interaction events at the front of
// the queue. They belong to the same tick as the interaction just dequeued.
func (q *eventQueue) DrainInteractions() []func(*reconciler.Editors) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var fns []func(*reconciler.Editors)
	for len(q.events) > 0 && q.events[0].Type == EventTypeInteraction {
		fns = append(fns, q.pop().Interact)
	}
	return fns
}

// pop removes the front event. Callers hold q.mu.
func (q *eventQueue) pop() Event {
	e := q.events[0]

	// Nil out the slot so the backing array does not retain closures.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
