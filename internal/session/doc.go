// Package session owns one query editor session.
//
// A Session is the single writer of its Option Model. Editors reach it only
// through the field setters of the session's reconciler; every interaction
// tick is merged, settled and published as one snapshot:
//
//	Interact(fns...)           one tick, N setter calls
//	  └─ reconciler.Flush      one merged commit
//	      └─ location changed? bump generation, drop catalog, re-arm, fetch
//	      └─ settle            rules in declaration order, to a fixpoint
//	          └─ dispatch      one Snapshot, only when the model changed
//
// Catalog fetches are the only asynchronous boundary. A fetch is issued with
// a FetchTicket carrying the generation it was started in; a result whose
// generation is no longer current is discarded, so a slow fetch for a table
// the user has already left never touches the model.
//
// Loop wraps a Session with a FIFO event queue and a Run goroutine for hosts
// that deliver interactions and catalog results from other goroutines.
//
// INVARIANTS:
//   - Rules never observe a partially merged model.
//   - At most one Snapshot is dispatched per interaction tick or catalog
//     result, and only when the settled model differs from the last one.
//   - Seq increases by one per dispatched Snapshot.
//   - Dispatched models are normalized: hints are unique, the limit is
//     non-negative and List mode carries no aggregates.
package session
