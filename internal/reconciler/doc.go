// Package reconciler merges independent, partial edits into one Option Model
// transition.
//
// Editors never touch the Option Model. Each one holds field-scoped setters
// produced by Bind; a setter only records "field = value" in the pending
// batch. Flush then merges the whole batch onto the snapshot the batch was
// started against and commits exactly once:
//
//	editor A ─ SetTable("logs") ──┐
//	editor B ─ SetLimit(100) ─────┼─▶ pending {table, limit} ─ Flush ─▶ commit(next)
//	editor A ─ SetTable("spans") ─┘         (last write wins)
//
// INVARIANTS:
//   - One Flush produces at most one commit.
//   - A field written several times in a batch takes the last value.
//   - A field not written in the batch keeps its value from the base
//     snapshot, never from an intermediate one.
//   - The set of fields is fixed per Shape; binding a field outside it
//     panics when the setter is created, not when it is called.
package reconciler
