// Package scenario replays scripted editing sessions against the engine.
//
// A scenario describes an initial Option Model, the catalog the accessor
// would return, and a sequence of steps. Run drives a real session through
// the steps with deterministic IDs and synchronous catalog delivery, then
// Check compares the settled model against the expectations.
//
// # Scenario Format
//
//	name: table_default_time
//	description: "A fresh table query picks up time defaults"
//	builder: table
//	initial:
//	  database: db
//	  table: events
//	catalog:
//	  - database: db
//	    table: events
//	    columns:
//	      - { name: created_at, type: DateTime }
//	steps:
//	  - fetch: true
//	  - set: { limit: 50 }
//	expect:
//	  sql: SELECT "created_at" FROM "db"."events" ...
//	  hints: { time: created_at }
//	  commits: 2
//
// # Steps
//
//   - set: a reconciler.Patch applied as one interaction tick
//   - fetch: deliver every outstanding catalog fetch in request order
//   - fetch_stale: deliver them newest first, so superseded fetches arrive
//     last and must be discarded
//
// A catalog entry with an error message simulates a failing accessor.
// Locations without an entry resolve to an empty catalog.
package scenario
