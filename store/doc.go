// Package store provides uniform row-level access to the shared tables that
// coordinate a fleet of download workers.
//
// Two logical tables, Sources and Video Tasks, hold all shared state. The
// backing store offers only single-row primitives: read-all, row-id lookup,
// find-by-status, column update, bulk append, and row delete. There are no
// transactions and no conditional writes; every update is a read-modify-write
// whose races are resolved by the claim protocol, not by the store.
//
// RowStore is the contract. Two backends implement it:
//
//   - MemoryStore: an in-process store for tests and single-worker runs.
//   - SheetsStore: the production backend on a Google spreadsheet, one
//     worksheet per table, first row as column headers.
//
// Wrap either backend with Throttle to enforce the minimum inter-call gap
// that keeps the fleet inside the backing store's API quota:
//
//	gate := ratelimit.NewGate(3 * time.Second)
//	st := store.Throttle(backend, gate)
//
// Rows are flat column-name-to-string maps. Columns the kit does not
// interpret (Name, Accent, Type, ...) pass through writes untouched.
package store
