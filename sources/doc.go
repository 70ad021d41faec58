// Package sources manages the Sources table: importing new source URLs
// from a local list file, claiming pending sources, and expanding a claimed
// source into individual video task rows.
//
// Expansion is the bridge between the two tables. It invokes the resolver
// on the source URL, drops entries without a usable id and URL, filters
// out videos that already have a task row, and appends the survivors in
// bounded batches so partial progress survives a mid-expansion failure.
package sources
