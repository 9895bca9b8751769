// Package taxonomy implements tenant-defined classification schemas for
// map records: types, their values, and record assignments.
//
// A type is a fixed behavioral record (required, single/multi valued,
// used for filtering, used for map styling) rather than an open property
// bag. The validator is pure over a loaded schema snapshot; the store
// persists and notifies an Invalidator after every schema mutation so
// descriptor caches never go stale.
package taxonomy
