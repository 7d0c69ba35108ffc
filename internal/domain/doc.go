// Package domain defines the fact value model.
//
// A fact is a named piece of information about the host. Its content is a
// Value, a closed sum type with six implementations:
//
//   - String, Integer, Boolean and Double scalars
//   - Array, an ordered sequence of values
//   - Map, a string-keyed collection that remembers insertion order
//
// Consumers switch over the concrete types; the unexported marker method on
// Value keeps other packages from adding new kinds.
//
// # Fact Tables
//
// FactSet is the ordered table of fact name to value used for a single
// producer's contribution, a loader result and the merged store table.
// Names are normalized (trimmed, lower-cased) on every entry point, and
// setting an existing name overwrites the value in place.
//
// # Snapshots
//
// Snapshot captures a fact table at a point in time; Diff compares two
// tables fact by fact.
//
// # Design Principles
//
// - No I/O and no dependencies outside the standard library
// - Exact kinds: Integer(1), Double(1) and Boolean(true) are all distinct
// - Bounded nesting (MaxDepth) everywhere values are built recursively
package domain
