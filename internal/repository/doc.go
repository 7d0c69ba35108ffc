// Package repository defines the storage interface for fact snapshots.
//
// A snapshot is a complete fact table captured at a point in time. Stored
// snapshots can be listed, read back and compared with domain.Diff to see
// how a host changed.
//
// # SQLite Implementation
//
// The sqlite subpackage stores snapshots in a single database file. Each
// fact is kept as its recorded enumeration (a JSON list of protocol
// messages) so every value comes back with its exact kind: an Integer stays
// an Integer and a Boolean stays a Boolean.
//
// The schema is created on open. Tests use in-memory databases.
package repository
