// Package service holds the fact store.
//
// A Store combines the native fact provider with external facts loaded from
// the configured search directories. Population is lazy: the first query
// enumerates native facts, loads the external directories and merges them,
// with external facts taking precedence. Reset drops the cached table and
// the next query populates again.
//
// # Events
//
// Stores publish state changes on an optional EventBus: a completed
// population, a reset and every search path change. Publishing never blocks;
// a slow subscriber misses events.
package service
