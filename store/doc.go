// Package store defines snapshot persistence for GASL run state.
//
// A run's state document is persisted as a sequence of copy-on-write
// snapshots with strictly increasing versions; the highest version for a
// run is always a complete last-good state. Backends live in subpackages:
// memory (tests, ephemeral runs), file (single-user local runs), sqlite,
// postgres and redis (shared or remote durability).
//
// All backends serialize the state document as JSON. The engine is the
// single writer for a given run; stores do not arbitrate concurrent
// writers.
package store
