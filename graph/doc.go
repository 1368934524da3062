// Package graph provides the in-memory node/edge store backing the
// mind-map editor.
//
// The store is pure data plus invariant enforcement: it holds the node and
// edge collections, keeps children in edge-insertion order, derives edge
// ids from their endpoint pair for O(1) duplicate detection, and performs
// cascading removal so no orphan ever survives a delete. It never performs
// I/O and never initiates creation; the editor package is the only
// component permitted to change graph topology, and the realtime package's
// receive path is the only other writer.
//
// # Core Types
//
//   - Node: a single mind-map element (root, branch, or content leaf)
//   - Edge: a directed parent→child relation with a deterministic id
//   - Data / Patch: the variant payload keyed by NodeType, and its
//     partial-update form
//   - Store: the mutex-guarded collection with referential integrity
//   - TypeRegistry: per-node-type required payload fields
//
// # Invariants
//
// The store enforces the root-singleton invariant on insert (one root,
// fixed well-known id, no incoming edges) and rejects duplicate or
// dangling edges loudly rather than corrupt the graph. The tree shape
// (exactly one incoming edge per non-root node) is the mutator's
// responsibility; the store can represent more general graphs.
//
// # Concurrency
//
// All Store methods are safe for concurrent use. Reads return deep copies,
// so a caller can never mutate the store's state except through its write
// primitives. This reproduces, behind one mutex boundary, the
// run-to-completion serialization the original single-threaded design
// relied on.
package graph
