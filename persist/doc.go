// Package persist bridges local graph mutations to the durable backend.
//
// The bridge is the only component allowed to call the backend's
// node-write endpoint. Structural changes (create, delete) flush
// immediately, one request per affected node, so persisted topology never
// depends on a timer. Cosmetic changes (moves, rapid edits) coalesce in a
// debounce window (default 500ms, restarted on every new mutation) and
// flush as a single batch once the window elapses quietly, last-write-wins
// per node.
//
// Flushes and retries always re-read the node's then-current state from
// the store, never from a captured snapshot, so a retry cannot clobber a
// newer local edit and a write for a locally-deleted node degrades to a
// discarded no-op.
//
// Failures surface as save-state reports on the Status channel, not as
// errors: the local store is retained, never rolled back, and the
// interaction surface shows an "unsaved changes" indicator instead of
// undoing the user's work.
package persist
