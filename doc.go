// Package mindgraph provides a collaborative mind-map graph editor core.
//
// The package wires five cooperating parts behind one Editor facade:
//
//   - Store: a mutex-guarded node/edge store enforcing the graph
//     invariants (single root, no dangling edges, cascade delete)
//   - Mutator: the only inbound mutation API (create, edit, delete,
//     move, toggle-expand) with payload validation and child layout
//   - Persistence Bridge: debounced, retrying writes to an HTTP backend;
//     structural changes flush immediately, cosmetic ones coalesce
//   - Realtime Sync Adapter: pub/sub broadcast and reconciliation so
//     concurrent clients converge, with automatic reconnect
//   - Visibility Projector: the expanded-subgraph projection a renderer
//     draws
//
// # Optimistic Editing
//
// Every mutation applies to the local store before the method returns;
// a read after a successful call always sees the change. Backend writes
// and broadcasts happen asynchronously, and their health is reported on
// a status channel rather than as errors: a failed save surfaces as an
// "unsaved" indicator, never as a rolled-back edit.
//
// # Basic Usage
//
//	ed, err := mindgraph.New(
//	    mindgraph.WithBackendURL("http://localhost:5001/api"),
//	    mindgraph.WithChannel(channel),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ed.Close(context.Background())
//
//	if err := ed.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := ed.Load(context.Background()); err != nil {
//	    log.Printf("starting from seed graph: %v", err)
//	}
//
//	node, err := ed.CreateChild(graph.RootID, "tasks", graph.Data{
//	    Label: "Sprint 12",
//	    Tasks: []graph.TaskItem{{Text: "write the plan"}},
//	})
//
// # Error Handling
//
// Mutation errors are structured *Error values carrying the operation
// and a kind (KindNotFound, KindValidation, KindConflict, ...) and
// unwrap to the graph package's sentinel errors, so both errors.As on
// *Error and errors.Is on graph.ErrNotFound work.
//
// # Subpackages
//
// The graph, editor, view, persist, realtime, snapshot, presence and
// config packages are usable on their own; this package only assembles
// them.
package mindgraph
