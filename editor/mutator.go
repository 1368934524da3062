// Package editor implements the graph mutator: the only component
// permitted to change graph topology.
//
// Every operation applies synchronously to the local store, so the
// interaction surface updates instantly and optimistically; listeners
// (the persistence bridge, the realtime adapter) are notified afterwards
// and pursue durability and convergence asynchronously. A failed backend
// write never rolls the local mutation back; the system favors
// availability, and the save-state indicator is the recovery signal.
package editor

import (
	"fmt"
	"log/slog"

	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/graph/id"
)

// Listener observes committed mutations. Implementations must not block:
// they are invoked synchronously on the mutating goroutine, after the
// store has been updated, in registration order.
type Listener interface {
	// NodeCreated reports a structural creation (immediate-persistence path).
	NodeCreated(n *graph.Node)

	// NodeUpdated reports a payload edit (debounced-persistence path).
	NodeUpdated(n *graph.Node)

	// NodeDeleted reports a cascading delete. The slice carries every
	// removed id, the requested node first, so remote stores reconcile
	// the whole cascade in one round trip.
	NodeDeleted(ids []string)

	// NodeMoved reports a position-only change (debounced-persistence
	// path, never broadcast).
	NodeMoved(n *graph.Node)
}

// Mutator coordinates store mutation, layout for new nodes, and listener
// fan-out. It is safe for concurrent use; the store serializes access.
type Mutator struct {
	store     *graph.Store
	registry  graph.TypeRegistry
	ids       id.Generator
	logger    *slog.Logger
	listeners []Listener
}

// New creates a Mutator over the given store. A nil registry defaults to
// the canonical node-type set; a nil generator defaults to the
// timestamp-plus-random scheme; a nil logger defaults to slog.Default().
func New(store *graph.Store, registry graph.TypeRegistry, gen id.Generator, logger *slog.Logger) *Mutator {
	if registry == nil {
		registry = graph.NewDefaultTypeRegistry()
	}
	if gen == nil {
		gen = id.NewGenerator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		store:    store,
		registry: registry,
		ids:      gen,
		logger:   logger,
	}
}

// AddListener registers a mutation observer. Not safe to call
// concurrently with mutations; wire listeners up before editing starts.
func (m *Mutator) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// CreateChild creates a new node of the given semantic subtype under
// parentID, with a deterministic fan-out position derived from the
// sibling count, and links it with one edge.
//
// Returns graph.ErrNotFound if the parent is absent and an error matching
// graph.ErrInvalidPayload (carrying the missing-field list) if the payload
// does not satisfy the node type's required fields.
func (m *Mutator) CreateChild(parentID string, nodeType graph.NodeType, data graph.Data) (*graph.Node, error) {
	parent, err := m.store.Get(parentID)
	if err != nil {
		return nil, fmt.Errorf("create child of %q: %w", parentID, err)
	}
	if _, err := m.registry.ValidateData(nodeType, data); err != nil {
		return nil, err
	}

	siblings := m.store.ChildCount(parentID)
	node := graph.NewNode(nodeType).
		WithID(m.ids.NewID()).
		WithPosition(ChildPosition(parent.Position, siblings)).
		WithData(data).
		WithParent(parentID)

	if err := m.store.Upsert(node); err != nil {
		return nil, fmt.Errorf("create child of %q: %w", parentID, err)
	}
	if _, err := m.store.AddEdge(parentID, node.ID); err != nil {
		// Keep the store consistent: a node without its edge is an orphan.
		_ = m.store.Remove(node.ID)
		return nil, fmt.Errorf("create child of %q: %w", parentID, err)
	}

	m.logger.Debug("node created",
		"id", node.ID, "parent", parentID, "nodeType", nodeType, "siblings", siblings)
	for _, l := range m.listeners {
		l.NodeCreated(node.Clone())
	}
	return node, nil
}

// EditNode merges the patch into the node's payload and returns the
// updated node. The local store reflects the edit synchronously, before
// any network round-trip completes.
// Returns graph.ErrNotFound if the id is absent.
func (m *Mutator) EditNode(nodeID string, patch graph.Patch) (*graph.Node, error) {
	node, err := m.store.Get(nodeID)
	if err != nil {
		return nil, fmt.Errorf("edit node: %w", err)
	}

	node.Data.Apply(patch)
	if err := m.store.Upsert(node); err != nil {
		return nil, fmt.Errorf("edit node %q: %w", nodeID, err)
	}

	m.logger.Debug("node edited", "id", nodeID)
	for _, l := range m.listeners {
		l.NodeUpdated(node.Clone())
	}
	return node, nil
}

// DeleteNode removes the node and its whole subtree, per the cascade
// invariant, and returns all removed ids (the requested node first).
// The root cannot be deleted.
func (m *Mutator) DeleteNode(nodeID string) ([]string, error) {
	if nodeID == graph.RootID {
		return nil, fmt.Errorf("delete node: %w: root cannot be deleted", graph.ErrRootConflict)
	}

	removed, err := m.store.RemoveCascade(nodeID)
	if err != nil {
		return nil, fmt.Errorf("delete node: %w", err)
	}

	m.logger.Debug("node deleted", "id", nodeID, "cascade", len(removed))
	for _, l := range m.listeners {
		l.NodeDeleted(append([]string(nil), removed...))
	}
	return removed, nil
}

// ToggleExpand flips the node's expanded flag and returns the updated
// node. Expand/collapse is ephemeral UI state: it is neither persisted
// nor broadcast.
// Returns graph.ErrNotFound if the id is absent.
func (m *Mutator) ToggleExpand(nodeID string) (*graph.Node, error) {
	node, err := m.store.Get(nodeID)
	if err != nil {
		return nil, fmt.Errorf("toggle expand: %w", err)
	}

	node.Expanded = !node.Expanded
	if err := m.store.Upsert(node); err != nil {
		return nil, fmt.Errorf("toggle expand %q: %w", nodeID, err)
	}
	return node, nil
}

// MoveNode updates the node's position only, feeding the debounced
// persistence path rather than an immediate flush.
// Returns graph.ErrNotFound if the id is absent.
func (m *Mutator) MoveNode(nodeID string, pos graph.Position) (*graph.Node, error) {
	node, err := m.store.Get(nodeID)
	if err != nil {
		return nil, fmt.Errorf("move node: %w", err)
	}

	node.Position = pos
	if err := m.store.Upsert(node); err != nil {
		return nil, fmt.Errorf("move node %q: %w", nodeID, err)
	}

	for _, l := range m.listeners {
		l.NodeMoved(node.Clone())
	}
	return node, nil
}
