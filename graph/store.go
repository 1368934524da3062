package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Store holds the current node and edge collections and exposes read/write
// primitives with no business logic beyond referential integrity. It never
// initiates creation and performs no I/O; the editor.Mutator and the
// realtime receive path are its only writers.
//
// The original single-threaded design serialized all mutation on one event
// loop; Store reproduces that guarantee behind a single mutex boundary, so
// it is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	edges   []Edge
	edgeIdx map[string]struct{} // derived edge id → present
	out     map[string][]string // source → ordered child ids (edge-insertion order)
	in      map[string]string   // target → source
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		nodes:   make(map[string]*Node),
		edgeIdx: make(map[string]struct{}),
		out:     make(map[string][]string),
		in:      make(map[string]string),
	}
}

// Get returns a deep copy of the node with the given id.
// Returns ErrNotFound if the id is absent.
func (s *Store) Get(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return n.Clone(), nil
}

// Has reports whether a node with the given id exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// Upsert inserts or replaces a node by id in O(1). The store keeps its own
// copy, so later mutation of the argument does not leak in.
//
// The root-singleton invariant is enforced on insert: a second node of
// type root, or a root under a foreign id, is rejected with ErrRootConflict.
func (s *Store) Upsert(n *Node) error {
	if err := n.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if n.Type == TypeRoot {
		if existing, ok := s.nodes[RootID]; ok && existing.ID != n.ID {
			return fmt.Errorf("%w: root already present", ErrRootConflict)
		}
	}
	s.nodes[n.ID] = n.Clone()
	return nil
}

// Remove deletes a single node. The caller is responsible for the node's
// edges; most callers want RemoveCascade instead.
// Returns ErrNotFound if the id is absent.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(s.nodes, id)
	return nil
}

// RemoveCascade deletes the node, every edge touching it, and recursively
// all descendant nodes and edges, leaving no orphans. It returns the ids of
// all removed nodes, the requested id first, so callers can reconcile the
// full cascade in one round trip.
// Returns ErrNotFound if the id is absent.
func (s *Store) RemoveCascade(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	// Depth-first collection of the subtree rooted at id.
	removed := []string{id}
	for i := 0; i < len(removed); i++ {
		removed = append(removed, s.out[removed[i]]...)
	}

	doomed := make(map[string]struct{}, len(removed))
	for _, rid := range removed {
		doomed[rid] = struct{}{}
	}

	for _, rid := range removed {
		delete(s.nodes, rid)
		delete(s.out, rid)
		delete(s.in, rid)
	}

	kept := s.edges[:0]
	for _, e := range s.edges {
		_, srcDoomed := doomed[e.Source]
		_, dstDoomed := doomed[e.Target]
		if srcDoomed || dstDoomed {
			delete(s.edgeIdx, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept

	// Drop removed ids from the child lists of surviving nodes (in
	// particular the former parent of id).
	for src := range s.out {
		s.out[src] = removeDoomed(s.out[src], doomed)
	}

	return removed, nil
}

// AddEdge inserts the directed edge source→target.
// Fails with ErrDuplicateEdge if an edge with the same derived id exists,
// ErrDanglingReference if either endpoint is absent, and ErrRootConflict
// if the target is the root node.
func (s *Store) AddEdge(source, target string) (Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := NewEdge(source, target)
	if _, ok := s.edgeIdx[e.ID]; ok {
		return Edge{}, fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
	}
	if _, ok := s.nodes[source]; !ok {
		return Edge{}, fmt.Errorf("%w: source %q", ErrDanglingReference, source)
	}
	if _, ok := s.nodes[target]; !ok {
		return Edge{}, fmt.Errorf("%w: target %q", ErrDanglingReference, target)
	}
	if target == RootID {
		return Edge{}, fmt.Errorf("%w: root cannot have an incoming edge", ErrRootConflict)
	}

	s.edges = append(s.edges, e)
	s.edgeIdx[e.ID] = struct{}{}
	s.out[source] = append(s.out[source], target)
	s.in[target] = source
	return e, nil
}

// HasEdge reports whether the edge source→target exists.
func (s *Store) HasEdge(source, target string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.edgeIdx[EdgeID(source, target)]
	return ok
}

// Parent returns the source of the node's incoming edge, if any.
func (s *Store) Parent(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.in[id]
	return src, ok
}

// Children returns copies of the nodes reachable via one outgoing edge
// from id, in edge-insertion order. The order is stable because layout
// depends on child index.
// Returns ErrNotFound if the id is absent.
func (s *Store) Children(id string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	children := make([]*Node, 0, len(s.out[id]))
	for _, cid := range s.out[id] {
		if c, ok := s.nodes[cid]; ok {
			children = append(children, c.Clone())
		}
	}
	return children, nil
}

// ChildCount returns the number of direct children of id, zero if the id
// is absent.
func (s *Store) ChildCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.out[id])
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Nodes returns copies of all nodes, sorted by id for determinism.
func (s *Store) Nodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n.Clone())
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns a copy of the edge set in insertion order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Edge(nil), s.edges...)
}

// Replace swaps the entire contents of the store for the given node set,
// rebuilding edges from each node's cached ParentID. It is the bulk-load
// path: on initial hydration the backend's answer replaces whatever the
// store held. Nodes whose parent is absent keep their node but get no
// edge; the caller decides whether that is acceptable.
func (s *Store) Replace(nodes []*Node) error {
	for _, n := range nodes {
		if err := n.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*Node, len(nodes))
	s.edges = nil
	s.edgeIdx = make(map[string]struct{})
	s.out = make(map[string][]string)
	s.in = make(map[string]string)

	for _, n := range nodes {
		s.nodes[n.ID] = n.Clone()
	}
	for _, n := range nodes {
		if n.ParentID == "" || n.ID == RootID {
			continue
		}
		if _, ok := s.nodes[n.ParentID]; !ok {
			continue
		}
		e := NewEdge(n.ParentID, n.ID)
		if _, dup := s.edgeIdx[e.ID]; dup {
			continue
		}
		s.edges = append(s.edges, e)
		s.edgeIdx[e.ID] = struct{}{}
		s.out[n.ParentID] = append(s.out[n.ParentID], n.ID)
		s.in[n.ID] = n.ParentID
	}
	return nil
}

func removeDoomed(ids []string, doomed map[string]struct{}) []string {
	kept := ids[:0]
	for _, v := range ids {
		if _, ok := doomed[v]; !ok {
			kept = append(kept, v)
		}
	}
	return kept
}
