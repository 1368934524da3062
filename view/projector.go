// Package view derives the currently-rendered subset of the graph from
// the full store and per-node expand/collapse state.
//
// The projection is a pure function, recomputed on every call; no
// incremental diffing is attempted. A node is visible iff every ancestor
// up to the root is expanded; an edge is visible iff both endpoints are.
// A collapsed node therefore hides its entire subtree regardless of the
// descendants' own expanded flags.
package view

import "github.com/mindflow-ai/mindgraph/graph"

// Projection is the renderable subset of the graph. Nodes appear in
// depth-first order from the root, children in edge-insertion order, so a
// renderer can draw the slice as-is.
type Projection struct {
	Nodes []*graph.Node
	Edges []graph.Edge
}

// Contains reports whether the projection includes the node id.
func (p Projection) Contains(id string) bool {
	for _, n := range p.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// Project computes the visible node/edge subset by depth-first traversal
// starting at the root. An empty store projects to an empty Projection.
func Project(s *graph.Store) Projection {
	var p Projection

	root, err := s.Get(graph.RootID)
	if err != nil {
		return p
	}

	var dfs func(n *graph.Node)
	dfs = func(n *graph.Node) {
		p.Nodes = append(p.Nodes, n)
		if !n.Expanded {
			return
		}
		children, err := s.Children(n.ID)
		if err != nil {
			return
		}
		for _, child := range children {
			p.Edges = append(p.Edges, graph.NewEdge(n.ID, child.ID))
			dfs(child)
		}
	}
	dfs(root)
	return p
}
