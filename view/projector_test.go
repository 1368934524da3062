package view

import (
	"testing"

	"github.com/mindflow-ai/mindgraph/graph"
)

// testStore builds: root -> p1 -> (s1, s2), root -> p2 -> c1
func testStore(t *testing.T) *graph.Store {
	t.Helper()

	s := graph.NewStore()
	if err := s.Upsert(graph.NewRootNode("Dashboard")); err != nil {
		t.Fatal(err)
	}
	add := func(parent, id string, nt graph.NodeType) {
		n := graph.NewNode(nt).WithID(id).WithData(graph.Data{
			Label: id, Status: "ok", Comment: "c", Tasks: []graph.TaskItem{},
		}).WithParent(parent)
		if err := s.Upsert(n); err != nil {
			t.Fatal(err)
		}
		if _, err := s.AddEdge(parent, id); err != nil {
			t.Fatal(err)
		}
	}
	add("root", "p1", graph.NodeTypeProject)
	add("p1", "s1", graph.NodeTypeStatus)
	add("p1", "s2", graph.NodeTypeComment)
	add("root", "p2", graph.NodeTypeProject)
	add("p2", "c1", graph.NodeTypeTasks)
	return s
}

func collapse(t *testing.T, s *graph.Store, id string) {
	t.Helper()
	n, err := s.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	n.Expanded = false
	if err := s.Upsert(n); err != nil {
		t.Fatal(err)
	}
}

func TestProject_AllExpanded(t *testing.T) {
	s := testStore(t)
	p := Project(s)

	if len(p.Nodes) != 6 {
		t.Fatalf("expected 6 visible nodes, got %d", len(p.Nodes))
	}
	if len(p.Edges) != 5 {
		t.Fatalf("expected 5 visible edges, got %d", len(p.Edges))
	}
	if p.Nodes[0].ID != graph.RootID {
		t.Errorf("expected DFS to start at root, got %q", p.Nodes[0].ID)
	}
}

func TestProject_CollapsedRoot(t *testing.T) {
	s := testStore(t)
	collapse(t, s, graph.RootID)

	p := Project(s)
	if len(p.Nodes) != 1 || p.Nodes[0].ID != graph.RootID {
		t.Fatalf("expected only the root to be visible, got %d nodes", len(p.Nodes))
	}
	if len(p.Edges) != 0 {
		t.Errorf("expected no visible edges, got %d", len(p.Edges))
	}
}

func TestProject_CollapsedBranchHidesSubtree(t *testing.T) {
	s := testStore(t)
	collapse(t, s, "p1")

	p := Project(s)
	if p.Contains("s1") || p.Contains("s2") {
		t.Error("expected collapsed branch to hide its children")
	}
	if !p.Contains("p1") {
		t.Error("expected the collapsed node itself to stay visible")
	}
	if !p.Contains("c1") {
		t.Error("expected sibling subtree to stay visible")
	}

	// Every visible edge has both endpoints visible.
	for _, e := range p.Edges {
		if !p.Contains(e.Source) || !p.Contains(e.Target) {
			t.Errorf("edge %s has an invisible endpoint", e.ID)
		}
	}
}

func TestProject_DescendantFlagsIgnoredWhileAncestorCollapsed(t *testing.T) {
	s := testStore(t)
	// s1 stays expanded, but its ancestor p1 is collapsed.
	collapse(t, s, "p1")

	p := Project(s)
	if p.Contains("s1") {
		t.Error("descendant must be hidden regardless of its own expanded flag")
	}
}

func TestProject_EmptyStore(t *testing.T) {
	p := Project(graph.NewStore())
	if len(p.Nodes) != 0 || len(p.Edges) != 0 {
		t.Error("expected empty projection for empty store")
	}
}
