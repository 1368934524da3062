package editor

import (
	"errors"
	"testing"

	"github.com/mindflow-ai/mindgraph/graph"
)

// recordingListener captures mutation notifications for assertions.
type recordingListener struct {
	created []string
	updated []string
	deleted [][]string
	moved   []string
}

func (r *recordingListener) NodeCreated(n *graph.Node) { r.created = append(r.created, n.ID) }
func (r *recordingListener) NodeUpdated(n *graph.Node) { r.updated = append(r.updated, n.ID) }
func (r *recordingListener) NodeDeleted(ids []string)  { r.deleted = append(r.deleted, ids) }
func (r *recordingListener) NodeMoved(n *graph.Node)   { r.moved = append(r.moved, n.ID) }

func newTestMutator(t *testing.T) (*Mutator, *graph.Store, *recordingListener) {
	t.Helper()

	store := graph.NewStore()
	if err := store.Upsert(graph.NewRootNode("Dashboard")); err != nil {
		t.Fatal(err)
	}
	m := New(store, nil, nil, nil)
	rec := &recordingListener{}
	m.AddListener(rec)
	return m, store, rec
}

func TestMutator_CreateChild(t *testing.T) {
	m, store, rec := newTestMutator(t)

	node, err := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if node.ParentID != graph.RootID {
		t.Errorf("expected parent %q, got %q", graph.RootID, node.ParentID)
	}
	if node.Type != graph.TypeBranch {
		t.Errorf("expected project child to be a branch, got %q", node.Type)
	}
	if !store.HasEdge(graph.RootID, node.ID) {
		t.Error("expected edge from parent to child")
	}
	if len(rec.created) != 1 || rec.created[0] != node.ID {
		t.Errorf("expected one created notification, got %v", rec.created)
	}

	root, _ := store.Get(graph.RootID)
	if node.Position.Y <= root.Position.Y {
		t.Errorf("expected child strictly below parent, got %v", node.Position.Y)
	}
}

func TestMutator_CreateChild_SiblingFanOut(t *testing.T) {
	m, _, _ := newTestMutator(t)

	first, err := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Beta"})
	if err != nil {
		t.Fatal(err)
	}

	if first.Position.X == second.Position.X {
		t.Errorf("successive siblings share X %v", first.Position.X)
	}
	if first.ID == second.ID {
		t.Error("siblings share an id")
	}
}

func TestMutator_CreateChild_ParentMissing(t *testing.T) {
	m, _, _ := newTestMutator(t)

	_, err := m.CreateChild("ghost", graph.NodeTypeProject, graph.Data{Label: "X"})
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMutator_CreateChild_InvalidPayload(t *testing.T) {
	m, store, rec := newTestMutator(t)

	_, err := m.CreateChild(graph.RootID, graph.NodeTypeStatus, graph.Data{Label: "S"})
	if !errors.Is(err, graph.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	missing := graph.MissingFields(err)
	if len(missing) != 1 || missing[0] != "status" {
		t.Errorf("expected missing-field list [status], got %v", missing)
	}
	if store.Len() != 1 {
		t.Error("rejected create must not touch the store")
	}
	if len(rec.created) != 0 {
		t.Error("rejected create must not notify listeners")
	}
}

func TestMutator_EditNode_Synchronous(t *testing.T) {
	m, store, rec := newTestMutator(t)
	node, err := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	label := "Acme Corp"
	if _, err := m.EditNode(node.ID, graph.Patch{Label: &label}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	// Read-your-write, before any network round-trip resolves.
	got, err := store.Get(node.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Data.Label != "Acme Corp" {
		t.Errorf("expected synchronous visibility, got %q", got.Data.Label)
	}
	if len(rec.updated) != 1 {
		t.Errorf("expected one updated notification, got %v", rec.updated)
	}
}

func TestMutator_EditNode_NotFound(t *testing.T) {
	m, _, _ := newTestMutator(t)
	_, err := m.EditNode("ghost", graph.Patch{})
	if !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMutator_DeleteNode_Cascade(t *testing.T) {
	m, store, rec := newTestMutator(t)
	project, _ := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})
	tasks, _ := m.CreateChild(project.ID, graph.NodeTypeTasks, graph.Data{Label: "T", Tasks: []graph.TaskItem{}})
	keep, _ := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Beta"})

	removed, err := m.DeleteNode(project.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(removed) != 2 || removed[0] != project.ID {
		t.Errorf("expected cascade [%s %s], got %v", project.ID, tasks.ID, removed)
	}
	if store.Has(project.ID) || store.Has(tasks.ID) {
		t.Error("expected subtree to be removed")
	}
	if !store.Has(keep.ID) {
		t.Error("unrelated node was removed")
	}
	if len(rec.deleted) != 1 || len(rec.deleted[0]) != 2 {
		t.Errorf("expected one delete notification carrying the full cascade, got %v", rec.deleted)
	}
}

func TestMutator_DeleteNode_RootProtected(t *testing.T) {
	m, _, _ := newTestMutator(t)
	_, err := m.DeleteNode(graph.RootID)
	if !errors.Is(err, graph.ErrRootConflict) {
		t.Errorf("expected ErrRootConflict, got %v", err)
	}
}

func TestMutator_ToggleExpand_NoNotification(t *testing.T) {
	m, store, rec := newTestMutator(t)
	node, _ := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})

	toggled, err := m.ToggleExpand(node.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Expanded {
		t.Error("expected expanded to flip to false")
	}

	got, _ := store.Get(node.ID)
	if got.Expanded {
		t.Error("expected flip to be stored")
	}

	// Ephemeral UI state, not durable data: no persistence or sync fan-out.
	if len(rec.updated) != 0 || len(rec.moved) != 0 {
		t.Errorf("toggle must not notify listeners, got updated=%v moved=%v", rec.updated, rec.moved)
	}
}

func TestMutator_MoveNode(t *testing.T) {
	m, store, rec := newTestMutator(t)
	node, _ := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})

	if _, err := m.MoveNode(node.ID, graph.Position{X: 7, Y: 11}); err != nil {
		t.Fatalf("move: %v", err)
	}

	got, _ := store.Get(node.ID)
	if got.Position.X != 7 || got.Position.Y != 11 {
		t.Errorf("expected position update, got %+v", got.Position)
	}
	if len(rec.moved) != 1 {
		t.Errorf("expected one moved notification, got %v", rec.moved)
	}
	if len(rec.updated) != 0 {
		t.Error("move must use the moved path, not updated")
	}
}

// End-to-end scenario: create two siblings under the root, then delete the
// first; only the root and the second sibling survive.
func TestMutator_CreateCreateDelete(t *testing.T) {
	m, store, _ := newTestMutator(t)

	root, _ := store.Get(graph.RootID)
	x, err := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if x.Position.Y != root.Position.Y+VerticalSpacing {
		t.Errorf("expected first child at parent Y + spacing, got %v", x.Position.Y)
	}
	if x.Position.X != root.Position.X {
		t.Errorf("expected first child at parent X, got %v", x.Position.X)
	}

	y, err := m.CreateChild(graph.RootID, graph.NodeTypeProject, graph.Data{Label: "Beta"})
	if err != nil {
		t.Fatal(err)
	}
	if y.Position.X == x.Position.X {
		t.Error("expected second sibling at a different X")
	}

	if _, err := m.DeleteNode(x.ID); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected root and one sibling to survive, got %d nodes", store.Len())
	}
	if !store.Has(y.ID) {
		t.Error("surviving sibling is gone")
	}
}
