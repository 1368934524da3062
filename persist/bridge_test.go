package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/status"
)

// fakeBackend records calls and can be told to fail a number of times.
type fakeBackend struct {
	mu       sync.Mutex
	saves    []*graph.Node
	deletes  []string
	failNext int
}

func (f *fakeBackend) SaveNode(ctx context.Context, node *graph.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("boom")
	}
	f.saves = append(f.saves, node.Clone())
	return nil
}

func (f *fakeBackend) DeleteNode(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("boom")
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeBackend) LoadNodes(ctx context.Context) ([]*graph.Node, error) {
	return nil, nil
}

func (f *fakeBackend) savedNodes() []*graph.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*graph.Node(nil), f.saves...)
}

func (f *fakeBackend) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func newTestBridge(t *testing.T, debounce time.Duration) (*Bridge, *graph.Store, *fakeBackend) {
	t.Helper()

	store := graph.NewStore()
	require.NoError(t, store.Upsert(graph.NewRootNode("Dashboard")))

	backend := &fakeBackend{}
	bridge := NewBridge(store, backend, Options{
		Debounce:     debounce,
		RetryBackoff: time.Millisecond,
	})
	t.Cleanup(bridge.Close)
	return bridge, store, backend
}

func addNode(t *testing.T, store *graph.Store, id string) *graph.Node {
	t.Helper()
	n := graph.NewNode(graph.NodeTypeProject).
		WithID(id).
		WithData(graph.Data{Label: id}).
		WithParent(graph.RootID)
	require.NoError(t, store.Upsert(n))
	_, err := store.AddEdge(graph.RootID, id)
	require.NoError(t, err)
	return n
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBridge_CreateFlushesImmediately(t *testing.T) {
	// A long debounce proves creation does not wait on the timer.
	bridge, store, backend := newTestBridge(t, time.Hour)
	node := addNode(t, store, "n1")

	bridge.NodeCreated(node)

	waitFor(t, func() bool { return len(backend.savedNodes()) == 1 },
		"structural create never reached the backend")
	assert.Equal(t, "n1", backend.savedNodes()[0].ID)
}

func TestBridge_DebounceCoalesces(t *testing.T) {
	bridge, store, backend := newTestBridge(t, 50*time.Millisecond)
	node := addNode(t, store, "n1")

	// Ten rapid moves within the debounce window.
	for i := 1; i <= 10; i++ {
		node.Position = graph.Position{X: float64(i), Y: float64(i)}
		require.NoError(t, store.Upsert(node))
		bridge.NodeMoved(node)
	}

	waitFor(t, func() bool { return len(backend.savedNodes()) > 0 },
		"debounced flush never happened")

	// Exactly one flush, carrying the tenth (final) position.
	saves := backend.savedNodes()
	require.Len(t, saves, 1)
	assert.Equal(t, 10.0, saves[0].Position.X)
	assert.Equal(t, 10.0, saves[0].Position.Y)
}

func TestBridge_FlushReadsCurrentState(t *testing.T) {
	bridge, store, backend := newTestBridge(t, 30*time.Millisecond)
	node := addNode(t, store, "n1")

	bridge.NodeUpdated(node)

	// A direct store change after the notification but before the window
	// elapses must win: flushes read the store, not a captured snapshot.
	node.Data.Label = "latest"
	require.NoError(t, store.Upsert(node))

	waitFor(t, func() bool { return len(backend.savedNodes()) == 1 },
		"debounced flush never happened")
	assert.Equal(t, "latest", backend.savedNodes()[0].Data.Label)
}

func TestBridge_RetryThenSucceed(t *testing.T) {
	bridge, store, backend := newTestBridge(t, time.Hour)
	node := addNode(t, store, "n1")
	backend.failNext = 2 // budget is 3 attempts

	bridge.NodeCreated(node)

	waitFor(t, func() bool { return len(backend.savedNodes()) == 1 },
		"retried write never succeeded")
}

func TestBridge_RetryBudgetExhaustedReportsUnsaved(t *testing.T) {
	bridge, store, backend := newTestBridge(t, time.Hour)
	node := addNode(t, store, "n1")
	backend.failNext = DefaultMaxRetries

	bridge.NodeCreated(node)

	var unsaved bool
	deadline := time.After(2 * time.Second)
	for !unsaved {
		select {
		case s := <-bridge.Status():
			if s.State == status.StateUnsaved {
				unsaved = true
				assert.Equal(t, "n1", s.Details["node_id"])
			}
		case <-deadline:
			t.Fatal("no unsaved report after retry budget exhausted")
		}
	}
	// The local store keeps the node: no rollback.
	assert.True(t, store.Has("n1"))
}

func TestBridge_DeleteCascadeOneRequestPerID(t *testing.T) {
	bridge, _, backend := newTestBridge(t, time.Hour)

	bridge.NodeDeleted([]string{"a", "b", "c"})

	waitFor(t, func() bool { return len(backend.deletedIDs()) == 3 },
		"cascade deletes never reached the backend")
	assert.Equal(t, []string{"a", "b", "c"}, backend.deletedIDs())
}

func TestBridge_LateFlushForDeletedNodeDiscarded(t *testing.T) {
	bridge, store, backend := newTestBridge(t, 30*time.Millisecond)
	node := addNode(t, store, "n1")

	bridge.NodeMoved(node)

	// The node vanishes locally before the window elapses.
	_, err := store.RemoveCascade("n1")
	require.NoError(t, err)
	bridge.NodeDeleted([]string{"n1"})

	waitFor(t, func() bool { return len(backend.deletedIDs()) == 1 },
		"delete never reached the backend")
	time.Sleep(60 * time.Millisecond) // let the debounce window elapse

	assert.Empty(t, backend.savedNodes(), "late flush for a deleted node must be a no-op")
}

func TestBridge_SaveAll(t *testing.T) {
	bridge, store, backend := newTestBridge(t, time.Hour)
	addNode(t, store, "n1")
	addNode(t, store, "n2")

	require.NoError(t, bridge.SaveAll(context.Background()))
	assert.Len(t, backend.savedNodes(), 3) // root + two nodes
}

func TestBridge_LoadReplacesStore(t *testing.T) {
	store := graph.NewStore()
	require.NoError(t, store.Upsert(graph.NewRootNode("Seed")))

	backend := &loadBackend{nodes: []*graph.Node{
		graph.NewRootNode("Loaded"),
		graph.NewNode(graph.NodeTypeProject).WithID("p1").
			WithData(graph.Data{Label: "P1"}).WithParent(graph.RootID),
	}}
	bridge := NewBridge(store, backend, Options{})
	defer bridge.Close()

	n, err := bridge.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	root, err := store.Get(graph.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Loaded", root.Data.Label)
	assert.True(t, store.HasEdge(graph.RootID, "p1"))
}

func TestBridge_LoadEmptyKeepsSeed(t *testing.T) {
	store := graph.NewStore()
	require.NoError(t, store.Upsert(graph.NewRootNode("Seed")))

	bridge := NewBridge(store, &loadBackend{}, Options{})
	defer bridge.Close()

	n, err := bridge.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	root, err := store.Get(graph.RootID)
	require.NoError(t, err)
	assert.Equal(t, "Seed", root.Data.Label)
}

// loadBackend serves a fixed node set.
type loadBackend struct {
	fakeBackend
	nodes []*graph.Node
}

func (l *loadBackend) LoadNodes(ctx context.Context) ([]*graph.Node, error) {
	return l.nodes, nil
}

func TestBridge_CloseWhileTimerFires(t *testing.T) {
	// The debounce timer may fire at the same moment Close runs; the
	// flush dispatch must be visible to Close's wait, never added after
	// it. Run enough rounds for the race detector to see an overlap.
	for i := 0; i < 50; i++ {
		store := graph.NewStore()
		require.NoError(t, store.Upsert(graph.NewRootNode("Dashboard")))
		node := addNode(t, store, "n1")

		backend := &fakeBackend{}
		bridge := NewBridge(store, backend, Options{
			Debounce:     time.Millisecond,
			RetryBackoff: time.Millisecond,
		})

		bridge.NodeMoved(node)
		time.Sleep(time.Millisecond)
		bridge.Close()

		require.Len(t, backend.savedNodes(), 1, "the pending move must be flushed exactly once")
	}
}
