package mindgraph

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mindflow-ai/mindgraph/config"
	"github.com/mindflow-ai/mindgraph/editor"
	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/persist"
	"github.com/mindflow-ai/mindgraph/realtime"
	"github.com/mindflow-ai/mindgraph/snapshot"
	"github.com/mindflow-ai/mindgraph/status"
	"github.com/mindflow-ai/mindgraph/view"
)

// Editor is the facade over the whole mind-map core: a mutex-guarded
// node/edge store, the mutator that enforces layout and validation, the
// debounced persistence bridge, the realtime sync adapter, and the
// visibility projector.
//
// Every mutation applies to the local store synchronously: a read after
// a successful call always sees the change. Persistence and broadcast
// happen in the background; their health arrives on Status, never as a
// return value.
type Editor struct {
	store   *graph.Store
	mutator *editor.Mutator

	bridge  *persist.Bridge
	adapter *realtime.Adapter
	snap    *snapshot.Store

	logger *slog.Logger

	statusC chan status.Status
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New assembles an editor from the given options. Without a backend the
// editor is purely in-memory; without a channel it runs single-player.
// The graph starts seeded with a single root node; call Load to hydrate
// from the backend instead.
func New(opts ...Option) (*Editor, error) {
	c := &editorConfig{}
	for _, opt := range opts {
		opt(c)
	}
	applyFileConfig(c)

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.rootLabel == "" {
		c.rootLabel = "Main Idea"
	}

	store := graph.NewStore()
	if err := store.Upsert(graph.NewRootNode(c.rootLabel)); err != nil {
		return nil, NewInternalError("New", err)
	}

	e := &Editor{
		store:   store,
		mutator: editor.New(store, c.registry, c.ids, c.logger),
		snap:    c.snap,
		logger:  c.logger,
		statusC: make(chan status.Status, 32),
	}

	backend := c.backend
	if backend == nil && c.backendURL != "" {
		hb, err := persist.NewHTTPBackend(persist.HTTPBackendOptions{
			BaseURL: c.backendURL,
			Timeout: c.backendTimeout,
		})
		if err != nil {
			return nil, NewConfigurationError("New", err)
		}
		backend = hb
	}
	if backend != nil {
		e.bridge = persist.NewBridge(store, backend, persist.Options{
			Debounce:     c.debounce,
			MaxRetries:   c.maxRetries,
			RetryBackoff: c.retryBackoff,
			Logger:       c.logger,
			Tracer:       c.tracer,
			Meter:        c.meter,
		})
		e.mutator.AddListener(e.bridge)
	}

	if c.channel != nil {
		e.adapter = realtime.NewAdapter(store, c.channel, realtime.AdapterOptions{
			ClientID:        c.clientID,
			ReconnectWait:   c.reconnectWait,
			ReloadThreshold: c.reloadThreshold,
			Logger:          c.logger,
			Tracer:          c.tracer,
			Meter:           c.meter,
		})
		e.mutator.AddListener(e.adapter)
	}

	return e, nil
}

// applyFileConfig fills options left unset from the loaded config file.
func applyFileConfig(c *editorConfig) {
	if c.cfg == nil {
		return
	}
	if c.rootLabel == "" {
		c.rootLabel = c.cfg.GetRootLabel()
	}
	if c.backend == nil && c.backendURL == "" && c.cfg.Backend != nil {
		c.backendURL = c.cfg.Backend.URL
	}
	if c.backendTimeout == 0 && c.cfg.Backend != nil {
		c.backendTimeout = c.cfg.Backend.GetTimeout()
	}
	if c.debounce == 0 && c.cfg.Persistence != nil {
		c.debounce = c.cfg.Persistence.GetDebounce()
	}
	if c.maxRetries == 0 && c.cfg.Persistence != nil {
		c.maxRetries = c.cfg.Persistence.GetMaxRetries()
	}
	if c.retryBackoff == 0 && c.cfg.Persistence != nil {
		c.retryBackoff = c.cfg.Persistence.GetRetryBackoff()
	}
	if c.reconnectWait == 0 && c.cfg.Realtime != nil {
		c.reconnectWait = c.cfg.Realtime.GetReconnectWait()
	}
	if c.reloadThreshold == 0 && c.cfg.Realtime != nil {
		c.reloadThreshold = c.cfg.Realtime.GetReloadThreshold()
	}
	if c.channel == nil && c.cfg.Realtime != nil && c.cfg.Realtime.GetTransport() == config.TransportMemory {
		// Redis and Socket.IO transports dial out, so their construction
		// stays with the caller; only the in-process default is implied.
		c.channel = realtime.NewMemoryChannel()
	}
}

// Start begins background work: the realtime subscribe loop and the
// fan-in of subsystem status reports. Editing works before Start; only
// sync is inert.
func (e *Editor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return NewInternalError("Editor.Start", realtime.ErrChannelClosed)
	}
	if e.started {
		return nil
	}
	e.started = true

	if e.bridge != nil {
		e.forwardStatus(e.bridge.Status())
	}
	if e.adapter != nil {
		e.forwardStatus(e.adapter.Status())
		if err := e.adapter.Start(); err != nil {
			return NewNetworkError("Editor.Start", err)
		}
	}
	return nil
}

func (e *Editor) forwardStatus(in <-chan status.Status) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for s := range in {
			select {
			case e.statusC <- s:
			default:
			}
		}
	}()
}

// Status returns the merged stream of persistence and sync reports.
func (e *Editor) Status() <-chan status.Status {
	return e.statusC
}

// CreateChild validates the payload against the node type, places the
// new node below its parent with siblings fanned out, links it, and
// returns it. The store is updated before the method returns.
func (e *Editor) CreateChild(parentID string, nodeType graph.NodeType, data graph.Data) (*graph.Node, error) {
	n, err := e.mutator.CreateChild(parentID, nodeType, data)
	if err != nil {
		return nil, wrapGraphError("Editor.CreateChild", err)
	}
	return n, nil
}

// EditNode applies a partial payload update. The change is visible to
// reads immediately; persistence follows the debounced path.
func (e *Editor) EditNode(nodeID string, patch graph.Patch) (*graph.Node, error) {
	n, err := e.mutator.EditNode(nodeID, patch)
	if err != nil {
		return nil, wrapGraphError("Editor.EditNode", err)
	}
	return n, nil
}

// DeleteNode removes the node and its whole subtree and returns every
// removed id, the requested node first. The root cannot be deleted.
func (e *Editor) DeleteNode(nodeID string) ([]string, error) {
	ids, err := e.mutator.DeleteNode(nodeID)
	if err != nil {
		return nil, wrapGraphError("Editor.DeleteNode", err)
	}
	return ids, nil
}

// ToggleExpand flips a node's expanded flag. Ephemeral UI state: it is
// neither persisted nor broadcast.
func (e *Editor) ToggleExpand(nodeID string) (*graph.Node, error) {
	n, err := e.mutator.ToggleExpand(nodeID)
	if err != nil {
		return nil, wrapGraphError("Editor.ToggleExpand", err)
	}
	return n, nil
}

// MoveNode updates a node's position. Moves take the debounced
// persistence path, so a drag produces one write, not hundreds.
func (e *Editor) MoveNode(nodeID string, pos graph.Position) (*graph.Node, error) {
	n, err := e.mutator.MoveNode(nodeID, pos)
	if err != nil {
		return nil, wrapGraphError("Editor.MoveNode", err)
	}
	return n, nil
}

// Node returns a copy of one node.
func (e *Editor) Node(nodeID string) (*graph.Node, error) {
	n, err := e.store.Get(nodeID)
	if err != nil {
		return nil, wrapGraphError("Editor.Node", err)
	}
	return n, nil
}

// Visible returns the subgraph reachable from the root through expanded
// nodes, the set a renderer should draw.
func (e *Editor) Visible() view.Projection {
	return view.Project(e.store)
}

// Store exposes the underlying graph store for read-heavy callers.
func (e *Editor) Store() *graph.Store {
	return e.store
}

// ClientID returns the realtime wire identity, or the empty string in
// single-player mode.
func (e *Editor) ClientID() string {
	if e.adapter == nil {
		return ""
	}
	return e.adapter.ClientID()
}

// ReloadRecommended reports whether a long disconnect occurred and a
// bulk reload should run. Load acknowledges it.
func (e *Editor) ReloadRecommended() bool {
	return e.adapter != nil && e.adapter.ReloadRecommended()
}

// Load hydrates the graph from the backend, replacing local state. With
// no backend, or an unreachable one, it falls back to the local
// snapshot when one is configured; the seed graph survives if both are
// empty. Returns the number of loaded nodes. A successful load clears
// any pending reload recommendation; a failed one leaves it set, since
// the missed events were not repaired.
func (e *Editor) Load(ctx context.Context) (int, error) {
	if e.bridge != nil {
		n, err := e.bridge.Load(ctx)
		if err == nil {
			e.ackReload()
			return n, nil
		}
		e.logger.Warn("backend load failed", "error", err)
		if e.snap == nil {
			return 0, NewNetworkError("Editor.Load", err)
		}
	}

	if e.snap != nil {
		n, err := e.snap.Load(ctx, e.store)
		if err != nil {
			return 0, NewInternalError("Editor.Load", err)
		}
		e.ackReload()
		return n, nil
	}

	return 0, nil
}

func (e *Editor) ackReload() {
	if e.adapter != nil {
		e.adapter.AckReload()
	}
}

// SaveAll writes every node to the backend, bypassing the debounce, and
// refreshes the snapshot when one is configured.
func (e *Editor) SaveAll(ctx context.Context) error {
	if e.bridge != nil {
		if err := e.bridge.SaveAll(ctx); err != nil {
			return NewNetworkError("Editor.SaveAll", err)
		}
	}
	if e.snap != nil {
		if err := e.snap.Save(ctx, e.store); err != nil {
			return NewInternalError("Editor.SaveAll", err)
		}
	}
	return nil
}

// Flush forces any pending debounced writes out immediately.
func (e *Editor) Flush() {
	if e.bridge != nil {
		e.bridge.Flush()
	}
}

// Close flushes pending writes, stops background work, and saves a
// final snapshot when one is configured. The snapshot store itself is
// left open for its owner to close.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.bridge != nil {
		e.bridge.Close()
	}
	if e.adapter != nil {
		if err := e.adapter.Close(); err != nil {
			e.logger.Warn("adapter close failed", "error", err)
		}
	}
	e.wg.Wait()
	close(e.statusC)

	if e.snap != nil {
		if err := e.snap.Save(ctx, e.store); err != nil {
			return NewInternalError("Editor.Close", err)
		}
	}
	return nil
}

// WaitSynced blocks until the adapter reports a connected state or the
// timeout passes, a convenience for tests and CLI startup.
func (e *Editor) WaitSynced(timeout time.Duration) bool {
	if e.adapter == nil {
		return false
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.adapter.State() == realtime.StateConnected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
