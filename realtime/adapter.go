package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindflow-ai/mindgraph/editor"
	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/status"
)

const (
	// DefaultReconnectWait is the pause between reconnection attempts.
	DefaultReconnectWait = 2 * time.Second

	// DefaultReloadThreshold is the disconnect duration above which the
	// adapter recommends a full bulk reload: a short blip loses nothing
	// worth repairing, a long outage may have missed events that only a
	// reload can recover.
	DefaultReloadThreshold = 30 * time.Second
)

// State is the adapter's connection state.
type State string

const (
	// StateDisconnected means no live subscription. Local editing
	// continues in single-player mode.
	StateDisconnected State = "disconnected"

	// StateConnecting means a subscription attempt is in flight.
	StateConnecting State = "connecting"

	// StateConnected means remote events are flowing.
	StateConnected State = "connected"
)

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	// ClientID identifies this client instance on the wire, so its own
	// echoes can be recognized and dropped. Defaults to a random UUID.
	ClientID string

	// ReconnectWait is the pause between reconnection attempts.
	// Defaults to DefaultReconnectWait.
	ReconnectWait time.Duration

	// ReloadThreshold is the disconnect duration above which a full
	// reload is recommended after reconnecting. Defaults to
	// DefaultReloadThreshold.
	ReloadThreshold time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer

	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

// Adapter keeps concurrent clients convergent: it broadcasts local
// structural mutations over a Channel and reconciles inbound remote
// events into the store.
//
// Reconciliation is deliberately simple. An own echo is dropped by
// client id. A node_added for an id already present is a no-op. A
// node_updated merges unconditionally, last message wins; two
// near-simultaneous edits to the same node from different clients can
// lose one side's change, which is an accepted, documented limitation.
// A node_deleted cascade-removes locally.
//
// The channel reconnects automatically. A disconnect longer than the
// reload threshold sets ReloadRecommended, because events missed during
// a long outage can only be repaired by a bulk reload.
type Adapter struct {
	store *graph.Store
	ch    Channel

	clientID      string
	reconnectWait time.Duration
	reloadAfter   time.Duration

	logger    *slog.Logger
	tracer    trace.Tracer
	published metric.Int64Counter
	received  metric.Int64Counter

	mu             sync.Mutex
	state          State
	disconnectedAt time.Time
	needsReload    bool
	started        bool
	closed         bool

	outC    chan Event
	statusC chan status.Status
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAdapter creates an adapter over the given channel. The adapter does
// not connect until Start is called.
func NewAdapter(store *graph.Store, ch Channel, opts AdapterOptions) *Adapter {
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = DefaultReconnectWait
	}
	if opts.ReloadThreshold <= 0 {
		opts.ReloadThreshold = DefaultReloadThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("mindgraph/realtime")
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("mindgraph/realtime")
	}

	published, _ := opts.Meter.Int64Counter("mindgraph.realtime.published",
		metric.WithDescription("Local mutations broadcast to the channel"))
	received, _ := opts.Meter.Int64Counter("mindgraph.realtime.received",
		metric.WithDescription("Remote events applied to the store"))

	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		store:         store,
		ch:            ch,
		clientID:      opts.ClientID,
		reconnectWait: opts.ReconnectWait,
		reloadAfter:   opts.ReloadThreshold,
		logger:        opts.Logger,
		tracer:        opts.Tracer,
		published:     published,
		received:      received,
		state:         StateDisconnected,
		outC:          make(chan Event, 256),
		statusC:       make(chan status.Status, 16),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// ClientID returns the wire identity used for echo suppression.
func (a *Adapter) ClientID() string {
	return a.clientID
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ReloadRecommended reports whether a disconnect longer than the
// threshold occurred since the last AckReload. The caller should run a
// bulk reload and then acknowledge it.
func (a *Adapter) ReloadRecommended() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.needsReload
}

// AckReload clears the reload recommendation after a bulk reload.
func (a *Adapter) AckReload() {
	a.mu.Lock()
	a.needsReload = false
	a.mu.Unlock()
}

// Status returns the channel carrying connection-state reports. Reports
// are dropped, not blocked on, when no one is listening.
func (a *Adapter) Status() <-chan status.Status {
	return a.statusC
}

// Start begins the subscribe/apply loop. It returns immediately; the
// connection is established in the background and re-established after
// every drop until Close.
func (a *Adapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrChannelClosed
	}
	if a.started {
		return nil
	}
	a.started = true

	a.wg.Add(2)
	go a.run()
	go a.publishLoop()
	return nil
}

func (a *Adapter) run() {
	defer a.wg.Done()

	for {
		if a.ctx.Err() != nil {
			return
		}

		a.setState(StateConnecting, "subscribing to channel", nil)
		events, err := a.ch.Subscribe(a.ctx)
		if err != nil {
			a.logger.Warn("realtime subscribe failed", "error", err)
			a.setState(StateDisconnected, "subscribe failed", map[string]any{"error": err.Error()})
			select {
			case <-a.ctx.Done():
				return
			case <-time.After(a.reconnectWait):
			}
			continue
		}

		a.markConnected()

		for evt := range events {
			a.apply(evt)
		}

		if a.ctx.Err() != nil {
			return
		}

		a.markDisconnected()
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(a.reconnectWait):
		}
	}
}

func (a *Adapter) markConnected() {
	a.mu.Lock()
	gap := time.Duration(0)
	if !a.disconnectedAt.IsZero() {
		gap = time.Since(a.disconnectedAt)
	}
	reload := gap > a.reloadAfter
	if reload {
		a.needsReload = true
	}
	a.state = StateConnected
	a.disconnectedAt = time.Time{}
	a.mu.Unlock()

	details := map[string]any{}
	if gap > 0 {
		details["offline"] = gap.String()
	}
	if reload {
		details["reload_recommended"] = true
		a.logger.Info("reconnected after long outage, bulk reload recommended", "offline", gap)
	}
	a.report(status.NewSync(status.StateConnected, "channel connected", details))
}

func (a *Adapter) markDisconnected() {
	a.mu.Lock()
	a.state = StateDisconnected
	a.disconnectedAt = time.Now()
	a.mu.Unlock()

	a.logger.Warn("realtime channel dropped, editing continues locally")
	a.report(status.NewSync(status.StateDisconnected, "channel dropped", nil))
}

func (a *Adapter) setState(s State, msg string, details map[string]any) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.report(status.NewSync(string(s), msg, details))
}

// apply reconciles one inbound event into the store.
func (a *Adapter) apply(evt Event) {
	if evt.ClientID == a.clientID {
		return
	}

	_, span := a.tracer.Start(a.ctx, "realtime.apply",
		trace.WithAttributes(attribute.String("event.type", string(evt.Type))))
	defer span.End()

	switch evt.Type {
	case EventNodeAdded:
		a.applyAdded(evt.Node)
	case EventNodeUpdated:
		a.applyUpdated(evt.Node)
	case EventNodeDeleted:
		a.applyDeleted(evt.IDs)
	default:
		a.logger.Debug("ignoring unknown event type", "type", evt.Type)
		return
	}

	a.received.Add(a.ctx, 1, metric.WithAttributes(attribute.String("type", string(evt.Type))))
}

func (a *Adapter) applyAdded(n *graph.Node) {
	if n == nil {
		return
	}
	// Own echoes can also arrive without a client id when relayed by a
	// server that strips envelopes; id presence covers that path too.
	if a.store.Has(n.ID) {
		return
	}

	node := n.Clone()
	if node.Position == (graph.Position{}) && node.ParentID != "" {
		if parent, err := a.store.Get(node.ParentID); err == nil {
			node.Position = editor.ChildPosition(parent.Position, a.store.ChildCount(parent.ID))
		}
	}

	if err := a.store.Upsert(node); err != nil {
		a.logger.Warn("dropping inbound node_added", "node_id", n.ID, "error", err)
		return
	}
	if node.ParentID != "" && a.store.Has(node.ParentID) {
		if _, err := a.store.AddEdge(node.ParentID, node.ID); err != nil && !errors.Is(err, graph.ErrDuplicateEdge) {
			a.logger.Warn("failed to link inbound node", "node_id", n.ID, "error", err)
		}
	}
}

func (a *Adapter) applyUpdated(n *graph.Node) {
	if n == nil {
		return
	}
	// Last message wins, no version check.
	if err := a.store.Upsert(n.Clone()); err != nil {
		a.logger.Warn("dropping inbound node_updated", "node_id", n.ID, "error", err)
	}
}

func (a *Adapter) applyDeleted(ids []string) {
	for _, id := range ids {
		if _, err := a.store.RemoveCascade(id); err != nil && !errors.Is(err, graph.ErrNotFound) {
			a.logger.Warn("failed to apply inbound delete", "node_id", id, "error", err)
		}
	}
}

// NodeCreated broadcasts a local creation.
func (a *Adapter) NodeCreated(n *graph.Node) {
	a.publish(Event{Type: EventNodeAdded, ClientID: a.clientID, Node: n.Clone()})
}

// NodeUpdated broadcasts a local payload change.
func (a *Adapter) NodeUpdated(n *graph.Node) {
	a.publish(Event{Type: EventNodeUpdated, ClientID: a.clientID, Node: n.Clone()})
}

// NodeDeleted broadcasts a local cascading delete with every removed id,
// so remote clients reconcile the whole subtree in one message.
func (a *Adapter) NodeDeleted(ids []string) {
	a.publish(Event{Type: EventNodeDeleted, ClientID: a.clientID, IDs: ids})
}

// NodeMoved is a no-op: position drags are cosmetic and reach other
// clients through the persisted state, not the live channel.
func (a *Adapter) NodeMoved(n *graph.Node) {}

func (a *Adapter) publish(evt Event) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	connected := a.state == StateConnected
	a.mu.Unlock()

	if !connected {
		// Single-player mode: the mutation is already applied locally and
		// queued for persistence, only the live broadcast is skipped.
		a.logger.Debug("skipping broadcast while disconnected", "type", evt.Type)
		return
	}

	select {
	case a.outC <- evt:
	default:
		a.logger.Warn("outbound queue full, dropping broadcast", "type", evt.Type)
	}
}

// publishLoop drains the outbound queue on a single goroutine, so events
// reach the channel in the same order the mutations happened. A child's
// node_added must never overtake its parent's.
func (a *Adapter) publishLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case evt := <-a.outC:
			if err := a.ch.Publish(a.ctx, evt); err != nil {
				a.logger.Warn("broadcast failed", "type", evt.Type, "error", err)
				continue
			}
			a.published.Add(a.ctx, 1, metric.WithAttributes(attribute.String("type", string(evt.Type))))
		}
	}
}

func (a *Adapter) report(s status.Status) {
	select {
	case a.statusC <- s:
	default:
	}
}

// Close stops the subscribe and publish loops; events still queued
// outbound are dropped. The underlying channel is left to its owner.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
	close(a.statusC)
	return nil
}

// Verify the adapter satisfies the mutator's listener contract.
var _ editor.Listener = (*Adapter)(nil)
