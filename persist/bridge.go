package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/status"
)

const (
	// DefaultDebounce is the quiet period after which coalesced cosmetic
	// changes are flushed as one batch.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultMaxRetries bounds write attempts per node per flush.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the pause between write attempts.
	DefaultRetryBackoff = 250 * time.Millisecond
)

// Options configures a Bridge.
type Options struct {
	// Debounce is the coalescing window for cosmetic changes. The window
	// restarts on every new mutation; the batch flushes when it elapses
	// with no further mutations. Defaults to DefaultDebounce.
	Debounce time.Duration

	// MaxRetries bounds write attempts per node. Defaults to DefaultMaxRetries.
	MaxRetries int

	// RetryBackoff is the pause between attempts. Defaults to DefaultRetryBackoff.
	RetryBackoff time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer

	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

// Bridge translates mutator notifications into backend calls: structural
// changes flush immediately (persisted topology must not depend on a
// timer), cosmetic changes coalesce in a debounce window and flush as one
// batch, last-write-wins per node.
//
// All backend work happens off the mutating goroutine; results are
// reported through the Status channel, never as errors, and a failed
// write never rolls the local store back. Flushes and retries re-read the
// node from the store at send time, so a retry can never overwrite a
// newer local edit with stale data, and a flush for a node deleted in the
// meantime is discarded as a no-op.
type Bridge struct {
	store   *graph.Store
	backend Backend

	debounce   time.Duration
	maxRetries int
	backoff    time.Duration

	logger   *slog.Logger
	tracer   trace.Tracer
	flushes  metric.Int64Counter
	failures metric.Int64Counter

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	closed  bool

	statusC chan status.Status
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBridge creates a bridge between the store and the backend.
func NewBridge(store *graph.Store, backend Backend, opts Options) *Bridge {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("mindgraph/persist")
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("mindgraph/persist")
	}

	flushes, _ := opts.Meter.Int64Counter("mindgraph.persist.flushes",
		metric.WithDescription("Completed backend flushes"))
	failures, _ := opts.Meter.Int64Counter("mindgraph.persist.failures",
		metric.WithDescription("Backend writes failed after the retry budget"))

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		store:      store,
		backend:    backend,
		debounce:   opts.Debounce,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		flushes:    flushes,
		failures:   failures,
		pending:    make(map[string]struct{}),
		statusC:    make(chan status.Status, 16),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Status returns the channel carrying save-state reports. Reports are
// dropped, not blocked on, when no one is listening.
func (b *Bridge) Status() <-chan status.Status {
	return b.statusC
}

// NodeCreated flushes the new node immediately.
func (b *Bridge) NodeCreated(n *graph.Node) {
	b.report(status.NewSaving("creating " + n.ID))
	b.async(func(ctx context.Context) {
		b.flushNode(ctx, n.ID)
		b.reportSavedIfIdle()
	})
}

// NodeUpdated enqueues the edit on the debounced path: rapid typing
// coalesces into one write carrying the final payload.
func (b *Bridge) NodeUpdated(n *graph.Node) {
	b.enqueue(n.ID)
}

// NodeMoved enqueues the position change on the debounced path: one write
// per drag, not one per pixel.
func (b *Bridge) NodeMoved(n *graph.Node) {
	b.enqueue(n.ID)
}

// NodeDeleted issues one DELETE per cascade-affected id, immediately.
// Any pending debounced write for a removed id is dropped.
func (b *Bridge) NodeDeleted(ids []string) {
	b.mu.Lock()
	for _, id := range ids {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	b.report(status.NewSaving("deleting"))
	b.async(func(ctx context.Context) {
		ctx, span := b.tracer.Start(ctx, "persist.delete",
			trace.WithAttributes(attribute.Int("cascade.size", len(ids))))
		defer span.End()

		for _, id := range ids {
			if err := b.withRetry(ctx, func(ctx context.Context) error {
				return b.backend.DeleteNode(ctx, id)
			}); err != nil {
				b.logger.Warn("delete not persisted", "id", id, "error", err)
				b.failures.Add(ctx, 1)
				b.report(status.NewUnsaved("delete failed", map[string]any{"node_id": id}))
				continue
			}
			b.flushes.Add(ctx, 1)
		}
		b.reportSavedIfIdle()
	})
}

// enqueue adds the node to the debounce batch and restarts the window.
func (b *Bridge) enqueue(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if len(b.pending) == 0 {
		b.report(status.NewSaving("changes pending"))
	}
	b.pending[id] = struct{}{}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.debounce, b.flushPending)
	} else {
		b.timer.Stop()
		b.timer.Reset(b.debounce)
	}
}

// flushPending drains the debounce batch. Runs on the timer goroutine.
func (b *Bridge) flushPending() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	b.pending = make(map[string]struct{})
	b.timer = nil

	// The closed check and the wg.Add inside async must happen under the
	// same lock hold, or a timer firing during Close could add work after
	// Close has started waiting.
	if b.closed || len(ids) == 0 {
		return
	}

	b.async(func(ctx context.Context) {
		ctx, span := b.tracer.Start(ctx, "persist.flush_batch",
			trace.WithAttributes(attribute.Int("batch.size", len(ids))))
		defer span.End()

		for _, id := range ids {
			b.flushNode(ctx, id)
		}
		b.reportSavedIfIdle()
	})
}

// flushNode writes one node, re-reading its then-current state from the
// store at every attempt. A node that vanished locally is a silent no-op.
func (b *Bridge) flushNode(ctx context.Context, id string) {
	err := b.withRetry(ctx, func(ctx context.Context) error {
		node, err := b.store.Get(id)
		if err != nil {
			return nil // deleted locally, discard the late write
		}
		return b.backend.SaveNode(ctx, node)
	})
	if err != nil {
		b.logger.Warn("node not persisted", "id", id, "error", err)
		b.failures.Add(ctx, 1)
		b.report(status.NewUnsaved("save failed", map[string]any{"node_id": id}))
		return
	}
	b.flushes.Add(ctx, 1)
}

// withRetry runs fn up to the retry budget, pausing between attempts.
func (b *Bridge) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.backoff):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// Load bulk-loads the backend's node set and replaces the store contents.
// An empty answer leaves the store untouched so a caller-seeded graph
// survives first contact with a fresh backend.
func (b *Bridge) Load(ctx context.Context) (int, error) {
	ctx, span := b.tracer.Start(ctx, "persist.load")
	defer span.End()

	nodes, err := b.backend.LoadNodes(ctx)
	if err != nil {
		return 0, err
	}
	if len(nodes) == 0 {
		return 0, nil
	}
	if err := b.store.Replace(nodes); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// SaveAll synchronously writes every node currently in the store. This is
// the explicit "save" action; routine persistence goes through the
// listener paths.
func (b *Bridge) SaveAll(ctx context.Context) error {
	ctx, span := b.tracer.Start(ctx, "persist.save_all")
	defer span.End()

	var firstErr error
	for _, node := range b.store.Nodes() {
		if err := b.withRetry(ctx, func(ctx context.Context) error {
			return b.backend.SaveNode(ctx, node)
		}); err != nil {
			b.failures.Add(ctx, 1)
			b.report(status.NewUnsaved("save failed", map[string]any{"node_id": node.ID}))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		b.flushes.Add(ctx, 1)
	}
	if firstErr == nil {
		b.report(status.NewSaved("all nodes saved"))
	}
	return firstErr
}

// Flush forces the debounce batch out now instead of waiting for the
// window to elapse.
func (b *Bridge) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	b.flushPending()
}

// Close flushes pending work, stops background flushing and closes the
// status channel. The bridge must not be used afterwards.
func (b *Bridge) Close() {
	b.Flush()

	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.wg.Wait()
	b.cancel()
	close(b.statusC)
}

// async runs fn on a tracked background goroutine tied to the bridge's
// lifetime.
func (b *Bridge) async(fn func(context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}

// report delivers a status without ever blocking the caller.
func (b *Bridge) report(s status.Status) {
	select {
	case b.statusC <- s:
	default:
	}
}

// reportSavedIfIdle emits a saved report when nothing further is pending.
func (b *Bridge) reportSavedIfIdle() {
	b.mu.Lock()
	idle := len(b.pending) == 0
	b.mu.Unlock()
	if idle {
		b.report(status.NewSaved("all changes saved"))
	}
}
