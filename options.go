package mindgraph

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mindflow-ai/mindgraph/config"
	"github.com/mindflow-ai/mindgraph/graph"
	"github.com/mindflow-ai/mindgraph/graph/id"
	"github.com/mindflow-ai/mindgraph/persist"
	"github.com/mindflow-ai/mindgraph/realtime"
	"github.com/mindflow-ai/mindgraph/snapshot"
)

// Option configures an Editor.
type Option func(*editorConfig)

// editorConfig holds configuration for an Editor instance.
type editorConfig struct {
	cfg *config.Config

	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	rootLabel string
	registry  graph.TypeRegistry
	ids       id.Generator

	backend        persist.Backend
	backendURL     string
	backendTimeout time.Duration
	debounce       time.Duration
	maxRetries     int
	retryBackoff   time.Duration

	channel         realtime.Channel
	clientID        string
	reconnectWait   time.Duration
	reloadThreshold time.Duration

	snap *snapshot.Store
}

// WithConfig applies a loaded configuration file. Explicit options set
// after this one take precedence over the file.
func WithConfig(cfg *config.Config) Option {
	return func(c *editorConfig) {
		c.cfg = cfg
	}
}

// WithLogger sets a custom logger for the editor.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *editorConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for distributed tracing.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *editorConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for metrics.
func WithMeter(meter metric.Meter) Option {
	return func(c *editorConfig) {
		c.meter = meter
	}
}

// WithRootLabel sets the label of the seed root node used when no graph
// is loaded from the backend.
func WithRootLabel(label string) Option {
	return func(c *editorConfig) {
		c.rootLabel = label
	}
}

// WithTypeRegistry sets a custom node-type vocabulary. If not provided,
// the default vocabulary (project, tasks, status, comment, task) is used.
func WithTypeRegistry(reg graph.TypeRegistry) Option {
	return func(c *editorConfig) {
		c.registry = reg
	}
}

// WithIDGenerator sets a custom node id generator, typically a
// deterministic one in tests.
func WithIDGenerator(gen id.Generator) Option {
	return func(c *editorConfig) {
		c.ids = gen
	}
}

// WithBackend sets the persistence backend directly. Takes precedence
// over WithBackendURL.
func WithBackend(b persist.Backend) Option {
	return func(c *editorConfig) {
		c.backend = b
	}
}

// WithBackendURL points the editor at an HTTP persistence backend.
// Without a backend the editor works purely in memory.
func WithBackendURL(url string) Option {
	return func(c *editorConfig) {
		c.backendURL = url
	}
}

// WithBackendTimeout bounds each request to the HTTP backend. Ignored
// when the backend is set directly with WithBackend.
func WithBackendTimeout(d time.Duration) Option {
	return func(c *editorConfig) {
		c.backendTimeout = d
	}
}

// WithDebounce sets the coalescing window for cosmetic changes.
func WithDebounce(d time.Duration) Option {
	return func(c *editorConfig) {
		c.debounce = d
	}
}

// WithRetryBudget sets the write attempt budget per node.
func WithRetryBudget(n int) Option {
	return func(c *editorConfig) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the pause between write attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *editorConfig) {
		c.retryBackoff = d
	}
}

// WithChannel sets the realtime sync channel. Without a channel the
// editor runs in single-player mode.
func WithChannel(ch realtime.Channel) Option {
	return func(c *editorConfig) {
		c.channel = ch
	}
}

// WithClientID sets the wire identity used for echo suppression.
// Defaults to a random UUID.
func WithClientID(id string) Option {
	return func(c *editorConfig) {
		c.clientID = id
	}
}

// WithReconnectWait sets the pause between channel reconnection
// attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *editorConfig) {
		c.reconnectWait = d
	}
}

// WithReloadThreshold sets the disconnect duration above which a full
// bulk reload is recommended after reconnecting.
func WithReloadThreshold(d time.Duration) Option {
	return func(c *editorConfig) {
		c.reloadThreshold = d
	}
}

// WithSnapshotStore sets a local snapshot store used as a fallback
// graph source when the backend is unreachable.
func WithSnapshotStore(s *snapshot.Store) Option {
	return func(c *editorConfig) {
		c.snap = s
	}
}
