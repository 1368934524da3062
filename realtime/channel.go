package realtime

import (
	"context"
	"errors"

	"github.com/mindflow-ai/mindgraph/graph"
)

// Sentinel errors for realtime operations.
var (
	// ErrChannelClosed indicates the channel was closed and can no longer
	// publish or deliver events.
	ErrChannelClosed = errors.New("realtime: channel closed")

	// ErrNotConnected indicates an operation requires a live connection.
	ErrNotConnected = errors.New("realtime: not connected")
)

// EventType identifies a graph-change event on the wire. The vocabulary
// is the inbound one; transports that speak a different outbound
// vocabulary (the Socket.IO contract emits add_node/update_node/
// delete_node) translate at their edge.
type EventType string

const (
	// EventNodeAdded announces a node creation.
	EventNodeAdded EventType = "node_added"

	// EventNodeUpdated announces a payload or position change.
	EventNodeUpdated EventType = "node_updated"

	// EventNodeDeleted announces a cascading delete.
	EventNodeDeleted EventType = "node_deleted"
)

// Event is one graph-change message. Add/update events carry the full
// node record; delete events carry every cascade-removed id so a remote
// store reconciles the whole subtree in one message.
type Event struct {
	// Type is the event kind.
	Type EventType `json:"type"`

	// ClientID identifies the publishing client instance, so a client can
	// recognize and drop its own echoes.
	ClientID string `json:"clientId,omitempty"`

	// Node is the full record for add/update events.
	Node *graph.Node `json:"node,omitempty"`

	// IDs lists all removed node ids for delete events, the requested
	// node first.
	IDs []string `json:"ids,omitempty"`
}

// Channel is a pub/sub transport for graph-change events. Delivery is
// per-connection FIFO with no cross-client ordering guarantee; the
// adapter never reorders or buffers to enforce causal order.
type Channel interface {
	// Publish sends one event to every subscriber.
	Publish(ctx context.Context, evt Event) error

	// Subscribe delivers incoming events until the context is cancelled
	// or the channel closes, at which point the returned channel closes.
	// Teardown is atomic: after the channel closes no further event of
	// any type is delivered.
	Subscribe(ctx context.Context) (<-chan Event, error)

	// Close tears the transport down.
	Close() error
}
