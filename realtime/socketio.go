package realtime

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/mindflow-ai/mindgraph/graph"
)

// Outbound Socket.IO event names. The server-side contract names
// mutations imperatively on the way in and declaratively on the way
// out; inbound names match the EventType constants directly.
const (
	emitAddNode    = "add_node"
	emitUpdateNode = "update_node"
	emitDeleteNode = "delete_node"
)

// SocketIOOptions configures the Socket.IO transport.
type SocketIOOptions struct {
	// URL is the server URL, path included (e.g., "http://localhost:5001/socket.io").
	URL string

	// Namespace is the Socket.IO namespace. Empty means the root namespace.
	Namespace string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// ConnectTimeout bounds the initial connection handshake.
	// Defaults to 15 seconds.
	ConnectTimeout time.Duration
}

// socketConn is the slice of the Socket.IO client the channel needs.
type socketConn interface {
	Connected() bool
	Emit(ev string, args ...any) error
	On(ev types.EventName, listeners ...types.Listener) error
	RemoveAllListeners(ev types.EventName) bool
	Disconnect() *socket.Socket
}

// inboundEvents are the server-to-client event names the channel
// listens for.
var inboundEvents = []EventType{EventNodeAdded, EventNodeUpdated, EventNodeDeleted}

// SocketIOChannel implements Channel over a Socket.IO connection. The
// underlying client reconnects on its own; subscribers keep their
// channel across transport drops.
type SocketIOChannel struct {
	io socketConn

	mu     sync.Mutex
	sub    *socketSub
	closed bool
}

type socketSub struct {
	events chan Event
	raw    chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *socketSub) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewSocketIOChannel connects to the Socket.IO server over websocket
// and blocks until the handshake completes or fails.
func NewSocketIOChannel(ctx context.Context, opts SocketIOOptions) (*SocketIOChannel, error) {
	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 15 * time.Second
	}

	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		sockOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		connectChan <- nil
	})

	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errs[0])
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(opts.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", opts.ConnectTimeout)
	}

	return &SocketIOChannel{io: io}, nil
}

// Publish emits one event under its outbound name.
func (c *SocketIOChannel) Publish(ctx context.Context, evt Event) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}
	if !c.io.Connected() {
		return ErrNotConnected
	}

	var name string
	switch evt.Type {
	case EventNodeAdded:
		name = emitAddNode
	case EventNodeUpdated:
		name = emitUpdateNode
	case EventNodeDeleted:
		name = emitDeleteNode
	default:
		return fmt.Errorf("realtime: unknown event type %q", evt.Type)
	}

	payload, err := eventPayload(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return c.io.Emit(name, payload)
}

// eventPayload renders an event as the wire shape: a JSON object
// carrying the node record (add/update) or the removed ids (delete),
// plus the publishing client id.
func eventPayload(evt Event) (map[string]any, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Subscribe registers listeners for the three inbound event names and
// delivers decoded events until the context is cancelled or the channel
// closes. All listeners stop as one unit: once the returned channel
// closes no further event of any type is delivered.
func (c *SocketIOChannel) Subscribe(ctx context.Context) (<-chan Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChannelClosed
	}
	if c.sub != nil {
		c.sub.stop()
		// Deregister the previous subscription's handlers, or every
		// resubscribe would stack another set of dead closures on the
		// socket.
		c.removeHandlers()
	}

	sub := &socketSub{
		events: make(chan Event),
		raw:    make(chan Event),
		done:   make(chan struct{}),
	}
	c.sub = sub

	for _, et := range inboundEvents {
		et := et
		c.io.On(types.EventName(string(et)), func(data ...any) {
			if len(data) == 0 {
				return
			}
			evt, err := decodeEvent(et, data[0])
			if err != nil {
				return
			}
			// raw is never closed, so a late handler cannot panic after
			// teardown; it just hits the done branch.
			select {
			case sub.raw <- evt:
			case <-sub.done:
			}
		})
	}

	go func() {
		defer close(sub.events)
		defer sub.stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case evt := <-sub.raw:
				select {
				case sub.events <- evt:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}
		}
	}()

	return sub.events, nil
}

// decodeEvent turns a raw Socket.IO payload into an Event. Payloads are
// accepted both as full event envelopes and as the bare node record
// (add/update) or {id} object (delete) the original contract used.
func decodeEvent(et EventType, raw any) (Event, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Event{}, err
	}

	var evt Event
	if err := json.Unmarshal(data, &evt); err == nil && (evt.Node != nil || len(evt.IDs) > 0) {
		evt.Type = et
		return evt, nil
	}

	if et == EventNodeDeleted {
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &ref); err != nil || ref.ID == "" {
			return Event{}, fmt.Errorf("realtime: undecodable delete payload")
		}
		return Event{Type: et, IDs: []string{ref.ID}}, nil
	}

	var node graph.Node
	if err := json.Unmarshal(data, &node); err != nil || node.ID == "" {
		return Event{}, fmt.Errorf("realtime: undecodable node payload")
	}
	return Event{Type: et, Node: &node}, nil
}

// removeHandlers drops the channel's inbound event listeners from the
// socket.
func (c *SocketIOChannel) removeHandlers() {
	for _, et := range inboundEvents {
		c.io.RemoveAllListeners(types.EventName(string(et)))
	}
}

// Close disconnects from the server and tears down any subscription.
func (c *SocketIOChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.mu.Unlock()

	if sub != nil {
		sub.stop()
	}
	c.removeHandlers()
	c.io.Disconnect()
	return nil
}
