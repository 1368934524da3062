// Package presence announces who is currently editing a mind map.
//
// Each editor holds an etcd lease; when a client crashes or loses its
// network, the lease expires and the editor disappears from the roster
// without any explicit leave. Presence is optional: an editor without
// etcd simply is not visible to others, nothing else degrades.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Editor is one participant in the roster.
type Editor struct {
	// ClientID is the same wire identity the realtime adapter uses.
	ClientID string `json:"clientId"`

	// Name is the display name shown to other editors.
	Name string `json:"name"`

	// JoinedAt is when the editor announced itself.
	JoinedAt time.Time `json:"joinedAt"`
}

// Config configures the presence client.
type Config struct {
	// Endpoints lists etcd endpoints.
	Endpoints []string

	// Namespace prefixes all presence keys. Default: "mindgraph".
	Namespace string

	// TTL is the lease TTL in seconds. Default: 15.
	TTL int
}

// Client maintains this editor's lease and reads the roster.
//
// Thread-safety: all methods are safe for concurrent use.
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	mu         sync.Mutex
	leaseID    clientv3.LeaseID
	cancelFn   context.CancelFunc
	closed     bool
	closedChan chan struct{}
	wg         sync.WaitGroup
}

// NewClient connects to etcd and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("presence endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "mindgraph"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err = cli.Get(ctx, "health-check")
	if err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Client{
		client:     cli,
		namespace:  namespace,
		ttl:        ttl,
		closedChan: make(chan struct{}),
	}, nil
}

// Announce registers this editor in the roster and starts renewing its
// lease in the background. Re-announcing replaces the previous entry.
func (c *Client) Announce(ctx context.Context, ed Editor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("presence client is closed")
	}
	if ed.ClientID == "" {
		return fmt.Errorf("editor client id cannot be empty")
	}
	if ed.JoinedAt.IsZero() {
		ed.JoinedAt = time.Now()
	}

	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}

	leaseResp, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(ed)
	if err != nil {
		return fmt.Errorf("failed to marshal editor: %w", err)
	}

	_, err = c.client.Put(ctx, c.editorKey(ed.ClientID), string(data), clientv3.WithLease(leaseResp.ID))
	if err != nil {
		return fmt.Errorf("failed to announce editor: %w", err)
	}

	c.leaseID = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFn = cancel

	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, leaseResp.ID)

	return nil
}

// Leave revokes this editor's lease, removing it from the roster
// immediately. Leaving without a prior Announce is a no-op.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("presence client is closed")
	}

	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}

	if c.leaseID == 0 {
		return nil
	}

	if _, err := c.client.Revoke(ctx, c.leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	c.leaseID = 0

	return nil
}

// Editors returns every editor currently in the roster, in arbitrary
// order.
func (c *Client) Editors(ctx context.Context) ([]Editor, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("presence client is closed")
	}

	resp, err := c.client.Get(ctx, c.prefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list editors: %w", err)
	}

	editors := make([]Editor, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ed Editor
		if err := json.Unmarshal(kv.Value, &ed); err != nil {
			// Skip invalid entries
			continue
		}
		editors = append(editors, ed)
	}

	return editors, nil
}

// Watch emits the current roster whenever it changes. The initial state
// is sent immediately; the channel closes when the context is cancelled
// or the client closes.
func (c *Client) Watch(ctx context.Context) (<-chan []Editor, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("presence client is closed")
	}

	ch := make(chan []Editor, 1)

	editors, err := c.Editors(ctx)
	if err != nil {
		return nil, err
	}
	ch <- editors

	watchChan := c.client.Watch(ctx, c.prefix(), clientv3.WithPrefix())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closedChan:
				return
			case watchResp, ok := <-watchChan:
				if !ok {
					return
				}
				if watchResp.Err() != nil {
					return
				}

				editors, err := c.Editors(context.Background())
				if err != nil {
					continue
				}

				select {
				case ch <- editors:
				case <-ctx.Done():
					return
				case <-c.closedChan:
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close stops lease renewal and releases the connection. The roster
// entry expires with its lease rather than being removed immediately;
// call Leave first for an instant departure.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}

	close(c.closedChan)
	c.mu.Unlock()

	c.wg.Wait()
	return c.client.Close()
}

// keepalive renews the lease every TTL/3 seconds.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID) {
	defer c.wg.Done()

	interval := time.Duration(c.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedChan:
			return
		case <-ticker.C:
			if _, err := c.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				// Lease is invalid, stop renewing
				c.mu.Lock()
				if c.leaseID == leaseID {
					c.leaseID = 0
				}
				c.mu.Unlock()
				return
			}
		}
	}
}

func (c *Client) prefix() string {
	return fmt.Sprintf("/%s/editors/", c.namespace)
}

func (c *Client) editorKey(clientID string) string {
	return c.prefix() + clientID
}
