package realtime

import (
	"context"
	"sync"
)

// MemoryChannel is an in-process Channel. Every published event fans
// out to every subscriber, the publisher included, matching the echo
// semantics of the Redis transport. It backs single-process multi-view
// setups and tests.
type MemoryChannel struct {
	mu     sync.Mutex
	subs   map[int]*memorySub
	nextID int
	closed bool
}

type memorySub struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *memorySub) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryChannel creates an empty in-process channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[int]*memorySub)}
}

// Publish delivers the event to every current subscriber. Delivery to
// each subscriber preserves publish order; a subscriber that stopped
// receiving is skipped rather than blocking the publisher forever.
func (c *MemoryChannel) Publish(ctx context.Context, evt Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	subs := make([]*memorySub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		select {
		case s.events <- evt:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe returns a channel of events published after this call. The
// channel closes when the context is cancelled or the MemoryChannel
// closes.
func (c *MemoryChannel) Subscribe(ctx context.Context) (<-chan Event, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	sub := &memorySub{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = sub
	c.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() {
			sub.stop()
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case evt := <-sub.events:
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}
		}
	}()

	return out, nil
}

// Close stops all subscriptions and rejects further publishes.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*memorySub, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return nil
}
