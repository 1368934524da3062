package realtime

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannelName is the pub/sub channel events travel on when
// none is configured.
const DefaultRedisChannelName = "mindgraph:events"

// RedisOptions configures the Redis transport.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Channel is the pub/sub channel name. Defaults to
	// DefaultRedisChannelName.
	Channel string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisChannel implements Channel over Redis pub/sub using go-redis/v9.
// Every client subscribed to the same channel name sees every published
// event, its own included; echo suppression is the adapter's job.
type RedisChannel struct {
	client  *redis.Client
	channel string
}

// NewRedisChannel connects to Redis and verifies the connection with a
// ping before returning.
func NewRedisChannel(opts RedisOptions) (*RedisChannel, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.Channel == "" {
		opts.Channel = DefaultRedisChannelName
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisChannel{client: client, channel: opts.Channel}, nil
}

// Publish sends one event to every subscriber of the channel.
func (c *RedisChannel) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", c.channel, err)
	}

	return nil
}

// Subscribe creates a subscription to the event channel.
func (c *RedisChannel) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := c.client.Subscribe(ctx, c.channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", c.channel, err)
	}

	eventChan := make(chan Event)

	go func() {
		defer close(eventChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					// Skip malformed payloads but keep the subscription alive
					continue
				}

				select {
				case eventChan <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return eventChan, nil
}

// Close closes the Redis connection.
func (c *RedisChannel) Close() error {
	return c.client.Close()
}
