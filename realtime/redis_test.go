package realtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflow-ai/mindgraph/graph"
)

// setupTestChannel creates a miniredis instance and returns a connected RedisChannel.
func setupTestChannel(t *testing.T) (*RedisChannel, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	ch, err := NewRedisChannel(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = ch.Close()
		mr.Close()
	})

	return ch, mr
}

func TestNewRedisChannel(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)
		defer mr.Close()

		ch, err := NewRedisChannel(RedisOptions{
			URL: fmt.Sprintf("redis://%s", mr.Addr()),
		})
		require.NoError(t, err)
		require.NotNil(t, ch)
		defer ch.Close()
	})

	t.Run("default channel name", func(t *testing.T) {
		mr := miniredis.RunT(t)
		defer mr.Close()

		ch, err := NewRedisChannel(RedisOptions{
			URL: fmt.Sprintf("redis://%s", mr.Addr()),
		})
		require.NoError(t, err)
		defer ch.Close()
		assert.Equal(t, DefaultRedisChannelName, ch.channel)
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisChannel(RedisOptions{
			URL:            "redis://localhost:99999",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisChannel(RedisOptions{
			URL: "invalid://url",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestRedisPublishSubscribe(t *testing.T) {
	t.Run("event round trip", func(t *testing.T) {
		ch, _ := setupTestChannel(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := ch.Subscribe(ctx)
		require.NoError(t, err)

		node := graph.NewNode("tasks").
			WithID("n-1").
			WithParent(graph.RootID).
			WithData(graph.Data{Label: "sprint 12"})

		err = ch.Publish(ctx, Event{
			Type:     EventNodeAdded,
			ClientID: "client-a",
			Node:     node,
		})
		require.NoError(t, err)

		select {
		case evt := <-events:
			assert.Equal(t, EventNodeAdded, evt.Type)
			assert.Equal(t, "client-a", evt.ClientID)
			require.NotNil(t, evt.Node)
			assert.Equal(t, "n-1", evt.Node.ID)
			assert.Equal(t, "sprint 12", evt.Node.Data.Label)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("delete event carries all cascade ids", func(t *testing.T) {
		ch, _ := setupTestChannel(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := ch.Subscribe(ctx)
		require.NoError(t, err)

		err = ch.Publish(ctx, Event{
			Type: EventNodeDeleted,
			IDs:  []string{"n-1", "n-2", "n-3"},
		})
		require.NoError(t, err)

		select {
		case evt := <-events:
			assert.Equal(t, EventNodeDeleted, evt.Type)
			assert.Equal(t, []string{"n-1", "n-2", "n-3"}, evt.IDs)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("publisher receives its own event", func(t *testing.T) {
		// Echo suppression belongs to the adapter, not the transport.
		ch, _ := setupTestChannel(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := ch.Subscribe(ctx)
		require.NoError(t, err)

		require.NoError(t, ch.Publish(ctx, Event{Type: EventNodeDeleted, ClientID: "me", IDs: []string{"x"}}))

		select {
		case evt := <-events:
			assert.Equal(t, "me", evt.ClientID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for echo")
		}
	})

	t.Run("subscription closes on context cancellation", func(t *testing.T) {
		ch, _ := setupTestChannel(t)
		ctx, cancel := context.WithCancel(context.Background())

		events, err := ch.Subscribe(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-events:
			assert.False(t, ok, "channel should be closed")
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for channel close")
		}
	})

	t.Run("malformed payload is skipped", func(t *testing.T) {
		ch, mr := setupTestChannel(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := ch.Subscribe(ctx)
		require.NoError(t, err)

		mr.Publish(DefaultRedisChannelName, "not json")
		require.NoError(t, ch.Publish(ctx, Event{Type: EventNodeDeleted, IDs: []string{"survivor"}}))

		select {
		case evt := <-events:
			assert.Equal(t, []string{"survivor"}, evt.IDs)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event after malformed payload")
		}
	})
}
