// Package realtime keeps concurrent mind-map clients convergent over a
// pub/sub channel.
//
// # Transports
//
// Three Channel implementations ship: RedisChannel (go-redis pub/sub,
// every subscriber sees every event, echoes included), SocketIOChannel
// (websocket client speaking the add_node/update_node/delete_node
// contract) and MemoryChannel (in-process fan-out for tests and
// single-process multi-view setups).
//
// # Reconciliation
//
// The Adapter subscribes to a Channel and applies remote events to the
// local store: own echoes are dropped by client id, an added node that
// already exists is a no-op, updates merge last-message-wins, deletes
// cascade. There are no vector clocks; concurrent edits to the same node
// can lose one side, which is accepted and documented.
//
// # Degradation
//
// A dropped channel never blocks editing: the adapter moves to
// StateDisconnected, reconnects in the background, and after an outage
// longer than the reload threshold recommends a bulk reload to repair
// missed events.
package realtime
