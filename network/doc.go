// Package network provides the message channels game sessions run over.
//
// # Core Components
//
// Channel: A bidirectional, ordered text channel to one peer with a Send
// operation and message listeners.
//
// Pipe: An in-memory pair of connected channels, used by tests and local
// games.
//
// WSChannel: A Channel over a gorilla/websocket connection.
//
// DataChannel: A Channel over a pion/webrtc data channel, the transport
// browsers use between peers.
//
// Fanout: Fire-and-forget broadcast to a set of channels.
//
// # Delivery
//
// Every adapter delivers messages to listeners from a single goroutine per
// channel, in the order they were received. A listener may call Send on any
// channel without deadlocking. Delivery failures are reported by Send and are
// never retried.
package network
