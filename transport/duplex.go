// Package transport declares the socket collaborator interfaces spec.md
// §6 keeps external to the core: request/response RPC and multiplexed
// event subscription over one duplex connection. The low-level socket.io
// framing/handshake itself is out of scope (spec.md §1); this package
// only names the shape the core depends on. transport/wsduplex provides
// one concrete implementation over gorilla/websocket.
package transport

import (
	"context"
	"encoding/json"
)

// Socket is the bare connection lifecycle spec.md's socketIO() returns.
type Socket interface {
	// Disconnect terminates the connection. Idempotent.
	Disconnect() error
}

// Duplex is what spec.md's wrap(socket) returns: a request/response RPC
// channel plus multiplexed event subscriptions, layered over one Socket.
type Duplex interface {
	Socket

	// Request issues a "socket.io-request"-style RPC and decodes the
	// response into out (out may be nil to discard the payload). It
	// returns a *pageerr.Error of kind RoomClosed when the connection was
	// already disconnected before the call, and of kind Transport on any
	// other connection or server-side failure.
	Request(ctx context.Context, method string, data any, out any) error

	// Response subscribes to one or more named event channels. Multiple
	// callers subscribing to the same event each receive their own copy
	// of every payload.
	Response(eventNames ...string) EventStream
}

// EventStream is the pull-based AsyncSequence spec.md's response()
// returns: repeated Next calls yield payloads until the stream is closed
// (ok == false) or the context is cancelled.
type EventStream interface {
	Next(ctx context.Context) (payload json.RawMessage, ok bool)
	// Close releases the subscription. Idempotent.
	Close()
}
