package wsduplex

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Dial opens a client-side websocket connection and wraps it as a Conn,
// the transport.Duplex a Page Room uses to reach the room server.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// Upgrader wraps gorilla/websocket.Upgrader for the server role, the
// counterpart of Dial used by cmd/pageroomd to accept a page-room
// connection.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Accept upgrades an inbound HTTP request to a websocket and wraps it.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}
