// Package wsduplex is the one concrete transport.Duplex this module
// ships: a request/response RPC and multiplexed event-subscription
// channel layered over a single gorilla/websocket connection, the same
// transport library _examples/sumanthd032-CollabText uses for both its
// agent's client hub and its server's relay socket.
//
// The teacher's own wire format carries no request/response concept (it
// relays raw, fire-and-forget op bytes), so correlating a request with
// its eventual response needs an id of its own; this package mints one
// per in-flight request with google/uuid.
package wsduplex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/collabtext/pageroom/pageerr"
	"github.com/collabtext/pageroom/transport"
)

// frame is the one JSON shape every message on the wire takes. Exactly
// one purpose is populated per frame: an outgoing request (Id, Method,
// Data), a reply to one (Id, Result or Error), or a pushed event
// (Event, Payload).
type frame struct {
	Id     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`

	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type pendingRequest struct {
	result json.RawMessage
	err    error
	done   chan struct{}
}

// RequestHandler answers an incoming RPC request for method with data,
// returning the value to encode as the response's Result.
type RequestHandler func(method string, data json.RawMessage) (any, error)

// Conn is a bidirectional wsduplex connection. It implements
// transport.Duplex for the calling side that issues requests and
// subscribes to events; a server-role holder of the same Conn can also
// register a RequestHandler to answer requests arriving from its peer.
type Conn struct {
	ws *websocket.Conn

	mu      sync.Mutex
	pending map[string]*pendingRequest
	subs    map[string][]*subscription
	handler RequestHandler
	closed  bool

	writeMu sync.Mutex
	readErr error
	done    chan struct{}
}

var _ transport.Duplex = (*Conn)(nil)

// New wraps an already-established *websocket.Conn (from either
// websocket.DefaultDialer.Dial on the client side or websocket.Upgrader
// on the server side) and starts its read loop.
func New(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:      ws,
		pending: make(map[string]*pendingRequest),
		subs:    make(map[string][]*subscription),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// HandleRequests installs the handler used to answer requests arriving
// from the peer. Only meaningful for a server-role Conn; a client-role
// Conn normally never receives a Method-bearing frame.
func (c *Conn) HandleRequests(h RequestHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Conn) Request(ctx context.Context, method string, data any, out any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return pageerr.Wrap("wsduplex.Request", pageerr.Transport, err)
	}

	id := uuid.NewString()
	pr := &pendingRequest{done: make(chan struct{})}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return pageerr.New("wsduplex.Request", pageerr.RoomClosed, "connection already closed")
	}
	c.pending[id] = pr
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(frame{Id: id, Method: method, Data: payload}); err != nil {
		return pageerr.Wrap("wsduplex.Request", pageerr.Transport, err)
	}

	select {
	case <-ctx.Done():
		return pageerr.Wrap("wsduplex.Request", pageerr.Transport, ctx.Err())
	case <-c.done:
		return pageerr.New("wsduplex.Request", pageerr.Transport, "connection closed while awaiting response")
	case <-pr.done:
	}

	if pr.err != nil {
		return pageerr.Wrap("wsduplex.Request", pageerr.Transport, pr.err)
	}
	if out != nil && len(pr.result) > 0 {
		if err := json.Unmarshal(pr.result, out); err != nil {
			return pageerr.Wrap("wsduplex.Request", pageerr.Transport, err)
		}
	}
	return nil
}

// Respond answers an in-flight request previously delivered to a
// RequestHandler. It is the server-side counterpart of Request.
func (c *Conn) Respond(id string, result any, handlerErr error) error {
	if handlerErr != nil {
		return c.writeFrame(frame{Id: id, Error: handlerErr.Error()})
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.writeFrame(frame{Id: id, Result: payload})
}

// Publish pushes a named event to every subscriber of eventName on the
// peer end of this Conn (used by the server role to fan out commit
// notifications).
func (c *Conn) Publish(eventName string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.writeFrame(frame{Event: eventName, Payload: data})
}

func (c *Conn) Response(eventNames ...string) transport.EventStream {
	s := &subscription{ch: make(chan json.RawMessage, 32), closed: make(chan struct{})}
	c.mu.Lock()
	for _, name := range eventNames {
		c.subs[name] = append(c.subs[name], s)
	}
	c.mu.Unlock()
	s.owner = c
	s.names = eventNames
	return s
}

// Done returns a channel closed once this connection has disconnected,
// letting a server-role holder tear down per-connection state (e.g. a
// relay subscription forwarding wire events to this peer) without
// polling.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, pr := range c.pending {
		pr.err = fmt.Errorf("connection disconnected")
		close(pr.done)
	}
	c.pending = nil
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, list := range subs {
		for _, s := range list {
			s.closeOnce()
		}
	}
	close(c.done)
	return c.ws.Close()
}

func (c *Conn) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

func (c *Conn) readLoop() {
	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			_ = c.Disconnect()
			return
		}
		c.dispatch(f)
	}
}

func (c *Conn) dispatch(f frame) {
	switch {
	case f.Event != "":
		c.mu.Lock()
		subs := append([]*subscription(nil), c.subs[f.Event]...)
		c.mu.Unlock()
		for _, s := range subs {
			select {
			case s.ch <- f.Payload:
			default:
				// Slow subscriber: drop rather than block the read loop
				// and stall every other event on this connection.
			}
		}

	case f.Method != "":
		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h == nil {
			_ = c.writeFrame(frame{Id: f.Id, Error: "no handler registered for " + f.Method})
			return
		}
		result, err := h(f.Method, f.Data)
		_ = c.Respond(f.Id, result, err)

	default:
		c.mu.Lock()
		pr := c.pending[f.Id]
		c.mu.Unlock()
		if pr == nil {
			return
		}
		if f.Error != "" {
			pr.err = fmt.Errorf("%s", f.Error)
		} else {
			pr.result = f.Result
		}
		close(pr.done)
	}
}

type subscription struct {
	ch       chan json.RawMessage
	closed   chan struct{}
	closeMu  sync.Once
	owner    *Conn
	names    []string
}

func (s *subscription) Next(ctx context.Context) (json.RawMessage, bool) {
	select {
	case payload, ok := <-s.ch:
		return payload, ok
	case <-s.closed:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (s *subscription) Close() {
	s.closeOnce()
	if s.owner == nil {
		return
	}
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	for _, name := range s.names {
		list := s.owner.subs[name]
		for i, sub := range list {
			if sub == s {
				s.owner.subs[name] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

func (s *subscription) closeOnce() {
	s.closeMu.Do(func() { close(s.closed) })
}
