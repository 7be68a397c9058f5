// Package transporttest provides an in-memory transport.Duplex fake so
// room and stream tests can drive the core's socket
// interactions without a live server, per the "test fixtures can supply
// alternate collaborators" note in spec.md's design notes.
package transporttest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/collabtext/pageroom/pageerr"
	"github.com/collabtext/pageroom/transport"
)

// Handler answers a canned RPC call for one method.
type Handler func(data json.RawMessage) (any, error)

// Fake is a transport.Duplex whose request/response behavior is scripted
// by the test and whose event subscriptions are driven with Emit.
type Fake struct {
	mu       sync.Mutex
	closed   bool
	handlers map[string]Handler
	subs     map[string][]*stream
	requests []RecordedRequest
}

// RecordedRequest captures one Request call for assertions.
type RecordedRequest struct {
	Method string
	Data   json.RawMessage
}

func New() *Fake {
	return &Fake{handlers: make(map[string]Handler), subs: make(map[string][]*stream)}
}

// OnRequest installs (or replaces) the canned handler for method.
func (f *Fake) OnRequest(method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Requests returns every Request call recorded so far, in order.
func (f *Fake) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

func (f *Fake) Request(ctx context.Context, method string, data any, out any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return pageerr.Wrap("transporttest.Request", pageerr.Transport, err)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return pageerr.New("transporttest.Request", pageerr.RoomClosed, "connection closed")
	}
	f.requests = append(f.requests, RecordedRequest{Method: method, Data: payload})
	h := f.handlers[method]
	f.mu.Unlock()

	if h == nil {
		return pageerr.New("transporttest.Request", pageerr.Transport, "no handler installed for method %q", method)
	}

	result, err := h(payload)
	if err != nil {
		return pageerr.Wrap("transporttest.Request", pageerr.Transport, err)
	}
	if out != nil && result != nil {
		resultBytes, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(resultBytes, out); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) Response(eventNames ...string) transport.EventStream {
	s := &stream{ch: make(chan json.RawMessage, 32), closed: make(chan struct{})}
	f.mu.Lock()
	for _, name := range eventNames {
		f.subs[name] = append(f.subs[name], s)
	}
	f.mu.Unlock()
	return s
}

// Emit pushes payload to every subscriber of eventName.
func (f *Fake) Emit(eventName string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	subs := append([]*stream(nil), f.subs[eventName]...)
	f.mu.Unlock()
	for _, s := range subs {
		s.ch <- data
	}
	return nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, list := range f.subs {
		for _, s := range list {
			s.closeOnce()
		}
	}
	return nil
}

type stream struct {
	ch        chan json.RawMessage
	closed    chan struct{}
	closeOnly sync.Once
}

func (s *stream) Next(ctx context.Context) (json.RawMessage, bool) {
	select {
	case payload := <-s.ch:
		return payload, true
	case <-s.closed:
		select {
		case payload := <-s.ch:
			return payload, true
		default:
			return nil, false
		}
	case <-ctx.Done():
		return nil, false
	}
}

func (s *stream) Close() { s.closeOnce() }

func (s *stream) closeOnce() { s.closeOnly.Do(func() { close(s.closed) }) }

var _ transport.Duplex = (*Fake)(nil)
