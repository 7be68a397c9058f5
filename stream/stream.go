// Package stream implements the Stream Subscriber (spec §4.7): a
// project-wide feed of page-creation/commit events, joined the same way
// a Page Room is but with no page and no push pipeline of its own.
package stream

import (
	"context"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/transport"
)

// defaultEvents is the pair of channels spec §4.7 says to default to when
// the caller names none explicitly.
var defaultEvents = []string{"projectUpdatesStream:event", "projectUpdatesStream:commit"}

// joinRequest mirrors room's room:join envelope with pageId left nil and
// the project-stream flag set.
type joinRequest struct {
	ProjectId            string `json:"projectId"`
	PageId               any    `json:"pageId"`
	ProjectUpdatesStream bool   `json:"projectUpdatesStream"`
}

// Stream is a live subscription to a project's event feed.
type Stream struct {
	conn   transport.Duplex
	events transport.EventStream
}

// Listen resolves projectId, opens a project-stream room on conn, and
// subscribes to eventNames (or both default channels if none are given).
func Listen(ctx context.Context, conn transport.Duplex, fetcher metadata.Fetcher, project string, eventNames ...string) (*Stream, error) {
	projectId, err := fetcher.GetProjectId(ctx, project)
	if err != nil {
		return nil, err
	}

	req := joinRequest{ProjectId: projectId, PageId: nil, ProjectUpdatesStream: true}
	if err := conn.Request(ctx, "room:join", req, nil); err != nil {
		return nil, err
	}

	names := eventNames
	if len(names) == 0 {
		names = defaultEvents
	}

	return &Stream{conn: conn, events: conn.Response(names...)}, nil
}

// Next blocks for the next event payload, or returns ok == false once the
// stream has been closed.
func (s *Stream) Next(ctx context.Context) (payload []byte, ok bool) {
	return s.events.Next(ctx)
}

// Close terminates the subscription and disconnects the underlying
// socket, the consumer-requested termination spec §4.7 names.
func (s *Stream) Close() error {
	s.events.Close()
	return s.conn.Disconnect()
}
