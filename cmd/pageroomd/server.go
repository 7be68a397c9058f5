// Reference Page Room server: the counterpart cmd/pageroomctl (and any
// other transport/wsduplex client) joins and pushes commits against.
// Not part of the invariant-bearing core (spec.md's join/push pipeline
// lives client-side in package room); this is scaffolding to run it
// against something real, in the small-main-plus-siblings layout
// teacher_server/main.go and teacher_agent/main.go both use.
package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/collabtext/pageroom/apply"
	"github.com/collabtext/pageroom/broker/relay"
	"github.com/collabtext/pageroom/lineid"
	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
	"github.com/collabtext/pageroom/transport/wsduplex"
)

// pageLoader seeds a page's authoritative in-memory state by id, once a
// client has already resolved projectId/pageId through its own
// metadata.Fetcher and named them in a room:join. metadata/pgfetcher
// implements this alongside the broader metadata.Fetcher interface.
type pageLoader interface {
	GetPageById(ctx context.Context, projectId, pageId string) (metadata.PageInfo, error)
}

// Server holds the authoritative in-memory commit state for every page a
// connected client has joined, backed by a pageLoader for the initial
// page load and a relay.Relay for cross-process fan-out.
type Server struct {
	loader pageLoader
	relay  *relay.Relay

	mu    sync.Mutex
	pages map[string]*pageState
}

// pageState is the server's serialized view of one page's history head,
// the authority a commit's parentId is checked against.
type pageState struct {
	mu       sync.Mutex
	parentId model.CommitId
	lines    model.Lines
}

func NewServer(loader pageLoader, r *relay.Relay) *Server {
	return &Server{loader: loader, relay: r, pages: make(map[string]*pageState)}
}

// stateFor returns the page's in-memory state, loading it via s.loader
// the first time any connection joins it.
func (s *Server) stateFor(ctx context.Context, projectId, pageId string) (*pageState, error) {
	s.mu.Lock()
	ps, ok := s.pages[pageId]
	s.mu.Unlock()
	if ok {
		return ps, nil
	}

	page, err := s.loader.GetPageById(ctx, projectId, pageId)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok := s.pages[pageId]; ok {
		return ps, nil
	}
	ps = &pageState{parentId: page.CommitId, lines: page.Lines}
	s.pages[pageId] = ps
	return ps, nil
}

// HandleConn drives one client connection's wire protocol for its
// lifetime. It returns once the connection's context is done.
func (s *Server) HandleConn(ctx context.Context, conn *wsduplex.Conn) {
	var joined joinState

	conn.HandleRequests(func(method string, data json.RawMessage) (any, error) {
		switch method {
		case "room:join":
			return s.handleJoin(ctx, conn, &joined, data)
		case "commit":
			return s.handleCommit(ctx, &joined, data)
		default:
			return nil, pageerr.New("pageroomd", pageerr.Transport, "unknown method %q", method)
		}
	})

	<-ctx.Done()
}

// joinState remembers what a connection joined so later commit RPCs know
// which page (or whether it's only streaming project events).
type joinState struct {
	mu        sync.Mutex
	projectId string
	pageId    string
	streaming bool
}

type joinRequestWire struct {
	ProjectId            string `json:"projectId"`
	PageId               string `json:"pageId"`
	ProjectUpdatesStream bool   `json:"projectUpdatesStream"`
}

func (s *Server) handleJoin(ctx context.Context, conn *wsduplex.Conn, joined *joinState, data json.RawMessage) (any, error) {
	var req joinRequestWire
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, pageerr.Wrap("pageroomd.room:join", pageerr.Transport, err)
	}

	joined.mu.Lock()
	joined.projectId = req.ProjectId
	joined.pageId = req.PageId
	joined.streaming = req.ProjectUpdatesStream
	joined.mu.Unlock()

	channel := req.PageId
	if req.ProjectUpdatesStream {
		channel = "project:" + req.ProjectId
	} else if _, err := s.stateFor(ctx, req.ProjectId, req.PageId); err != nil {
		return nil, err
	}

	sub := s.relay.Subscribe(ctx, channel)
	go forwardCommits(ctx, conn, sub)

	return struct{}{}, nil
}

// forwardCommits relays every notification this process (or a sibling
// pageroomd sharing the same Redis instance) publishes for one page to
// this connection's commit event channel, until ctx is done.
func forwardCommits(ctx context.Context, conn *wsduplex.Conn, sub *relay.Subscription) {
	defer sub.Close()
	for {
		payload, ok := sub.Next(ctx)
		if !ok {
			return
		}
		if err := conn.Publish("commit", json.RawMessage(payload)); err != nil {
			return
		}
	}
}

type commitRequestWire struct {
	Kind      string         `json:"kind"`
	ProjectId string         `json:"projectId"`
	ParentId  model.CommitId `json:"parentId"`
	PageId    string         `json:"pageId"`
	UserId    string         `json:"userId"`
	Changes   model.Changes  `json:"changes"`
	Freeze    bool           `json:"freeze"`
}

type commitResponseWire struct {
	CommitId model.CommitId `json:"commitId"`
}

type commitNotificationWire struct {
	Id      model.CommitId `json:"id"`
	Changes model.Changes  `json:"changes"`
	UserId  string         `json:"userId"`
}

func (s *Server) handleCommit(ctx context.Context, joined *joinState, data json.RawMessage) (any, error) {
	joined.mu.Lock()
	projectId, pageId := joined.projectId, joined.pageId
	joined.mu.Unlock()
	if pageId == "" {
		return nil, pageerr.New("pageroomd.commit", pageerr.Transport, "commit before room:join")
	}

	var req commitRequestWire
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, pageerr.Wrap("pageroomd.commit", pageerr.Transport, err)
	}

	ps, err := s.stateFor(ctx, projectId, pageId)
	if err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if req.ParentId != ps.parentId {
		return nil, pageerr.New("pageroomd.commit", pageerr.Transport,
			"stale parent %s, head is %s", req.ParentId, ps.parentId)
	}

	applied, err := apply.Apply(ps.lines, req.Changes, apply.Options{UserId: req.UserId})
	if err != nil {
		return nil, err
	}

	commitId := model.CommitId(lineid.New("server"))
	ps.parentId = commitId
	ps.lines = applied

	note := commitNotificationWire{Id: commitId, Changes: req.Changes, UserId: req.UserId}
	if err := s.relay.Publish(context.Background(), pageId, note); err != nil {
		log.Printf("pageroomd: publishing commit %s for page %s: %v", commitId, pageId, err)
	}

	return commitResponseWire{CommitId: commitId}, nil
}
