// Package room implements the Page Room (spec §4.6): the live mirror of
// one page's lines plus the push pipeline that reconciles local edits
// against the server's commit history, grounded on the
// join/subscribe/reconnect shape of
// _examples/sumanthd032-CollabText's agent hub in teacher_agent/main.go,
// generalized from that hub's single raw-op relay to a full
// diff/apply/retry commit cycle.
package room

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"

	"github.com/collabtext/pageroom/apply"
	"github.com/collabtext/pageroom/lineid"
	"github.com/collabtext/pageroom/linediff"
	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
	"github.com/collabtext/pageroom/transport"
)

// defaultRetry is push's default conflict-retry budget (spec §4.6).
const defaultRetry = 3

// Room is a live, single-owner mirror of one page plus the socket it was
// joined on. mu only guards the in-memory snapshot fields below it; it is
// held briefly to read or write them, never across a network round trip.
// Concurrent Insert/Update/Remove/Patch calls are therefore not mutually
// exclusive — they race to push, and push's parentId-conflict retry loop
// is what brings them to a consistent result, the same optimistic
// convergence a remote commit arriving through consumeCommits uses.
type Room struct {
	conn    transport.Duplex
	fetcher metadata.Fetcher

	project, title string
	projectId      string
	pageId         string
	userId         string

	mu       sync.Mutex
	parentId model.CommitId
	created  bool
	lines    model.Lines
	closed   bool

	commits        transport.EventStream
	consumerCancel context.CancelFunc
	consumerDone   chan struct{}
}

// Join resolves projectId/userId/the initial page in parallel, opens the
// page room on conn, and starts the background live-commit consumer.
func Join(ctx context.Context, conn transport.Duplex, fetcher metadata.Fetcher, project, title string) (*Room, error) {
	var projectId, userId string
	var page metadata.PageInfo

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projectId, err = fetcher.GetProjectId(gctx, project)
		return err
	})
	g.Go(func() error {
		var err error
		userId, err = fetcher.GetUserId(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		page, err = metadata.EnsureEditablePage(gctx, fetcher, project, title)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	req := joinRequest{ProjectId: projectId, PageId: page.Id, ProjectUpdatesStream: false}
	if err := conn.Request(ctx, "room:join", req, nil); err != nil {
		return nil, err
	}

	r := &Room{
		conn:      conn,
		fetcher:   fetcher,
		project:   project,
		title:     title,
		projectId: projectId,
		pageId:    page.Id,
		userId:    userId,
		parentId:  page.CommitId,
		created:   page.Persistent,
		lines:     page.Lines,
	}

	r.commits = conn.Response("commit")
	consumerCtx, cancel := context.WithCancel(context.Background())
	r.consumerCancel = cancel
	r.consumerDone = make(chan struct{})
	go r.consumeCommits(consumerCtx)

	return r, nil
}

// consumeCommits is the background live-commit task spec §4.6 step 3 and
// §9 describe. push also writes r.lines directly (see push's own
// parentId guard against clobbering what this consumer has already
// applied); consumeCommits runs until the commit stream terminates. On a
// malformed notification or a commit that fails to apply it logs and
// returns: the mirror then stops following remote commits, and the room is
// not marked closed, so its methods keep working until Cleanup.
func (r *Room) consumeCommits(ctx context.Context) {
	defer close(r.consumerDone)
	for {
		payload, ok := r.commits.Next(ctx)
		if !ok {
			return
		}
		var note commitNotification
		if err := json.Unmarshal(payload, &note); err != nil {
			log.Printf("room: malformed commit notification on %s/%s, stopping live-commit consumer: %v", r.project, r.title, err)
			return
		}

		r.mu.Lock()
		applied, err := apply.Apply(r.lines, note.Changes, apply.Options{
			Updated: lineid.FromCommit(note.Id),
			UserId:  note.UserId,
		})
		if err != nil {
			r.mu.Unlock()
			log.Printf("room: failed to apply commit %s on %s/%s, stopping live-commit consumer: %v", note.Id, r.project, r.title, err)
			return
		}
		r.parentId = note.Id
		r.lines = applied
		r.mu.Unlock()
	}
}

func (r *Room) snapshot() (model.CommitId, bool, model.Lines) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parentId, r.created, r.lines.Clone()
}

func (r *Room) checkOpen(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return pageerr.New(op, pageerr.RoomClosed, "room for %s/%s is closed", r.project, r.title)
	}
	return nil
}

// Insert splits text on line breaks and inserts one line per segment,
// all anchored immediately before beforeId (use model.EndAnchor, the
// zero value's effective default, to append).
func (r *Room) Insert(ctx context.Context, text string, beforeId model.LineId) error {
	if err := r.checkOpen("room.Insert"); err != nil {
		return err
	}
	if beforeId == "" {
		beforeId = model.EndAnchor
	}
	segments := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	changes := make(model.Changes, 0, len(segments))
	for _, s := range segments {
		changes = append(changes, model.NewInsert(beforeId, model.InsertPayload{
			Id:   lineid.New(r.userId),
			Text: s,
		}))
	}
	return r.push(ctx, changes, pushOptions{retry: defaultRetry})
}

// Remove deletes a single line.
func (r *Room) Remove(ctx context.Context, lineId model.LineId) error {
	if err := r.checkOpen("room.Remove"); err != nil {
		return err
	}
	return r.push(ctx, model.Changes{model.NewDelete(lineId)}, pushOptions{retry: defaultRetry})
}

// Update replaces a single line's text.
func (r *Room) Update(ctx context.Context, text string, lineId model.LineId) error {
	if err := r.checkOpen("room.Update"); err != nil {
		return err
	}
	return r.push(ctx, model.Changes{model.NewUpdate(lineId, text)}, pushOptions{retry: defaultRetry})
}

// Patch awaits f on the current lines' texts, diffs the result into
// change-ops, and pushes them. On conflict, f is re-invoked on the
// refreshed lines (consistent-read semantics, spec §4.6 step 4).
func (r *Room) Patch(ctx context.Context, f func(lines []string) ([]string, error)) error {
	if err := r.checkOpen("room.Patch"); err != nil {
		return err
	}
	_, _, lines := r.snapshot()
	newTexts, err := f(lines.Texts())
	if err != nil {
		return err
	}
	changes, err := linediff.ToChanges(lines, newTexts, r.userId)
	if err != nil {
		return err
	}
	recompute := func(refreshed model.Lines) (model.Changes, error) {
		refreshedTexts, err := f(refreshed.Texts())
		if err != nil {
			return nil, err
		}
		return linediff.ToChanges(refreshed, refreshedTexts, r.userId)
	}
	return r.push(ctx, changes, pushOptions{retry: defaultRetry, recompute: recompute})
}

// ListenPageUpdate hands out a fresh subscription to this room's commit
// channel. Every subscriber, including one returned by a prior call,
// receives its own copy of every notification.
func (r *Room) ListenPageUpdate() (transport.EventStream, error) {
	if err := r.checkOpen("room.ListenPageUpdate"); err != nil {
		return nil, err
	}
	return r.conn.Response("commit"), nil
}

// Cleanup disconnects the socket and stops the live-commit consumer. All
// other methods fail with RoomClosed afterward. Idempotent.
func (r *Room) Cleanup() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.consumerCancel()
	r.commits.Close()
	<-r.consumerDone
	return r.conn.Disconnect()
}

// pushOptions configures one call to push.
type pushOptions struct {
	retry int
	// recompute, when set, re-derives changes from the refreshed lines
	// after a conflict refetch (patch's diff anchors go stale; insert/
	// update/remove's single explicit anchor does not need re-deriving).
	recompute func(model.Lines) (model.Changes, error)
}

// push implements spec §4.6's push pipeline: trial-apply, auto-append
// title/description ops, submit, and on Transport failure retry up to
// opts.retry times with a refetch-and-rediff in between.
func (r *Room) push(ctx context.Context, changes model.Changes, opts pushOptions) error {
	retry := opts.retry
	if retry <= 0 {
		retry = defaultRetry
	}

	bo := backoff.NewExponentialBackOff()

	for attempt := 0; ; attempt++ {
		if err := r.checkOpen("room.push"); err != nil {
			return err
		}

		parentId, created, lines := r.snapshot()

		changedLines, err := apply.Apply(lines, changes, apply.Options{UserId: r.userId})
		if err != nil {
			return err
		}

		batch := append(model.Changes(nil), changes...)
		if lines.Title() != changedLines.Title() || !created {
			batch = append(batch, model.NewTitle(changedLines.Title()))
		}
		oldDesc := strings.Join(lines.Descriptions(), "\n")
		newDesc := strings.Join(changedLines.Descriptions(), "\n")
		if oldDesc != newDesc {
			batch = append(batch, model.NewDescriptions(changedLines.Descriptions()))
		}

		req := commitRequest{
			Kind:      "page",
			ProjectId: r.projectId,
			ParentId:  parentId,
			PageId:    r.pageId,
			UserId:    r.userId,
			Changes:   batch,
			Cursor:    nil,
			Freeze:    true,
		}
		var res commitResponse
		reqErr := r.conn.Request(ctx, "commit", req, &res)
		if reqErr == nil {
			r.mu.Lock()
			r.parentId = res.CommitId
			r.created = true
			r.lines = changedLines
			r.mu.Unlock()
			return nil
		}

		if !pageerr.Is(reqErr, pageerr.Transport) {
			return reqErr
		}
		if attempt >= retry {
			return pageerr.Wrap("room.push", pageerr.PushExhausted, reqErr)
		}

		page, err := metadata.EnsureEditablePage(ctx, r.fetcher, r.project, r.title)
		if err != nil {
			return err
		}
		r.mu.Lock()
		if r.parentId == parentId {
			// consumeCommits hasn't moved the local mirror since this
			// attempt's snapshot; the refetch is the newest state and
			// becomes the next baseline.
			r.parentId = page.CommitId
			r.created = page.Persistent
			r.lines = page.Lines
		} else {
			// consumeCommits already applied a commit delivered over the
			// live stream while this refetch was in flight. That state is
			// newer than whatever the refetch just read; keep it rather
			// than clobbering it with the refetch's now-stale snapshot.
			page.CommitId = r.parentId
			page.Persistent = r.created
			page.Lines = r.lines
		}
		r.mu.Unlock()

		if opts.recompute != nil {
			changes, err = opts.recompute(page.Lines)
			if err != nil {
				return err
			}
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = 0
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return pageerr.Wrap("room.push", pageerr.Transport, ctx.Err())
		}
	}
}
