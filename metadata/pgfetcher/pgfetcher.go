// Package pgfetcher is a metadata.Fetcher backed by Postgres, grounded on
// _examples/sumanthd032-CollabText's teacher_server/main.go, which opens
// a pgxpool.Pool but never queries it ("NOTE: we connect to Postgres but
// don't use it yet in this step" — that pool gets its first real use
// here).
package pgfetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// row and rows narrow pgx.Row/pgx.Rows down to the methods Fetcher
// actually calls, so a test can supply a fake without standing up a
// Postgres instance.
type row interface {
	Scan(dest ...any) error
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) row
	Query(ctx context.Context, sql string, args ...any) (rows, error)
}

// Fetcher is a metadata.Fetcher querying projects/pages/lines tables.
type Fetcher struct {
	db      querier
	closeFn func()

	// SessionUserId resolves the caller's user id for GetUserId; the zero
	// value always reports a guest session. cmd/pageroomd does not set it.
	SessionUserId func(ctx context.Context) string
}

// New opens a pgxpool.Pool against databaseURL and pings it once before
// returning, the same eager-connect shape teacher_server/main.go uses for
// both its Redis and Postgres clients.
func New(ctx context.Context, databaseURL string) (*Fetcher, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgfetcher: connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgfetcher: ping: %w", err)
	}
	return &Fetcher{db: poolAdapter{pool}, closeFn: pool.Close}, nil
}

// Close releases the underlying pool.
func (f *Fetcher) Close() {
	if f.closeFn != nil {
		f.closeFn()
	}
}

func (f *Fetcher) GetProjectId(ctx context.Context, project string) (string, error) {
	var id string
	err := f.db.QueryRow(ctx, `SELECT id FROM projects WHERE name = $1`, project).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", pageerr.New("pgfetcher.GetProjectId", pageerr.Forbidden, "no project named %q", project)
	}
	if err != nil {
		return "", pageerr.Wrap("pgfetcher.GetProjectId", pageerr.Transport, err)
	}
	return id, nil
}

func (f *Fetcher) GetUserId(ctx context.Context) (string, error) {
	if f.SessionUserId == nil {
		return "", pageerr.New("pgfetcher.GetUserId", pageerr.NotLoggedIn, "no session bound to this request")
	}
	id := f.SessionUserId(ctx)
	if id == "" {
		return "", pageerr.New("pgfetcher.GetUserId", pageerr.NotLoggedIn, "guest session")
	}
	return id, nil
}

func (f *Fetcher) GetPage(ctx context.Context, project, title string) (metadata.PageInfo, error) {
	var pageId, parentCommitId string
	var persistent, editable bool
	err := f.db.QueryRow(ctx, `
		SELECT pg.id, pg.parent_commit_id, pg.persistent, pg.editable
		FROM pages pg JOIN projects pr ON pr.id = pg.project_id
		WHERE pr.name = $1 AND pg.title = $2`, project, title).
		Scan(&pageId, &parentCommitId, &persistent, &editable)
	if errors.Is(err, pgx.ErrNoRows) {
		return metadata.PageInfo{}, pageerr.New("pgfetcher.GetPage", pageerr.Forbidden, "no page %q in project %q", title, project)
	}
	if err != nil {
		return metadata.PageInfo{}, pageerr.Wrap("pgfetcher.GetPage", pageerr.Transport, err)
	}

	lines, err := f.fetchLines(ctx, pageId)
	if err != nil {
		return metadata.PageInfo{}, err
	}

	return metadata.PageInfo{
		Id:         pageId,
		CommitId:   model.CommitId(parentCommitId),
		Lines:      lines,
		Persistent: persistent,
		Editable:   editable,
	}, nil
}

// GetPageById loads a page by its already-resolved id rather than its
// project/title name pair. cmd/pageroomd uses this to seed its
// authoritative in-memory state for a page once a client has joined and
// named it by id, without needing to re-resolve the human-readable name.
func (f *Fetcher) GetPageById(ctx context.Context, projectId, pageId string) (metadata.PageInfo, error) {
	var parentCommitId string
	var persistent, editable bool
	err := f.db.QueryRow(ctx, `
		SELECT parent_commit_id, persistent, editable
		FROM pages WHERE id = $1 AND project_id = $2`, pageId, projectId).
		Scan(&parentCommitId, &persistent, &editable)
	if errors.Is(err, pgx.ErrNoRows) {
		return metadata.PageInfo{}, pageerr.New("pgfetcher.GetPageById", pageerr.Forbidden, "no page %q in project %q", pageId, projectId)
	}
	if err != nil {
		return metadata.PageInfo{}, pageerr.Wrap("pgfetcher.GetPageById", pageerr.Transport, err)
	}

	lines, err := f.fetchLines(ctx, pageId)
	if err != nil {
		return metadata.PageInfo{}, err
	}

	return metadata.PageInfo{
		Id:         pageId,
		CommitId:   model.CommitId(parentCommitId),
		Lines:      lines,
		Persistent: persistent,
		Editable:   editable,
	}, nil
}

func (f *Fetcher) fetchLines(ctx context.Context, pageId string) (model.Lines, error) {
	r, err := f.db.Query(ctx, `
		SELECT id, text, user_id, created, updated
		FROM lines WHERE page_id = $1 ORDER BY position`, pageId)
	if err != nil {
		return nil, pageerr.Wrap("pgfetcher.GetPage", pageerr.Transport, err)
	}
	defer r.Close()

	var lines model.Lines
	for r.Next() {
		var l model.Line
		var id string
		if err := r.Scan(&id, &l.Text, &l.UserId, &l.Created, &l.Updated); err != nil {
			return nil, pageerr.Wrap("pgfetcher.GetPage", pageerr.Transport, err)
		}
		l.Id = model.LineId(id)
		lines = append(lines, l)
	}
	if err := r.Err(); err != nil {
		return nil, pageerr.Wrap("pgfetcher.GetPage", pageerr.Transport, err)
	}
	return lines, nil
}

// poolAdapter narrows *pgxpool.Pool to querier.
type poolAdapter struct{ pool *pgxpool.Pool }

func (p poolAdapter) QueryRow(ctx context.Context, sql string, args ...any) row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p poolAdapter) Query(ctx context.Context, sql string, args ...any) (rows, error) {
	return p.pool.Query(ctx, sql, args...)
}
