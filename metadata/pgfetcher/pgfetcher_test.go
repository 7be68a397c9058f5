package pgfetcher

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// fakeRow and fakeRows let the query tests run without a Postgres
// instance, playing the role pgxpool.Pool's concrete types would.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch dv := d.(type) {
		case *string:
			*dv = r.values[i].(string)
		case *bool:
			*dv = r.values[i].(bool)
		case *int64:
			*dv = r.values[i].(int64)
		default:
			return errors.New("fakeRow: unsupported scan target")
		}
	}
	return nil
}

type fakeRows struct {
	data []fakeRow
	i    int
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}
func (r *fakeRows) Scan(dest ...any) error { return r.data[r.i-1].Scan(dest...) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 {}

type fakeQuerier struct {
	pageRow  fakeRow
	lineRows []fakeRow
}

func (q fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) row {
	return q.pageRow
}

func (q fakeQuerier) Query(ctx context.Context, sql string, args ...any) (rows, error) {
	return &fakeRows{data: q.lineRows}, nil
}

func TestGetPageAssemblesLinesFromBothQueries(t *testing.T) {
	f := &Fetcher{db: fakeQuerier{
		pageRow: fakeRow{values: []any{"pg-1", "commit-1", true, true}},
		lineRows: []fakeRow{
			{values: []any{"aaaaaaaaaaaaaa0000aaaaaa", "title", "u1", int64(100), int64(100)}},
			{values: []any{"bbbbbbbbbbbbbb0000bbbbbb", "body", "u1", int64(100), int64(100)}},
		},
	}}

	page, err := f.GetPage(context.Background(), "proj", "Title")
	require.NoError(t, err)
	require.Equal(t, "pg-1", page.Id)
	require.True(t, page.Editable)
	require.True(t, page.Persistent)
	require.Len(t, page.Lines, 2)
	require.Equal(t, "title", page.Lines[0].Text)
	require.Equal(t, "body", page.Lines[1].Text)
}

func TestGetPageTranslatesNoRowsToForbidden(t *testing.T) {
	f := &Fetcher{db: fakeQuerier{pageRow: fakeRow{err: pgx.ErrNoRows}}}

	_, err := f.GetPage(context.Background(), "proj", "Missing")
	require.True(t, pageerr.Is(err, pageerr.Forbidden))
}

func TestGetPageByIdAssemblesLines(t *testing.T) {
	f := &Fetcher{db: fakeQuerier{
		pageRow: fakeRow{values: []any{"commit-1", true, true}},
		lineRows: []fakeRow{
			{values: []any{"aaaaaaaaaaaaaa0000aaaaaa", "title", "u1", int64(100), int64(100)}},
		},
	}}

	page, err := f.GetPageById(context.Background(), "proj-1", "pg-1")
	require.NoError(t, err)
	require.Equal(t, "pg-1", page.Id)
	require.Equal(t, model.CommitId("commit-1"), page.CommitId)
	require.Len(t, page.Lines, 1)
}

func TestGetUserIdFailsNotLoggedInWithoutSessionResolver(t *testing.T) {
	f := &Fetcher{}
	_, err := f.GetUserId(context.Background())
	require.True(t, pageerr.Is(err, pageerr.NotLoggedIn))
}

func TestGetUserIdUsesSessionResolver(t *testing.T) {
	f := &Fetcher{SessionUserId: func(ctx context.Context) string { return "user-42" }}
	id, err := f.GetUserId(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-42", id)
}
