package httpclient

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/metadata/httpapi"
	"github.com/collabtext/pageroom/model"
)

type stubFetcher struct{ page metadata.PageInfo }

func (s stubFetcher) GetPage(ctx context.Context, project, title string) (metadata.PageInfo, error) {
	return s.page, nil
}
func (s stubFetcher) GetProjectId(ctx context.Context, project string) (string, error) {
	return "proj-1", nil
}
func (s stubFetcher) GetUserId(ctx context.Context) (string, error) { return "", nil }

func TestClientRoundTripsGetPage(t *testing.T) {
	h := &httpapi.Handler{Fetcher: stubFetcher{page: metadata.PageInfo{
		Id:       "pg1",
		CommitId: "c1",
		Lines:    model.Lines{{Id: "aaaaaaaaaaaaaa0000aaaaaa", Text: "title"}},
		Editable: true,
	}}}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	c := New(srv.URL)
	page, err := c.GetPage(context.Background(), "demo", "Title")
	require.NoError(t, err)
	require.Equal(t, "pg1", page.Id)
	require.Equal(t, model.CommitId("c1"), page.CommitId)
	require.Len(t, page.Lines, 1)
}

func TestClientRoundTripsGetProjectId(t *testing.T) {
	h := &httpapi.Handler{Fetcher: stubFetcher{}}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	c := New(srv.URL)
	id, err := c.GetProjectId(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, "proj-1", id)
}
