package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

type stubFetcher struct {
	page      metadata.PageInfo
	pageErr   error
	projectId string
}

func (s stubFetcher) GetPage(ctx context.Context, project, title string) (metadata.PageInfo, error) {
	return s.page, s.pageErr
}
func (s stubFetcher) GetProjectId(ctx context.Context, project string) (string, error) {
	return s.projectId, nil
}
func (s stubFetcher) GetUserId(ctx context.Context) (string, error) { return "", nil }

func TestGetPageRoute(t *testing.T) {
	h := &Handler{Fetcher: stubFetcher{page: metadata.PageInfo{
		Id:       "pg1",
		CommitId: "c1",
		Lines:    model.Lines{{Id: "aaaaaaaaaaaaaa0000aaaaaa", Text: "title"}},
		Editable: true,
	}}}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/projects/demo/pages/Title")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Id       string `json:"id"`
		CommitId string `json:"commitId"`
		Editable bool   `json:"editable"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, "pg1", decoded.Id)
	require.True(t, decoded.Editable)
}

func TestGetPageRouteTranslatesForbidden(t *testing.T) {
	h := &Handler{Fetcher: stubFetcher{
		pageErr: pageerr.New("stub", pageerr.Forbidden, "nope"),
	}}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/projects/demo/pages/Title")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWhoamiWithoutSessionFailsUnauthorized(t *testing.T) {
	h := &Handler{Fetcher: stubFetcher{}}
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
