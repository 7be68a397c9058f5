// Package httpclient is a metadata.Fetcher that talks to a
// metadata/httpapi server over plain net/http, the client-side
// counterpart cmd/pageroomctl uses instead of embedding a database
// driver of its own.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// Client is a metadata.Fetcher backed by one metadata/httpapi base URL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// AuthToken, when set, is sent as a Bearer token on every request so
	// GetUserId can resolve a logged-in session.
	AuthToken string
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: http.DefaultClient}
}

func (c *Client) do(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return pageerr.Wrap("httpclient", pageerr.Transport, err)
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return pageerr.Wrap("httpclient", pageerr.Transport, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusUnauthorized:
		return pageerr.New("httpclient", pageerr.NotLoggedIn, "guest session")
	case http.StatusForbidden:
		return pageerr.New("httpclient", pageerr.Forbidden, "%s: forbidden", path)
	default:
		return pageerr.New("httpclient", pageerr.Transport, "%s: unexpected status %d", path, resp.StatusCode)
	}
}

func (c *Client) GetPage(ctx context.Context, project, title string) (metadata.PageInfo, error) {
	var decoded struct {
		Id         string      `json:"id"`
		CommitId   string      `json:"commitId"`
		Lines      model.Lines `json:"lines"`
		Persistent bool        `json:"persistent"`
		Editable   bool        `json:"editable"`
	}
	path := fmt.Sprintf("/projects/%s/pages/%s", url.PathEscape(project), url.PathEscape(title))
	if err := c.do(ctx, path, &decoded); err != nil {
		return metadata.PageInfo{}, err
	}
	return metadata.PageInfo{
		Id:         decoded.Id,
		CommitId:   model.CommitId(decoded.CommitId),
		Lines:      decoded.Lines,
		Persistent: decoded.Persistent,
		Editable:   decoded.Editable,
	}, nil
}

func (c *Client) GetProjectId(ctx context.Context, project string) (string, error) {
	var decoded struct {
		Id string `json:"id"`
	}
	if err := c.do(ctx, "/projects/"+url.PathEscape(project), &decoded); err != nil {
		return "", err
	}
	return decoded.Id, nil
}

func (c *Client) GetUserId(ctx context.Context) (string, error) {
	var decoded struct {
		UserId string `json:"userId"`
	}
	if err := c.do(ctx, "/whoami", &decoded); err != nil {
		return "", err
	}
	return decoded.UserId, nil
}
