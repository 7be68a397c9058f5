// Package metadata declares the metadata-fetcher collaborator spec.md §6
// keeps external to the core (HTTP page/project/user lookups), plus
// EnsureEditablePage, the one derived operation the core calls directly.
package metadata

import (
	"context"

	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// PageInfo is what a successful page fetch reports.
type PageInfo struct {
	Id         string
	CommitId   model.CommitId
	Lines      model.Lines
	Persistent bool
	// Editable reports the fetch's "ok" bit: whether the caller may push
	// commits to this page. A fetch of a page the caller cannot edit
	// still succeeds (err == nil) with Editable == false.
	Editable bool
}

// Fetcher is the metadata collaborator: page/project/user lookups
// against the hosted wiki's HTTP surface.
type Fetcher interface {
	GetPage(ctx context.Context, project, title string) (PageInfo, error)
	GetProjectId(ctx context.Context, project string) (string, error)
	// GetUserId fails with a pageerr of kind NotLoggedIn for a guest
	// session.
	GetUserId(ctx context.Context) (string, error)
}

// EnsureEditablePage wraps Fetcher.GetPage, turning a non-editable
// successful fetch into a Forbidden error.
func EnsureEditablePage(ctx context.Context, f Fetcher, project, title string) (PageInfo, error) {
	page, err := f.GetPage(ctx, project, title)
	if err != nil {
		return PageInfo{}, err
	}
	if !page.Editable {
		return PageInfo{}, pageerr.New("metadata.EnsureEditablePage", pageerr.Forbidden,
			"page %q in project %q is not editable by this session", title, project)
	}
	return page, nil
}
