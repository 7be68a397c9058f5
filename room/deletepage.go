package room

import (
	"context"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// DeletePage implements spec §4.6's delete-page operation: a no-op for a
// page that was never persisted, otherwise a one-shot connect, push a
// singleton deleted-page change with retry, and disconnect.
func DeletePage(ctx context.Context, connect Connector, fetcher metadata.Fetcher, project, title string) error {
	page, err := fetcher.GetPage(ctx, project, title)
	if err != nil {
		return err
	}
	if !page.Persistent {
		return nil
	}

	conn, err := connect(ctx)
	if err != nil {
		return pageerr.Wrap("room.DeletePage", pageerr.Transport, err)
	}
	defer conn.Disconnect()

	projectId, err := fetcher.GetProjectId(ctx, project)
	if err != nil {
		return err
	}
	userId, err := fetcher.GetUserId(ctx)
	if err != nil {
		return err
	}

	req := joinRequest{ProjectId: projectId, PageId: page.Id, ProjectUpdatesStream: false}
	if err := conn.Request(ctx, "room:join", req, nil); err != nil {
		return err
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
		created:   true,
		lines:     page.Lines,
	}
	return r.push(ctx, model.Changes{model.NewDeletePage()}, pushOptions{retry: defaultRetry})
}
