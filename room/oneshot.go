package room

import (
	"context"

	"github.com/collabtext/pageroom/metadata"
	"github.com/collabtext/pageroom/pageerr"
)

// Patch is the one-shot variant of (*Room).Patch from spec §6's public
// API table: join a room, apply one patch, and clean up, with no room
// object surviving the call.
func Patch(ctx context.Context, connect Connector, fetcher metadata.Fetcher, project, title string, f func(lines []string) ([]string, error)) error {
	conn, err := connect(ctx)
	if err != nil {
		return pageerr.Wrap("room.Patch", pageerr.Transport, err)
	}

	r, err := Join(ctx, conn, fetcher, project, title)
	if err != nil {
		_ = conn.Disconnect()
		return err
	}
	defer r.Cleanup()

	return r.Patch(ctx, f)
}
