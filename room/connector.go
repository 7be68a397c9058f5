package room

import (
	"context"

	"github.com/collabtext/pageroom/transport"
)

// Connector opens a fresh transport.Duplex, the caller-supplied socket
// factory DeletePage and the one-shot Patch use instead of a pre-opened
// connection (spec §6's public API table has both take a bare project/
// title rather than an already-joined room).
type Connector func(ctx context.Context) (transport.Duplex, error)
