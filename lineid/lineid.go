// Package lineid mints new line identifiers and decodes the unix-second
// timestamp embedded in one.
//
// The 24-hex-char layout is mandated by the wire protocol (spec §4.5), not
// compatible with a standard ULID's Crockford-base32 layout, so this
// package hand-rolls the encoding rather than reaching for oklog/ulid the
// way _examples/hpungsan-moss and _examples/bringyour-connect do for their
// own (differently shaped) sortable ids. It borrows their one good habit
// instead: entropy comes from crypto/rand, not math/rand, so an id is
// never guessable from another id minted the same second.
package lineid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/collabtext/pageroom/model"
)

// nowUnix is overridable in tests so New's output is deterministic.
var nowUnix = func() int64 { return time.Now().Unix() }

// New mints a fresh 24-hex-char line id for a commit authored by userId:
// hex8(now) + last-6-hex(userId) + "0000" + hex6(random mod 0xFFFFFE).
func New(userId string) model.LineId {
	return newAt(nowUnix(), userId)
}

func newAt(unix int64, userId string) model.LineId {
	tail := userId
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	for len(tail) < 6 {
		tail = "0" + tail
	}

	var buf [4]byte
	_, _ = rand.Read(buf[:])
	r := binary.BigEndian.Uint32(buf[:]) % 0xFFFFFE

	return model.LineId(fmt.Sprintf("%08x%s0000%06x", uint32(unix), tail, r))
}

// TimeOf decodes the unix-second timestamp embedded in a line id's first
// eight hex characters. It fails if id is shorter than eight hex chars or
// they don't parse as hex.
func TimeOf(id model.LineId) (int64, error) {
	s := string(id)
	if len(s) < 8 {
		return 0, fmt.Errorf("lineid: id %q too short to carry a timestamp", s)
	}
	unix, err := strconv.ParseUint(s[:8], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("lineid: id %q has a non-hex timestamp prefix: %w", s, err)
	}
	return int64(unix), nil
}

// UpdatedAt is the "unix-seconds number, or an id carrying a timestamp"
// union spec §4.4 passes to the commit applier.
type UpdatedAt struct {
	unix    int64
	hasUnix bool
	id      model.LineId
}

// AtUnix builds an UpdatedAt directly from a unix-seconds value.
func AtUnix(unix int64) UpdatedAt { return UpdatedAt{unix: unix, hasUnix: true} }

// FromId builds an UpdatedAt whose value is decoded from id's timestamp
// prefix, the way a remote commit notification's id drives §4.6 step 3's
// apply call.
func FromId(id model.LineId) UpdatedAt { return UpdatedAt{id: id} }

// FromCommit is FromId for a CommitId, which carries the same 24-hex-char
// (or at least 8-hex-char) shape.
func FromCommit(id model.CommitId) UpdatedAt { return UpdatedAt{id: model.LineId(id)} }

// Resolve returns the unix-seconds value, decoding from the carried id if
// one wasn't given directly.
func (u UpdatedAt) Resolve() (int64, error) {
	if u.hasUnix {
		return u.unix, nil
	}
	if u.id == "" {
		return nowUnix(), nil
	}
	return TimeOf(u.id)
}
