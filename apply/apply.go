// Package apply mutates a mirrored line list according to an ordered
// change-op batch (spec §4.4, the Commit Applier).
package apply

import (
	"github.com/collabtext/pageroom/lineid"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
)

// Options carries the commit metadata an insert/update needs beyond the
// change itself.
type Options struct {
	// Updated resolves the timestamp _update writes. _insert does not use
	// it: an inserted line's Created and Updated both come from its own
	// id. The zero value defaults to "now" per the
	// local-trial-application rule in spec §9's open question.
	Updated lineid.UpdatedAt
	UserId  string
}

// Apply returns a new line list with changes applied left-to-right to
// lines. lines is never mutated; each op's anchor must exist in the state
// produced by every prior op in the same batch, or Apply fails with a
// pageerr MissingAnchor error naming the id.
func Apply(lines model.Lines, changes model.Changes, opts Options) (model.Lines, error) {
	cur := lines.Clone()
	for _, c := range changes {
		var err error
		cur, err = applyOne(cur, c, opts)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func applyOne(lines model.Lines, c model.Change, opts Options) (model.Lines, error) {
	switch c.Kind {
	case model.KindInsert:
		// Both timestamps come from the new line's own id, not from
		// Options.Updated: an insert's Created/Updated must agree with
		// the id a remote peer will also decode them from.
		unix, err := lineid.TimeOf(c.Insert.Id)
		if err != nil {
			return nil, pageerr.Wrap("apply.Insert", pageerr.BadAnchor, err)
		}
		newLine := model.Line{
			Id:      c.Insert.Id,
			Text:    c.Insert.Text,
			UserId:  opts.UserId,
			Created: unix,
			Updated: unix,
		}
		if c.Anchor == model.EndAnchor {
			out := make(model.Lines, 0, len(lines)+1)
			out = append(out, lines...)
			return append(out, newLine), nil
		}
		idx := lines.IndexOf(c.Anchor)
		if idx == -1 {
			return nil, pageerr.MissingAnchorf("apply.Insert", string(c.Anchor))
		}
		out := make(model.Lines, 0, len(lines)+1)
		out = append(out, lines[:idx]...)
		out = append(out, newLine)
		out = append(out, lines[idx:]...)
		return out, nil

	case model.KindUpdate:
		idx := lines.IndexOf(c.Anchor)
		if idx == -1 {
			return nil, pageerr.MissingAnchorf("apply.Update", string(c.Anchor))
		}
		unix, err := opts.Updated.Resolve()
		if err != nil {
			return nil, pageerr.Wrap("apply.Update", pageerr.BadAnchor, err)
		}
		out := lines.Clone()
		out[idx].Text = c.Text
		out[idx].Updated = unix
		return out, nil

	case model.KindDelete:
		idx := lines.IndexOf(c.Anchor)
		if idx == -1 {
			return nil, pageerr.MissingAnchorf("apply.Delete", string(c.Anchor))
		}
		out := make(model.Lines, 0, len(lines)-1)
		out = append(out, lines[:idx]...)
		out = append(out, lines[idx+1:]...)
		return out, nil

	case model.KindTitle, model.KindDescriptions, model.KindDeletePage:
		// Opaque server-side metadata ops: the applier never produces
		// these itself and treats them as no-ops on the mirrored lines.
		return lines, nil

	default:
		return nil, pageerr.New("apply", pageerr.MissingAnchor, "unknown change kind %d", c.Kind)
	}
}
