package linediff

import (
	"fmt"

	"github.com/collabtext/pageroom/lineid"
	"github.com/collabtext/pageroom/model"
	"github.com/collabtext/pageroom/pageerr"
	"github.com/collabtext/pageroom/sesdiff"
)

// ToChanges runs the SES diff between left's texts and right, folds
// adjacent add/delete pairs into replaced edits, and anchors the result
// onto left's line ids as an ordered change-op batch that, applied
// left-to-right to left, yields right.
func ToChanges(left model.Lines, right []string, userId string) (model.Changes, error) {
	script := sesdiff.Diff(left.Texts(), right)
	folded := Fold(script.Script)

	var changes model.Changes
	lineNo := 0
	anchor := func() model.LineId {
		if lineNo < len(left) {
			return left[lineNo].Id
		}
		return model.EndAnchor
	}

	cur := anchor()
	for _, f := range folded {
		if cur == model.EndAnchor && f.Tag != Added {
			return nil, pageerr.New("linediff.ToChanges", pageerr.BadAnchor,
				"cursor ran past end of pre-image on a non-append change (tag=%d)", f.Tag)
		}

		switch f.Tag {
		case Added:
			changes = append(changes, model.NewInsert(cur, model.InsertPayload{
				Id:   lineid.New(userId),
				Text: f.Value,
			}))
		case Deleted:
			changes = append(changes, model.NewDelete(cur))
			lineNo++
			cur = anchor()
		case Replaced:
			changes = append(changes, model.NewUpdate(cur, f.Value))
			lineNo++
			cur = anchor()
		case Common:
			lineNo++
			cur = anchor()
		default:
			return nil, fmt.Errorf("linediff: unknown fold tag %d", f.Tag)
		}
	}
	return changes, nil
}
