// Package model holds the data types shared by every pageroom component:
// the mirrored line list, line identifiers, and the change-op wire shape.
package model

// LineId is an opaque 24-hex-char line identifier. Two sentinel values are
// used only inside change-ops, never stored on a Line: EndAnchor and the
// delete payload's -1 marker (represented separately, see Change).
type LineId string

// EndAnchor anchors an insert after the last line of the page.
const EndAnchor LineId = "_end"

// Line is one row of a page's mirrored line list.
type Line struct {
	Id      LineId `json:"id"`
	Text    string `json:"text"`
	UserId  string `json:"userId"`
	Created int64  `json:"created"`
	Updated int64  `json:"updated"`
}

// Lines is an ordered sequence of Line. By convention the first line's Text
// is the page title.
type Lines []Line

// Texts extracts the plain-text projection used by the diff components.
func (ls Lines) Texts() []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Text
	}
	return out
}

// Clone returns an independent copy, so callers can run a trial apply
// without disturbing the mirror the Page Room owns.
func (ls Lines) Clone() Lines {
	out := make(Lines, len(ls))
	copy(out, ls)
	return out
}

// IndexOf returns the index of the line with the given id, or -1.
func (ls Lines) IndexOf(id LineId) int {
	for i, l := range ls {
		if l.Id == id {
			return i
		}
	}
	return -1
}

// Title returns the first line's text, or "" for an empty page.
func (ls Lines) Title() string {
	if len(ls) == 0 {
		return ""
	}
	return ls[0].Text
}

// Descriptions returns the text of lines 2..6 (0-indexed 1..5), the slice
// Scrapbox snapshots as the page's search-result blurb.
func (ls Lines) Descriptions() []string {
	end := 6
	if len(ls) < end {
		end = len(ls)
	}
	if end <= 1 {
		return nil
	}
	out := make([]string, 0, end-1)
	for _, l := range ls[1:end] {
		out = append(out, l.Text)
	}
	return out
}
