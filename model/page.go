package model

// CommitId is the server-assigned identifier of a page's history head.
type CommitId string

// Page is the client-side mirror of a page: its lines, the commit id the
// caller believes is current, and whether it has ever been materialized
// server-side.
type Page struct {
	ProjectId string
	PageId    string
	ParentId  CommitId
	Created   bool
	Lines     Lines
}

// Clone deep-copies the line list so a trial apply cannot leak back into
// the mirror the caller owns.
func (p Page) Clone() Page {
	p.Lines = p.Lines.Clone()
	return p
}
