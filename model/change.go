package model

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the six change-op shapes a commit batch may carry.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
	KindTitle
	KindDescriptions
	KindDeletePage
)

// InsertPayload is the "lines" payload of an _insert change.
type InsertPayload struct {
	Id   LineId `json:"id"`
	Text string `json:"text"`
}

// Change is one ordered record inside a commit batch. Exactly one of the
// constructors below should be used to build a well-formed value; the zero
// value is not a valid Change.
type Change struct {
	Kind Kind

	// Anchor is the target line id for Insert, Update, Delete.
	Anchor LineId

	// Insert carries the new line for KindInsert.
	Insert InsertPayload

	// Text carries the replacement text for KindUpdate.
	Text string

	// Title carries the new page title for KindTitle.
	Title string

	// Descriptions carries the line-2..line-6 snapshot for KindDescriptions.
	Descriptions []string
}

func NewInsert(anchor LineId, line InsertPayload) Change {
	return Change{Kind: KindInsert, Anchor: anchor, Insert: line}
}

func NewUpdate(anchor LineId, text string) Change {
	return Change{Kind: KindUpdate, Anchor: anchor, Text: text}
}

func NewDelete(anchor LineId) Change {
	return Change{Kind: KindDelete, Anchor: anchor}
}

func NewTitle(title string) Change {
	return Change{Kind: KindTitle, Title: title}
}

func NewDescriptions(descriptions []string) Change {
	return Change{Kind: KindDescriptions, Descriptions: descriptions}
}

func NewDeletePage() Change {
	return Change{Kind: KindDeletePage}
}

// Changes is an ordered commit batch.
type Changes []Change

// wireChange mirrors the JSON envelope exchanged with the server: exactly
// one of the pointer/omitempty fields is populated per change.
type wireChange struct {
	Insert       *string        `json:"_insert,omitempty"`
	Update       *string        `json:"_update,omitempty"`
	Delete       *string        `json:"_delete,omitempty"`
	Lines        json.RawMessage `json:"lines,omitempty"`
	Title        *string        `json:"title,omitempty"`
	Descriptions []string       `json:"descriptions,omitempty"`
	Deleted      *bool          `json:"deleted,omitempty"`
}

func (c Change) MarshalJSON() ([]byte, error) {
	w := wireChange{}
	switch c.Kind {
	case KindInsert:
		anchor := string(c.Anchor)
		w.Insert = &anchor
		payload, err := json.Marshal(c.Insert)
		if err != nil {
			return nil, err
		}
		w.Lines = payload
	case KindUpdate:
		anchor := string(c.Anchor)
		w.Update = &anchor
		payload, err := json.Marshal(struct {
			Text string `json:"text"`
		}{c.Text})
		if err != nil {
			return nil, err
		}
		w.Lines = payload
	case KindDelete:
		anchor := string(c.Anchor)
		w.Delete = &anchor
		w.Lines = json.RawMessage("-1")
	case KindTitle:
		w.Title = &c.Title
	case KindDescriptions:
		w.Descriptions = c.Descriptions
		if w.Descriptions == nil {
			w.Descriptions = []string{}
		}
	case KindDeletePage:
		t := true
		w.Deleted = &t
	default:
		return nil, fmt.Errorf("model: unknown change kind %d", c.Kind)
	}
	return json.Marshal(w)
}

func (c *Change) UnmarshalJSON(data []byte) error {
	var w wireChange
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Insert != nil:
		var payload InsertPayload
		if err := json.Unmarshal(w.Lines, &payload); err != nil {
			return fmt.Errorf("model: decoding _insert lines: %w", err)
		}
		*c = NewInsert(LineId(*w.Insert), payload)
	case w.Update != nil:
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(w.Lines, &payload); err != nil {
			return fmt.Errorf("model: decoding _update lines: %w", err)
		}
		*c = NewUpdate(LineId(*w.Update), payload.Text)
	case w.Delete != nil:
		*c = NewDelete(LineId(*w.Delete))
	case w.Title != nil:
		*c = NewTitle(*w.Title)
	case w.Descriptions != nil:
		*c = NewDescriptions(w.Descriptions)
	case w.Deleted != nil && *w.Deleted:
		*c = NewDeletePage()
	default:
		return fmt.Errorf("model: change envelope matches no known shape: %s", data)
	}
	return nil
}
