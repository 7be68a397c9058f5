package room

import "github.com/collabtext/pageroom/model"

// joinRequest is the room:join RPC payload (spec §6).
type joinRequest struct {
	ProjectId            string `json:"projectId"`
	PageId               string `json:"pageId"`
	ProjectUpdatesStream bool   `json:"projectUpdatesStream"`
}

// commitRequest is the commit RPC payload a push submits.
type commitRequest struct {
	Kind      string        `json:"kind"`
	ProjectId string        `json:"projectId"`
	ParentId  model.CommitId `json:"parentId"`
	PageId    string        `json:"pageId"`
	UserId    string        `json:"userId"`
	Changes   model.Changes `json:"changes"`
	Cursor    *string       `json:"cursor"`
	Freeze    bool          `json:"freeze"`
}

// commitResponse is the commit RPC's successful result.
type commitResponse struct {
	CommitId model.CommitId `json:"commitId"`
}

// commitNotification is one event delivered on the "commit" channel: a
// remote commit the room's background consumer folds into the mirror.
type commitNotification struct {
	Id      model.CommitId `json:"id"`
	Changes model.Changes  `json:"changes"`
	UserId  string         `json:"userId"`
}
