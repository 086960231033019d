package catalog

import (
	"encoding/json"
	"time"
)

// EditGroupState is the lifecycle state of an edit group. Groups move from
// open to exactly one of accepted or abandoned.
type EditGroupState string

const (
	GroupOpen      EditGroupState = "open"
	GroupAccepted  EditGroupState = "accepted"
	GroupAbandoned EditGroupState = "abandoned"
)

// EditGroup is an atomic batch of edits submitted by one editor.
type EditGroup struct {
	ID           string         `json:"id"`
	EditorID     string         `json:"editor_id"`
	Description  string         `json:"description"`
	State        EditGroupState `json:"state"`
	ExtraHash    string         `json:"extra_hash,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	FinishedAt   time.Time      `json:"finished_at,omitzero"`
	ChangelogSeq int64          `json:"changelog_seq,omitempty"`
	EditCount    int            `json:"edit_count"`
	Edits        []*Edit        `json:"edits,omitempty"`
}

// Mutation is what a caller asks to happen to one identifier. Exactly one of
// Content, RedirectTo or Delete must be set.
type Mutation struct {
	Content Entity
	// ContentExtra is an optional JSON object of extension metadata stored
	// with the new revision.
	ContentExtra json.RawMessage
	RedirectTo   string
	Delete       bool
	// Extra is optional JSON metadata about the edit itself.
	Extra json.RawMessage
}

// EditKind classifies an edit by the mutation it carries.
type EditKind string

const (
	EditCreate   EditKind = "create"
	EditUpdate   EditKind = "update"
	EditRedirect EditKind = "redirect"
	EditDelete   EditKind = "delete"
)

// Precondition is the target identifier's state observed when an edit was
// staged. Acceptance fails with a conflict if the state has moved on since.
type Precondition struct {
	Exists     bool   `json:"exists"`
	RevisionID string `json:"revision_id,omitempty"`
	RedirectID string `json:"redirect_id,omitempty"`
}

// Matches reports whether ident (nil when absent) still has the observed state.
func (p Precondition) Matches(ident *Identifier) bool {
	if ident == nil {
		return !p.Exists
	}
	return p.Exists && ident.RevisionID == p.RevisionID && ident.RedirectID == p.RedirectID
}

// Edit is one staged or applied mutation of one identifier.
type Edit struct {
	ID          string     `json:"id"`
	EditGroupID string     `json:"editgroup_id"`
	EntityType  EntityType `json:"entity_type"`
	IdentID     string     `json:"ident_id"`
	Ordinal     int        `json:"ordinal"`
	// Content is the staged entity for create and update edits.
	Content    Entity `json:"content,omitempty"`
	RedirectID string `json:"redirect_id,omitempty"`
	Delete     bool   `json:"delete,omitempty"`
	// RevisionID is the revision written for Content; set once the group is accepted.
	RevisionID       string       `json:"revision_id,omitempty"`
	ContentExtraHash string       `json:"content_extra_hash,omitempty"`
	ExtraHash        string       `json:"extra_hash,omitempty"`
	Prev             Precondition `json:"prev"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Kind classifies the edit.
func (e *Edit) Kind() EditKind {
	switch {
	case e.RedirectID != "":
		return EditRedirect
	case e.Delete:
		return EditDelete
	case !e.Prev.Exists:
		return EditCreate
	}
	return EditUpdate
}
