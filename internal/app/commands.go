package app

import (
	"context"
	"fmt"

	"catalog-go/internal/catalog"
)

// EditInput is one staged mutation as read from the command line. Content is
// the JSON document of the new revision; exactly one of Content, RedirectTo
// or Delete must be set.
type EditInput struct {
	Content      []byte
	ContentExtra []byte
	RedirectTo   string
	Delete       bool
	Extra        []byte
}

// EntityView is an identifier together with the revision a reader should see.
type EntityView struct {
	Identifier *catalog.Identifier `json:"identifier"`
	Resolved   *catalog.Resolved   `json:"resolved,omitempty"`
	Revision   *catalog.Revision   `json:"revision,omitempty"`
}

// OpenGroup opens a new edit group for editorID.
func (a *CatalogApp) OpenGroup(ctx context.Context, editorID, description string, extra []byte) (*catalog.EditGroup, error) {
	return a.service.OpenGroup(ctx, editorID, description, extra)
}

// StageEdit parses typeName and in and stages the edit into groupID.
// An empty targetID stages the creation of a new identifier.
func (a *CatalogApp) StageEdit(ctx context.Context, groupID, typeName, targetID string, in EditInput) (*catalog.Edit, error) {
	t, err := catalog.ParseEntityType(typeName)
	if err != nil {
		return nil, err
	}
	m := catalog.Mutation{
		ContentExtra: in.ContentExtra,
		RedirectTo:   in.RedirectTo,
		Delete:       in.Delete,
		Extra:        in.Extra,
	}
	if len(in.Content) > 0 {
		m.Content, err = catalog.DecodeEntity(t, in.Content)
		if err != nil {
			return nil, err
		}
	}
	return a.service.StageEdit(ctx, groupID, t, targetID, m)
}

// AcceptGroup commits an open edit group and returns its changelog entry.
func (a *CatalogApp) AcceptGroup(ctx context.Context, groupID string) (*catalog.ChangelogEntry, error) {
	entry, err := a.service.AcceptGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	a.op.MarkMutated()
	return entry, nil
}

// AbandonGroup discards an open edit group.
func (a *CatalogApp) AbandonGroup(ctx context.Context, groupID string) error {
	return a.service.AbandonGroup(ctx, groupID)
}

// GetEditGroup returns an edit group with its edits.
func (a *CatalogApp) GetEditGroup(ctx context.Context, groupID string) (*catalog.EditGroup, error) {
	return a.service.GetEditGroup(ctx, groupID)
}

// Merge redirects sourceID to targetID in a single-edit group.
func (a *CatalogApp) Merge(ctx context.Context, editorID, typeName, sourceID, targetID string) (*catalog.ChangelogEntry, error) {
	t, err := catalog.ParseEntityType(typeName)
	if err != nil {
		return nil, err
	}
	entry, err := a.service.Merge(ctx, editorID, t, sourceID, targetID)
	if err != nil {
		return nil, err
	}
	a.op.MarkMutated()
	return entry, nil
}

// Get returns an identifier with the revision a reader should see. By
// default the redirect chain is followed to its terminus; raw returns the
// identifier as stored, with its possibly cached revision.
func (a *CatalogApp) Get(ctx context.Context, typeName, id string, raw bool) (*EntityView, error) {
	t, err := catalog.ParseEntityType(typeName)
	if err != nil {
		return nil, err
	}

	view := &EntityView{}
	var revID string
	if raw {
		view.Identifier, err = a.service.ReadCurrent(ctx, t, id)
		if err != nil {
			return nil, err
		}
		revID = view.Identifier.RevisionID
	} else {
		view.Resolved, err = a.service.Follow(ctx, t, id)
		if err != nil {
			return nil, err
		}
		view.Identifier = view.Resolved.Requested
		revID = view.Resolved.RevisionID
	}

	if revID != "" {
		view.Revision, err = a.service.GetRevision(ctx, t, revID)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}

// GetRevision returns one revision by id.
func (a *CatalogApp) GetRevision(ctx context.Context, typeName, revID string) (*catalog.Revision, error) {
	t, err := catalog.ParseEntityType(typeName)
	if err != nil {
		return nil, err
	}
	return a.service.GetRevision(ctx, t, revID)
}

// History returns the accepted edits of an identifier, newest first.
func (a *CatalogApp) History(ctx context.Context, typeName, id string) ([]catalog.HistoryEntry, error) {
	t, err := catalog.ParseEntityType(typeName)
	if err != nil {
		return nil, err
	}
	return a.service.History(ctx, t, id)
}

// Referrers returns the identifiers pointing at targetID through kindName.
func (a *CatalogApp) Referrers(ctx context.Context, kindName, targetID string) ([]catalog.Referrer, error) {
	kind, err := catalog.ParseRelationKind(kindName)
	if err != nil {
		return nil, err
	}
	return a.service.Referrers(ctx, kind, targetID)
}

// Lookup finds the identifier whose current revision has key = value.
func (a *CatalogApp) Lookup(ctx context.Context, typeName, key, value string) (*catalog.Identifier, error) {
	t, err := catalog.ParseEntityType(typeName)
	if err != nil {
		return nil, err
	}
	return a.service.Lookup(ctx, t, key, value)
}

// Changelog returns up to limit entries starting at sequence number from.
// A from of zero returns the newest limit entries.
func (a *CatalogApp) Changelog(ctx context.Context, from int64, limit int) ([]*catalog.ChangelogEntry, error) {
	if limit < 1 {
		return nil, &catalog.ValidationError{Field: "limit", Reason: fmt.Sprintf("must be positive, got %d", limit)}
	}
	if from == 0 {
		head, err := a.service.Head(ctx)
		if err != nil {
			return nil, err
		}
		from = max(head-int64(limit)+1, 1)
	}

	var entries []*catalog.ChangelogEntry
	for entry, err := range a.service.ReadFrom(ctx, from) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// ChangelogEntry returns one changelog entry with its edit group and edits.
func (a *CatalogApp) ChangelogEntry(ctx context.Context, seq int64) (*catalog.ChangelogEntry, error) {
	return a.service.GetChangelogEntry(ctx, seq)
}

// GetBlob returns a stored metadata blob by hash.
func (a *CatalogApp) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	return a.service.GetBlob(ctx, hash)
}

// PutBlob stores a JSON object in the content store and returns its hash.
func (a *CatalogApp) PutBlob(ctx context.Context, data []byte) (string, error) {
	return a.service.PutBlob(ctx, data)
}
