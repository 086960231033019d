package catalog

import (
	"context"
	"fmt"
)

// GetRevision returns a revision with its relationship rows and, if present,
// its extra metadata blob.
func (s *Service) GetRevision(ctx context.Context, t EntityType, revID string) (*Revision, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
	}
	var rev *Revision
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		rev, err = r.GetRevision(ctx, t, revID)
		if err != nil {
			return err
		}
		if rev.ExtraHash != "" {
			rev.Extra, err = r.GetBlob(ctx, rev.ExtraHash)
			if err != nil {
				return fmt.Errorf("loading extra %s: %w", rev.ExtraHash, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s revision %s: %w", t, revID, err)
	}
	return rev, nil
}

// Relationships returns the child rows owned by a revision.
func (s *Service) Relationships(ctx context.Context, t EntityType, revID string) ([]Relationship, error) {
	var rels []Relationship
	err := s.store.View(ctx, func(r Reader) error {
		// Distinguish "no rows" from "no such revision".
		if _, err := r.GetRevision(ctx, t, revID); err != nil {
			return err
		}
		var err error
		rels, err = r.ListRelationships(ctx, t, revID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading relationships of %s revision %s: %w", t, revID, err)
	}
	return rels, nil
}

// Referrers returns the live identifiers whose current revision points at
// targetID through a relationship of the given kind, for example the releases
// crediting a creator.
func (s *Service) Referrers(ctx context.Context, kind RelationKind, targetID string) ([]Referrer, error) {
	if _, err := ParseRelationKind(string(kind)); err != nil {
		return nil, err
	}
	var refs []Referrer
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		refs, err = r.ListReferrers(ctx, kind, targetID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s referrers of %s: %w", kind, targetID, err)
	}
	return refs, nil
}

// Lookup finds the live identifier of type t whose current revision carries
// the external identifier key = value (for example a release DOI).
func (s *Service) Lookup(ctx context.Context, t EntityType, key, value string) (*Identifier, error) {
	if !validLookupKey(t, key) {
		return nil, &ValidationError{Field: "key", Reason: fmt.Sprintf("%s cannot be looked up by %q (supported: %v)", t, key, LookupKeys(t))}
	}
	var ident *Identifier
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		ident, err = r.LookupIdentifier(ctx, t, key, value)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("looking up %s %s=%s: %w", t, key, value, err)
	}
	return ident, nil
}

// History returns the accepted edits of an identifier, newest first.
func (s *Service) History(ctx context.Context, t EntityType, id string) ([]HistoryEntry, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
	}
	var entries []HistoryEntry
	err := s.store.View(ctx, func(r Reader) error {
		if _, err := r.GetIdentifier(ctx, t, id); err != nil {
			return err
		}
		var err error
		entries, err = r.ListHistory(ctx, t, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading history of %s %s: %w", t, id, err)
	}
	return entries, nil
}
