package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OpenGroup starts a new edit group for an editor.
func (s *Service) OpenGroup(ctx context.Context, editorID, description string, extra json.RawMessage) (*EditGroup, error) {
	if strings.TrimSpace(editorID) == "" {
		return nil, &ValidationError{Field: "editor_id", Reason: "required"}
	}

	group := &EditGroup{
		ID:          s.idgen.New(),
		EditorID:    editorID,
		Description: description,
		State:       GroupOpen,
		CreatedAt:   s.clock.Now(),
	}
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		group.ExtraHash, err = s.putExtra(ctx, tx, "extra", extra)
		if err != nil {
			return err
		}
		return tx.InsertEditGroup(ctx, group)
	})
	if err != nil {
		return nil, fmt.Errorf("opening edit group: %w", err)
	}

	s.logger.Info("edit group opened", "editgroup", group.ID, "editor", editorID)
	return group, nil
}

// GetEditGroup returns an edit group with its edits in staging order.
func (s *Service) GetEditGroup(ctx context.Context, groupID string) (*EditGroup, error) {
	var group *EditGroup
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		group, err = r.GetEditGroup(ctx, groupID)
		if err != nil {
			return err
		}
		group.Edits, err = r.ListEdits(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading edit group %s: %w", groupID, err)
	}
	return group, nil
}

// validateMutation checks the shape of a mutation without touching the store.
func validateMutation(t EntityType, targetID string, m Mutation) error {
	set := 0
	if m.Content != nil {
		set++
	}
	if m.RedirectTo != "" {
		set++
	}
	if m.Delete {
		set++
	}
	if set != 1 {
		return &ValidationError{Field: "mutation", Reason: "exactly one of content, redirect or delete must be set"}
	}

	if targetID == "" && m.Content == nil {
		return &ValidationError{Field: "target", Reason: "only content edits can create a new identifier"}
	}
	if m.RedirectTo != "" && m.RedirectTo == targetID {
		return &ValidationError{Field: "redirect", Reason: fmt.Sprintf("%s %s cannot redirect to itself", t, targetID)}
	}
	if m.Content != nil {
		if isNilEntity(m.Content) {
			return &ValidationError{Field: "content", Reason: "nil entity"}
		}
		if m.Content.EntityType() != t {
			return &ValidationError{Field: "content", Reason: fmt.Sprintf("%s content staged against a %s identifier", m.Content.EntityType(), t)}
		}
		if err := m.Content.Validate(); err != nil {
			return err
		}
	}
	if m.ContentExtra != nil && m.Content == nil {
		return &ValidationError{Field: "content_extra", Reason: "only valid with content"}
	}
	return nil
}

// StageEdit buffers one mutation in an open edit group. An empty targetID
// creates a new identifier; its id is reserved now and returned on the Edit,
// but no identifier state changes until the group is accepted.
//
// The target's current revision and redirect are recorded as the edit's
// precondition and checked again when the group is accepted.
func (s *Service) StageEdit(ctx context.Context, groupID string, t EntityType, targetID string, m Mutation) (*Edit, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
	}
	if err := validateMutation(t, targetID, m); err != nil {
		return nil, err
	}

	var edit *Edit
	err := s.store.Update(ctx, func(tx Tx) error {
		group, err := loadOpenGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		staged, err := tx.ListEdits(ctx, groupID)
		if err != nil {
			return fmt.Errorf("listing staged edits: %w", err)
		}

		edit = &Edit{
			ID:          s.idgen.New(),
			EditGroupID: groupID,
			EntityType:  t,
			IdentID:     targetID,
			Ordinal:     group.EditCount,
			Content:     m.Content,
			RedirectID:  m.RedirectTo,
			Delete:      m.Delete,
			CreatedAt:   s.clock.Now(),
		}

		if targetID == "" {
			edit.IdentID = s.idgen.New()
		} else {
			ident, err := tx.GetIdentifier(ctx, t, targetID)
			if errors.Is(err, ErrNotFound) {
				return &ValidationError{Field: "target", Reason: fmt.Sprintf("%s %s does not exist", t, targetID)}
			}
			if err != nil {
				return err
			}
			for _, other := range staged {
				if other.EntityType == t && other.IdentID == targetID {
					return &ValidationError{Field: "target", Reason: fmt.Sprintf("%s %s already has edit %s in this group", t, targetID, other.ID)}
				}
			}
			edit.Prev = Precondition{Exists: true, RevisionID: ident.RevisionID, RedirectID: ident.RedirectID}
		}

		if m.RedirectTo != "" {
			if err := checkTargetExists(ctx, tx, staged, identRef{"redirect", t, m.RedirectTo}); err != nil {
				return err
			}
		}
		if m.Content != nil {
			for _, ref := range outgoingRefs(m.Content) {
				if err := checkTargetExists(ctx, tx, staged, ref); err != nil {
					return err
				}
			}
		}

		if edit.ContentExtraHash, err = s.putExtra(ctx, tx, "content_extra", m.ContentExtra); err != nil {
			return err
		}
		if edit.ExtraHash, err = s.putExtra(ctx, tx, "extra", m.Extra); err != nil {
			return err
		}
		if err := tx.InsertEdit(ctx, edit); err != nil {
			return err
		}
		group.EditCount++
		return tx.UpdateEditGroup(ctx, group)
	})
	if err != nil {
		return nil, fmt.Errorf("staging %s edit in group %s: %w", t, groupID, err)
	}

	s.logger.Debug("edit staged", "editgroup", groupID, "type", t, "ident", edit.IdentID, "kind", edit.Kind())
	return edit, nil
}

// checkTargetExists verifies that ref names an identifier that exists in any
// state, or one created by an edit staged earlier in the same group.
func checkTargetExists(ctx context.Context, r Reader, staged []*Edit, ref identRef) error {
	for _, e := range staged {
		if e.EntityType == ref.typ && e.IdentID == ref.id && e.Kind() == EditCreate {
			return nil
		}
	}
	_, err := r.GetIdentifier(ctx, ref.typ, ref.id)
	if errors.Is(err, ErrNotFound) {
		return &ValidationError{Field: ref.field, Reason: fmt.Sprintf("%s %s does not exist", ref.typ, ref.id)}
	}
	return err
}

// loadOpenGroup returns the group if it exists and is still open.
func loadOpenGroup(ctx context.Context, r Reader, groupID string) (*EditGroup, error) {
	group, err := r.GetEditGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.State != GroupOpen {
		return nil, &ValidationError{Field: "editgroup", Reason: fmt.Sprintf("edit group %s is %s", groupID, group.State)}
	}
	return group, nil
}

// identKey identifies one identifier across entity types.
type identKey struct {
	typ EntityType
	id  string
}

// AcceptGroup applies every edit in an open group and appends one changelog
// entry, all in a single store transaction:
//
//  1. Every edit's precondition is checked against the target's current
//     state. Any mismatch rejects the whole group with a *ConflictError and
//     the group is abandoned; its edits must be staged again in a new group.
//  2. Edits are applied in staging order. Content edits append a revision and
//     point their identifier at it (new identifiers start pre-live). Redirect
//     edits walk the target's chain, refusing cycles back to the source and
//     chains that end at a deleted identifier, and cache the terminus revision.
//  3. Every redirect is walked again once all edits are applied, so a later
//     edit in the group cannot delete or loop a chain an earlier one checked.
//     The cached terminus revision is refreshed if a later edit changed it.
//     Every identifier referenced by new revisions must exist.
//  4. New identifiers are promoted to live and every touched identifier is
//     checked to be in one of the four legal states.
//  5. The group is marked accepted and given the next changelog sequence number.
//
// Either all of this commits or none of it does.
func (s *Service) AcceptGroup(ctx context.Context, groupID string) (*ChangelogEntry, error) {
	var entry *ChangelogEntry
	err := s.store.Update(ctx, func(tx Tx) error {
		group, err := loadOpenGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		edits, err := tx.ListEdits(ctx, groupID)
		if err != nil {
			return fmt.Errorf("listing edits: %w", err)
		}
		if len(edits) == 0 {
			return &ValidationError{Field: "editgroup", Reason: fmt.Sprintf("edit group %s has no edits", groupID)}
		}

		// 1. Optimistic concurrency check.
		for _, e := range edits {
			current, err := tx.GetIdentifier(ctx, e.EntityType, e.IdentID)
			if errors.Is(err, ErrNotFound) {
				current, err = nil, nil
			}
			if err != nil {
				return err
			}
			if !e.Prev.Matches(current) {
				return &ConflictError{GroupID: groupID, EntityType: e.EntityType, IdentID: e.IdentID}
			}
		}

		// 2. Apply.
		now := s.clock.Now()
		touched := make([]identKey, 0, len(edits))
		for _, e := range edits {
			if err := s.applyEdit(ctx, tx, e); err != nil {
				return fmt.Errorf("applying edit %s to %s %s: %w", e.ID, e.EntityType, e.IdentID, err)
			}
			touched = append(touched, identKey{e.EntityType, e.IdentID})
		}

		// 3. Redirect chains and relationship targets, against the state the
		// whole group leaves behind.
		for _, e := range edits {
			if e.Kind() == EditRedirect {
				if err := s.recheckRedirect(ctx, tx, e); err != nil {
					return fmt.Errorf("checking redirect of %s %s: %w", e.EntityType, e.IdentID, err)
				}
				continue
			}
			if e.Content == nil {
				continue
			}
			for _, ref := range outgoingRefs(e.Content) {
				if err := checkTargetExists(ctx, tx, nil, ref); err != nil {
					return err
				}
			}
		}

		// 4. Promote and verify.
		for _, k := range touched {
			ident, err := tx.GetIdentifier(ctx, k.typ, k.id)
			if err != nil {
				return err
			}
			if ident.State() == StatePreLive {
				ident.Live = true
				if err := tx.UpdateIdentifier(ctx, ident); err != nil {
					return err
				}
			}
			if st := ident.State(); st == StateInvalid || st == StatePreLive {
				return &ValidationError{Field: "identifier", Reason: fmt.Sprintf("%s %s would be left %s", k.typ, k.id, st)}
			}
		}

		// 5. Number and close.
		seq, err := tx.AppendChangelog(ctx, groupID, now)
		if err != nil {
			return fmt.Errorf("appending changelog: %w", err)
		}
		group.State = GroupAccepted
		group.FinishedAt = now
		group.ChangelogSeq = seq
		if err := tx.UpdateEditGroup(ctx, group); err != nil {
			return err
		}
		group.Edits = edits
		entry = &ChangelogEntry{Seq: seq, EditGroupID: groupID, Timestamp: now, EditGroup: group}
		return nil
	})

	if errors.Is(err, ErrConflict) {
		s.logger.Warn("edit group conflict", "editgroup", groupID, "error", err)
		if abandonErr := s.AbandonGroup(ctx, groupID); abandonErr != nil {
			s.logger.Error("abandoning conflicted edit group", "editgroup", groupID, "error", abandonErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("accepting edit group %s: %w", groupID, err)
	}

	s.logger.Info("edit group accepted", "editgroup", groupID, "seq", entry.Seq, "edits", len(entry.EditGroup.Edits))
	return entry, nil
}

// applyEdit writes one edit's effect inside an accepting transaction.
func (s *Service) applyEdit(ctx context.Context, tx Tx, e *Edit) error {
	switch e.Kind() {
	case EditCreate, EditUpdate:
		rev := &Revision{
			ID:         s.idgen.New(),
			EntityType: e.EntityType,
			EditID:     e.ID,
			ExtraHash:  e.ContentExtraHash,
			CreatedAt:  s.clock.Now(),
			Entity:     e.Content,
		}
		if err := tx.InsertRevision(ctx, rev); err != nil {
			return err
		}
		e.RevisionID = rev.ID
		if err := tx.SetEditRevision(ctx, e); err != nil {
			return err
		}
		if e.Kind() == EditCreate {
			return tx.CreateIdentifier(ctx, e.EntityType, e.IdentID, rev.ID)
		}
		return tx.UpdateIdentifier(ctx, &Identifier{EntityType: e.EntityType, ID: e.IdentID, Live: true, RevisionID: rev.ID})

	case EditRedirect:
		// The source is pre-seeded as seen, so a chain leading back to it is a cycle.
		res, err := s.walk(ctx, tx, e.EntityType, e.RedirectID, map[string]bool{e.IdentID: true})
		if err != nil {
			return err
		}
		if res.Deleted() {
			return fmt.Errorf("redirect target %s %s resolves to deleted %s: %w", e.EntityType, e.RedirectID, res.Terminus.ID, ErrBrokenChain)
		}
		return tx.UpdateIdentifier(ctx, &Identifier{
			EntityType: e.EntityType,
			ID:         e.IdentID,
			Live:       true,
			RevisionID: res.RevisionID,
			RedirectID: e.RedirectID,
		})

	case EditDelete:
		return tx.UpdateIdentifier(ctx, &Identifier{EntityType: e.EntityType, ID: e.IdentID, Live: true})
	}
	return fmt.Errorf("edit %s has no mutation", e.ID)
}

// recheckRedirect walks an applied redirect edit's chain on the group's
// post-apply state.
func (s *Service) recheckRedirect(ctx context.Context, tx Tx, e *Edit) error {
	res, err := s.walk(ctx, tx, e.EntityType, e.RedirectID, map[string]bool{e.IdentID: true})
	if err != nil {
		return err
	}
	if res.Deleted() {
		return fmt.Errorf("redirect target %s %s resolves to deleted %s: %w", e.EntityType, e.RedirectID, res.Terminus.ID, ErrBrokenChain)
	}
	ident, err := tx.GetIdentifier(ctx, e.EntityType, e.IdentID)
	if err != nil {
		return err
	}
	if ident.RevisionID == res.RevisionID {
		return nil
	}
	ident.RevisionID = res.RevisionID
	return tx.UpdateIdentifier(ctx, ident)
}

// AbandonGroup closes an open group without applying any of its edits.
func (s *Service) AbandonGroup(ctx context.Context, groupID string) error {
	err := s.store.Update(ctx, func(tx Tx) error {
		group, err := loadOpenGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		group.State = GroupAbandoned
		group.FinishedAt = s.clock.Now()
		return tx.UpdateEditGroup(ctx, group)
	})
	if err != nil {
		return fmt.Errorf("abandoning edit group %s: %w", groupID, err)
	}

	s.logger.Info("edit group abandoned", "editgroup", groupID)
	return nil
}

// Merge redirects sourceID to targetID through a single-edit group. The
// redirect is checked for cycles and broken chains when the group is accepted.
func (s *Service) Merge(ctx context.Context, editorID string, t EntityType, sourceID, targetID string) (*ChangelogEntry, error) {
	group, err := s.OpenGroup(ctx, editorID, fmt.Sprintf("merge %s %s into %s", t, sourceID, targetID), nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.StageEdit(ctx, group.ID, t, sourceID, Mutation{RedirectTo: targetID}); err != nil {
		if abandonErr := s.AbandonGroup(ctx, group.ID); abandonErr != nil {
			s.logger.Error("abandoning merge group", "editgroup", group.ID, "error", abandonErr)
		}
		return nil, err
	}
	return s.AcceptGroup(ctx, group.ID)
}
