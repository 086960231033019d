package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ReadCurrent returns the identifier exactly as stored, without following
// redirects. For a redirect the RevisionID is a cached hint that may be stale.
func (s *Service) ReadCurrent(ctx context.Context, t EntityType, id string) (*Identifier, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
	}
	var ident *Identifier
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		ident, err = r.GetIdentifier(ctx, t, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", t, id, err)
	}
	return ident, nil
}

// Follow resolves an identifier through its redirect chain. The returned
// RevisionID is always read from the terminus itself, never from the cached
// copies on redirect identifiers along the way.
//
// A chain that revisits an identifier fails with ErrCycleDetected. A chain
// that ends at a deleted or missing identifier, or is longer than the
// configured depth, fails with ErrBrokenChain. An identifier that is itself
// deleted (not via a redirect) resolves to itself with an empty RevisionID.
func (s *Service) Follow(ctx context.Context, t EntityType, id string) (*Resolved, error) {
	if !t.Valid() {
		return nil, &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
	}
	var res *Resolved
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		res, err = s.walk(ctx, r, t, id, make(map[string]bool))
		if err != nil {
			return err
		}
		if res.Redirected() && res.Deleted() {
			return fmt.Errorf("%s %s redirects to deleted %s: %w", t, id, res.Terminus.ID, ErrBrokenChain)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("following %s %s: %w", t, id, err)
	}
	return res, nil
}

// walk follows redirects from start until it reaches a non-redirect
// identifier. seen holds identifiers that must not be visited; every visited
// identifier is added to it, so a revisit is reported as a cycle instead of
// looping. The walk takes at most s.maxDepth hops.
func (s *Service) walk(ctx context.Context, r Reader, t EntityType, start string, seen map[string]bool) (*Resolved, error) {
	res := &Resolved{}
	cur := start
	for {
		if seen[cur] {
			return nil, fmt.Errorf("%s %s revisited after %v: %w", t, cur, res.Path, ErrCycleDetected)
		}
		ident, err := r.GetIdentifier(ctx, t, cur)
		if err != nil {
			if errors.Is(err, ErrNotFound) && len(res.Path) > 0 {
				return nil, fmt.Errorf("redirect target %s %s missing: %w", t, cur, ErrBrokenChain)
			}
			return nil, err
		}
		seen[cur] = true
		res.Path = append(res.Path, cur)
		if res.Requested == nil {
			res.Requested = ident
		}

		switch ident.State() {
		case StateRedirect:
			if len(res.Path) > s.maxDepth {
				return nil, fmt.Errorf("%s %s: chain longer than %d hops: %w", t, start, s.maxDepth, ErrBrokenChain)
			}
			cur = ident.RedirectID
		case StateLive, StatePreLive, StateDeleted:
			res.Terminus = ident
			res.RevisionID = ident.RevisionID
			return res, nil
		default:
			return nil, fmt.Errorf("%s %s has an invalid field combination (live=%t revision=%q redirect=%q)",
				t, cur, ident.Live, ident.RevisionID, ident.RedirectID)
		}
	}
}
