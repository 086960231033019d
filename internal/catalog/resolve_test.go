package catalog_test

import (
	"context"
	"errors"
	"testing"

	"catalog-go/internal/catalog"
	"catalog-go/internal/testutil"
)

func TestService_Merge(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "A. Lovelace"})
	c2 := create(t, svc, &catalog.Creator{DisplayName: "Ada Lovelace"})
	targetRev := mustRead(t, svc, catalog.TypeCreator, c2).RevisionID

	entry, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c1, c2)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if entry.Seq != 3 {
		t.Errorf("Seq = %d, want 3", entry.Seq)
	}

	src := mustRead(t, svc, catalog.TypeCreator, c1)
	if src.State() != catalog.StateRedirect || src.RedirectID != c2 {
		t.Fatalf("source = %+v, want redirect to %s", src, c2)
	}
	if src.RevisionID != targetRev {
		t.Errorf("cached revision = %s, want %s", src.RevisionID, targetRev)
	}

	res, err := svc.Follow(ctx, catalog.TypeCreator, c1)
	if err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if res.Terminus.ID != c2 || len(res.Path) != 2 || !res.Redirected() {
		t.Errorf("Follow() = %+v, want path [%s %s]", res, c1, c2)
	}

	t.Run("follow sees target updates through a stale cache", func(t *testing.T) {
		commit(t, svc, change{typ: catalog.TypeCreator, id: c2, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Augusta Ada King"}}})
		newRev := mustRead(t, svc, catalog.TypeCreator, c2).RevisionID

		res, err := svc.Follow(ctx, catalog.TypeCreator, c1)
		if err != nil {
			t.Fatalf("Follow() error = %v", err)
		}
		if res.RevisionID != newRev {
			t.Errorf("Follow() revision = %s, want %s", res.RevisionID, newRev)
		}
		if cached := mustRead(t, svc, catalog.TypeCreator, c1).RevisionID; cached != targetRev {
			t.Errorf("ReadCurrent() revision = %s, want unchanged cache %s", cached, targetRev)
		}
	})

	t.Run("relationships may point at a redirected identifier", func(t *testing.T) {
		r1 := create(t, svc, &catalog.Release{Title: "Notes", Contribs: []catalog.Contrib{{CreatorID: c1}}})
		refs, err := svc.Referrers(ctx, catalog.RelationContrib, c1)
		if err != nil {
			t.Fatalf("Referrers() error = %v", err)
		}
		if len(refs) != 1 || refs[0].IdentID != r1 {
			t.Errorf("Referrers(c1) = %+v, want %s", refs, r1)
		}
	})
}

func TestService_MergeCycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "One"})
	c2 := create(t, svc, &catalog.Creator{DisplayName: "Two"})
	c3 := create(t, svc, &catalog.Creator{DisplayName: "Three"})

	if _, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c1, c2); err != nil {
		t.Fatalf("Merge(c1, c2) error = %v", err)
	}
	if _, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c2, c3); err != nil {
		t.Fatalf("Merge(c2, c3) error = %v", err)
	}

	_, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c3, c1)
	if !errors.Is(err, catalog.ErrCycleDetected) {
		t.Fatalf("Merge(c3, c1) error = %v, want ErrCycleDetected", err)
	}
	if st := mustRead(t, svc, catalog.TypeCreator, c3).State(); st != catalog.StateLive {
		t.Errorf("c3 state = %s after rejected merge, want live", st)
	}

	if _, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c1, c1); !catalog.IsValidation(err) {
		t.Errorf("Merge(c1, c1) error = %v, want validation error", err)
	}
}

func TestService_MergeIntoDeleted(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "One"})
	c2 := create(t, svc, &catalog.Creator{DisplayName: "Two"})
	commit(t, svc, change{typ: catalog.TypeCreator, id: c2, m: catalog.Mutation{Delete: true}})

	_, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c1, c2)
	if !errors.Is(err, catalog.ErrBrokenChain) {
		t.Fatalf("Merge() error = %v, want ErrBrokenChain", err)
	}
	if st := mustRead(t, svc, catalog.TypeCreator, c1).State(); st != catalog.StateLive {
		t.Errorf("c1 state = %s, want live", st)
	}

	if _, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c1, "ghost"); !catalog.IsValidation(err) {
		t.Errorf("Merge(into missing) error = %v, want validation error", err)
	}
}

func TestService_RedirectAndDeleteInOneGroup(t *testing.T) {
	tests := []struct {
		name  string
		order func(source, target string) []change
	}{
		{name: "redirect staged first", order: func(source, target string) []change {
			return []change{
				{typ: catalog.TypeCreator, id: source, m: catalog.Mutation{RedirectTo: target}},
				{typ: catalog.TypeCreator, id: target, m: catalog.Mutation{Delete: true}},
			}
		}},
		{name: "delete staged first", order: func(source, target string) []change {
			return []change{
				{typ: catalog.TypeCreator, id: target, m: catalog.Mutation{Delete: true}},
				{typ: catalog.TypeCreator, id: source, m: catalog.Mutation{RedirectTo: target}},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc := newService(t)
			c1 := create(t, svc, &catalog.Creator{DisplayName: "One"})
			c2 := create(t, svc, &catalog.Creator{DisplayName: "Two"})

			group, _ := stage(t, svc, tt.order(c1, c2)...)
			_, err := svc.AcceptGroup(ctx, group.ID)
			if !errors.Is(err, catalog.ErrBrokenChain) {
				t.Fatalf("AcceptGroup() error = %v, want ErrBrokenChain", err)
			}

			for _, id := range []string{c1, c2} {
				if st := mustRead(t, svc, catalog.TypeCreator, id).State(); st != catalog.StateLive {
					t.Errorf("%s state = %s after rejected group, want live", id, st)
				}
			}
			if head, err := svc.Head(ctx); err != nil || head != 2 {
				t.Errorf("Head() = %d, %v, want 2", head, err)
			}
		})
	}
}

func TestService_RedirectCacheSeesLaterEditInGroup(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "One"})
	c2 := create(t, svc, &catalog.Creator{DisplayName: "Two"})

	commit(t, svc,
		change{typ: catalog.TypeCreator, id: c1, m: catalog.Mutation{RedirectTo: c2}},
		change{typ: catalog.TypeCreator, id: c2, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Two, revised"}}},
	)

	newRev := mustRead(t, svc, catalog.TypeCreator, c2).RevisionID
	if cached := mustRead(t, svc, catalog.TypeCreator, c1).RevisionID; cached != newRev {
		t.Errorf("cached revision = %s, want %s", cached, newRev)
	}
	res, err := svc.Follow(ctx, catalog.TypeCreator, c1)
	if err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if res.RevisionID != newRev {
		t.Errorf("Follow() revision = %s, want %s", res.RevisionID, newRev)
	}
}

func TestService_FollowStoredChains(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	svc, _ := testutil.NewTestService(db, catalog.Options{MaxRedirectDepth: 2})

	ids := make([]string, 4)
	revs := make([]string, 4)
	for i := range ids {
		ids[i] = create(t, svc, &catalog.Work{Title: "w"})
		revs[i] = mustRead(t, svc, catalog.TypeWork, ids[i]).RevisionID
	}

	// store writes redirect rows directly, bypassing acceptance checks
	store := func(t *testing.T, links ...[2]int) {
		t.Helper()
		err := db.Update(ctx, func(tx catalog.Tx) error {
			for _, l := range links {
				from, to := l[0], l[1]
				ident := &catalog.Identifier{EntityType: catalog.TypeWork, ID: ids[from], Live: true, RevisionID: revs[to], RedirectID: ids[to]}
				if err := tx.UpdateIdentifier(ctx, ident); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	t.Run("cycle", func(t *testing.T) {
		// ids[0] -> ids[1] -> ids[0]
		store(t, [2]int{0, 1}, [2]int{1, 0})

		for _, id := range ids[:2] {
			if _, err := svc.Follow(ctx, catalog.TypeWork, id); !errors.Is(err, catalog.ErrCycleDetected) {
				t.Errorf("Follow(%s) error = %v, want ErrCycleDetected", id, err)
			}
		}
	})

	t.Run("longer than max depth", func(t *testing.T) {
		// ids[0] -> ids[1] -> ids[2] -> ids[3]
		store(t, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 3})

		if _, err := svc.Follow(ctx, catalog.TypeWork, ids[0]); !errors.Is(err, catalog.ErrBrokenChain) {
			t.Errorf("Follow(three hops) error = %v, want ErrBrokenChain", err)
		}
		res, err := svc.Follow(ctx, catalog.TypeWork, ids[1])
		if err != nil {
			t.Fatalf("Follow(two hops) error = %v", err)
		}
		if res.Terminus.ID != ids[3] || res.RevisionID != revs[3] {
			t.Errorf("Follow(two hops) = %+v, want terminus %s", res, ids[3])
		}
	})
}

func TestService_Deletion(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "One", ORCID: "0000-0002-1825-0097"})
	c2 := create(t, svc, &catalog.Creator{DisplayName: "Two"})
	if _, err := svc.Merge(ctx, "editor-1", catalog.TypeCreator, c1, c2); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	_, edits := commit(t, svc, change{typ: catalog.TypeCreator, id: c2, m: catalog.Mutation{Delete: true}})
	if edits[0].Kind() != catalog.EditDelete {
		t.Errorf("Kind() = %s, want delete", edits[0].Kind())
	}

	deleted := mustRead(t, svc, catalog.TypeCreator, c2)
	if deleted.State() != catalog.StateDeleted {
		t.Fatalf("State() = %s, want deleted", deleted.State())
	}

	res, err := svc.Follow(ctx, catalog.TypeCreator, c2)
	if err != nil {
		t.Fatalf("Follow(deleted) error = %v", err)
	}
	if !res.Deleted() || res.RevisionID != "" {
		t.Errorf("Follow(deleted) = %+v, want deleted terminus", res)
	}

	if _, err := svc.Follow(ctx, catalog.TypeCreator, c1); !errors.Is(err, catalog.ErrBrokenChain) {
		t.Errorf("Follow(redirect to deleted) error = %v, want ErrBrokenChain", err)
	}

	t.Run("deleted identifier can be given content again", func(t *testing.T) {
		commit(t, svc, change{typ: catalog.TypeCreator, id: c2, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Two again"}}})
		if st := mustRead(t, svc, catalog.TypeCreator, c2).State(); st != catalog.StateLive {
			t.Errorf("State() = %s, want live", st)
		}
		if _, err := svc.Follow(ctx, catalog.TypeCreator, c1); err != nil {
			t.Errorf("Follow(c1) error = %v", err)
		}
	})
}

func TestService_FollowDepthLimit(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewTestService(testutil.NewTestDatabase(t), catalog.Options{MaxRedirectDepth: 2})

	ids := make([]string, 4)
	for i := range ids {
		ids[i] = create(t, svc, &catalog.Work{Title: "w"})
	}
	// ids[0] -> ids[1] -> ids[2] -> ids[3]
	for i := 2; i >= 0; i-- {
		if _, err := svc.Merge(ctx, "editor-1", catalog.TypeWork, ids[i], ids[i+1]); err != nil {
			t.Fatalf("Merge(%d) error = %v", i, err)
		}
	}

	res, err := svc.Follow(ctx, catalog.TypeWork, ids[1])
	if err != nil {
		t.Fatalf("Follow(two hops) error = %v", err)
	}
	if res.Terminus.ID != ids[3] {
		t.Errorf("terminus = %s, want %s", res.Terminus.ID, ids[3])
	}

	if _, err := svc.Follow(ctx, catalog.TypeWork, ids[0]); !errors.Is(err, catalog.ErrBrokenChain) {
		t.Errorf("Follow(three hops) error = %v, want ErrBrokenChain", err)
	}
}

func TestService_ReadErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.ReadCurrent(ctx, catalog.TypeRelease, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("ReadCurrent() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Follow(ctx, catalog.TypeRelease, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Follow() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.ReadCurrent(ctx, catalog.EntityType("robot"), "x"); !catalog.IsValidation(err) {
		t.Errorf("ReadCurrent(bad type) error = %v, want validation error", err)
	}
	if _, err := svc.GetRevision(ctx, catalog.TypeRelease, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("GetRevision() error = %v, want ErrNotFound", err)
	}
}
