package catalog_test

import (
	"context"
	"errors"
	"testing"

	"catalog-go/internal/catalog"
	"catalog-go/internal/testutil"
)

// change is one mutation to stage in a test group.
type change struct {
	typ catalog.EntityType
	id  string
	m   catalog.Mutation
}

func newService(t *testing.T) *catalog.Service {
	t.Helper()
	svc, _ := testutil.NewTestService(testutil.NewTestDatabase(t), catalog.Options{})
	return svc
}

// stage opens a group and stages every change in it.
func stage(t *testing.T, svc *catalog.Service, changes ...change) (*catalog.EditGroup, []*catalog.Edit) {
	t.Helper()
	ctx := context.Background()

	group, err := svc.OpenGroup(ctx, "editor-1", "test edits", nil)
	if err != nil {
		t.Fatalf("OpenGroup() error = %v", err)
	}
	edits := make([]*catalog.Edit, 0, len(changes))
	for _, c := range changes {
		e, err := svc.StageEdit(ctx, group.ID, c.typ, c.id, c.m)
		if err != nil {
			t.Fatalf("StageEdit(%s %q) error = %v", c.typ, c.id, err)
		}
		edits = append(edits, e)
	}
	return group, edits
}

// commit stages and accepts changes in one group.
func commit(t *testing.T, svc *catalog.Service, changes ...change) (*catalog.ChangelogEntry, []*catalog.Edit) {
	t.Helper()
	group, edits := stage(t, svc, changes...)
	entry, err := svc.AcceptGroup(context.Background(), group.ID)
	if err != nil {
		t.Fatalf("AcceptGroup() error = %v", err)
	}
	return entry, edits
}

// create commits a new entity and returns its identifier.
func create(t *testing.T, svc *catalog.Service, e catalog.Entity) string {
	t.Helper()
	_, edits := commit(t, svc, change{typ: e.EntityType(), m: catalog.Mutation{Content: e}})
	return edits[0].IdentID
}

func mustRead(t *testing.T, svc *catalog.Service, typ catalog.EntityType, id string) *catalog.Identifier {
	t.Helper()
	ident, err := svc.ReadCurrent(context.Background(), typ, id)
	if err != nil {
		t.Fatalf("ReadCurrent(%s %s) error = %v", typ, id, err)
	}
	return ident
}

func TestService_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	entry, edits := commit(t, svc, change{typ: catalog.TypeCreator, m: catalog.Mutation{
		Content: &catalog.Creator{DisplayName: "Ada Lovelace", ORCID: "0000-0002-1825-0097"},
	}})
	if entry.Seq != 1 {
		t.Errorf("Seq = %d, want 1", entry.Seq)
	}
	if edits[0].Kind() != catalog.EditCreate {
		t.Errorf("Kind() = %s, want create", edits[0].Kind())
	}

	id := edits[0].IdentID
	ident := mustRead(t, svc, catalog.TypeCreator, id)
	if ident.State() != catalog.StateLive {
		t.Fatalf("State() = %s, want live", ident.State())
	}

	rev, err := svc.GetRevision(ctx, catalog.TypeCreator, ident.RevisionID)
	if err != nil {
		t.Fatalf("GetRevision() error = %v", err)
	}
	creator := rev.Entity.(*catalog.Creator)
	if creator.DisplayName != "Ada Lovelace" || creator.ORCID != "0000-0002-1825-0097" {
		t.Errorf("revision content = %+v", creator)
	}
	if rev.EditID != edits[0].ID {
		t.Errorf("EditID = %s, want %s", rev.EditID, edits[0].ID)
	}

	res, err := svc.Follow(ctx, catalog.TypeCreator, id)
	if err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if res.Redirected() || res.Terminus.ID != id || res.RevisionID != ident.RevisionID {
		t.Errorf("Follow() = %+v, want terminus %s at %s", res, id, ident.RevisionID)
	}

	group, err := svc.GetEditGroup(ctx, entry.EditGroupID)
	if err != nil {
		t.Fatalf("GetEditGroup() error = %v", err)
	}
	if group.State != catalog.GroupAccepted || group.ChangelogSeq != 1 || group.FinishedAt.IsZero() {
		t.Errorf("accepted group = %+v", group)
	}
	if len(group.Edits) != 1 || group.Edits[0].RevisionID != ident.RevisionID {
		t.Errorf("group edits = %+v, want one edit with revision %s", group.Edits, ident.RevisionID)
	}
}

func TestService_StagedEditsAreInvisible(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	existing := create(t, svc, &catalog.Creator{DisplayName: "Ada"})
	before := mustRead(t, svc, catalog.TypeCreator, existing)

	_, edits := stage(t, svc,
		change{typ: catalog.TypeCreator, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "New"}}},
		change{typ: catalog.TypeCreator, id: existing, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Ada L."}}},
	)

	if _, err := svc.ReadCurrent(ctx, catalog.TypeCreator, edits[0].IdentID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("ReadCurrent(staged create) error = %v, want ErrNotFound", err)
	}
	after := mustRead(t, svc, catalog.TypeCreator, existing)
	if after.RevisionID != before.RevisionID {
		t.Errorf("staged update changed revision: %s -> %s", before.RevisionID, after.RevisionID)
	}
	if head, _ := svc.Head(ctx); head != 1 {
		t.Errorf("Head() = %d, want 1", head)
	}
}

func TestService_GroupWithDependentCreates(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	group, err := svc.OpenGroup(ctx, "editor-1", "paper and author", nil)
	if err != nil {
		t.Fatalf("OpenGroup() error = %v", err)
	}
	author, err := svc.StageEdit(ctx, group.ID, catalog.TypeCreator, "", catalog.Mutation{Content: &catalog.Creator{DisplayName: "Grace Hopper"}})
	if err != nil {
		t.Fatalf("StageEdit(creator) error = %v", err)
	}
	release, err := svc.StageEdit(ctx, group.ID, catalog.TypeRelease, "", catalog.Mutation{Content: &catalog.Release{
		Title:    "A Programmer's Guide",
		Contribs: []catalog.Contrib{{CreatorID: author.IdentID, Role: "author"}},
	}})
	if err != nil {
		t.Fatalf("StageEdit(release) error = %v", err)
	}
	if _, err := svc.AcceptGroup(ctx, group.ID); err != nil {
		t.Fatalf("AcceptGroup() error = %v", err)
	}

	refs, err := svc.Referrers(ctx, catalog.RelationContrib, author.IdentID)
	if err != nil {
		t.Fatalf("Referrers() error = %v", err)
	}
	if len(refs) != 1 || refs[0].IdentID != release.IdentID {
		t.Errorf("Referrers() = %+v, want %s", refs, release.IdentID)
	}
}

func TestService_StageValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "Ada"})

	group, err := svc.OpenGroup(ctx, "editor-1", "", nil)
	if err != nil {
		t.Fatalf("OpenGroup() error = %v", err)
	}
	if _, err := svc.StageEdit(ctx, group.ID, catalog.TypeCreator, c1, catalog.Mutation{Delete: true}); err != nil {
		t.Fatalf("StageEdit() error = %v", err)
	}

	tests := []struct {
		name   string
		typ    catalog.EntityType
		target string
		m      catalog.Mutation
	}{
		{name: "no mutation", typ: catalog.TypeCreator, target: c1},
		{name: "two mutations", typ: catalog.TypeCreator, target: c1, m: catalog.Mutation{Delete: true, RedirectTo: "x"}},
		{name: "content of wrong type", typ: catalog.TypeWork, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Ada"}}},
		{name: "invalid content", typ: catalog.TypeCreator, m: catalog.Mutation{Content: &catalog.Creator{}}},
		{name: "nil creator", typ: catalog.TypeCreator, m: catalog.Mutation{Content: (*catalog.Creator)(nil)}},
		{name: "nil work", typ: catalog.TypeWork, m: catalog.Mutation{Content: (*catalog.Work)(nil)}},
		{name: "delete without target", typ: catalog.TypeCreator, m: catalog.Mutation{Delete: true}},
		{name: "redirect to self", typ: catalog.TypeCreator, target: "c9", m: catalog.Mutation{RedirectTo: "c9"}},
		{name: "missing target", typ: catalog.TypeCreator, target: "nope", m: catalog.Mutation{Delete: true}},
		{name: "second edit of same identifier", typ: catalog.TypeCreator, target: c1, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "x"}}},
		{name: "reference to missing creator", typ: catalog.TypeRelease, m: catalog.Mutation{Content: &catalog.Release{
			Title: "T", Contribs: []catalog.Contrib{{CreatorID: "ghost"}},
		}}},
		{name: "unknown entity type", typ: catalog.EntityType("robot"), m: catalog.Mutation{Delete: true}, target: c1},
		{name: "extra that is not an object", typ: catalog.TypeCreator, m: catalog.Mutation{
			Content: &catalog.Creator{DisplayName: "x"}, Extra: []byte(`[1,2]`),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StageEdit(ctx, group.ID, tt.typ, tt.target, tt.m)
			if !catalog.IsValidation(err) {
				t.Errorf("StageEdit() error = %v, want validation error", err)
			}
		})
	}

	g, err := svc.GetEditGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetEditGroup() error = %v", err)
	}
	if g.EditCount != 1 || len(g.Edits) != 1 {
		t.Errorf("group has %d edits after rejected stages, want 1", len(g.Edits))
	}
}

func TestService_GroupLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	if _, err := svc.OpenGroup(ctx, " ", "", nil); !catalog.IsValidation(err) {
		t.Errorf("OpenGroup(blank editor) error = %v, want validation error", err)
	}

	empty, err := svc.OpenGroup(ctx, "editor-1", "", nil)
	if err != nil {
		t.Fatalf("OpenGroup() error = %v", err)
	}
	if !empty.CreatedAt.Equal(testutil.Epoch) || empty.State != catalog.GroupOpen {
		t.Errorf("OpenGroup() = %+v, want open group created at %v", empty, testutil.Epoch)
	}
	if _, err := svc.AcceptGroup(ctx, empty.ID); !catalog.IsValidation(err) {
		t.Errorf("AcceptGroup(empty) error = %v, want validation error", err)
	}

	group, edits := stage(t, svc, change{typ: catalog.TypeWork, m: catalog.Mutation{Content: &catalog.Work{Title: "W"}}})
	if err := svc.AbandonGroup(ctx, group.ID); err != nil {
		t.Fatalf("AbandonGroup() error = %v", err)
	}
	if _, err := svc.AcceptGroup(ctx, group.ID); !catalog.IsValidation(err) {
		t.Errorf("AcceptGroup(abandoned) error = %v, want validation error", err)
	}
	if _, err := svc.StageEdit(ctx, group.ID, catalog.TypeWork, "", catalog.Mutation{Content: &catalog.Work{}}); !catalog.IsValidation(err) {
		t.Errorf("StageEdit(abandoned) error = %v, want validation error", err)
	}
	if err := svc.AbandonGroup(ctx, group.ID); !catalog.IsValidation(err) {
		t.Errorf("AbandonGroup(abandoned) error = %v, want validation error", err)
	}
	if _, err := svc.ReadCurrent(ctx, catalog.TypeWork, edits[0].IdentID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("abandoned create visible: %v", err)
	}
	if _, err := svc.GetEditGroup(ctx, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("GetEditGroup(missing) error = %v, want ErrNotFound", err)
	}

	g, _ := svc.GetEditGroup(ctx, group.ID)
	if g.State != catalog.GroupAbandoned || g.ChangelogSeq != 0 {
		t.Errorf("abandoned group = %+v", g)
	}
	if head, _ := svc.Head(ctx); head != 0 {
		t.Errorf("Head() = %d, want 0", head)
	}
}

func TestService_AcceptIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "One"})
	c2 := create(t, svc, &catalog.Creator{DisplayName: "Two"})

	group, edits := stage(t, svc,
		change{typ: catalog.TypeCreator, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Three"}}},
		change{typ: catalog.TypeCreator, id: c1, m: catalog.Mutation{RedirectTo: c2}},
	)
	// The redirect target is deleted after staging, so the second edit fails
	// when the group is applied.
	commit(t, svc, change{typ: catalog.TypeCreator, id: c2, m: catalog.Mutation{Delete: true}})

	_, err := svc.AcceptGroup(ctx, group.ID)
	if !errors.Is(err, catalog.ErrBrokenChain) {
		t.Fatalf("AcceptGroup() error = %v, want ErrBrokenChain", err)
	}

	if _, err := svc.ReadCurrent(ctx, catalog.TypeCreator, edits[0].IdentID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("create from failed group visible: %v", err)
	}
	if st := mustRead(t, svc, catalog.TypeCreator, c1).State(); st != catalog.StateLive {
		t.Errorf("c1 state = %s, want live", st)
	}
	if head, _ := svc.Head(ctx); head != 3 {
		t.Errorf("Head() = %d, want 3", head)
	}
	g, _ := svc.GetEditGroup(ctx, group.ID)
	if g.State != catalog.GroupOpen {
		t.Errorf("group state = %s, want open", g.State)
	}
}

func TestService_Conflict(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	c1 := create(t, svc, &catalog.Creator{DisplayName: "Ada"})

	first, _ := stage(t, svc, change{typ: catalog.TypeCreator, id: c1, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "First"}}})
	second, _ := stage(t, svc, change{typ: catalog.TypeCreator, id: c1, m: catalog.Mutation{Content: &catalog.Creator{DisplayName: "Second"}}})

	if _, err := svc.AcceptGroup(ctx, first.ID); err != nil {
		t.Fatalf("AcceptGroup(first) error = %v", err)
	}
	_, err := svc.AcceptGroup(ctx, second.ID)
	if !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("AcceptGroup(second) error = %v, want ErrConflict", err)
	}
	var ce *catalog.ConflictError
	if !errors.As(err, &ce) || ce.IdentID != c1 || ce.GroupID != second.ID {
		t.Errorf("conflict error = %#v", ce)
	}

	g, _ := svc.GetEditGroup(ctx, second.ID)
	if g.State != catalog.GroupAbandoned {
		t.Errorf("conflicted group state = %s, want abandoned", g.State)
	}

	ident := mustRead(t, svc, catalog.TypeCreator, c1)
	rev, err := svc.GetRevision(ctx, catalog.TypeCreator, ident.RevisionID)
	if err != nil {
		t.Fatalf("GetRevision() error = %v", err)
	}
	if name := rev.Entity.(*catalog.Creator).DisplayName; name != "First" {
		t.Errorf("DisplayName = %q, want First", name)
	}
}

func TestService_CreateCannotConflict(t *testing.T) {
	svc := newService(t)

	a, _ := stage(t, svc, change{typ: catalog.TypeWork, m: catalog.Mutation{Content: &catalog.Work{Title: "A"}}})
	b, _ := stage(t, svc, change{typ: catalog.TypeWork, m: catalog.Mutation{Content: &catalog.Work{Title: "B"}}})

	for _, g := range []*catalog.EditGroup{b, a} {
		if _, err := svc.AcceptGroup(context.Background(), g.ID); err != nil {
			t.Errorf("AcceptGroup(%s) error = %v", g.ID, err)
		}
	}
}
