package catalog

import "fmt"

// RelationKind names a kind of child row owned by a revision.
type RelationKind string

const (
	// RelationContrib links a release revision to a credited creator.
	RelationContrib RelationKind = "contrib"
	// RelationRef links a release revision to a cited release.
	RelationRef RelationKind = "ref"
	// RelationFileRelease links a file revision to a release it is a copy of.
	RelationFileRelease RelationKind = "file_release"
)

// ParseRelationKind converts a user-supplied name into a RelationKind.
func ParseRelationKind(s string) (RelationKind, error) {
	k := RelationKind(s)
	switch k {
	case RelationContrib, RelationRef, RelationFileRelease:
		return k, nil
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown relationship kind %q", s)}
}

// OwnerType is the entity type whose revisions own rows of this kind.
func (k RelationKind) OwnerType() EntityType {
	if k == RelationFileRelease {
		return TypeFile
	}
	return TypeRelease
}

// TargetType is the entity type the rows of this kind point at.
func (k RelationKind) TargetType() EntityType {
	if k == RelationContrib {
		return TypeCreator
	}
	return TypeRelease
}

// Relationship is one immutable child row of a revision. TargetID points at an
// identifier, not a revision, so later merges and deletions of the target are
// seen at read time without rewriting the row.
type Relationship struct {
	ID           int64        `json:"id"`
	Kind         RelationKind `json:"kind"`
	RevisionID   string       `json:"revision_id"`
	TargetID     string       `json:"target_id,omitempty"`
	Index        int          `json:"index"`
	Role         string       `json:"role,omitempty"`
	FallbackText string       `json:"fallback_text,omitempty"`
}

// Referrer is a live identifier whose current revision owns a relationship
// row pointing at some target.
type Referrer struct {
	EntityType   EntityType   `json:"entity_type"`
	IdentID      string       `json:"ident_id"`
	RevisionID   string       `json:"revision_id"`
	Kind         RelationKind `json:"kind"`
	Index        int          `json:"index"`
	Role         string       `json:"role,omitempty"`
	FallbackText string       `json:"fallback_text,omitempty"`
}

// Relations flattens the child rows carried by e into relationship rows in
// ordinal order. RevisionID and ID are left for the store to fill in.
func Relations(e Entity) []Relationship {
	var rels []Relationship
	switch v := e.(type) {
	case *Release:
		for i, c := range v.Contribs {
			rels = append(rels, Relationship{Kind: RelationContrib, TargetID: c.CreatorID, Index: i, Role: c.Role, FallbackText: c.RawName})
		}
		for i, r := range v.Refs {
			rels = append(rels, Relationship{Kind: RelationRef, TargetID: r.TargetReleaseID, Index: i, Role: r.Key, FallbackText: r.RawText})
		}
	case *File:
		for i, id := range v.ReleaseIDs {
			rels = append(rels, Relationship{Kind: RelationFileRelease, TargetID: id, Index: i})
		}
	}
	return rels
}

// AttachRelations is the inverse of Relations: it rebuilds the child row
// fields of e from rels, which must be ordered by kind then index.
func AttachRelations(e Entity, rels []Relationship) {
	switch v := e.(type) {
	case *Release:
		v.Contribs, v.Refs = nil, nil
		for _, r := range rels {
			switch r.Kind {
			case RelationContrib:
				v.Contribs = append(v.Contribs, Contrib{CreatorID: r.TargetID, Role: r.Role, RawName: r.FallbackText})
			case RelationRef:
				v.Refs = append(v.Refs, Ref{TargetReleaseID: r.TargetID, Key: r.Role, RawText: r.FallbackText})
			}
		}
	case *File:
		v.ReleaseIDs = nil
		for _, r := range rels {
			if r.Kind == RelationFileRelease {
				v.ReleaseIDs = append(v.ReleaseIDs, r.TargetID)
			}
		}
	}
}

// identRef is a reference from entity content to another identifier.
type identRef struct {
	field string
	typ   EntityType
	id    string
}

// outgoingRefs lists every identifier the content of e points at, including
// plain foreign-key columns such as a release's container.
func outgoingRefs(e Entity) []identRef {
	var refs []identRef
	switch v := e.(type) {
	case *Release:
		if v.WorkID != "" {
			refs = append(refs, identRef{"work_id", TypeWork, v.WorkID})
		}
		if v.ContainerID != "" {
			refs = append(refs, identRef{"container_id", TypeContainer, v.ContainerID})
		}
	}
	for _, r := range Relations(e) {
		if r.TargetID == "" {
			continue
		}
		refs = append(refs, identRef{fmt.Sprintf("%s[%d]", r.Kind, r.Index), r.Kind.TargetType(), r.TargetID})
	}
	return refs
}
