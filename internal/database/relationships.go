package database

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-go/internal/catalog"
)

// relationTable describes how one relationship kind is stored.
type relationTable struct {
	table     string
	revCol    string
	targetCol string
	// roleCol and textCol are empty when the kind carries no such column.
	roleCol string
	textCol string
}

var relationTables = map[catalog.RelationKind]relationTable{
	catalog.RelationContrib:     {"release_contrib", "release_rev_id", "creator_ident_id", "role", "raw_name"},
	catalog.RelationRef:         {"release_ref", "release_rev_id", "target_release_ident_id", "ref_key", "raw_text"},
	catalog.RelationFileRelease: {"file_release", "file_rev_id", "release_ident_id", "", ""},
}

// kindsOwnedBy lists the relationship kinds whose rows belong to revisions of t.
func kindsOwnedBy(t catalog.EntityType) []catalog.RelationKind {
	switch t {
	case catalog.TypeRelease:
		return []catalog.RelationKind{catalog.RelationContrib, catalog.RelationRef}
	case catalog.TypeFile:
		return []catalog.RelationKind{catalog.RelationFileRelease}
	}
	return nil
}

func (q *sqlTx) insertRelationship(ctx context.Context, rel catalog.Relationship) error {
	rt, ok := relationTables[rel.Kind]
	if !ok {
		return fmt.Errorf("unknown relationship kind %q", rel.Kind)
	}

	cols := rt.revCol + ", " + rt.targetCol + ", idx"
	args := []any{rel.RevisionID, nullString(rel.TargetID), rel.Index}
	if rt.roleCol != "" {
		cols += ", " + rt.roleCol
		args = append(args, rel.Role)
	}
	if rt.textCol != "" {
		cols += ", " + rt.textCol
		args = append(args, rel.FallbackText)
	}
	placeholders := "?"
	for range args[1:] {
		placeholders += ", ?"
	}

	_, err := q.tx.ExecContext(ctx, "INSERT INTO "+rt.table+" ("+cols+") VALUES ("+placeholders+")", args...)
	if err != nil {
		return mapErr(fmt.Sprintf("inserting %s %d of revision %s", rel.Kind, rel.Index, rel.RevisionID), err)
	}
	return nil
}

func (q *sqlTx) ListRelationships(ctx context.Context, t catalog.EntityType, revID string) ([]catalog.Relationship, error) {
	if err := checkType(t); err != nil {
		return nil, err
	}
	var exists int
	err := q.tx.QueryRowContext(ctx, "SELECT 1 FROM "+revTable(t)+" WHERE id = ?", revID).Scan(&exists)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("reading %s revision %s", t, revID), err)
	}

	var rels []catalog.Relationship
	for _, kind := range kindsOwnedBy(t) {
		rt := relationTables[kind]
		rows, err := q.tx.QueryContext(ctx, fmt.Sprintf(
			"SELECT id, %s, idx, %s FROM %s WHERE %s = ? ORDER BY idx",
			rt.targetCol, rt.textColumns(""), rt.table, rt.revCol), revID)
		if err != nil {
			return nil, mapErr("listing "+rt.table, err)
		}
		for rows.Next() {
			rel := catalog.Relationship{Kind: kind, RevisionID: revID}
			var target sql.NullString
			if err := rows.Scan(&rel.ID, &target, &rel.Index, &rel.Role, &rel.FallbackText); err != nil {
				rows.Close()
				return nil, mapErr("scanning "+rt.table, err)
			}
			rel.TargetID = target.String
			rels = append(rels, rel)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, mapErr("listing "+rt.table, err)
		}
	}
	return rels, nil
}

func (q *sqlTx) ListReferrers(ctx context.Context, kind catalog.RelationKind, targetID string) ([]catalog.Referrer, error) {
	rt, ok := relationTables[kind]
	if !ok {
		return nil, &catalog.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown relationship kind %q", kind)}
	}
	owner := kind.OwnerType()

	// Only identifiers whose current revision carries the row count; older
	// revisions and redirects are excluded.
	rows, err := q.tx.QueryContext(ctx, fmt.Sprintf(`
		SELECT i.id, r.%s, r.idx, %s
		FROM %s r
		JOIN %s i ON i.rev_id = r.%s
		WHERE r.%s = ? AND i.live = 1 AND i.redirect_id IS NULL
		ORDER BY i.id, r.idx`,
		rt.revCol, rt.textColumns("r."), rt.table, identTable(owner), rt.revCol, rt.targetCol), targetID)
	if err != nil {
		return nil, mapErr("listing referrers of "+targetID, err)
	}
	defer rows.Close()

	var refs []catalog.Referrer
	for rows.Next() {
		ref := catalog.Referrer{EntityType: owner, Kind: kind}
		if err := rows.Scan(&ref.IdentID, &ref.RevisionID, &ref.Index, &ref.Role, &ref.FallbackText); err != nil {
			return nil, mapErr("scanning referrers", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("listing referrers of "+targetID, err)
	}
	return refs, nil
}

// textColumns selects the role and fallback text columns, substituting empty
// strings for kinds that have none.
func (rt relationTable) textColumns(alias string) string {
	role, text := "''", "''"
	if rt.roleCol != "" {
		role = alias + rt.roleCol
	}
	if rt.textCol != "" {
		text = alias + rt.textCol
	}
	return role + ", " + text
}
