package database

import (
	"context"
	"database/sql"
	"fmt"

	"catalog-go/internal/catalog"
)

// Table names are only ever built from validated entity types.

func identTable(t catalog.EntityType) string { return string(t) + "_ident" }
func revTable(t catalog.EntityType) string   { return string(t) + "_rev" }
func editTable(t catalog.EntityType) string  { return string(t) + "_edit" }

func checkType(t catalog.EntityType) error {
	if !t.Valid() {
		return &catalog.ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
	}
	return nil
}

func (q *sqlTx) GetIdentifier(ctx context.Context, t catalog.EntityType, id string) (*catalog.Identifier, error) {
	if err := checkType(t); err != nil {
		return nil, err
	}
	var live bool
	var revID, redirectID sql.NullString
	err := q.tx.QueryRowContext(ctx,
		"SELECT live, rev_id, redirect_id FROM "+identTable(t)+" WHERE id = ?", id,
	).Scan(&live, &revID, &redirectID)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("reading %s %s", t, id), err)
	}
	return &catalog.Identifier{
		EntityType: t,
		ID:         id,
		Live:       live,
		RevisionID: revID.String,
		RedirectID: redirectID.String,
	}, nil
}

func (q *sqlTx) CreateIdentifier(ctx context.Context, t catalog.EntityType, id, revID string) error {
	if err := checkType(t); err != nil {
		return err
	}
	_, err := q.tx.ExecContext(ctx,
		"INSERT INTO "+identTable(t)+" (id, live, rev_id, redirect_id) VALUES (?, 0, ?, NULL)",
		id, revID)
	if err != nil {
		return mapErr(fmt.Sprintf("creating %s %s", t, id), err)
	}
	return nil
}

func (q *sqlTx) UpdateIdentifier(ctx context.Context, ident *catalog.Identifier) error {
	if err := checkType(ident.EntityType); err != nil {
		return err
	}
	res, err := q.tx.ExecContext(ctx,
		"UPDATE "+identTable(ident.EntityType)+" SET live = ?, rev_id = ?, redirect_id = ? WHERE id = ?",
		ident.Live, nullString(ident.RevisionID), nullString(ident.RedirectID), ident.ID)
	op := fmt.Sprintf("updating %s %s", ident.EntityType, ident.ID)
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, catalog.ErrNotFound)
	}
	return nil
}

// LookupIdentifier relies on the partial indexes over non-empty key columns,
// so the value must be non-empty.
func (q *sqlTx) LookupIdentifier(ctx context.Context, t catalog.EntityType, key, value string) (*catalog.Identifier, error) {
	if err := checkType(t); err != nil {
		return nil, err
	}
	if !lookupColumn(t, key) {
		return nil, &catalog.ValidationError{Field: "key", Reason: fmt.Sprintf("%s cannot be looked up by %q", t, key)}
	}
	if value == "" {
		return nil, &catalog.ValidationError{Field: key, Reason: "empty lookup value"}
	}

	var id, revID string
	err := q.tx.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT i.id, i.rev_id FROM %s i
		JOIN %s r ON r.id = i.rev_id
		WHERE r.%s = ? AND r.%s != '' AND i.live = 1 AND i.redirect_id IS NULL
		ORDER BY i.id
		LIMIT 1`, identTable(t), revTable(t), key, key), value,
	).Scan(&id, &revID)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("looking up %s by %s", t, key), err)
	}
	return &catalog.Identifier{EntityType: t, ID: id, Live: true, RevisionID: revID}, nil
}

// lookupColumn guards the column name interpolated into LookupIdentifier.
func lookupColumn(t catalog.EntityType, key string) bool {
	for _, k := range catalog.LookupKeys(t) {
		if k == key {
			return true
		}
	}
	return false
}
