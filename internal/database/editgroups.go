package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"catalog-go/internal/catalog"
)

// Edit groups

func (q *sqlTx) InsertEditGroup(ctx context.Context, g *catalog.EditGroup) error {
	_, err := q.tx.ExecContext(ctx, `
		INSERT INTO editgroup (id, editor_id, description, state, extra_sha1, created_at, edit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.EditorID, g.Description, string(g.State), nullString(g.ExtraHash), g.CreatedAt, g.EditCount)
	if err != nil {
		return mapErr("inserting edit group "+g.ID, err)
	}
	return nil
}

func (q *sqlTx) UpdateEditGroup(ctx context.Context, g *catalog.EditGroup) error {
	finished := sql.NullTime{Time: g.FinishedAt, Valid: !g.FinishedAt.IsZero()}
	seq := sql.NullInt64{Int64: g.ChangelogSeq, Valid: g.ChangelogSeq != 0}
	res, err := q.tx.ExecContext(ctx,
		"UPDATE editgroup SET state = ?, finished_at = ?, changelog_seq = ?, edit_count = ? WHERE id = ?",
		string(g.State), finished, seq, g.EditCount, g.ID)
	if err != nil {
		return mapErr("updating edit group "+g.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storageErr("updating edit group "+g.ID, err)
	} else if n == 0 {
		return fmt.Errorf("updating edit group %s: %w", g.ID, catalog.ErrNotFound)
	}
	return nil
}

func (q *sqlTx) GetEditGroup(ctx context.Context, id string) (*catalog.EditGroup, error) {
	g := &catalog.EditGroup{ID: id}
	var (
		state     string
		extraHash sql.NullString
		finished  sql.NullTime
		seq       sql.NullInt64
	)
	err := q.tx.QueryRowContext(ctx, `
		SELECT editor_id, description, state, extra_sha1, created_at, finished_at, changelog_seq, edit_count
		FROM editgroup WHERE id = ?`, id,
	).Scan(&g.EditorID, &g.Description, &state, &extraHash, &g.CreatedAt, &finished, &seq, &g.EditCount)
	if err != nil {
		return nil, mapErr("reading edit group "+id, err)
	}
	g.State = catalog.EditGroupState(state)
	g.ExtraHash = extraHash.String
	g.FinishedAt = finished.Time
	g.ChangelogSeq = seq.Int64
	return g, nil
}

// Edits

const editColumns = `e.id, e.editgroup_id, e.ident_id, e.ordinal, e.content, e.content_extra_sha1,
	e.redirect_id, e.is_delete, e.rev_id, e.extra_sha1, e.prev_exists, e.prev_rev_id,
	e.prev_redirect_id, e.created_at`

func (q *sqlTx) InsertEdit(ctx context.Context, e *catalog.Edit) error {
	if err := checkType(e.EntityType); err != nil {
		return err
	}
	var content sql.NullString
	if e.Content != nil {
		data, err := catalog.EncodeEntity(e.Content)
		if err != nil {
			return err
		}
		content = sql.NullString{String: string(data), Valid: true}
	}

	_, err := q.tx.ExecContext(ctx, "INSERT INTO "+editTable(e.EntityType)+`
		(id, editgroup_id, ident_id, ordinal, content, content_extra_sha1, redirect_id, is_delete,
		 extra_sha1, prev_exists, prev_rev_id, prev_redirect_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EditGroupID, e.IdentID, e.Ordinal, content, nullString(e.ContentExtraHash),
		nullString(e.RedirectID), e.Delete, nullString(e.ExtraHash), e.Prev.Exists,
		nullString(e.Prev.RevisionID), nullString(e.Prev.RedirectID), e.CreatedAt)
	if err != nil {
		return mapErr(fmt.Sprintf("inserting %s edit %s", e.EntityType, e.ID), err)
	}
	return nil
}

func (q *sqlTx) SetEditRevision(ctx context.Context, e *catalog.Edit) error {
	if err := checkType(e.EntityType); err != nil {
		return err
	}
	_, err := q.tx.ExecContext(ctx, "UPDATE "+editTable(e.EntityType)+" SET rev_id = ? WHERE id = ?",
		nullString(e.RevisionID), e.ID)
	if err != nil {
		return mapErr(fmt.Sprintf("recording revision of %s edit %s", e.EntityType, e.ID), err)
	}
	return nil
}

// ListEdits reads each per-type edit table and merges the results by ordinal.
func (q *sqlTx) ListEdits(ctx context.Context, groupID string) ([]*catalog.Edit, error) {
	var edits []*catalog.Edit
	for _, t := range catalog.EntityTypes {
		rows, err := q.tx.QueryContext(ctx,
			"SELECT "+editColumns+" FROM "+editTable(t)+" e WHERE e.editgroup_id = ?", groupID)
		if err != nil {
			return nil, mapErr(fmt.Sprintf("listing %s edits", t), err)
		}
		for rows.Next() {
			e, err := scanEdit(t, rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			edits = append(edits, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, mapErr(fmt.Sprintf("listing %s edits", t), err)
		}
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].Ordinal < edits[j].Ordinal })
	return edits, nil
}

// ListHistory returns edits of one identifier from accepted groups only.
func (q *sqlTx) ListHistory(ctx context.Context, t catalog.EntityType, id string) ([]catalog.HistoryEntry, error) {
	if err := checkType(t); err != nil {
		return nil, err
	}
	rows, err := q.tx.QueryContext(ctx, `
		SELECT c.seq, c.timestamp, g.editor_id, g.description, `+editColumns+`
		FROM `+editTable(t)+` e
		JOIN editgroup g ON g.id = e.editgroup_id
		JOIN changelog c ON c.editgroup_id = g.id
		WHERE e.ident_id = ?
		ORDER BY c.seq DESC`, id)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("listing history of %s %s", t, id), err)
	}
	defer rows.Close()

	var history []catalog.HistoryEntry
	for rows.Next() {
		var h catalog.HistoryEntry
		h.Edit, err = scanEdit(t, rows, &h.Seq, &h.Timestamp, &h.EditorID, &h.Description)
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(fmt.Sprintf("listing history of %s %s", t, id), err)
	}
	return history, nil
}

// scanEdit scans editColumns, preceded by any leading destinations.
func scanEdit(t catalog.EntityType, rows *sql.Rows, leading ...any) (*catalog.Edit, error) {
	e := &catalog.Edit{EntityType: t}
	var (
		content, contentExtra, redirectID, revID, extra sql.NullString
		prevRevID, prevRedirectID                       sql.NullString
		createdAt                                       time.Time
	)
	dest := append(leading,
		&e.ID, &e.EditGroupID, &e.IdentID, &e.Ordinal, &content, &contentExtra,
		&redirectID, &e.Delete, &revID, &extra, &e.Prev.Exists, &prevRevID,
		&prevRedirectID, &createdAt)
	if err := rows.Scan(dest...); err != nil {
		return nil, mapErr(fmt.Sprintf("scanning %s edit", t), err)
	}

	if content.Valid {
		entity, err := catalog.DecodeEntity(t, []byte(content.String))
		if err != nil {
			return nil, fmt.Errorf("decoding %s edit %s: %w", t, e.ID, err)
		}
		e.Content = entity
	}
	e.ContentExtraHash = contentExtra.String
	e.RedirectID = redirectID.String
	e.RevisionID = revID.String
	e.ExtraHash = extra.String
	e.Prev.RevisionID = prevRevID.String
	e.Prev.RedirectID = prevRedirectID.String
	e.CreatedAt = createdAt
	return e, nil
}
