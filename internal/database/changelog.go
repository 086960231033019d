package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalog-go/internal/catalog"
)

// AppendChangelog relies on AUTOINCREMENT and the write lock held by the
// immediate transaction for gap-free, never-reused sequence numbers.
func (q *sqlTx) AppendChangelog(ctx context.Context, groupID string, ts time.Time) (int64, error) {
	res, err := q.tx.ExecContext(ctx, "INSERT INTO changelog (editgroup_id, timestamp) VALUES (?, ?)", groupID, ts)
	if err != nil {
		return 0, mapErr("appending changelog entry for "+groupID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("reading changelog sequence", err)
	}
	return seq, nil
}

func (q *sqlTx) GetChangelogEntry(ctx context.Context, seq int64) (*catalog.ChangelogEntry, error) {
	entry := &catalog.ChangelogEntry{Seq: seq}
	err := q.tx.QueryRowContext(ctx, "SELECT editgroup_id, timestamp FROM changelog WHERE seq = ?", seq).
		Scan(&entry.EditGroupID, &entry.Timestamp)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("reading changelog entry %d", seq), err)
	}
	return entry, nil
}

func (q *sqlTx) ListChangelog(ctx context.Context, from int64, limit int) ([]*catalog.ChangelogEntry, error) {
	rows, err := q.tx.QueryContext(ctx,
		"SELECT seq, editgroup_id, timestamp FROM changelog WHERE seq >= ? ORDER BY seq LIMIT ?", from, limit)
	if err != nil {
		return nil, mapErr("listing changelog", err)
	}
	defer rows.Close()

	var entries []*catalog.ChangelogEntry
	for rows.Next() {
		e := &catalog.ChangelogEntry{}
		if err := rows.Scan(&e.Seq, &e.EditGroupID, &e.Timestamp); err != nil {
			return nil, mapErr("scanning changelog", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("listing changelog", err)
	}
	return entries, nil
}

func (q *sqlTx) ChangelogHead(ctx context.Context) (int64, error) {
	var head sql.NullInt64
	if err := q.tx.QueryRowContext(ctx, "SELECT MAX(seq) FROM changelog").Scan(&head); err != nil {
		return 0, mapErr("reading changelog head", err)
	}
	return head.Int64, nil
}

// Consumer cursors

func (q *sqlTx) GetCursor(ctx context.Context, consumer string) (int64, error) {
	var seq int64
	err := q.tx.QueryRowContext(ctx, "SELECT seq FROM changelog_cursor WHERE consumer = ?", consumer).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, mapErr("reading cursor "+consumer, err)
	}
	return seq, nil
}

func (q *sqlTx) SetCursor(ctx context.Context, consumer string, seq int64, ts time.Time) error {
	_, err := q.tx.ExecContext(ctx, `
		INSERT INTO changelog_cursor (consumer, seq, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(consumer) DO UPDATE SET seq = excluded.seq, updated_at = excluded.updated_at`,
		consumer, seq, ts)
	if err != nil {
		return mapErr("saving cursor "+consumer, err)
	}
	return nil
}
