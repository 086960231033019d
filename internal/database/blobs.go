package database

import (
	"context"
	"time"
)

// PutBlob leaves an existing row untouched; blob rows are immutable.
func (q *sqlTx) PutBlob(ctx context.Context, hash string, data []byte, ts time.Time) error {
	_, err := q.tx.ExecContext(ctx,
		"INSERT INTO blob (sha1, data, created_at) VALUES (?, ?, ?) ON CONFLICT(sha1) DO NOTHING",
		hash, data, ts)
	if err != nil {
		return mapErr("storing blob "+hash, err)
	}
	return nil
}

func (q *sqlTx) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	if err := q.tx.QueryRowContext(ctx, "SELECT data FROM blob WHERE sha1 = ?", hash).Scan(&data); err != nil {
		return nil, mapErr("reading blob "+hash, err)
	}
	return data, nil
}
