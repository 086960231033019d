package catalog

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ContentHash returns the content-store key for data: its lower-case hex SHA-1.
func ContentHash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON compacts a JSON object so that documents differing only in
// whitespace share one blob.
func canonicalJSON(field string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if buf.Len() == 0 || buf.Bytes()[0] != '{' {
		return nil, &ValidationError{Field: field, Reason: "must be a JSON object"}
	}
	return buf.Bytes(), nil
}

// putExtra stores an optional JSON object in the content store inside tx and
// returns its hash, or "" when data is empty.
func (s *Service) putExtra(ctx context.Context, tx Tx, field string, data json.RawMessage) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	canon, err := canonicalJSON(field, data)
	if err != nil {
		return "", err
	}
	hash := ContentHash(canon)
	if err := tx.PutBlob(ctx, hash, canon, s.clock.Now()); err != nil {
		return "", err
	}
	return hash, nil
}

// PutBlob stores a JSON object in the content store and returns its hash.
// Storing identical content twice keeps a single copy.
func (s *Service) PutBlob(ctx context.Context, data []byte) (string, error) {
	var hash string
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		hash, err = s.putExtra(ctx, tx, "blob", data)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	if hash == "" {
		return "", &ValidationError{Field: "blob", Reason: "empty"}
	}
	return hash, nil
}

// GetBlob returns the content stored under hash.
func (s *Service) GetBlob(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := s.store.View(ctx, func(r Reader) error {
		var err error
		data, err = r.GetBlob(ctx, hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", hash, err)
	}
	return data, nil
}
