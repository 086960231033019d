package catalog

import (
	"context"
	"time"
)

// Store is the persistence contract for the catalog. Every method on Reader
// and Tx runs inside the transaction that View or Update opened; readers see
// only committed state and a Tx's writes become visible all at once when fn
// returns nil. If fn returns an error nothing it wrote is kept.
//
// Missing rows are reported as ErrNotFound. Failures of the storage medium are
// reported as *StorageError.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Reader is the read side of a store transaction.
type Reader interface {
	// GetIdentifier returns the raw identifier row.
	GetIdentifier(ctx context.Context, t EntityType, id string) (*Identifier, error)

	// GetRevision returns a revision with its entity content and relationship
	// rows attached. Extra is not loaded; ExtraHash is set.
	GetRevision(ctx context.Context, t EntityType, revID string) (*Revision, error)

	// ListRelationships returns the child rows owned by a revision, ordered by kind then index.
	ListRelationships(ctx context.Context, t EntityType, revID string) ([]Relationship, error)

	// ListReferrers returns live, non-redirect identifiers whose current
	// revision owns a row of the given kind pointing at targetID.
	ListReferrers(ctx context.Context, kind RelationKind, targetID string) ([]Referrer, error)

	// LookupIdentifier finds the live, non-redirect identifier whose current
	// revision has key = value.
	LookupIdentifier(ctx context.Context, t EntityType, key, value string) (*Identifier, error)

	GetEditGroup(ctx context.Context, id string) (*EditGroup, error)

	// ListEdits returns a group's edits across all entity types in staging order.
	ListEdits(ctx context.Context, groupID string) ([]*Edit, error)

	// ListHistory returns accepted edits of one identifier, newest first.
	ListHistory(ctx context.Context, t EntityType, id string) ([]HistoryEntry, error)

	GetChangelogEntry(ctx context.Context, seq int64) (*ChangelogEntry, error)

	// ListChangelog returns up to limit entries with Seq >= from, ascending.
	ListChangelog(ctx context.Context, from int64, limit int) ([]*ChangelogEntry, error)

	// ChangelogHead returns the highest sequence number, or 0.
	ChangelogHead(ctx context.Context) (int64, error)

	GetBlob(ctx context.Context, hash string) ([]byte, error)

	// GetCursor returns a consumer's last processed sequence number, or 0.
	GetCursor(ctx context.Context, consumer string) (int64, error)
}

// Tx is a read-write store transaction.
type Tx interface {
	Reader

	// CreateIdentifier inserts a new pre-live identifier pointing at revID.
	CreateIdentifier(ctx context.Context, t EntityType, id, revID string) error

	// UpdateIdentifier overwrites the live/revision/redirect fields of an existing identifier.
	UpdateIdentifier(ctx context.Context, ident *Identifier) error

	// InsertRevision appends a revision and its relationship rows.
	InsertRevision(ctx context.Context, rev *Revision) error

	InsertEditGroup(ctx context.Context, g *EditGroup) error

	// UpdateEditGroup persists State, FinishedAt, ChangelogSeq and EditCount.
	UpdateEditGroup(ctx context.Context, g *EditGroup) error

	InsertEdit(ctx context.Context, e *Edit) error

	// SetEditRevision records the revision an accepted edit produced.
	SetEditRevision(ctx context.Context, e *Edit) error

	// AppendChangelog assigns the next sequence number to an accepted group.
	AppendChangelog(ctx context.Context, groupID string, ts time.Time) (int64, error)

	// PutBlob stores data under hash unless it is already present.
	PutBlob(ctx context.Context, hash string, data []byte, ts time.Time) error

	SetCursor(ctx context.Context, consumer string, seq int64, ts time.Time) error
}
