package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"catalog-go/internal/catalog"
)

// revisionFields lists the type-specific revision columns of e together with
// pointers to the matching struct fields. The same pointers serve as insert
// arguments and scan destinations. refs points at the fields stored in the
// nullable identifier columns listed in refColumns.
func revisionFields(e catalog.Entity) (cols []string, ptrs []any, refs []*string) {
	switch v := e.(type) {
	case *catalog.Creator:
		return []string{"display_name", "given_name", "surname", "orcid", "wikidata_qid"},
			[]any{&v.DisplayName, &v.GivenName, &v.Surname, &v.ORCID, &v.WikidataQID}, nil
	case *catalog.Container:
		return []string{"name", "publisher", "issnl", "container_type", "wikidata_qid"},
			[]any{&v.Name, &v.Publisher, &v.ISSNL, &v.ContainerType, &v.WikidataQID}, nil
	case *catalog.Work:
		return []string{"title", "work_type"}, []any{&v.Title, &v.WorkType}, nil
	case *catalog.Release:
		cols = []string{
			"title", "release_type", "release_status", "release_date", "doi", "isbn13",
			"volume", "issue", "pages", "publisher", "language",
		}
		ptrs = []any{
			&v.Title, &v.ReleaseType, &v.ReleaseStatus, &v.ReleaseDate, &v.DOI, &v.ISBN13,
			&v.Volume, &v.Issue, &v.Pages, &v.Publisher, &v.Language,
		}
		return cols, ptrs, []*string{&v.WorkID, &v.ContainerID}
	case *catalog.File:
		return []string{"size", "sha1", "sha256", "md5", "mimetype"},
			[]any{&v.Size, &v.SHA1, &v.SHA256, &v.MD5, &v.Mimetype}, nil
	}
	return nil, nil, nil
}

// refColumns names the nullable identifier columns matching the refs
// returned by revisionFields.
var refColumns = map[catalog.EntityType][]string{
	catalog.TypeRelease: {"work_ident_id", "container_ident_id"},
}

func (q *sqlTx) InsertRevision(ctx context.Context, rev *catalog.Revision) error {
	if err := checkType(rev.EntityType); err != nil {
		return err
	}
	if rev.Entity == nil || rev.Entity.EntityType() != rev.EntityType {
		return fmt.Errorf("revision %s: content does not match type %s", rev.ID, rev.EntityType)
	}

	cols, ptrs, refs := revisionFields(rev.Entity)
	cols = append([]string{"id", "edit_id", "extra_sha1", "created_at"}, cols...)
	args := []any{rev.ID, rev.EditID, nullString(rev.ExtraHash), rev.CreatedAt}
	for _, p := range ptrs {
		args = append(args, derefField(p))
	}
	for i, c := range refColumns[rev.EntityType] {
		cols = append(cols, c)
		args = append(args, nullString(*refs[i]))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?%s)",
		revTable(rev.EntityType), strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))
	if _, err := q.tx.ExecContext(ctx, stmt, args...); err != nil {
		return mapErr(fmt.Sprintf("inserting %s revision %s", rev.EntityType, rev.ID), err)
	}

	for _, rel := range catalog.Relations(rev.Entity) {
		rel.RevisionID = rev.ID
		if err := q.insertRelationship(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (q *sqlTx) GetRevision(ctx context.Context, t catalog.EntityType, revID string) (*catalog.Revision, error) {
	if err := checkType(t); err != nil {
		return nil, err
	}
	entity, err := catalog.NewEntity(t)
	if err != nil {
		return nil, err
	}

	var (
		editID    string
		extraHash sql.NullString
		createdAt time.Time
	)
	cols, ptrs, refs := revisionFields(entity)
	refCols := refColumns[t]
	refVals := make([]sql.NullString, len(refCols))

	dest := append([]any{&editID, &extraHash, &createdAt}, ptrs...)
	for i := range refVals {
		dest = append(dest, &refVals[i])
	}
	query := fmt.Sprintf("SELECT edit_id, extra_sha1, created_at, %s FROM %s WHERE id = ?",
		strings.Join(append(cols, refCols...), ", "), revTable(t))
	if err := q.tx.QueryRowContext(ctx, query, revID).Scan(dest...); err != nil {
		return nil, mapErr(fmt.Sprintf("reading %s revision %s", t, revID), err)
	}
	for i, v := range refVals {
		*refs[i] = v.String
	}

	rels, err := q.ListRelationships(ctx, t, revID)
	if err != nil {
		return nil, err
	}
	catalog.AttachRelations(entity, rels)

	return &catalog.Revision{
		ID:         revID,
		EntityType: t,
		EditID:     editID,
		ExtraHash:  extraHash.String,
		CreatedAt:  createdAt,
		Entity:     entity,
	}, nil
}

// derefField turns a field pointer from revisionFields into an insert argument.
func derefField(p any) any {
	switch v := p.(type) {
	case *string:
		return *v
	case *int64:
		return *v
	}
	return p
}
