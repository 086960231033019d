package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// EntityType names one of the catalog's entity kinds. Each type has its own
// identifier, revision and edit tables; all types share edit groups and the changelog.
type EntityType string

const (
	TypeCreator   EntityType = "creator"
	TypeContainer EntityType = "container"
	TypeWork      EntityType = "work"
	TypeRelease   EntityType = "release"
	TypeFile      EntityType = "file"
)

// EntityTypes lists every entity type in a stable order.
var EntityTypes = []EntityType{TypeCreator, TypeContainer, TypeWork, TypeRelease, TypeFile}

// ParseEntityType converts a user-supplied name into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", s)}
	}
	return t, nil
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case TypeCreator, TypeContainer, TypeWork, TypeRelease, TypeFile:
		return true
	}
	return false
}

func (t EntityType) String() string { return string(t) }

// Entity is the content of one revision. The concrete type determines which
// revision table the content lives in.
type Entity interface {
	EntityType() EntityType
	Validate() error
}

// Creator is a person or organisation credited on releases.
type Creator struct {
	DisplayName string `json:"display_name"`
	GivenName   string `json:"given_name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
	WikidataQID string `json:"wikidata_qid,omitempty"`
}

// Container is a journal, book series, conference or other publication venue.
type Container struct {
	Name          string `json:"name"`
	Publisher     string `json:"publisher,omitempty"`
	ISSNL         string `json:"issnl,omitempty"`
	ContainerType string `json:"container_type,omitempty"`
	WikidataQID   string `json:"wikidata_qid,omitempty"`
}

// Work groups releases that are versions of the same intellectual work.
type Work struct {
	Title    string `json:"title,omitempty"`
	WorkType string `json:"work_type,omitempty"`
}

// Release is a specific published version of a work.
type Release struct {
	Title         string    `json:"title"`
	ReleaseType   string    `json:"release_type,omitempty"`
	ReleaseStatus string    `json:"release_status,omitempty"`
	ReleaseDate   string    `json:"release_date,omitempty"`
	DOI           string    `json:"doi,omitempty"`
	ISBN13        string    `json:"isbn13,omitempty"`
	Volume        string    `json:"volume,omitempty"`
	Issue         string    `json:"issue,omitempty"`
	Pages         string    `json:"pages,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	Language      string    `json:"language,omitempty"`
	WorkID        string    `json:"work_id,omitempty"`
	ContainerID   string    `json:"container_id,omitempty"`
	Contribs      []Contrib `json:"contribs,omitempty"`
	Refs          []Ref     `json:"refs,omitempty"`
}

// Contrib credits a creator on a release. CreatorID may be empty when only the
// raw name is known.
type Contrib struct {
	CreatorID string `json:"creator_id,omitempty"`
	Role      string `json:"role,omitempty"`
	RawName   string `json:"raw_name,omitempty"`
}

// Ref is one entry in a release's reference list.
type Ref struct {
	TargetReleaseID string `json:"target_release_id,omitempty"`
	Key             string `json:"key,omitempty"`
	RawText         string `json:"raw_text,omitempty"`
}

// File is a concrete digital copy of one or more releases.
type File struct {
	Size       int64    `json:"size,omitempty"`
	SHA1       string   `json:"sha1,omitempty"`
	SHA256     string   `json:"sha256,omitempty"`
	MD5        string   `json:"md5,omitempty"`
	Mimetype   string   `json:"mimetype,omitempty"`
	ReleaseIDs []string `json:"release_ids,omitempty"`
}

func (*Creator) EntityType() EntityType   { return TypeCreator }
func (*Container) EntityType() EntityType { return TypeContainer }
func (*Work) EntityType() EntityType      { return TypeWork }
func (*Release) EntityType() EntityType   { return TypeRelease }
func (*File) EntityType() EntityType      { return TypeFile }

var (
	orcidPattern = regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)
	issnPattern  = regexp.MustCompile(`^\d{4}-\d{3}[\dX]$`)
	hexPattern   = regexp.MustCompile(`^[0-9a-f]+$`)
)

func (c *Creator) Validate() error {
	if strings.TrimSpace(c.DisplayName) == "" {
		return &ValidationError{Field: "display_name", Reason: "required"}
	}
	if c.ORCID != "" && !orcidPattern.MatchString(c.ORCID) {
		return &ValidationError{Field: "orcid", Reason: fmt.Sprintf("malformed ORCID %q", c.ORCID)}
	}
	return nil
}

func (c *Container) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if c.ISSNL != "" && !issnPattern.MatchString(c.ISSNL) {
		return &ValidationError{Field: "issnl", Reason: fmt.Sprintf("malformed ISSN-L %q", c.ISSNL)}
	}
	return nil
}

func (w *Work) Validate() error { return nil }

func (r *Release) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if r.DOI != "" {
		if r.DOI != strings.ToLower(r.DOI) || !strings.HasPrefix(r.DOI, "10.") {
			return &ValidationError{Field: "doi", Reason: fmt.Sprintf("DOI must be lower-case and start with \"10.\": %q", r.DOI)}
		}
	}
	if r.ISBN13 != "" && len(strings.ReplaceAll(r.ISBN13, "-", "")) != 13 {
		return &ValidationError{Field: "isbn13", Reason: fmt.Sprintf("malformed ISBN-13 %q", r.ISBN13)}
	}
	for i, c := range r.Contribs {
		if c.CreatorID == "" && strings.TrimSpace(c.RawName) == "" {
			return &ValidationError{Field: fmt.Sprintf("contribs[%d]", i), Reason: "needs creator_id or raw_name"}
		}
	}
	for i, ref := range r.Refs {
		if ref.TargetReleaseID == "" && strings.TrimSpace(ref.RawText) == "" && ref.Key == "" {
			return &ValidationError{Field: fmt.Sprintf("refs[%d]", i), Reason: "empty reference"}
		}
	}
	return nil
}

func (f *File) Validate() error {
	if f.Size < 0 {
		return &ValidationError{Field: "size", Reason: "negative size"}
	}
	checks := []struct {
		field, value string
		length       int
	}{
		{"sha1", f.SHA1, 40},
		{"sha256", f.SHA256, 64},
		{"md5", f.MD5, 32},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		if len(c.value) != c.length || !hexPattern.MatchString(c.value) {
			return &ValidationError{Field: c.field, Reason: fmt.Sprintf("want %d lower-case hex characters", c.length)}
		}
	}
	for i, id := range f.ReleaseIDs {
		if id == "" {
			return &ValidationError{Field: fmt.Sprintf("release_ids[%d]", i), Reason: "empty release id"}
		}
	}
	return nil
}

// isNilEntity reports whether e holds a nil pointer of one of the entity types.
func isNilEntity(e Entity) bool {
	switch v := e.(type) {
	case *Creator:
		return v == nil
	case *Container:
		return v == nil
	case *Work:
		return v == nil
	case *Release:
		return v == nil
	case *File:
		return v == nil
	}
	return e == nil
}

// NewEntity returns an empty entity of type t, ready for decoding.
func NewEntity(t EntityType) (Entity, error) {
	switch t {
	case TypeCreator:
		return &Creator{}, nil
	case TypeContainer:
		return &Container{}, nil
	case TypeWork:
		return &Work{}, nil
	case TypeRelease:
		return &Release{}, nil
	case TypeFile:
		return &File{}, nil
	}
	return nil, &ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", t)}
}

// DecodeEntity decodes JSON content for an entity of type t. Unknown fields are rejected.
func DecodeEntity(t EntityType, data []byte) (Entity, error) {
	e, err := NewEntity(t)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(e); err != nil {
		return nil, &ValidationError{Field: "content", Reason: fmt.Sprintf("decoding %s: %v", t, err)}
	}
	return e, nil
}

// EncodeEntity encodes entity content as JSON.
func EncodeEntity(e Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", e.EntityType(), err)
	}
	return data, nil
}
