package catalog

import (
	"encoding/json"
	"time"
)

// Revision is an immutable content snapshot produced by one accepted edit.
type Revision struct {
	ID         string          `json:"id"`
	EntityType EntityType      `json:"entity_type"`
	EditID     string          `json:"edit_id"`
	ExtraHash  string          `json:"extra_hash,omitempty"`
	Extra      json.RawMessage `json:"extra,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	Entity     Entity          `json:"entity"`
}

// lookupKeys lists the external identifier fields each entity type can be
// looked up by. Values are matched exactly against the current revision.
var lookupKeys = map[EntityType][]string{
	TypeCreator:   {"orcid", "wikidata_qid"},
	TypeContainer: {"issnl", "wikidata_qid"},
	TypeRelease:   {"doi", "isbn13"},
	TypeFile:      {"sha1", "sha256", "md5"},
}

// LookupKeys returns the external identifier fields supported for t.
func LookupKeys(t EntityType) []string {
	return lookupKeys[t]
}

func validLookupKey(t EntityType, key string) bool {
	for _, k := range lookupKeys[t] {
		if k == key {
			return true
		}
	}
	return false
}
