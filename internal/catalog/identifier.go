package catalog

// IdentState is the visibility state of an identifier, derived from its fields.
type IdentState string

const (
	StatePreLive  IdentState = "pre-live"
	StateLive     IdentState = "live"
	StateRedirect IdentState = "redirect"
	StateDeleted  IdentState = "deleted"
	StateInvalid  IdentState = "invalid"
)

// Identifier is the stable handle of one entity.
//
// The four legal field combinations are:
//
//	pre-live:  Live=false, RevisionID set,   RedirectID empty
//	live:      Live=true,  RevisionID set,   RedirectID empty
//	redirect:  Live=true,  RevisionID set,   RedirectID set (RevisionID is a cached copy)
//	deleted:   Live=true,  RevisionID empty, RedirectID empty
type Identifier struct {
	EntityType EntityType `json:"entity_type"`
	ID         string     `json:"id"`
	Live       bool       `json:"live"`
	RevisionID string     `json:"revision_id,omitempty"`
	RedirectID string     `json:"redirect_id,omitempty"`
}

// State classifies the identifier's fields. Any combination outside the four
// legal ones is StateInvalid.
func (i *Identifier) State() IdentState {
	switch {
	case !i.Live && i.RevisionID != "" && i.RedirectID == "":
		return StatePreLive
	case i.Live && i.RevisionID != "" && i.RedirectID == "":
		return StateLive
	case i.Live && i.RevisionID != "" && i.RedirectID != "":
		return StateRedirect
	case i.Live && i.RevisionID == "" && i.RedirectID == "":
		return StateDeleted
	}
	return StateInvalid
}

// Resolved is the result of following an identifier's redirect chain.
type Resolved struct {
	// Requested is the identifier as stored, without following redirects.
	Requested *Identifier `json:"requested"`
	// Terminus is the non-redirect identifier the chain ends at.
	Terminus *Identifier `json:"terminus"`
	// RevisionID is the terminus's own revision, never a cached redirect copy.
	// Empty when the terminus is deleted.
	RevisionID string `json:"revision_id,omitempty"`
	// Path lists every identifier visited, starting with the requested one.
	Path []string `json:"path"`
}

// Redirected reports whether at least one redirect hop was followed.
func (r *Resolved) Redirected() bool { return len(r.Path) > 1 }

// Deleted reports whether the chain ended at a deleted identifier.
func (r *Resolved) Deleted() bool { return r.Terminus.State() == StateDeleted }
