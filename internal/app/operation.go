package app

// Operation tracks the CLI command a CatalogApp was created for.
// Commands that accept edits mark the operation mutated; on Close a mutated
// operation pushes a fresh snapshot when a vault and keys are available.
type Operation struct {
	Name      string
	SessionID string
	mutated   bool
}

// NewOperation creates an operation for the named command.
func NewOperation(name, sessionID string) *Operation {
	return &Operation{Name: name, SessionID: sessionID}
}

// MarkMutated records that the operation changed the catalog.
func (op *Operation) MarkMutated() {
	op.mutated = true
}

// Mutated reports whether the operation changed the catalog.
func (op *Operation) Mutated() bool {
	return op.mutated
}
