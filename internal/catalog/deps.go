package catalog

import (
	"time"

	"github.com/google/uuid"
)

// The collaborators a Service is built with. Production wiring lives in
// internal/app; tests use NopLogger and the stubs in internal/testutil.

var (
	_ Logger      = (*NopLogger)(nil)
	_ Clock       = RealClock{}
	_ IDGenerator = UUIDGenerator{}
)

// Logger receives the service's structured events: group opened, edit
// staged, group accepted or abandoned, conflicts. args alternate key/value
// pairs as in log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock stamps edit groups, edits, revisions and changelog entries.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator issues identifier, revision, edit and edit group ids.
// Ids must be unique across all entity types.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
