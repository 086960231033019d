package testutil

import (
	"fmt"
	"sync"
	"time"

	"catalog-go/internal/catalog"
)

// Epoch is the time FixedClock starts at.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

var (
	_ catalog.Clock       = (*StubClock)(nil)
	_ catalog.IDGenerator = (*StubIDGenerator)(nil)
)

// StubClock is a catalog.Clock that only moves when told to. Safe for
// concurrent use, so accepts racing on different goroutines see one time.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// FixedClock returns a StubClock set to Epoch.
func FixedClock() *StubClock {
	return &StubClock{now: Epoch}
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, e.g. between accepted groups so that
// changelog timestamps are distinct.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator is a catalog.IDGenerator issuing "id-1", "id-2", ... in
// call order. Identifier, revision, edit and group ids share one sequence.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next)
}
