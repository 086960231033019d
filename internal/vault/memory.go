package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"catalog-go/internal/snapshot"
)

// MemoryVault keeps vault items in memory. It is useful for tests and for
// catalogs that do not archive snapshots. Safe for concurrent use.
type MemoryVault struct {
	name     string
	items    map[string][]byte // "catalogID/name" -> data
	versions map[string]int64  // "catalogID/name" -> version
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		items:    make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func itemKey(catalogID, name string) string {
	return catalogID + "/" + name
}

// PutMetadata stores a named item for a catalog, replacing any previous copy.
func (m *MemoryVault) PutMetadata(_ context.Context, catalogID, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(catalogID, name)
	m.items[key] = data
	m.versions[key] = version
	return nil
}

// GetMetadataVersion returns 0 if the item has never been stored.
func (m *MemoryVault) GetMetadataVersion(_ context.Context, catalogID, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[itemKey(catalogID, name)], nil
}

// GetMetadata writes a named item for a catalog to w.
func (m *MemoryVault) GetMetadata(_ context.Context, catalogID, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.items[itemKey(catalogID, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s not found for catalog %s", name, catalogID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

var _ snapshot.Vault = (*MemoryVault)(nil)
