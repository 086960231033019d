package testutil

import (
	"catalog-go/internal/snapshot"
	"catalog-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() snapshot.Vault {
	return vault.NewMemoryVault("test-vault")
}
